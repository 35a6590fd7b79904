// Command instantprocessor consumes "object created under uploads/"
// events and runs the per-object OCR path (spec.md §4.5.1).
package main

import (
	"context"

	"github.com/yorutsuke/yorutsuke/components/instantprocessor/internal/bootstrap"
)

func main() {
	ctx := context.Background()

	service, err := bootstrap.Init(ctx)
	if err != nil {
		panic(err)
	}

	defer func() {
		if err := service.Logger.Sync(); err != nil {
			service.Logger.Errorf("instantprocessor: failed to sync logger: %v", err)
		}
	}()

	service.Run()
}
