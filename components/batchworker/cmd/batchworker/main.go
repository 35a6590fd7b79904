// Command batchworker consumes batch completion events and runs the
// batch result ingestion path (spec.md §4.5.3).
package main

import (
	"context"

	"github.com/yorutsuke/yorutsuke/components/batchworker/internal/bootstrap"
)

func main() {
	ctx := context.Background()

	service, err := bootstrap.Init(ctx)
	if err != nil {
		panic(err)
	}

	defer func() {
		if err := service.Logger.Sync(); err != nil {
			service.Logger.Errorf("batchworker: failed to sync logger: %v", err)
		}
	}()

	service.Run()
}
