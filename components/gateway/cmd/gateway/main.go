// Command gateway runs the Yorutsuke cloud gateway: presign, permit
// issuance, quota reporting, batch orchestration, admin controls, and the
// transaction sync endpoints (spec.md §6.2).
package main

import (
	"context"

	"github.com/yorutsuke/yorutsuke/components/gateway/internal/bootstrap"
)

func main() {
	ctx := context.Background()

	service, err := bootstrap.Init(ctx)
	if err != nil {
		panic(err)
	}

	defer func() {
		if err := service.Logger.Sync(); err != nil {
			service.Logger.Errorf("gateway: failed to sync logger: %v", err)
		}
	}()

	service.Run()
}
