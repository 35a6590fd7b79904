// Command client runs the Yorutsuke device-side runtime: the upload
// queue's compress/upload worker, the transaction sync engine, and the
// network connectivity poller (spec.md §4.1, §4.6).
package main

import (
	"github.com/yorutsuke/yorutsuke/components/client/internal/bootstrap"
)

func main() {
	service, err := bootstrap.Init()
	if err != nil {
		panic(err)
	}

	defer func() {
		if err := service.Logger.Sync(); err != nil {
			service.Logger.Errorf("client: failed to sync logger: %v", err)
		}
	}()

	service.Run()
}
