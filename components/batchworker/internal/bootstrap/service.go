package bootstrap

import "github.com/yorutsuke/yorutsuke/internal/platform/mlauncher"

// Run starts the batch result consumer and blocks until it stops.
func (s *Service) Run() {
	launcher := mlauncher.New(mlauncher.WithLogger(s.Logger), mlauncher.WithVerbose(true))
	launcher.Add("batch-result-consumer", s.Consumer)
	launcher.Run()
}
