package bootstrap

import "github.com/yorutsuke/yorutsuke/internal/platform/mlauncher"

// Run starts the upload-events consumer under its own launcher. A second
// app would register here too if this binary ever grew a health endpoint,
// following the same single-launcher composition the gateway and client
// binaries use.
func (s *Service) Run() {
	launcher := mlauncher.New(mlauncher.WithLogger(s.Logger), mlauncher.WithVerbose(true))
	launcher.Add("upload-events-consumer", s.Consumer)
	launcher.Run()
}
