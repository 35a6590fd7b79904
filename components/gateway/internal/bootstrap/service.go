package bootstrap

import "github.com/yorutsuke/yorutsuke/internal/platform/mlauncher"

// Run starts the gateway's HTTP server under the shared launcher. A second
// binary's worth of apps (e.g. the emergency-stop cache refresher) would
// register here too, following the teacher's unified-server.go composition
// style, but the gateway only needs the one runnable today.
func (s *Service) Run() {
	launcher := mlauncher.New(mlauncher.WithLogger(s.Logger), mlauncher.WithVerbose(true))
	launcher.Add("http", s.Server)
	launcher.Run()
}
