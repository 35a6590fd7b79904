// Package mlauncher runs a set of independent, long-lived runnables side by
// side inside one process — the HTTP server, a queue consumer, a background
// worker loop — and waits for all of them to return. Adapted from the
// teacher's common/app.go.
package mlauncher

import (
	"sync"

	"github.com/yorutsuke/yorutsuke/internal/platform/mlog"
)

// App is anything the Launcher can run: a server's Run blocks until the
// server shuts down, a worker's Run blocks until its own Shutdown method is
// called. The Launcher never calls Shutdown itself.
type App interface {
	Run(l *Launcher) error
}

// Launcher owns a named set of Apps and runs them concurrently, one
// goroutine per App, waiting for all of them before Run returns.
type Launcher struct {
	Logger  mlog.Logger
	apps    map[string]App
	wg      *sync.WaitGroup
	Verbose bool
}

// Option configures a Launcher at construction time.
type Option func(*Launcher)

// WithLogger sets the Launcher's logger.
func WithLogger(logger mlog.Logger) Option {
	return func(l *Launcher) { l.Logger = logger }
}

// WithVerbose toggles per-app start/stop logging.
func WithVerbose(v bool) Option {
	return func(l *Launcher) { l.Verbose = v }
}

// New builds a Launcher ready to receive Add calls.
func New(opts ...Option) *Launcher {
	l := &Launcher{
		Logger: &mlog.NoneLogger{},
		apps:   make(map[string]App),
		wg:     &sync.WaitGroup{},
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Add registers a named App to run when Run is called.
func (l *Launcher) Add(name string, app App) {
	l.apps[name] = app
}

// Run starts every registered App in its own goroutine and blocks until all
// of them return. An App's own error is logged, not returned — one
// component failing to start shouldn't prevent the others in the same
// process from running (e.g. the HTTP server should still serve health
// checks even if the background sync loop fails to start).
func (l *Launcher) Run() {
	for name, app := range l.apps {
		l.wg.Add(1)

		go func(name string, app App) {
			defer l.wg.Done()

			if l.Verbose {
				l.Logger.Infof("mlauncher: starting %s", name)
			}

			if err := app.Run(l); err != nil {
				l.Logger.Errorf("mlauncher: %s exited with error: %v", name, err)
			}

			if l.Verbose {
				l.Logger.Infof("mlauncher: %s stopped", name)
			}
		}(name, app)
	}

	l.wg.Wait()
}
