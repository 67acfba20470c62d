package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/specialistvlad/gridworker/internal/config"
	"github.com/specialistvlad/gridworker/internal/ctxlog"
	"github.com/specialistvlad/gridworker/internal/upstream"
	"github.com/specialistvlad/gridworker/internal/workdir"
	"github.com/specialistvlad/gridworker/internal/worker"
)

// App encapsulates the worker's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	ctx      context.Context
	settings *config.Model
	policy   upstream.DisconnectPolicy
	state    *worker.State

	httpServer *http.Server

	mu    sync.Mutex
	addr  string
	ready chan struct{}
}

// NewApp resolves the configuration and prepares the worker state. A
// configuration that cannot be loaded or used is a fatal startup error, so
// NewApp panics on it.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader) *App {
	bootCtx := context.Background()

	var fileModel *config.Model
	if cfg.ConfigPath != "" {
		m, err := loader.Load(bootCtx, cfg.ConfigPath)
		if err != nil {
			panic(fmt.Errorf("failed to load configuration: %w", err))
		}
		fileModel = m
	}

	settings, err := resolve(fileModel, cfg.Overrides)
	if err != nil {
		panic(err)
	}
	policy, err := upstream.ParseDisconnectPolicy(settings.Worker.OnDisconnect)
	if err != nil {
		panic(err)
	}

	logger := newLogger(settings.Log.Level, settings.Log.Format, outW)
	logger.Debug("Logger configured successfully.")

	wd, err := workdir.New(settings.Worker.WorkDir)
	if err != nil {
		panic(fmt.Errorf("failed to prepare work dir: %w", err))
	}
	state, err := worker.NewState(wd)
	if err != nil {
		panic(err)
	}
	logger.Debug("Worker state created.", "work_dir", wd.Root())

	return &App{
		outW:     outW,
		logger:   logger,
		ctx:      ctxlog.WithLogger(bootCtx, logger),
		settings: settings,
		policy:   policy,
		state:    state,
		ready:    make(chan struct{}),
	}
}

// State returns the worker state. This is primarily for testing.
func (a *App) State() *worker.State { return a.state }

// Settings returns the resolved configuration.
func (a *App) Settings() config.Model { return *a.settings }

// Ready is closed once the upstream listener accepts connections.
func (a *App) Ready() <-chan struct{} { return a.ready }

// Addr returns the upstream listener's address once Ready is closed.
func (a *App) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addr
}
