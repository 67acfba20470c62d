package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/specialistvlad/gridworker/internal/ctxlog"
	"github.com/specialistvlad/gridworker/internal/transport"
	"github.com/specialistvlad/gridworker/internal/upstream"
)

// Run serves subworkers until ctx is done or a disconnect aborts the worker.
// An abort is returned as an error wrapping upstream.ErrConnectionLost.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.ctx = ctx
	logger := a.logger
	logger.Debug("App.Run method started.")

	ctx, abort := context.WithCancelCause(ctx)
	defer abort(nil)

	a.healthCheckServer()
	defer a.closeHealthCheckServer()

	srv := transport.NewServer(ctx, a.state,
		upstream.WithDisconnectPolicy(a.policy),
		upstream.WithAbort(func(err error) { abort(err) }),
	)
	mux := http.NewServeMux()
	srv.Mount(mux)

	ln, err := net.Listen("tcp", a.settings.Worker.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.settings.Worker.Listen, err)
	}
	httpServer := &http.Server{Handler: mux, ReadHeaderTimeout: shutdownTimeout}

	serveErr := make(chan error, 1)
	go func() { serveErr <- httpServer.Serve(ln) }()

	a.mu.Lock()
	a.addr = ln.Addr().String()
	a.mu.Unlock()
	close(a.ready)
	logger.Info("🚀 Worker listening for subworkers.",
		"address", a.Addr(),
		"work_dir", a.state.WorkDir().Root(),
		"on_disconnect", string(a.policy),
		"protocol_version", upstream.ProtocolVersion,
	)

	var runErr error
	select {
	case <-ctx.Done():
		if cause := context.Cause(ctx); errors.Is(cause, upstream.ErrConnectionLost) {
			runErr = cause
		}
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("upstream server failed: %w", err)
		}
	}

	logger.Info("🏁 Shutting down worker...")
	if err := srv.Close(); err != nil {
		logger.Warn("Failed to close subworker connections.", "error", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Upstream server shutdown failed.", "error", err)
	}

	logger.Debug("App.Run method finished.")
	return runErr
}
