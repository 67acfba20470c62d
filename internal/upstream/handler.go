package upstream

import (
	"context"
	"fmt"
	"sync"

	"github.com/specialistvlad/gridworker/internal/ctxlog"
	"github.com/specialistvlad/gridworker/internal/data"
	"github.com/specialistvlad/gridworker/internal/metrics"
	"github.com/specialistvlad/gridworker/internal/subworker"
	"github.com/specialistvlad/gridworker/internal/wire"
	"github.com/specialistvlad/gridworker/internal/worker"
)

// ProtocolVersion is the only subworker protocol version this worker speaks.
const ProtocolVersion = 1

// AbortFunc terminates the process after an unrecoverable upstream failure.
type AbortFunc func(err error)

// Handler serves one subworker connection.
type Handler struct {
	state   *worker.State
	version int
	policy  DisconnectPolicy
	abort   AbortFunc

	mu    sync.Mutex
	entry *subworker.Entry
}

// Option configures a Handler.
type Option func(*Handler)

// WithDisconnectPolicy selects what happens when a registered connection is lost.
func WithDisconnectPolicy(p DisconnectPolicy) Option {
	return func(h *Handler) { h.policy = p }
}

// WithAbort replaces the function called under PolicyAbort.
func WithAbort(fn AbortFunc) Option {
	return func(h *Handler) { h.abort = fn }
}

// NewHandler creates an unregistered handler over the shared state.
func NewHandler(state *worker.State, opts ...Option) *Handler {
	h := &Handler{
		state:   state,
		version: ProtocolVersion,
		policy:  PolicyAbort,
		abort:   func(err error) { panic(err) },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register validates the handshake and publishes the subworker's entry.
// The entry is returned even if the connection is lost right after.
func (h *Handler) Register(ctx context.Context, req wire.RegisterRequest, control subworker.ControlHandle) (*subworker.Entry, error) {
	entry, err := h.register(ctx, req, control)
	metrics.ObserveRegistration(resultLabel(err))
	return entry, err
}

func (h *Handler) register(ctx context.Context, req wire.RegisterRequest, control subworker.ControlHandle) (*subworker.Entry, error) {
	logger := ctxlog.FromContext(ctx).With("subworker_id", req.SubworkerID, "subworker_type", req.SubworkerType)

	if req.Version != h.version {
		logger.Warn("Subworker protocol mismatch.", "expected", h.version, "got", req.Version)
		return nil, &ProtocolMismatchError{Expected: h.version, Got: req.Version}
	}
	if control == nil {
		return nil, fmt.Errorf("control handle is required")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.entry != nil {
		return nil, fmt.Errorf("%w as subworker %d", ErrAlreadyRegistered, h.entry.ID)
	}

	dir, err := h.state.WorkDir().MakeSubworkerDir(req.SubworkerID)
	if err != nil {
		return nil, err
	}
	entry := &subworker.Entry{
		ID:       req.SubworkerID,
		TypeName: req.SubworkerType,
		Control:  control,
		WorkDir:  dir,
	}
	if err := h.state.Subworkers().Insert(entry); err != nil {
		logger.Warn("Subworker registration rejected.", "error", err)
		return nil, err
	}
	h.entry = entry
	metrics.SetSubworkers(h.state.Subworkers().Len())

	logger.Info("Subworker registered.", "work_dir", entry.WorkDir)
	return entry, nil
}

// Entry returns the registered entry, if any.
func (h *Handler) Entry() (*subworker.Entry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entry, h.entry != nil
}

// Localize localizes a result reported on this connection, using the
// registered subworker's work directory as the sandbox.
func (h *Handler) Localize(ctx context.Context, desc wire.LocalData) (*data.Data, error) {
	entry, ok := h.Entry()
	if !ok {
		return nil, ErrNotRegistered
	}
	return Localize(ctx, h.state, entry.WorkDir, desc)
}

// ConnectionLost is called by the transport once the connection is gone.
func (h *Handler) ConnectionLost(ctx context.Context, reason string) {
	h.mu.Lock()
	entry := h.entry
	h.entry = nil
	h.mu.Unlock()

	logger := ctxlog.FromContext(ctx)
	if entry == nil {
		logger.Debug("Unregistered upstream connection closed.", "reason", reason)
		return
	}

	err := fmt.Errorf("%w %d (%s): %s", ErrConnectionLost, entry.ID, entry.TypeName, reason)
	logger = logger.With("subworker_id", entry.ID, "subworker_type", entry.TypeName)

	switch h.policy {
	case PolicyUnregister:
		h.remove(ctx, entry)
		logger.Warn("Subworker connection lost; entry removed.", "reason", reason)
	default:
		logger.Error("Subworker connection lost; aborting worker.", "error", err)
		h.abort(err)
	}
}

// Deregister drops the registered entry without applying the disconnect
// policy. The transport uses it when the worker itself closes connections.
func (h *Handler) Deregister(ctx context.Context) {
	h.mu.Lock()
	entry := h.entry
	h.entry = nil
	h.mu.Unlock()

	if entry != nil {
		h.remove(ctx, entry)
		ctxlog.FromContext(ctx).Info("Subworker deregistered.", "subworker_id", entry.ID)
	}
}

func (h *Handler) remove(ctx context.Context, entry *subworker.Entry) {
	if err := h.state.Subworkers().Remove(entry.ID, entry.Control); err != nil {
		ctxlog.FromContext(ctx).Warn("Subworker entry already gone.", "subworker_id", entry.ID, "error", err)
	}
	metrics.SetSubworkers(h.state.Subworkers().Len())
}
