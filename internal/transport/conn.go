package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/gridworker/internal/ctxlog"
	"github.com/specialistvlad/gridworker/internal/data"
	"github.com/specialistvlad/gridworker/internal/dataobj"
	"github.com/specialistvlad/gridworker/internal/objecttable"
	"github.com/specialistvlad/gridworker/internal/upstream"
	"github.com/specialistvlad/gridworker/internal/wire"
	"github.com/specialistvlad/gridworker/internal/worker"
	"github.com/zishang520/socket.io/v2/socket"
)

type taskResult struct {
	outputs []*data.Data
	err     error
}

// conn is one subworker connection and its ControlHandle.
type conn struct {
	id      string
	sock    *socket.Socket
	handler *upstream.Handler
	objects *objecttable.Table
	ctx     context.Context
	logger  *slog.Logger
	onClose func()

	nextRequest atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]chan taskResult
	done    chan struct{}
	closed  bool
}

func newConn(parent context.Context, state *worker.State, sock *socket.Socket, opts ...upstream.Option) *conn {
	id := string(sock.Id())
	ctx, logger := ctxlog.With(parent, "conn_id", id)
	return &conn{
		id:      id,
		sock:    sock,
		handler: upstream.NewHandler(state, opts...),
		objects: state.Objects(),
		ctx:     ctx,
		logger:  logger,
		pending: make(map[uint64]chan taskResult),
		done:    make(chan struct{}),
	}
}

func (c *conn) bind() {
	c.sock.On(wire.EventRegister, func(args ...any) {
		c.onRegister(args...)
	})
	c.sock.On(wire.EventTaskFinished, func(args ...any) {
		c.onTaskFinished(args...)
	})
	c.sock.On("disconnect", func(args ...any) {
		reason := "disconnect"
		if len(args) > 0 {
			reason = fmt.Sprint(args[0])
		}
		c.onDisconnect(reason)
	})
}

func (c *conn) onRegister(args ...any) {
	var req wire.RegisterRequest
	if err := wire.Decode(firstArg(args), &req); err != nil {
		c.reply(wire.EventRegisterResult, wire.RegisterResult{Error: err.Error()})
		return
	}

	entry, err := c.handler.Register(c.ctx, req, c)
	if err != nil {
		c.reply(wire.EventRegisterResult, wire.RegisterResult{Error: err.Error()})
		return
	}
	c.reply(wire.EventRegisterResult, wire.RegisterResult{OK: true, WorkDir: entry.WorkDir})
}

func (c *conn) onTaskFinished(args ...any) {
	if _, ok := c.handler.Entry(); !ok {
		c.reject(wire.EventTaskFinished, upstream.ErrNotRegistered)
		return
	}

	var msg wire.TaskFinished
	if err := wire.Decode(firstArg(args), &msg); err != nil {
		c.reject(wire.EventTaskFinished, err)
		if id, ok := requestID(firstArg(args)); ok {
			if ch, ok := c.take(id); ok {
				ch <- taskResult{err: fmt.Errorf("invalid report for task %d: %w", id, err)}
			}
		}
		return
	}

	ch, ok := c.take(msg.RequestID)
	if !ok {
		c.logger.Warn("Task report for unknown request.", "request_id", msg.RequestID)
		c.reject(wire.EventTaskFinished, fmt.Errorf("unknown request %d", msg.RequestID))
		return
	}

	if msg.Error != "" {
		ch <- taskResult{err: fmt.Errorf("subworker task %d failed: %s", msg.RequestID, msg.Error)}
		return
	}
	outputs, err := c.localizeAll(msg.Outputs)
	ch <- taskResult{outputs: outputs, err: err}
}

// take removes and returns the pending channel for a request.
func (c *conn) take(id uint64) (chan taskResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.pending[id]
	delete(c.pending, id)
	return ch, ok
}

// requestID recovers the request id of a report that does not decode.
func requestID(arg any) (uint64, bool) {
	var head struct {
		RequestID *uint64 `json:"request_id"`
	}
	if err := wire.Decode(arg, &head); err != nil || head.RequestID == nil {
		return 0, false
	}
	return *head.RequestID, true
}

// localizeAll localizes every output or none of them.
func (c *conn) localizeAll(descs []wire.LocalData) ([]*data.Data, error) {
	outputs := make([]*data.Data, 0, len(descs))
	for i, desc := range descs {
		d, err := c.handler.Localize(c.ctx, desc)
		if err != nil {
			c.release(outputs)
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		outputs = append(outputs, d)
	}
	return outputs, nil
}

func (c *conn) onDisconnect(reason string) {
	c.shutdown()
	c.handler.ConnectionLost(c.ctx, reason)
	if c.onClose != nil {
		c.onClose()
	}
	c.logger.Info("Upstream connection closed.", "reason", reason)
}

// shutdown fails every pending RunTask. It is idempotent.
func (c *conn) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}

func (c *conn) reply(event string, v any) {
	payload, err := wire.Encode(v)
	if err != nil {
		c.logger.Error("Failed to encode reply.", "event", event, "error", err)
		return
	}
	c.sock.Emit(event, payload)
}

func (c *conn) reject(event string, err error) {
	c.logger.Warn("Request rejected.", "event", event, "error", err)
	c.reply(wire.EventRejected, wire.Rejected{Event: event, Error: err.Error()})
}

// ID implements subworker.ControlHandle.
func (c *conn) ID() string { return c.id }

// RunTask implements subworker.ControlHandle. A zero RequestID is replaced
// by a connection-unique one. When OutputIDs is set, the localized outputs
// are also bound under those ids in the object table.
func (c *conn) RunTask(ctx context.Context, task wire.RunTask) ([]*data.Data, error) {
	for _, id := range task.OutputIDs {
		if _, err := c.objects.Lookup(ctx, id); err == nil {
			return nil, fmt.Errorf("%w: %s", objecttable.ErrExists, id)
		}
	}
	if task.RequestID == 0 {
		task.RequestID = c.nextRequest.Add(1)
	}
	ch := make(chan taskResult, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, upstream.ErrConnectionLost
	}
	if _, dup := c.pending[task.RequestID]; dup {
		c.mu.Unlock()
		return nil, fmt.Errorf("request %d already pending", task.RequestID)
	}
	c.pending[task.RequestID] = ch
	c.mu.Unlock()

	payload, err := wire.Encode(task)
	if err != nil {
		c.forget(task.RequestID, ch)
		return nil, err
	}
	c.logger.Debug("Sending task.", "request_id", task.RequestID, "method", task.Method)
	c.sock.Emit(wire.EventRunTask, payload)

	select {
	case res := <-ch:
		if res.err != nil || len(task.OutputIDs) == 0 {
			return res.outputs, res.err
		}
		if err := c.publish(ctx, task.OutputIDs, res.outputs); err != nil {
			c.release(res.outputs)
			return nil, err
		}
		return res.outputs, nil
	case <-c.done:
		c.forget(task.RequestID, ch)
		return nil, upstream.ErrConnectionLost
	case <-ctx.Done():
		c.forget(task.RequestID, ch)
		return nil, ctx.Err()
	}
}

// publish binds each output under its id. The table holds its own reference.
// On failure nothing stays bound.
func (c *conn) publish(ctx context.Context, ids []dataobj.ID, outputs []*data.Data) error {
	if len(ids) != len(outputs) {
		return fmt.Errorf("task produced %d outputs for %d output ids", len(outputs), len(ids))
	}
	for i, id := range ids {
		d := outputs[i].Retain()
		if err := c.objects.Insert(ctx, id, d); err != nil {
			c.release([]*data.Data{d})
			for _, bound := range ids[:i] {
				if rmErr := c.objects.Remove(ctx, bound); rmErr != nil {
					c.logger.Warn("Failed to unbind output.", "object_id", bound, "error", rmErr)
				}
			}
			return fmt.Errorf("output %d: %w", i, err)
		}
	}
	c.logger.Debug("Outputs published.", "count", len(ids))
	return nil
}

func (c *conn) release(outputs []*data.Data) {
	for _, o := range outputs {
		if err := o.Release(); err != nil {
			c.logger.Warn("Failed to release output.", "error", err)
		}
	}
}

// forget abandons a pending request. If its report is already being
// processed, the outputs are released once they arrive.
func (c *conn) forget(id uint64, ch chan taskResult) {
	c.mu.Lock()
	_, pending := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()
	if pending {
		return
	}
	go func() {
		res := <-ch
		c.release(res.outputs)
	}()
}

// Close implements subworker.ControlHandle. Closing from the worker side
// drops the registration without applying the disconnect policy.
func (c *conn) Close() error {
	c.handler.Deregister(c.ctx)
	c.shutdown()
	c.sock.Disconnect(true)
	return nil
}

func firstArg(args []any) any {
	if len(args) == 0 {
		return nil
	}
	return args[0]
}
