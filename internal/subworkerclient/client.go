// Package subworkerclient is the subworker side of the upstream channel: it
// dials a worker, registers, and answers run_task requests.
package subworkerclient

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/specialistvlad/gridworker/internal/ctxlog"
	"github.com/specialistvlad/gridworker/internal/wire"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// ErrRegistrationRefused is returned when the worker answers register with
// a failure.
var ErrRegistrationRefused = errors.New("registration refused")

const defaultConnectTimeout = 15 * time.Second

// Options configures Dial.
type Options struct {
	// URL of the worker's socket.io endpoint, e.g. http://host:7210/socket.io/.
	URL string
	// Namespace defaults to the root namespace "/".
	Namespace          string
	InsecureSkipVerify bool
	ConnectTimeout     time.Duration
}

// TaskFunc computes a task and describes its outputs.
type TaskFunc func(ctx context.Context, task wire.RunTask) ([]wire.LocalData, error)

// Client is a connected subworker.
type Client struct {
	io     *socket.Socket
	ctx    context.Context
	logger *slog.Logger

	mu         sync.Mutex
	workDir    string
	taskFn     TaskFunc
	rejectedFn func(wire.Rejected)
}

// Dial connects to a worker and waits for the connection to be established.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	logger := ctxlog.FromContext(ctx).With("component", "subworkerclient", "url", opts.URL)

	parsedURL, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	sockOpts := socket.DefaultOptions()
	sockOpts.SetPath(parsedURL.Path)
	if opts.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		sockOpts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	sockOpts.SetTransports(types.NewSet(transports.WebSocket))

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, sockOpts)
	io := manager.Socket(namespace(opts.Namespace), sockOpts)

	c := &Client{
		io:     io,
		ctx:    context.WithoutCancel(ctx),
		logger: logger,
	}
	c.bind()

	connectChan := make(chan error, 1)
	io.Once(types.EventName("connect"), func(...any) {
		logger.Debug("Connected.", "sid", io.Id())
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := fmt.Errorf("connect error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		connectChan <- err
	})

	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		return c, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection: %w", ctx.Err())
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", timeout)
	}
}

func (c *Client) bind() {
	c.io.On(types.EventName(wire.EventRunTask), func(args ...any) {
		var task wire.RunTask
		if err := wire.Decode(firstArg(args), &task); err != nil {
			c.logger.Error("Malformed run_task.", "error", err)
			return
		}
		go c.runTask(task)
	})
	c.io.On(types.EventName(wire.EventRejected), func(args ...any) {
		var rej wire.Rejected
		if err := wire.Decode(firstArg(args), &rej); err != nil {
			c.logger.Error("Malformed rejection.", "error", err)
			return
		}
		c.logger.Warn("Worker rejected request.", "event", rej.Event, "error", rej.Error)
		c.mu.Lock()
		fn := c.rejectedFn
		c.mu.Unlock()
		if fn != nil {
			fn(rej)
		}
	})
}

// ID returns the socket id assigned by the worker.
func (c *Client) ID() string { return string(c.io.Id()) }

// WorkDir returns the private directory granted at registration.
func (c *Client) WorkDir() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.workDir
}

// Register performs the handshake and returns the subworker's work dir.
func (c *Client) Register(ctx context.Context, version, id int, typeName string) (string, error) {
	payload, err := wire.Encode(wire.RegisterRequest{
		Version:       version,
		SubworkerID:   id,
		SubworkerType: typeName,
	})
	if err != nil {
		return "", err
	}

	done := make(chan wire.RegisterResult, 1)
	c.io.Once(types.EventName(wire.EventRegisterResult), func(args ...any) {
		var res wire.RegisterResult
		if err := wire.Decode(firstArg(args), &res); err != nil {
			res = wire.RegisterResult{Error: err.Error()}
		}
		done <- res
	})
	c.io.Emit(wire.EventRegister, payload)

	select {
	case res := <-done:
		if !res.OK {
			return "", fmt.Errorf("%w: %s", ErrRegistrationRefused, res.Error)
		}
		c.mu.Lock()
		c.workDir = res.WorkDir
		c.mu.Unlock()
		c.logger.Info("Registered with worker.", "subworker_id", id, "work_dir", res.WorkDir)
		return res.WorkDir, nil
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for register_result: %w", ctx.Err())
	}
}

// OnRunTask installs the task handler.
func (c *Client) OnRunTask(fn TaskFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.taskFn = fn
}

// OnRejected installs a callback for rejected requests.
func (c *Client) OnRejected(fn func(wire.Rejected)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rejectedFn = fn
}

// SendTaskFinished reports a task outcome directly.
func (c *Client) SendTaskFinished(msg wire.TaskFinished) error {
	payload, err := wire.Encode(msg)
	if err != nil {
		return err
	}
	c.io.Emit(wire.EventTaskFinished, payload)
	return nil
}

func (c *Client) runTask(task wire.RunTask) {
	c.mu.Lock()
	fn := c.taskFn
	c.mu.Unlock()

	msg := wire.TaskFinished{RequestID: task.RequestID}
	if fn == nil {
		msg.Error = "no task handler installed"
	} else if outputs, err := fn(c.ctx, task); err != nil {
		msg.Error = err.Error()
	} else {
		msg.Outputs = outputs
	}
	if err := c.SendTaskFinished(msg); err != nil {
		c.logger.Error("Failed to report task.", "request_id", task.RequestID, "error", err)
	}
}

// Close disconnects from the worker.
func (c *Client) Close() error {
	c.logger.Info("Closing subworker client", "sid", c.io.Id())
	c.io.Disconnect()
	return nil
}

func namespace(ns string) string {
	if ns == "" {
		return "/"
	}
	return ns
}

func firstArg(args []any) any {
	if len(args) == 0 {
		return nil
	}
	return args[0]
}
