// Package hclconfig loads worker configuration files written in HCL.
//
// Expressions are evaluated with an env object holding the process
// environment, so a file may write work_dir = "${env.HOME}/.gridworker".
package hclconfig

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/gridworker/internal/config"
	"github.com/specialistvlad/gridworker/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

// Loader is the HCL implementation of config.Loader.
type Loader struct {
	environ func() []string
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnviron replaces the environment exposed as env.
func WithEnviron(environ []string) Option {
	return func(l *Loader) {
		l.environ = func() []string { return environ }
	}
}

// NewLoader creates an HCL configuration loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{environ: os.Environ}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var _ config.Loader = (*Loader)(nil)

type fileRoot struct {
	Worker      *workerBlock      `hcl:"worker,block"`
	Log         *logBlock         `hcl:"log,block"`
	Healthcheck *healthcheckBlock `hcl:"healthcheck,block"`
}

type workerBlock struct {
	Listen       string `hcl:"listen,optional"`
	WorkDir      string `hcl:"work_dir,optional"`
	OnDisconnect string `hcl:"on_disconnect,optional"`
}

type logBlock struct {
	Level  string `hcl:"level,optional"`
	Format string `hcl:"format,optional"`
}

type healthcheckBlock struct {
	Port int `hcl:"port,optional"`
}

// Load parses the file at path into a partial config.Model.
func (l *Loader) Load(ctx context.Context, path string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL config loader started.", "path", path)

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return l.parse(ctx, src, path)
}

func (l *Loader) parse(ctx context.Context, src []byte, filename string) (*config.Model, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var root fileRoot
	diags = gohcl.DecodeBody(file.Body, envContext(l.environ()), &root)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	model := &config.Model{}
	if w := root.Worker; w != nil {
		model.Worker = config.Worker{Listen: w.Listen, WorkDir: w.WorkDir, OnDisconnect: w.OnDisconnect}
	}
	if lg := root.Log; lg != nil {
		model.Log = config.Log{Level: lg.Level, Format: lg.Format}
	}
	if h := root.Healthcheck; h != nil {
		model.Healthcheck = config.Healthcheck{Port: h.Port}
	}
	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", filename, err)
	}

	ctxlog.FromContext(ctx).Debug("HCL config loaded.", "path", filename)
	return model, nil
}

// envContext exposes environ as the env object.
func envContext(environ []string) *hcl.EvalContext {
	vars := make(map[string]cty.Value, len(environ))
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			continue
		}
		vars[name] = cty.StringVal(value)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(vars),
		},
	}
}
