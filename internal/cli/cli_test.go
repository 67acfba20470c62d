package cli

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/gridworker/internal/app"
	"github.com/specialistvlad/gridworker/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Help(t *testing.T) {
	out := &bytes.Buffer{}

	cfg, shouldExit, err := Parse([]string{"-h"}, out)

	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
	assert.Contains(t, out.String(), "-on-disconnect")
}

func TestParse_NoArgsLeavesEverythingToLowerLayers(t *testing.T) {
	cfg, shouldExit, err := Parse(nil, &bytes.Buffer{})

	require.NoError(t, err)
	assert.False(t, shouldExit)
	if diff := cmp.Diff(&app.Config{}, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_EnvUnderFlags(t *testing.T) {
	// Arrange
	t.Setenv("GRIDWORKER_CONFIG", "/etc/gridworker/worker.hcl")
	t.Setenv("GRIDWORKER_LISTEN", ":9000")
	t.Setenv("GRIDWORKER_WORK_DIR", "/var/lib/gridworker")
	t.Setenv("GRIDWORKER_LOG_LEVEL", "warn")
	t.Setenv("GRIDWORKER_HEALTHCHECK_PORT", "8081")

	// Act
	cfg, _, err := Parse([]string{
		"-listen", ":9100",
		"-on-disconnect", "unregister",
		"-log-format", "text",
	}, &bytes.Buffer{})

	// Assert
	require.NoError(t, err)
	want := &app.Config{
		ConfigPath: "/etc/gridworker/worker.hcl",
		Overrides: config.Model{
			Worker: config.Worker{
				Listen:       ":9100",
				WorkDir:      "/var/lib/gridworker",
				OnDisconnect: "unregister",
			},
			Log:         config.Log{Level: "warn", Format: "text"},
			Healthcheck: config.Healthcheck{Port: 8081},
		},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		args    []string
		env     map[string]string
		wantMsg string
	}{
		{name: "unknown flag", args: []string{"--nope"}, wantMsg: "flag provided but not defined: -nope"},
		{name: "positional", args: []string{"grid.hcl"}, wantMsg: `unexpected argument "grid.hcl"`},
		{name: "bad format", args: []string{"-log-format", "xml"}, wantMsg: "invalid log format"},
		{name: "bad level", args: []string{"-log-level", "loud"}, wantMsg: "invalid log level"},
		{name: "bad policy", args: []string{"-on-disconnect", "retry"}, wantMsg: "invalid on_disconnect"},
		{name: "bad env port", env: map[string]string{"GRIDWORKER_HEALTHCHECK_PORT": "http"}, wantMsg: "invalid GRIDWORKER_HEALTHCHECK_PORT"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			_, _, err := Parse(tc.args, &bytes.Buffer{})

			require.Error(t, err)
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.wantMsg)
		})
	}
}
