package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/gridworker/internal/config"
	"github.com/specialistvlad/gridworker/internal/hclconfig"
	"github.com/specialistvlad/gridworker/internal/subworkerclient"
	"github.com/specialistvlad/gridworker/internal/testutil"
	"github.com/specialistvlad/gridworker/internal/transport"
	"github.com/specialistvlad/gridworker/internal/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 5 * time.Second

// setupAppTest creates an App listening on a random local port.
func setupAppTest(t *testing.T, overrides config.Model) (*App, *testutil.SafeBuffer) {
	t.Helper()

	overrides.Worker.Listen = "127.0.0.1:0"
	if overrides.Worker.WorkDir == "" {
		overrides.Worker.WorkDir = t.TempDir()
	}
	overrides.Log.Level = "debug"

	logBuffer := &testutil.SafeBuffer{}
	cfg, err := NewConfig(Config{Overrides: overrides})
	require.NoError(t, err)
	testApp := NewApp(logBuffer, cfg, hclconfig.NewLoader())

	t.Cleanup(func() {
		if os.Getenv("GRIDWORKER_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})
	return testApp, logBuffer
}

func startApp(t *testing.T, a *App) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	select {
	case <-a.Ready():
	case <-time.After(waitFor):
		cancel()
		t.Fatal("app did not become ready")
	}
	return cancel, done
}

func dialApp(t *testing.T, a *App) *subworkerclient.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	c, err := subworkerclient.Dial(ctx, subworkerclient.Options{
		URL:            "http://" + a.Addr() + transport.Path,
		ConnectTimeout: waitFor,
	})
	require.NoError(t, err)
	return c
}

func TestRun_RegistersSubworkerAndStopsOnCancel(t *testing.T) {
	// Arrange
	a, logs := setupAppTest(t, config.Model{})
	cancel, done := startApp(t, a)
	c := dialApp(t, a)
	defer c.Close()

	// Act
	ctx, cancelReg := context.WithTimeout(context.Background(), waitFor)
	defer cancelReg()
	dir, err := c.Register(ctx, upstream.ProtocolVersion, 11, "py-worker")
	require.NoError(t, err)
	cancel()

	// Assert
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, a.State().WorkDir().SubworkerDir(11), dir)
	assert.Contains(t, logs.String(), "Subworker registered.")
}

func TestRun_AbortsOnLostSubworker(t *testing.T) {
	// Arrange
	a, _ := setupAppTest(t, config.Model{Worker: config.Worker{OnDisconnect: "abort"}})
	cancel, done := startApp(t, a)
	defer cancel()
	c := dialApp(t, a)

	ctx, cancelReg := context.WithTimeout(context.Background(), waitFor)
	defer cancelReg()
	_, err := c.Register(ctx, upstream.ProtocolVersion, 12, "py-worker")
	require.NoError(t, err)

	// Act
	require.NoError(t, c.Close())

	// Assert
	select {
	case err := <-done:
		assert.ErrorIs(t, err, upstream.ErrConnectionLost)
	case <-time.After(waitFor):
		t.Fatal("Run did not abort")
	}
}

func TestRun_UnregisterPolicyKeepsRunning(t *testing.T) {
	a, _ := setupAppTest(t, config.Model{Worker: config.Worker{OnDisconnect: "unregister"}})
	cancel, done := startApp(t, a)
	c := dialApp(t, a)

	ctx, cancelReg := context.WithTimeout(context.Background(), waitFor)
	defer cancelReg()
	_, err := c.Register(ctx, upstream.ProtocolVersion, 13, "py-worker")
	require.NoError(t, err)
	require.NoError(t, c.Close())

	require.Eventually(t, func() bool {
		return a.State().Subworkers().Len() == 0
	}, waitFor, 10*time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("Run returned early: %v", err)
	default:
	}

	cancel()
	assert.NoError(t, <-done)
}

func TestRun_ListenFailure(t *testing.T) {
	a, _ := setupAppTest(t, config.Model{})
	a.settings.Worker.Listen = "256.0.0.1:bad"

	err := a.Run(context.Background())

	assert.ErrorContains(t, err, "failed to listen")
}

func TestNewApp_LayersFileUnderOverrides(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	path := filepath.Join(dir, "worker.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
		worker {
		  listen   = ":7300"
		  work_dir = "`+filepath.Join(dir, "from-file")+`"
		}
		log { level = "warn" }
	`), 0o600))
	cfg, err := NewConfig(Config{
		ConfigPath: path,
		Overrides:  config.Model{Worker: config.Worker{Listen: ":7400"}},
	})
	require.NoError(t, err)

	// Act
	a := NewApp(io.Discard, cfg, hclconfig.NewLoader())

	// Assert
	want := config.Model{
		Worker: config.Worker{
			Listen:       ":7400",
			WorkDir:      filepath.Join(dir, "from-file"),
			OnDisconnect: "abort",
		},
		Log: config.Log{Level: "warn", Format: "json"},
	}
	if diff := cmp.Diff(want, a.Settings()); diff != "" {
		t.Errorf("settings mismatch (-want +got):\n%s", diff)
	}
	assert.DirExists(t, filepath.Join(dir, "from-file", "data"))
}

func TestNewApp_PanicsOnBadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.hcl")
	require.NoError(t, os.WriteFile(path, []byte("worker {"), 0o600))
	cfg, err := NewConfig(Config{ConfigPath: path})
	require.NoError(t, err)

	assert.Panics(t, func() { NewApp(io.Discard, cfg, hclconfig.NewLoader()) })
}

func TestNewConfig_RejectsInvalidOverrides(t *testing.T) {
	_, err := NewConfig(Config{Overrides: config.Model{Log: config.Log{Format: "xml"}}})

	assert.ErrorContains(t, err, "invalid log format")
}

func TestHealthMux(t *testing.T) {
	// Arrange
	a, _ := setupAppTest(t, config.Model{})
	ts := httptest.NewServer(a.healthMux())
	defer ts.Close()

	// Act
	health, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer health.Body.Close()
	body, err := io.ReadAll(health.Body)
	require.NoError(t, err)

	metricsResp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	metricsBody, err := io.ReadAll(metricsResp.Body)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, http.StatusOK, health.StatusCode)
	assert.Equal(t, "OK\n", string(body))
	assert.Equal(t, http.StatusOK, metricsResp.StatusCode)
	assert.Contains(t, string(metricsBody), "gridworker_subworkers")
}

func TestNewLogger(t *testing.T) {
	var buf testutil.SafeBuffer

	logger := newLogger("warn", "json", &buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"k":"v"`)
}
