package supervisor

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		From:         "SIGTERM",
		To:           "SIGINT",
		PollInterval: Duration{testPollInterval},
		DrainTimeout: Duration{time.Second},
		Logging:      &Logging{CustomLog: CustomLog{Level: "error", writer: &bytes.Buffer{}}},
	}
}

func TestRunMirrorsChildAndWritesMetrics(t *testing.T) {
	assert := assert.New(t)

	dir := t.TempDir()
	cfg := testConfig()
	cfg.Metric = &Metric{OutPath: dir, ScrapInterval: 3600}

	var stdout, stderr bytes.Buffer
	notifier := &fakeNotifier{}
	code, err := Run(context.Background(), RunOptions{
		Config:   cfg,
		Command:  []string{"/bin/sh", "-c", "echo hello; echo oops >&2; exit 7"},
		Streams:  Streams{In: bytes.NewReader(nil), Out: &stdout, Err: &stderr},
		Notifier: notifier,
		Exit:     func(int) {},
	})
	assert.NoError(err)
	assert.Equal(7, code)
	assert.Equal("hello\n", stdout.String())
	assert.Equal("oops\n", stderr.String())
	assert.True(notifier.isStopped())

	data, err := os.ReadFile(filepath.Join(dir, MetricFileName))
	require.NoError(t, err)
	assert.Contains(string(data), "sigremap_child_exit_code 7")
	assert.Contains(string(data), `sigremap_relay_bytes_total{stream="stdout"} 6`)
}

func TestRunSpawnFailure(t *testing.T) {
	assert := assert.New(t)

	var stdout, logs bytes.Buffer
	cfg := testConfig()
	cfg.Logging.writer = &logs
	notifier := &fakeNotifier{}
	code, err := Run(context.Background(), RunOptions{
		Config:   cfg,
		Command:  []string{"/nonexistent/sigremap-test-binary"},
		Streams:  Streams{In: bytes.NewReader(nil), Out: &stdout, Err: &bytes.Buffer{}},
		Notifier: notifier,
		Exit:     func(int) {},
	})
	assert.Equal(ExitCodeFailedStartup, code)
	assert.ErrorIs(err, ErrSpawn)
	assert.Contains(err.Error(), "/nonexistent/sigremap-test-binary")
	assert.Empty(stdout.String())
	assert.Empty(logs.String())
	assert.True(notifier.isStopped())
}

func TestRunInvalidMapping(t *testing.T) {
	cfg := testConfig()
	cfg.To = ""

	notifier := &fakeNotifier{}
	code, err := Run(context.Background(), RunOptions{
		Config:   cfg,
		Command:  []string{"true"},
		Notifier: notifier,
	})
	assert.Equal(t, ExitCodeFailedStartup, code)
	assert.Error(t, err)
	assert.Nil(t, notifier.ch)
}

func TestRunWithConfigWatcher(t *testing.T) {
	path := writeConfig(t, "from: SIGTERM\nto: SIGINT\n")
	cfg := testConfig()

	code, err := Run(context.Background(), RunOptions{
		Config:     cfg,
		ConfigPath: path,
		Watch:      true,
		Command:    []string{"/bin/sh", "-c", "exit 3"},
		Streams:    Streams{In: bytes.NewReader(nil), Out: &bytes.Buffer{}, Err: &bytes.Buffer{}},
		Notifier:   &fakeNotifier{},
		Exit:       func(int) {},
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, code)
}
