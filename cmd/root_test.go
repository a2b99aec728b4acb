package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/doublexl-digital/cloudflare-crawler/internal/config"
)

// stubApp records the lifecycle calls made by the command hooks.
type stubApp struct {
	mu     sync.Mutex
	runs   int
	closes int
	runErr error
}

func (s *stubApp) Run(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs++
	return s.runErr
}

func (s *stubApp) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
}

func (s *stubApp) Logger() *zap.Logger {
	return zap.NewNop()
}

func TestNewRootCmd(t *testing.T) {
	cmd := newRootCmd()

	require.Equal(t, "crawler", cmd.Use)
	require.True(t, cmd.SilenceUsage)
	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))

	names := make([]string, 0, len(cmd.Commands()))
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	require.Contains(t, names, "crawl")
}

func TestCrawlCommandRunsAndClosesApp(t *testing.T) {
	stub := &stubApp{}
	var gotCfg config.Config
	orig := newApp
	newApp = func(cfg config.Config, _ *zap.Logger) (App, error) {
		gotCfg = cfg
		return stub, nil
	}
	t.Cleanup(func() { newApp = orig })

	t.Setenv("API_URL", "https://coordinator.test/api")
	t.Setenv("API_TOKEN", "secret")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"crawl"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	require.Equal(t, 1, stub.runs)
	require.Equal(t, 1, stub.closes)
	require.Equal(t, "https://coordinator.test/api", gotCfg.APIURL)
	require.Equal(t, "default", gotCfg.RunID)
}

func TestCrawlCommandTreatsInterruptAsClean(t *testing.T) {
	stub := &stubApp{runErr: fmt.Errorf("run interrupted: %w", context.Canceled)}
	orig := newApp
	newApp = func(config.Config, *zap.Logger) (App, error) {
		return stub, nil
	}
	t.Cleanup(func() { newApp = orig })

	t.Setenv("API_URL", "https://coordinator.test/api")
	t.Setenv("API_TOKEN", "secret")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"crawl"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	require.Equal(t, 1, stub.runs)
	require.Equal(t, 1, stub.closes)
}

func TestCrawlCommandPropagatesRunError(t *testing.T) {
	stub := &stubApp{runErr: errors.New("coordinator unreachable")}
	orig := newApp
	newApp = func(config.Config, *zap.Logger) (App, error) {
		return stub, nil
	}
	t.Cleanup(func() { newApp = orig })

	t.Setenv("API_URL", "https://coordinator.test/api")
	t.Setenv("API_TOKEN", "secret")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"crawl"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.ExecuteContext(context.Background())
	require.ErrorContains(t, err, "coordinator unreachable")
}

func TestRootCommandRejectsBadConfigFile(t *testing.T) {
	called := false
	orig := newApp
	newApp = func(config.Config, *zap.Logger) (App, error) {
		called = true
		return &stubApp{}, nil
	}
	t.Cleanup(func() { newApp = orig })

	cmd := newRootCmd()
	cmd.SetArgs([]string{"crawl", "--config", "/nonexistent/config.yaml"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	require.False(t, called)
}
