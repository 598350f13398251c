package resolver

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/giantswarm/tokenresolver/internal/discovery"
	"github.com/giantswarm/tokenresolver/internal/testing/mock"
)

var testEpoch = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

// syncBuffer is a bytes.Buffer safe for concurrent log writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type env struct {
	provider *mock.Provider
	clock    *mock.Clock
	logs     *syncBuffer
	opts     []Option
}

func newEnv(t *testing.T, cfg mock.ProviderConfig) *env {
	t.Helper()

	p := mock.NewProvider(cfg)
	t.Cleanup(p.Close)

	logs := &syncBuffer{}
	clk := mock.NewClock(testEpoch)

	discoveryOpts := discovery.DefaultOptions()
	discoveryOpts.BaseDelay = time.Millisecond

	return &env{
		provider: p,
		clock:    clk,
		logs:     logs,
		opts: []Option{
			WithClock(clk),
			WithLogger(slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))),
			WithHTTPClient(p.Client()),
			WithRetry(3, time.Millisecond),
			WithDiscoveryOptions(discoveryOpts),
		},
	}
}
