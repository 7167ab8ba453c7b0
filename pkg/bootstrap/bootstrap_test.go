package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/homedoc-backend/pkg/config"
	"github.com/angelmondragon/homedoc-backend/pkg/logger"
)

func newRuntime(buf *bytes.Buffer) *Runtime {
	cfg := &config.Config{}
	cfg.App.Env = "test"
	return &Runtime{Service: "worker", Config: cfg, Logger: logger.New(logger.Options{ServiceName: "worker", Output: buf})}
}

func TestRunClosesInReverseOrderAndJoinsErrors(t *testing.T) {
	rt := newRuntime(&bytes.Buffer{})
	var order []string
	rt.OnClose("first", func() error { order = append(order, "first"); return errors.New("first failed") })
	rt.OnClose("second", func() error { order = append(order, "second"); return nil })

	err := rt.Run(context.Background(), func(context.Context, *Runtime) error {
		rt.OnClose("third", func() error { order = append(order, "third"); return errors.New("third failed") })
		return nil
	})

	assert.Equal(t, []string{"third", "second", "first"}, order)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close third: third failed")
	assert.Contains(t, err.Error(), "close first: first failed")
}

func TestRunTreatsCancellationAsCleanStop(t *testing.T) {
	buf := &bytes.Buffer{}
	rt := newRuntime(buf)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := rt.Run(ctx, func(ctx context.Context, _ *Runtime) error { return ctx.Err() })
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "worker shut down")
	assert.Contains(t, buf.String(), `"env":"test"`)
}

func TestRunReturnsFailureAfterClosing(t *testing.T) {
	rt := newRuntime(&bytes.Buffer{})
	closed := false
	rt.OnClose("db", func() error { closed = true; return nil })

	boom := errors.New("subscription missing")
	err := rt.Run(context.Background(), func(context.Context, *Runtime) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.True(t, closed)
}

func TestServeMetricsDisabledWithoutAddr(t *testing.T) {
	rt := newRuntime(&bytes.Buffer{})
	rt.ServeMetrics(context.Background(), "", nil)
	assert.Empty(t, rt.closers)
}
