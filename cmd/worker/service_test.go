package main

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/angelmondragon/homedoc-backend/pkg/logger"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type blockingConsumer struct{}

func (blockingConsumer) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

type failingConsumer struct{ err error }

func (f failingConsumer) Run(context.Context) error { return f.err }

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "worker-test", Output: io.Discard})
}

func TestServiceRunFailsFastOnUnreadyDependency(t *testing.T) {
	svc, err := NewService(ServiceParams{
		Logger:       testLogger(),
		Dependencies: map[string]pinger{"redis": stubPinger{err: errors.New("refused")}},
		Consumers:    map[string]consumer{"c": blockingConsumer{}},
	})
	require.NoError(t, err)
	require.ErrorContains(t, svc.Run(context.Background()), "redis ping failed")
}

func TestServiceRunStopsSiblingsWhenOneConsumerFails(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	svc, err := NewService(ServiceParams{
		Logger:       testLogger(),
		Dependencies: map[string]pinger{"db": stubPinger{}},
		Consumers: map[string]consumer{
			"blocking": blockingConsumer{},
			"failing":  failingConsumer{err: errors.New("subscription deleted")},
		},
	})
	require.NoError(t, err)

	err = svc.Run(context.Background())
	require.ErrorContains(t, err, "consumer failing: subscription deleted")
}

func TestServiceRunReturnsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	svc, err := NewService(ServiceParams{
		Logger:    testLogger(),
		Consumers: map[string]consumer{"blocking": blockingConsumer{}},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, svc.Run(ctx), context.Canceled)
}

func TestNewServiceValidates(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: testLogger()})
	require.Error(t, err)
	_, err = NewService(ServiceParams{Consumers: map[string]consumer{"c": blockingConsumer{}}})
	require.Error(t, err)
	_, err = NewService(ServiceParams{Logger: testLogger(), Consumers: map[string]consumer{"c": nil}})
	require.Error(t, err)
}
