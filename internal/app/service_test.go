package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	name     string
	startErr error
	block    bool
	stopped  atomic.Bool
}

func (s *fakeService) Name() string { return s.name }

func (s *fakeService) Start(ctx context.Context) error {
	if s.block {
		<-ctx.Done()
		return nil
	}
	return s.startErr
}

func (s *fakeService) Stop(context.Context) error {
	s.stopped.Store(true)
	return nil
}

func TestRunnerStopsAllWhenOneExits(t *testing.T) {
	api := &fakeService{name: "http", block: true}
	failing := &fakeService{name: "worker", startErr: errors.New("redis down")}

	err := NewRunner(api, nil, failing).Run(context.Background(), time.Second, nil)
	require.EqualError(t, err, "redis down")
	assert.True(t, api.stopped.Load())
	assert.True(t, failing.stopped.Load())
}

func TestRunnerCancelledContextIsCleanExit(t *testing.T) {
	api := &fakeService{name: "http", block: true}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	require.NoError(t, NewRunner(api).Run(ctx, time.Second, nil))
	assert.True(t, api.stopped.Load())
}

func TestRunnerWithoutServices(t *testing.T) {
	require.ErrorIs(t, NewRunner().Run(context.Background(), time.Second, nil), ErrNoServices)
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode(" API ")
	require.NoError(t, err)
	assert.Equal(t, ModeAPI, mode)

	mode, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeAll, mode)

	_, err = ParseMode("cron")
	require.Error(t, err)
}
