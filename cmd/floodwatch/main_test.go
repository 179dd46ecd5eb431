package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeStore struct {
	closed int
	err    error
}

func (f *fakeStore) Close(_ context.Context) error {
	f.closed++
	return f.err
}

type fakeCloser struct{ closed int }

func (f *fakeCloser) Close() error {
	f.closed++
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFlushOnShutdown_AfterSchedulerStops(t *testing.T) {
	done := make(chan struct{})
	close(done)
	store, repo := &fakeStore{}, &fakeCloser{}

	assert.True(t, flushOnShutdown(context.Background(), done, store, repo, quietLogger()))
	assert.Equal(t, 1, store.closed)
	assert.Equal(t, 1, repo.closed)
}

func TestFlushOnShutdown_FlushErrorStillClosesRepository(t *testing.T) {
	done := make(chan struct{})
	close(done)
	store, repo := &fakeStore{err: errors.New("disk full")}, &fakeCloser{}

	assert.True(t, flushOnShutdown(context.Background(), done, store, repo, quietLogger()))
	assert.Equal(t, 1, repo.closed)
}

func TestFlushOnShutdown_DeadlineWithCycleInFlight(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store, repo := &fakeStore{}, &fakeCloser{}

	// The scheduler never finishes; nothing may be closed under it.
	assert.False(t, flushOnShutdown(ctx, make(chan struct{}), store, repo, quietLogger()))
	assert.Zero(t, store.closed)
	assert.Zero(t, repo.closed)
}
