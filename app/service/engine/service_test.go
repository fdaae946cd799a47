package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeServer struct {
	stop       chan struct{}
	listenErr  error
	shutdowns  atomic.Int32
	onShutdown func()
}

func newFakeServer(listenErr error) *fakeServer {
	return &fakeServer{stop: make(chan struct{}), listenErr: listenErr}
}

func (f *fakeServer) Listen() error {
	if f.listenErr != nil {
		return f.listenErr
	}

	<-f.stop
	return nil
}

func (f *fakeServer) Shutdown(context.Context) error {
	if f.onShutdown != nil {
		f.onShutdown()
	}
	if f.shutdowns.Add(1) == 1 {
		close(f.stop)
	}

	return nil
}

type fakeWorker struct {
	stopped atomic.Bool
}

func (f *fakeWorker) Run(ctx context.Context) {
	<-ctx.Done()
	f.stopped.Store(true)
}

func TestRunStopsOnCancel(t *testing.T) {
	server := newFakeServer(nil)
	worker := &fakeWorker{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewService(server, worker).Run(ctx)
	}()

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop")
	}

	assert.Equal(t, int32(1), server.shutdowns.Load())
	assert.True(t, worker.stopped.Load())
}

func TestRunServerFailure(t *testing.T) {
	server := newFakeServer(errors.New("address already in use"))
	worker := &fakeWorker{}

	err := NewService(server, worker).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address already in use")
	assert.True(t, worker.stopped.Load())
}

func TestSinkOutlivesServerShutdown(t *testing.T) {
	server := newFakeServer(nil)
	worker := &fakeWorker{}

	var sinkStoppedDuringShutdown atomic.Bool
	server.onShutdown = func() {
		// in-flight requests still finish here and emit their events
		time.Sleep(50 * time.Millisecond)
		sinkStoppedDuringShutdown.Store(worker.stopped.Load())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewService(server, worker).Run(ctx)
	}()

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop")
	}

	assert.False(t, sinkStoppedDuringShutdown.Load())
	assert.True(t, worker.stopped.Load())
}
