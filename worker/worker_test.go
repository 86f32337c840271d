package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/mongoq"
	"github.com/rise-and-shine/mongoq/worker"
)

// fakeQueue hands out queued messages once and records lifecycle calls.
type fakeQueue struct {
	mu    sync.Mutex
	msgs  []*mongoq.Message
	acked []string
	pings []string
}

func (f *fakeQueue) Get(_ context.Context, _ ...mongoq.LeaseOption) (*mongoq.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.msgs) == 0 {
		return nil, nil
	}
	msg := f.msgs[0]
	f.msgs = f.msgs[1:]
	return msg, nil
}

func (f *fakeQueue) Ping(_ context.Context, ack string, _ ...mongoq.LeaseOption) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pings = append(f.pings, ack)
	return "id", nil
}

func (f *fakeQueue) Ack(_ context.Context, ack string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.acked = append(f.acked, ack)
	return "id", nil
}

func (f *fakeQueue) ackedTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.acked...)
}

func testMessage(payload any) *mongoq.Message {
	return &mongoq.Message{
		ID:      "64b5fc4ad71a8a6f4c0e1a2b",
		Ack:     "0123456789abcdef0123456789abcdef",
		Payload: payload,
		Tries:   1,
	}
}

// runWorker starts w and returns a stop function that cancels it and waits
// for Start to return.
func runWorker(t *testing.T, w *worker.Worker) func() {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		_ = w.Start(ctx)
	}()

	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("worker did not stop")
		}
	}
}

func TestNew_RequiresQueueAndHandler(t *testing.T) {
	tests := []struct {
		name   string
		config *worker.Config
	}{
		{name: "nil config", config: nil},
		{name: "missing queue", config: &worker.Config{
			Handler: func(context.Context, *mongoq.Message) error { return nil },
		}},
		{name: "missing handler", config: &worker.Config{Queue: &fakeQueue{}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w, err := worker.New(tc.config)

			assert.Nil(t, w)
			assert.Error(t, err)
		})
	}
}

func TestWorker_ProcessesAndAcks(t *testing.T) {
	queue := &fakeQueue{msgs: []*mongoq.Message{testMessage("job-1")}}
	handled := make(chan any, 1)

	w, err := worker.New(&worker.Config{
		Queue: queue,
		Handler: func(_ context.Context, msg *mongoq.Message) error {
			handled <- msg.Payload
			return nil
		},
		Concurrency:  1,
		PollInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	stop := runWorker(t, w)
	defer stop()

	select {
	case payload := <-handled:
		assert.Equal(t, "job-1", payload)
	case <-time.After(5 * time.Second):
		t.Fatal("handler was not invoked")
	}

	assert.Eventually(t, func() bool {
		return len(queue.ackedTokens()) == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, testMessage("job-1").Ack, queue.ackedTokens()[0])
}

func TestWorker_FailedHandlerLeavesMessageUnacked(t *testing.T) {
	queue := &fakeQueue{msgs: []*mongoq.Message{testMessage("job-1")}}
	attempts := make(chan struct{}, 8)

	w, err := worker.New(&worker.Config{
		Queue: queue,
		Handler: func(context.Context, *mongoq.Message) error {
			attempts <- struct{}{}
			return errors.New("boom")
		},
		Concurrency:       1,
		PollInterval:      10 * time.Millisecond,
		HandlerRetries:    2,
		HandlerRetryDelay: time.Millisecond,
	})
	require.NoError(t, err)

	stop := runWorker(t, w)

	// both attempts run, then the message is left for redelivery
	for range 2 {
		select {
		case <-attempts:
		case <-time.After(5 * time.Second):
			t.Fatal("handler attempt missing")
		}
	}
	time.Sleep(50 * time.Millisecond)
	stop()

	assert.Empty(t, queue.ackedTokens())
}

func TestWorker_RecoversFromHandlerPanic(t *testing.T) {
	queue := &fakeQueue{msgs: []*mongoq.Message{
		testMessage("panics"),
		testMessage("survives"),
	}}
	handled := make(chan any, 2)

	w, err := worker.New(&worker.Config{
		Queue: queue,
		Handler: func(_ context.Context, msg *mongoq.Message) error {
			if msg.Payload == "panics" {
				panic("kaboom")
			}
			handled <- msg.Payload
			return nil
		},
		Concurrency:    1,
		PollInterval:   10 * time.Millisecond,
		HandlerRetries: 1,
	})
	require.NoError(t, err)

	stop := runWorker(t, w)
	defer stop()

	select {
	case payload := <-handled:
		assert.Equal(t, "survives", payload, "the loop keeps consuming after a panic")
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not survive the panic")
	}
}

func TestWorker_Stop(t *testing.T) {
	w, err := worker.New(&worker.Config{
		Queue:        &fakeQueue{},
		Handler:      func(context.Context, *mongoq.Message) error { return nil },
		Concurrency:  2,
		PollInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	started := make(chan struct{})
	go func() {
		close(started)
		_ = w.Start(context.Background())
	}()
	<-started

	require.NoError(t, w.Stop())
}
