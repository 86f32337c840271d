// Package worker provides a polling consumer runtime on top of a mongoq
// queue: bounded concurrency, per-message lease heartbeats, handler retries
// with backoff, and tracing.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/code19m/errx"
	"github.com/creasty/defaults"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/rise-and-shine/mongoq"
	"github.com/rise-and-shine/mongoq/logger"
	"github.com/rise-and-shine/mongoq/val"
)

const (
	shutdownTimeout   = 30 * time.Second
	heartbeatFraction = 3
)

// Worker consumes messages from a queue until stopped.
type Worker struct {
	id      string
	queue   Queue
	handler Handler

	serviceName       string
	concurrency       int
	pollInterval      time.Duration
	visibility        time.Duration
	handlerRetries    uint
	handlerRetryDelay time.Duration
	processTimeout    time.Duration

	stopCh    chan struct{}
	stoppedCh chan struct{}

	logger logger.Logger
}

// New creates a new Worker instance.
func New(config *Config) (*Worker, error) {
	if config == nil {
		return nil, errx.New("[worker]: config is required")
	}

	err := defaults.Set(config)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	err = val.Struct(config)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	log := config.Logger
	if log == nil {
		log = logger.NewNop()
	}

	id := uuid.NewString()

	return &Worker{
		id:                id,
		queue:             config.Queue,
		handler:           config.Handler,
		serviceName:       config.ServiceName,
		concurrency:       config.Concurrency,
		pollInterval:      config.PollInterval,
		visibility:        config.Visibility,
		handlerRetries:    config.HandlerRetries,
		handlerRetryDelay: config.HandlerRetryDelay,
		processTimeout:    config.ProcessTimeout,
		stopCh:            make(chan struct{}),
		stoppedCh:         make(chan struct{}),
		logger:            log.Named("mongoq.worker").With("worker_id", id, "service_name", config.ServiceName),
	}, nil
}

// Start begins the consume loops. Blocks until Stop is called or the
// context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	var wg sync.WaitGroup

	for range w.concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.consumeLoop(ctx)
		}()
	}

	wg.Wait()
	close(w.stoppedCh)
	return nil
}

// Stop gracefully shuts down the worker.
func (w *Worker) Stop() error {
	close(w.stopCh)

	select {
	case <-w.stoppedCh:
		return nil
	case <-time.After(shutdownTimeout):
		return errx.New("[worker]: shutdown timeout exceeded")
	}
}

func (w *Worker) consumeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		default:
			msg, err := w.queue.Get(ctx, mongoq.WithVisibility(w.visibility))
			if err != nil {
				w.logger.With("error", err.Error()).Error("[worker]: failed to claim message")
				time.Sleep(w.pollInterval)
				continue
			}

			if msg == nil {
				time.Sleep(w.pollInterval)
				continue
			}

			// errors are handled inside the process chain
			chain := w.buildProcessChain()
			_ = chain(ctx, msg)
		}
	}
}

type handleFunc func(context.Context, *mongoq.Message) error

func (w *Worker) buildProcessChain() handleFunc {
	p := w.processMessage

	// build the chain in reverse order (last wrapper executes first)
	p = w.processWithLogging(p)  // 4. logging
	p = w.processWithTimeout(p)  // 3. timeout
	p = w.processWithTracing(p)  // 2. tracing
	p = w.processWithRecovery(p) // 1. recovery (outermost)

	return p
}

// processMessage runs the handler under a lease heartbeat and acknowledges
// the message on success. A handler that exhausts its retries leaves the
// lease to expire, so the queue redelivers the message with a higher tries
// counter.
func (w *Worker) processMessage(ctx context.Context, m *mongoq.Message) error {
	stopHeartbeat := w.startHeartbeat(ctx, m)
	defer stopHeartbeat()

	err := retry.Do(
		func() error {
			return w.handler(ctx, m)
		},
		retry.Context(ctx),
		retry.Attempts(w.handlerRetries),
		retry.Delay(w.handlerRetryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			w.logger.With(
				"message_id", m.ID,
				"attempt", n+1,
				"max_attempts", w.handlerRetries,
				"error", err.Error(),
			).Warn("[worker]: handler attempt failed")
		}),
	)
	if err != nil {
		return errx.Wrap(err)
	}

	_, err = w.queue.Ack(ctx, m.Ack)
	return errx.Wrap(err)
}

// startHeartbeat extends the message lease at a fraction of the visibility
// window until the returned stop function is called. A failed extension
// means the lease was lost (expired or acked elsewhere); the heartbeat
// gives up and lets the processing outcome resolve the race.
func (w *Worker) startHeartbeat(ctx context.Context, m *mongoq.Message) func() {
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(w.visibility / heartbeatFraction)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				_, err := w.queue.Ping(ctx, m.Ack, mongoq.WithVisibility(w.visibility))
				if err != nil {
					w.logger.With(
						"message_id", m.ID,
						"error", err.Error(),
					).Warn("[worker]: lease extension failed")
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}

func (w *Worker) processWithLogging(next handleFunc) handleFunc {
	return func(ctx context.Context, m *mongoq.Message) error {
		log := w.logger.Named("access")

		start := time.Now()

		err := next(ctx, m)

		log = log.With(
			"message_id", m.ID,
			"tries", m.Tries,
			"duration", time.Since(start).Round(time.Microsecond),
		)

		if err != nil {
			log.Errorw("[worker]: message processing failed", "error", err.Error())
		} else {
			log.Info("[worker]: message processed")
		}

		return err
	}
}

func (w *Worker) processWithTimeout(next handleFunc) handleFunc {
	return func(ctx context.Context, m *mongoq.Message) error {
		ctx, cancel := context.WithTimeout(ctx, w.processTimeout)
		defer cancel()
		return next(ctx, m)
	}
}

func (w *Worker) processWithTracing(next handleFunc) handleFunc {
	return func(ctx context.Context, m *mongoq.Message) error {
		ctx, span := otel.Tracer("").Start(ctx, fmt.Sprintf("PROCESS %s", w.serviceName),
			trace.WithAttributes(
				semconv.MessagingSystem("mongodb"),
				semconv.MessagingOperationProcess,
				semconv.MessagingMessageID(m.ID),
			),
			trace.WithSpanKind(trace.SpanKindConsumer),
		)

		err := next(ctx, m)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		span.End()
		return err
	}
}

func (w *Worker) processWithRecovery(next handleFunc) handleFunc {
	return func(ctx context.Context, m *mongoq.Message) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errx.New("[worker]: panic recovered",
					errx.WithDetails(errx.D{
						"panic":      fmt.Sprintf("%v", r),
						"message_id": m.ID,
					}))

				w.logger.With(
					"recover", r,
					"message_id", m.ID,
				).Error("[worker]: panicked while processing message")
			}
		}()
		return next(ctx, m)
	}
}
