// Package worker drives the validation consumer: one job in flight at a
// time, result published before the job is acked.
package worker

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/wardenhq/warden/internal/mq"
	"github.com/wardenhq/warden/internal/telemetry"
	"github.com/wardenhq/warden/internal/wire"
)

// Evaluator computes the outcome for one job.
type Evaluator interface {
	Evaluate(ctx context.Context, job *wire.ValidationJob) wire.ValidationResult
}

// ResultPublisher sends results to the result queue.
type ResultPublisher interface {
	Publish(ctx context.Context, v any) error
}

// Worker consumes validation jobs and publishes their results.
type Worker struct {
	engine   Evaluator
	results  ResultPublisher
	jobQueue string
	resQueue string
	metrics  *telemetry.Metrics
	log      *zap.Logger
}

// New builds the worker. metrics may be nil in tests.
func New(engine Evaluator, results ResultPublisher, jobQueue, resQueue string, metrics *telemetry.Metrics, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{
		engine:   engine,
		results:  results,
		jobQueue: jobQueue,
		resQueue: resQueue,
		metrics:  metrics,
		log:      log,
	}
}

// Run attaches the worker to a broker channel and blocks until ctx is
// canceled.
func (w *Worker) Run(ctx context.Context, conn *mq.Conn) error {
	cons, err := conn.NewConsumer(w.jobQueue)
	if err != nil {
		return err
	}
	defer cons.Close()
	return cons.Run(ctx, w.Handle)
}

// Handle settles one job delivery. The result must reach the result queue
// before the job is acked; a failed publish discards the delivery so another
// worker picks the job up again (at-least-once, duplicate results tolerated
// downstream).
func (w *Worker) Handle(ctx context.Context, body []byte) mq.Action {
	var job wire.ValidationJob
	if err := json.Unmarshal(body, &job); err != nil {
		w.log.Error("malformed validation job, discarding",
			zap.ByteString("body", body),
			zap.Error(err))
		return w.settle(telemetry.OutcomeDiscarded, mq.Discard)
	}
	if err := job.Validate(); err != nil {
		w.log.Error("invalid validation job, discarding",
			zap.String("request_id", job.RequestID),
			zap.Error(err))
		return w.settle(telemetry.OutcomeDiscarded, mq.Discard)
	}

	result := w.engine.Evaluate(ctx, &job)

	if err := w.results.Publish(ctx, result); err != nil {
		w.log.Error("result publish failed, discarding job for redelivery",
			zap.String("request_id", job.RequestID),
			zap.Error(err))
		if w.metrics != nil {
			w.metrics.MessagesPublished.WithLabelValues(w.resQueue, telemetry.OutcomeError).Inc()
		}
		return w.settle(telemetry.OutcomeError, mq.Discard)
	}
	if w.metrics != nil {
		w.metrics.MessagesPublished.WithLabelValues(w.resQueue, telemetry.OutcomeOK).Inc()
	}

	w.log.Info("validation completed",
		zap.String("request_id", job.RequestID),
		zap.Int64("user_id", job.UserID),
		zap.Bool("approved", result.Approved),
		zap.String("reason", result.Reason))
	return w.settle(telemetry.OutcomeOK, mq.Ack)
}

func (w *Worker) settle(outcome string, action mq.Action) mq.Action {
	if w.metrics != nil {
		w.metrics.MessagesConsumed.WithLabelValues(w.jobQueue, outcome).Inc()
	}
	return action
}
