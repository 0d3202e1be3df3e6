// Package consumer drains the result queue and applies validation outcomes
// to the entitlement store.
package consumer

import (
	"context"
	"encoding/json"
	"errors"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/wardenhq/warden/internal/entitlement/repository"
	"github.com/wardenhq/warden/internal/entitlement/service"
	"github.com/wardenhq/warden/internal/mq"
	"github.com/wardenhq/warden/internal/telemetry"
	"github.com/wardenhq/warden/internal/wire"
)

// seenSize bounds the redelivery fast path. The database terminal-state check
// stays the actual idempotence guarantee; the LRU only skips a round trip.
const seenSize = 4096

// ResultApplier is the slice of the entitlement service the consumer needs.
type ResultApplier interface {
	ApplyValidationResult(ctx context.Context, res *wire.ValidationResult) error
}

// ResultConsumer settles ValidationResult deliveries one at a time.
type ResultConsumer struct {
	svc     ResultApplier
	queue   string
	metrics *telemetry.Metrics
	log     *zap.Logger
	seen    *lru.Cache[string, struct{}]
}

// New builds the result consumer. metrics may be nil in tests.
func New(svc ResultApplier, queue string, metrics *telemetry.Metrics, log *zap.Logger) *ResultConsumer {
	if log == nil {
		log = zap.NewNop()
	}
	seen, _ := lru.New[string, struct{}](seenSize)
	return &ResultConsumer{svc: svc, queue: queue, metrics: metrics, log: log, seen: seen}
}

// Run attaches the consumer to a broker channel and blocks until ctx is
// canceled.
func (c *ResultConsumer) Run(ctx context.Context, conn *mq.Conn) error {
	cons, err := conn.NewConsumer(c.queue)
	if err != nil {
		return err
	}
	defer cons.Close()
	return cons.Run(ctx, c.Handle)
}

// Handle settles one delivery. Poison messages (unparsable bodies, persist
// failures) are discarded without requeue; anomalies that redelivery cannot
// fix (unknown request id, identity mismatch) are logged and acked.
func (c *ResultConsumer) Handle(ctx context.Context, body []byte) mq.Action {
	var res wire.ValidationResult
	if err := json.Unmarshal(body, &res); err != nil {
		c.log.Error("malformed validation result, discarding",
			zap.ByteString("body", body),
			zap.Error(err))
		return c.settle(telemetry.OutcomeDiscarded, mq.Discard)
	}
	if err := res.Validate(); err != nil {
		c.log.Error("invalid validation result, discarding",
			zap.String("request_id", res.RequestID),
			zap.Error(err))
		return c.settle(telemetry.OutcomeDiscarded, mq.Discard)
	}

	if _, ok := c.seen.Get(res.RequestID); ok {
		c.log.Debug("duplicate result short-circuited",
			zap.String("request_id", res.RequestID))
		return c.settle(telemetry.OutcomeOK, mq.Ack)
	}

	err := c.svc.ApplyValidationResult(ctx, &res)
	switch {
	case err == nil:
		c.seen.Add(res.RequestID, struct{}{})
		return c.settle(telemetry.OutcomeOK, mq.Ack)

	case errors.Is(err, repository.ErrNotFound):
		// The request was deleted or the id is stale; redelivery will not
		// help.
		c.log.Warn("result for unknown request, acking",
			zap.String("request_id", res.RequestID))
		return c.settle(telemetry.OutcomeOK, mq.Ack)

	case errors.Is(err, service.ErrResultMismatch):
		c.log.Warn("misrouted validation result, acking",
			zap.String("request_id", res.RequestID),
			zap.Error(err))
		return c.settle(telemetry.OutcomeOK, mq.Ack)

	default:
		c.log.Error("failed to apply validation result, discarding",
			zap.String("request_id", res.RequestID),
			zap.Error(err))
		return c.settle(telemetry.OutcomeError, mq.Discard)
	}
}

func (c *ResultConsumer) settle(outcome string, action mq.Action) mq.Action {
	if c.metrics != nil {
		c.metrics.MessagesConsumed.WithLabelValues(c.queue, outcome).Inc()
	}
	return action
}
