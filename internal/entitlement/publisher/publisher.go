// Package publisher sends validation jobs to the broker on behalf of the
// entitlement service.
package publisher

import (
	"context"

	"go.uber.org/zap"

	"github.com/wardenhq/warden/internal/mq"
	"github.com/wardenhq/warden/internal/telemetry"
	"github.com/wardenhq/warden/internal/wire"
)

// ValidationJobPublisher publishes ValidationJob messages to the validation
// queue with persistent delivery.
type ValidationJobPublisher struct {
	pub     *mq.Publisher
	queue   string
	metrics *telemetry.Metrics
	log     *zap.Logger
}

// New opens a dedicated publisher channel on conn for the given queue.
func New(conn *mq.Conn, queue string, metrics *telemetry.Metrics, log *zap.Logger) (*ValidationJobPublisher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	pub, err := conn.NewPublisher(queue)
	if err != nil {
		return nil, err
	}
	return &ValidationJobPublisher{pub: pub, queue: queue, metrics: metrics, log: log}, nil
}

// Publish sends one job.
func (p *ValidationJobPublisher) Publish(ctx context.Context, job wire.ValidationJob) error {
	err := p.pub.Publish(ctx, job)
	if p.metrics != nil {
		outcome := telemetry.OutcomeOK
		if err != nil {
			outcome = telemetry.OutcomeError
		}
		p.metrics.MessagesPublished.WithLabelValues(p.queue, outcome).Inc()
	}
	if err != nil {
		return err
	}
	p.log.Debug("validation job published",
		zap.String("queue", p.queue),
		zap.String("request_id", job.RequestID))
	return nil
}

// Close releases the publisher channel.
func (p *ValidationJobPublisher) Close() error {
	return p.pub.Close()
}
