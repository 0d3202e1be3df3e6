package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/internal/entitlement/repository"
	"github.com/wardenhq/warden/internal/entitlement/service"
	"github.com/wardenhq/warden/internal/mq"
	"github.com/wardenhq/warden/internal/wire"
)

// fakeApplier records applications and returns a scripted error.
type fakeApplier struct {
	applied []wire.ValidationResult
	err     error
}

func (a *fakeApplier) ApplyValidationResult(_ context.Context, res *wire.ValidationResult) error {
	a.applied = append(a.applied, *res)
	return a.err
}

func marshal(t *testing.T, res wire.ValidationResult) []byte {
	t.Helper()
	body, err := json.Marshal(res)
	require.NoError(t, err)
	return body
}

func okResult(requestID string) wire.ValidationResult {
	return wire.ValidationResult{
		UserID:         1,
		PermissionType: wire.KindGroup,
		ItemID:         2,
		RequestID:      requestID,
		Approved:       true,
	}
}

func TestHandle(t *testing.T) {
	ctx := context.Background()

	t.Run("malformed body discarded", func(t *testing.T) {
		applier := &fakeApplier{}
		c := New(applier, wire.ResultQueue, nil, nil)

		assert.Equal(t, mq.Discard, c.Handle(ctx, []byte("{not json")))
		assert.Empty(t, applier.applied)
	})

	t.Run("missing fields discarded", func(t *testing.T) {
		applier := &fakeApplier{}
		c := New(applier, wire.ResultQueue, nil, nil)

		res := okResult("")
		assert.Equal(t, mq.Discard, c.Handle(ctx, marshal(t, res)))
		assert.Empty(t, applier.applied)
	})

	t.Run("applied and acked", func(t *testing.T) {
		applier := &fakeApplier{}
		c := New(applier, wire.ResultQueue, nil, nil)

		assert.Equal(t, mq.Ack, c.Handle(ctx, marshal(t, okResult("req-1"))))
		require.Len(t, applier.applied, 1)
		assert.Equal(t, "req-1", applier.applied[0].RequestID)
	})

	t.Run("redelivery short-circuited", func(t *testing.T) {
		applier := &fakeApplier{}
		c := New(applier, wire.ResultQueue, nil, nil)

		body := marshal(t, okResult("req-2"))
		assert.Equal(t, mq.Ack, c.Handle(ctx, body))
		assert.Equal(t, mq.Ack, c.Handle(ctx, body))
		assert.Len(t, applier.applied, 1)
	})

	t.Run("unknown request acked", func(t *testing.T) {
		applier := &fakeApplier{err: repository.ErrNotFound}
		c := New(applier, wire.ResultQueue, nil, nil)

		assert.Equal(t, mq.Ack, c.Handle(ctx, marshal(t, okResult("req-3"))))
	})

	t.Run("misrouted result acked", func(t *testing.T) {
		applier := &fakeApplier{err: service.ErrResultMismatch}
		c := New(applier, wire.ResultQueue, nil, nil)

		assert.Equal(t, mq.Ack, c.Handle(ctx, marshal(t, okResult("req-4"))))
	})

	t.Run("persist failure discarded and not remembered", func(t *testing.T) {
		applier := &fakeApplier{err: errors.New("database unavailable")}
		c := New(applier, wire.ResultQueue, nil, nil)

		body := marshal(t, okResult("req-5"))
		assert.Equal(t, mq.Discard, c.Handle(ctx, body))

		// Once the store recovers, the redelivered copy must still be applied.
		applier.err = nil
		assert.Equal(t, mq.Ack, c.Handle(ctx, body))
		assert.Len(t, applier.applied, 2)
	})
}
