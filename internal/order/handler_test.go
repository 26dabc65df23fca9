package order

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopstream/internal/constants"
	"shopstream/internal/logger"
	"shopstream/internal/stream"
	apperrors "shopstream/pkg/errors"
	"shopstream/pkg/retry"
)

type fakeRepository struct {
	mu       sync.Mutex
	attempts int
	inserted map[string]bool
	failures int
	err      error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{inserted: make(map[string]bool)}
}

func (r *fakeRepository) InsertIfAbsent(ctx context.Context, o Order) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.attempts++
	if r.err != nil {
		return false, r.err
	}
	if r.failures > 0 {
		r.failures--
		return false, fmt.Errorf("connection reset")
	}
	if r.inserted[o.OrderID] {
		return false, nil
	}
	r.inserted[o.OrderID] = true
	return true, nil
}

func (r *fakeRepository) attemptCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

func fastPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2.0,
		MaxElapsedTime:  time.Second,
	}
}

func orderEnvelope(t *testing.T, o Order) stream.Envelope {
	t.Helper()
	env, err := stream.New(constants.EventTypeOrderCompleted, "checkout-service", "ORDER:"+o.OrderID, o)
	require.NoError(t, err)
	return env
}

func TestHandler_CanHandle(t *testing.T) {
	h := NewHandler(newFakeRepository(), fastPolicy(), logger.NopLogger())

	assert.True(t, h.CanHandle(constants.EventTypeOrderCompleted))
	assert.False(t, h.CanHandle(constants.EventTypeAuditRecorded))
	assert.False(t, h.CanHandle(""))
}

func TestHandler_InsertsOrder(t *testing.T) {
	repo := newFakeRepository()
	h := NewHandler(repo, fastPolicy(), logger.NopLogger())

	env := orderEnvelope(t, Order{OrderID: "o-1", CartID: "c-1", CustomerID: "u-1", TotalCents: 4200, Currency: "USD"})
	require.NoError(t, h.Handle(context.Background(), env))

	assert.True(t, repo.inserted["o-1"])
	assert.Equal(t, 1, repo.attemptCount())
}

func TestHandler_DuplicateDeliveryIsSuccess(t *testing.T) {
	repo := newFakeRepository()
	h := NewHandler(repo, fastPolicy(), logger.NopLogger())

	env := orderEnvelope(t, Order{OrderID: "o-1", TotalCents: 100})
	require.NoError(t, h.Handle(context.Background(), env))
	require.NoError(t, h.Handle(context.Background(), env))

	assert.Equal(t, 2, repo.attemptCount())
}

func TestHandler_TransientFailureRetried(t *testing.T) {
	repo := newFakeRepository()
	repo.failures = 2
	h := NewHandler(repo, fastPolicy(), logger.NopLogger())

	env := orderEnvelope(t, Order{OrderID: "o-1", TotalCents: 100})
	require.NoError(t, h.Handle(context.Background(), env))

	assert.Equal(t, 3, repo.attemptCount())
	assert.True(t, repo.inserted["o-1"])
}

func TestHandler_RetryBudgetExhausted(t *testing.T) {
	repo := newFakeRepository()
	repo.err = fmt.Errorf("connection refused")
	h := NewHandler(repo, fastPolicy(), logger.NopLogger())

	env := orderEnvelope(t, Order{OrderID: "o-1", TotalCents: 100})
	err := h.Handle(context.Background(), env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after retries")
	assert.Equal(t, 3, repo.attemptCount())
}

func TestHandler_FatalRepositoryErrorNotRetried(t *testing.T) {
	repo := newFakeRepository()
	repo.err = retry.NewFatalError(fmt.Errorf("relation does not exist"))
	h := NewHandler(repo, fastPolicy(), logger.NopLogger())

	env := orderEnvelope(t, Order{OrderID: "o-1", TotalCents: 100})
	err := h.Handle(context.Background(), env)
	require.Error(t, err)
	assert.Equal(t, 1, repo.attemptCount())
}

func TestHandler_MissingOrderIDIsFatal(t *testing.T) {
	repo := newFakeRepository()
	h := NewHandler(repo, fastPolicy(), logger.NopLogger())

	env := orderEnvelope(t, Order{CartID: "c-1", TotalCents: 100})
	err := h.Handle(context.Background(), env)
	require.Error(t, err)

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.True(t, appErr.IsFatal())
	assert.Zero(t, repo.attemptCount())
}

func TestHandler_UndecodablePayloadIsFatal(t *testing.T) {
	repo := newFakeRepository()
	h := NewHandler(repo, fastPolicy(), logger.NopLogger())

	env := stream.Envelope{
		ID:   "e-1",
		Type: constants.EventTypeOrderCompleted,
		Data: []byte(`{"orderId":{"nested":"wrong"}}`),
	}
	err := h.Handle(context.Background(), env)
	require.Error(t, err)

	var decodeErr *stream.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.True(t, decodeErr.IsFatal())
	assert.Zero(t, repo.attemptCount())
}
