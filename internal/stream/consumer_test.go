package stream

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopstream/internal/config"
	"shopstream/internal/constants"
	"shopstream/internal/logger"
)

type recordingHandler struct {
	mu        sync.Mutex
	handled   []Envelope
	canHandle func(eventType string) bool
	handleFn  func(ctx context.Context, env Envelope) error
}

func (h *recordingHandler) CanHandle(eventType string) bool {
	if h.canHandle != nil {
		return h.canHandle(eventType)
	}
	return true
}

func (h *recordingHandler) Handle(ctx context.Context, env Envelope) error {
	h.mu.Lock()
	h.handled = append(h.handled, env)
	h.mu.Unlock()
	if h.handleFn != nil {
		return h.handleFn(ctx, env)
	}
	return nil
}

func (h *recordingHandler) handledCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func testConsumerConfig() config.ConsumerConfig {
	return config.ConsumerConfig{
		Stream:           "orders:completed",
		Group:            "order-sink",
		Name:             "consumer-1",
		BatchSize:        10,
		PollInterval:     5 * time.Millisecond,
		BlockDuration:    time.Millisecond,
		DeadLetterStream: "events:dead-letter",
	}
}

func newTestConsumer(client *fakeClient, handler Handler) *Consumer {
	dl := NewDeadLetter(client, "events:dead-letter", logger.NopLogger())
	return NewConsumer(client, testConsumerConfig(), handler, dl, logger.NopLogger())
}

func appendEnvelope(t *testing.T, client *fakeClient, stream, eventType string) Envelope {
	t.Helper()
	env, err := New(eventType, "test", "", testPayload{OrderID: "o-1"})
	require.NoError(t, err)

	payload, err := env.Marshal()
	require.NoError(t, err)

	_, err = client.Append(context.Background(), stream, map[string]interface{}{
		constants.FieldEventID:   env.ID,
		constants.FieldEventType: env.Type,
		constants.FieldPayload:   string(payload),
	})
	require.NoError(t, err)
	return env
}

func TestConsumer_ProcessesAndAcks(t *testing.T) {
	client := newFakeClient()
	handler := &recordingHandler{}
	consumer := newTestConsumer(client, handler)

	env := appendEnvelope(t, client, "orders:completed", "a.b.C")

	require.NoError(t, consumer.Start())
	defer consumer.Stop()

	require.True(t, waitFor(2*time.Second, func() bool {
		return handler.handledCount() == 1 && len(client.ackedIDs("orders:completed", "order-sink")) == 1
	}))

	handler.mu.Lock()
	defer handler.mu.Unlock()
	assert.Equal(t, env.ID, handler.handled[0].ID)
	assert.Empty(t, client.appended("events:dead-letter"))
}

func TestConsumer_SeesRecordsAppendedBeforeGroupExisted(t *testing.T) {
	client := newFakeClient()
	handler := &recordingHandler{}

	// Appended before Start, so before the group is created.
	appendEnvelope(t, client, "orders:completed", "a.b.C")
	appendEnvelope(t, client, "orders:completed", "a.b.C")

	consumer := newTestConsumer(client, handler)
	require.NoError(t, consumer.Start())
	defer consumer.Stop()

	require.True(t, waitFor(2*time.Second, func() bool {
		return handler.handledCount() == 2
	}))
}

func TestConsumer_UnhandledTypeAckedWithoutHandler(t *testing.T) {
	client := newFakeClient()
	handler := &recordingHandler{
		canHandle: func(eventType string) bool { return eventType == "only.this.Type" },
	}
	consumer := newTestConsumer(client, handler)

	appendEnvelope(t, client, "orders:completed", "some.other.Type")

	require.NoError(t, consumer.Start())
	defer consumer.Stop()

	require.True(t, waitFor(2*time.Second, func() bool {
		return len(client.ackedIDs("orders:completed", "order-sink")) == 1
	}))

	assert.Zero(t, handler.handledCount())
	assert.Empty(t, client.appended("events:dead-letter"))
}

func TestConsumer_MalformedPayloadDeadLettered(t *testing.T) {
	client := newFakeClient()
	handler := &recordingHandler{}
	consumer := newTestConsumer(client, handler)

	_, err := client.Append(context.Background(), "orders:completed", map[string]interface{}{
		constants.FieldEventID:   "e-bad",
		constants.FieldEventType: "a.b.C",
		constants.FieldPayload:   "{not json",
	})
	require.NoError(t, err)

	require.NoError(t, consumer.Start())
	defer consumer.Stop()

	require.True(t, waitFor(2*time.Second, func() bool {
		return len(client.appended("events:dead-letter")) == 1
	}))

	deadLettered := client.appended("events:dead-letter")
	assert.Equal(t, "e-bad", deadLettered[0].Fields[constants.FieldEventID])
	assert.Equal(t, "{not json", deadLettered[0].Fields[constants.FieldPayload])

	// The poisoned record is acknowledged so it is never redelivered.
	require.True(t, waitFor(2*time.Second, func() bool {
		return len(client.ackedIDs("orders:completed", "order-sink")) == 1
	}))
	assert.Zero(t, handler.handledCount())
}

func TestConsumer_MissingPayloadDeadLetteredAsUnknown(t *testing.T) {
	client := newFakeClient()
	handler := &recordingHandler{}
	consumer := newTestConsumer(client, handler)

	_, err := client.Append(context.Background(), "orders:completed", map[string]interface{}{
		"somethingElse": "value",
	})
	require.NoError(t, err)

	require.NoError(t, consumer.Start())
	defer consumer.Stop()

	require.True(t, waitFor(2*time.Second, func() bool {
		return len(client.appended("events:dead-letter")) == 1
	}))

	deadLettered := client.appended("events:dead-letter")
	assert.Equal(t, constants.UnknownEventID, deadLettered[0].Fields[constants.FieldEventID])
}

func TestConsumer_HandlerFailureDeadLettersAndAcks(t *testing.T) {
	client := newFakeClient()
	handler := &recordingHandler{
		handleFn: func(ctx context.Context, env Envelope) error {
			return fmt.Errorf("sink unavailable")
		},
	}
	consumer := newTestConsumer(client, handler)

	env := appendEnvelope(t, client, "orders:completed", "a.b.C")

	require.NoError(t, consumer.Start())
	defer consumer.Stop()

	require.True(t, waitFor(2*time.Second, func() bool {
		return len(client.appended("events:dead-letter")) == 1 &&
			len(client.ackedIDs("orders:completed", "order-sink")) == 1
	}))

	deadLettered := client.appended("events:dead-letter")
	assert.Equal(t, env.ID, deadLettered[0].Fields[constants.FieldEventID])
	assert.Contains(t, deadLettered[0].Fields["errorMessage"], "sink unavailable")

	// A single failure dead-letters the record; it is never handled twice.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, handler.handledCount())
}

func TestConsumer_PanicInHandlerDeadLetters(t *testing.T) {
	client := newFakeClient()
	handler := &recordingHandler{
		handleFn: func(ctx context.Context, env Envelope) error {
			panic("handler bug")
		},
	}
	consumer := newTestConsumer(client, handler)

	appendEnvelope(t, client, "orders:completed", "a.b.C")

	require.NoError(t, consumer.Start())
	defer consumer.Stop()

	require.True(t, waitFor(2*time.Second, func() bool {
		return len(client.appended("events:dead-letter")) == 1 &&
			len(client.ackedIDs("orders:completed", "order-sink")) == 1
	}))

	deadLettered := client.appended("events:dead-letter")
	assert.Contains(t, deadLettered[0].Fields["errorMessage"], "handler bug")
}

func TestConsumer_BatchFailureIsolation(t *testing.T) {
	client := newFakeClient()
	handler := &recordingHandler{
		handleFn: func(ctx context.Context, env Envelope) error {
			if strings.Contains(env.Type, "poison") {
				return fmt.Errorf("cannot process")
			}
			return nil
		},
	}
	consumer := newTestConsumer(client, handler)

	appendEnvelope(t, client, "orders:completed", "a.b.Good")
	appendEnvelope(t, client, "orders:completed", "a.b.poison")
	appendEnvelope(t, client, "orders:completed", "a.b.Good")

	require.NoError(t, consumer.Start())
	defer consumer.Stop()

	require.True(t, waitFor(2*time.Second, func() bool {
		return len(client.ackedIDs("orders:completed", "order-sink")) == 3
	}))

	assert.Equal(t, 3, handler.handledCount())
	assert.Len(t, client.appended("events:dead-letter"), 1)
}

func TestConsumer_GroupCreationFailureDoesNotAbortStart(t *testing.T) {
	client := newFakeClient()
	client.setGroupErr(fmt.Errorf("NOGROUP backend unavailable"))
	handler := &recordingHandler{}
	consumer := newTestConsumer(client, handler)

	appendEnvelope(t, client, "orders:completed", "a.b.C")

	require.NoError(t, consumer.Start())
	defer consumer.Stop()
	assert.Equal(t, StateRunning, consumer.State())

	// Nothing is delivered while group creation keeps failing.
	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, handler.handledCount())

	// Once the backend recovers the loop creates the group and catches up.
	client.setGroupErr(nil)
	require.True(t, waitFor(2*time.Second, func() bool {
		return handler.handledCount() == 1
	}))
}

func TestConsumer_StartIsIdempotent(t *testing.T) {
	client := newFakeClient()
	consumer := newTestConsumer(client, &recordingHandler{})

	require.NoError(t, consumer.Start())
	defer consumer.Stop()
	require.NoError(t, consumer.Start())
	require.NoError(t, consumer.Start())

	assert.Equal(t, StateRunning, consumer.State())
}

func TestConsumer_StopBeforeStartIsNoOp(t *testing.T) {
	consumer := newTestConsumer(newFakeClient(), &recordingHandler{})

	consumer.Stop()
	consumer.Stop()

	assert.Equal(t, StateStopped, consumer.State())
}

func TestConsumer_StopThenRestart(t *testing.T) {
	client := newFakeClient()
	handler := &recordingHandler{}
	consumer := newTestConsumer(client, handler)

	appendEnvelope(t, client, "orders:completed", "a.b.C")

	require.NoError(t, consumer.Start())
	require.True(t, waitFor(2*time.Second, func() bool {
		return handler.handledCount() == 1
	}))

	consumer.Stop()
	assert.Equal(t, StateStopped, consumer.State())

	appendEnvelope(t, client, "orders:completed", "a.b.C")

	require.NoError(t, consumer.Start())
	defer consumer.Stop()

	require.True(t, waitFor(2*time.Second, func() bool {
		return handler.handledCount() == 2
	}))
}

func TestConsumer_StopDrainsInFlightRecord(t *testing.T) {
	client := newFakeClient()
	started := make(chan struct{})
	release := make(chan struct{})
	handler := &recordingHandler{
		handleFn: func(ctx context.Context, env Envelope) error {
			close(started)
			<-release
			return nil
		},
	}
	consumer := newTestConsumer(client, handler)

	appendEnvelope(t, client, "orders:completed", "a.b.C")

	require.NoError(t, consumer.Start())
	<-started

	stopDone := make(chan struct{})
	go func() {
		consumer.Stop()
		close(stopDone)
	}()

	select {
	case <-stopDone:
		t.Fatal("Stop returned while a record was still in flight")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the in-flight record finished")
	}

	// The drained record completed its terminal path.
	assert.Len(t, client.ackedIDs("orders:completed", "order-sink"), 1)
	assert.Equal(t, StateStopped, consumer.State())
}

func TestConsumer_StateString(t *testing.T) {
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "starting", StateStarting.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "stopping", StateStopping.String())
}
