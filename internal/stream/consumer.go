package stream

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"shopstream/internal/config"
	"shopstream/internal/constants"
	"shopstream/internal/logger"
	"shopstream/pkg/errors"
	"shopstream/pkg/logging"
	"shopstream/pkg/metrics"
	"shopstream/pkg/tracing"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// Consumer owns a consumer group on a named stream: it polls on an interval,
// dispatches each record to its handler, and acknowledges every record on
// exactly one of two terminal paths (processed or dead-lettered). Failures in
// one record never abort the batch or the polling loop.
type Consumer struct {
	client     Client
	cfg        config.ConsumerConfig
	handler    Handler
	deadLetter *DeadLetter
	logger     logger.Logger

	mu     sync.Mutex
	state  atomic.Int32
	cancel context.CancelFunc
	done   chan struct{}
}

func NewConsumer(client Client, cfg config.ConsumerConfig, handler Handler, dl *DeadLetter, log logger.Logger) *Consumer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = constants.DefaultBatchSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = constants.DefaultPollInterval
	}
	if cfg.BlockDuration <= 0 {
		cfg.BlockDuration = constants.DefaultBlockDuration
	}
	return &Consumer{
		client:     client,
		cfg:        cfg,
		handler:    handler,
		deadLetter: dl,
		logger:     log,
	}
}

func (c *Consumer) State() State {
	return State(c.state.Load())
}

func (c *Consumer) Running() bool {
	return c.State() == StateRunning
}

// Start begins polling. Calling Start on a consumer that is not stopped is a
// no-op. A failure to create the consumer group does not abort startup: the
// poll loop keeps attempting it, and it is tried again on the next restart.
func (c *Consumer) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if State(c.state.Load()) != StateStopped {
		c.logger.Debugw("Consumer already started, ignoring Start",
			"stream", c.cfg.Stream,
			"group", c.cfg.Group,
			"state", c.State().String(),
		)
		return nil
	}
	c.state.Store(int32(StateStarting))

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})

	c.logger.Infow("Consumer starting",
		"stream", c.cfg.Stream,
		"group", c.cfg.Group,
		"consumer", c.cfg.Name,
		"batch_size", c.cfg.BatchSize,
		"poll_interval", c.cfg.PollInterval,
	)

	go c.pollLoop(ctx)

	c.state.Store(int32(StateRunning))
	return nil
}

// Stop cancels the polling subscription and waits for the in-flight batch to
// drain. Safe to call repeatedly and before Start has ever run.
func (c *Consumer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch State(c.state.Load()) {
	case StateStopped, StateStopping:
		return
	}
	c.state.Store(int32(StateStopping))

	c.cancel()
	<-c.done

	c.state.Store(int32(StateStopped))
	c.logger.Infow("Consumer stopped",
		"stream", c.cfg.Stream,
		"group", c.cfg.Group,
	)
}

func (c *Consumer) pollLoop(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	// In-flight records finish even after Stop cancels the poll context.
	procCtx := logging.WithStream(context.WithoutCancel(ctx), c.cfg.Stream)

	groupReady := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !groupReady {
			if err := c.client.EnsureGroup(ctx, c.cfg.Stream, c.cfg.Group); err != nil {
				if ctx.Err() != nil {
					return
				}
				c.logger.ErrorwCtx(ctx, "Failed to ensure consumer group, will retry",
					"error", err,
					"stream", c.cfg.Stream,
					"group", c.cfg.Group,
				)
				continue
			}
			groupReady = true
		}

		records, err := c.client.ReadGroup(ctx, ReadArgs{
			Stream:   c.cfg.Stream,
			Group:    c.cfg.Group,
			Consumer: c.cfg.Name,
			Count:    int64(c.cfg.BatchSize),
			Block:    c.cfg.BlockDuration,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.ErrorwCtx(ctx, "Stream read failed",
				"error", err,
				"stream", c.cfg.Stream,
				"group", c.cfg.Group,
			)
			continue
		}
		if len(records) == 0 {
			continue
		}

		// Records within a batch run concurrently; the batch size bounds the
		// fan-out and the join keeps at most one batch in flight.
		var wg sync.WaitGroup
		for _, rec := range records {
			wg.Add(1)
			go func(rec Record) {
				defer wg.Done()
				c.processRecord(procCtx, rec)
			}(rec)
		}
		wg.Wait()
	}
}

// processRecord drives one record through decode, filter, handle, and exactly
// one acknowledgment on a terminal path.
func (c *Consumer) processRecord(ctx context.Context, rec Record) {
	start := time.Now()

	ctx = tracing.ExtractRecordContext(ctx, rec.Fields)
	ctx, span := tracing.GetTracer("stream-consumer").Start(ctx, "stream.process_record")
	defer span.End()

	raw, hasPayload := rec.Fields[constants.FieldPayload]
	if !hasPayload {
		err := &DecodeError{Reason: "record has no payload field"}
		c.deadLetterAndAck(ctx, rec, rec.Fields[constants.FieldEventID], raw, err)
		metrics.ObserveRecordProcessing(c.cfg.Stream, c.cfg.Group, "dead_lettered", time.Since(start))
		return
	}

	env, err := Unmarshal([]byte(raw))
	if err != nil {
		c.deadLetterAndAck(ctx, rec, rec.Fields[constants.FieldEventID], raw, err)
		metrics.ObserveRecordProcessing(c.cfg.Stream, c.cfg.Group, "dead_lettered", time.Since(start))
		return
	}

	ctx = logging.WithEventID(ctx, env.ID)

	if !c.handler.CanHandle(env.Type) {
		// A different logical topic sharing the physical stream: expected
		// filtering, not failure.
		c.logger.DebugwCtx(ctx, "Event type not handled by this consumer, acknowledging",
			"event_type", env.Type,
		)
		c.ack(ctx, rec)
		metrics.IncEventConsumed(c.cfg.Stream, c.cfg.Group, "filtered")
		metrics.ObserveRecordProcessing(c.cfg.Stream, c.cfg.Group, "filtered", time.Since(start))
		return
	}

	if err := c.safeHandle(ctx, env); err != nil {
		c.deadLetterAndAck(ctx, rec, env.ID, raw, err)
		metrics.ObserveRecordProcessing(c.cfg.Stream, c.cfg.Group, "dead_lettered", time.Since(start))
		return
	}

	c.ack(ctx, rec)
	metrics.IncEventConsumed(c.cfg.Stream, c.cfg.Group, "processed")
	metrics.ObserveRecordProcessing(c.cfg.Stream, c.cfg.Group, "processed", time.Since(start))
}

func (c *Consumer) safeHandle(ctx context.Context, env Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.RecoverPanic(r)
			c.logger.ErrorwCtx(ctx, "Panic recovered during record processing",
				"error", err,
				"event_type", env.Type,
			)
		}
	}()
	return c.handler.Handle(ctx, env)
}

// deadLetterAndAck is the unrecoverable-failure terminal path: the dead-letter
// entry is the durable record of the failure, and the original record is
// acknowledged regardless so it is never redelivered in a tight loop.
func (c *Consumer) deadLetterAndAck(ctx context.Context, rec Record, eventID, payload string, cause error) {
	c.deadLetter.Send(ctx, eventID, payload, cause)
	c.ack(ctx, rec)
	metrics.IncEventConsumed(c.cfg.Stream, c.cfg.Group, "dead_lettered")
}

func (c *Consumer) ack(ctx context.Context, rec Record) {
	if err := c.client.Ack(ctx, c.cfg.Stream, c.cfg.Group, rec.ID); err != nil {
		c.logger.ErrorwCtx(ctx, "Failed to acknowledge record",
			"error", err,
			"record_id", rec.ID,
			"stream", c.cfg.Stream,
			"group", c.cfg.Group,
		)
	}
}
