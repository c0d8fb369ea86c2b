// Package extractor runs the live side of one consumer: a single broker
// connection, one background pull loop, and fan-out to the consumer's sinks.
package extractor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"streamhub/internal/broker"
	"streamhub/internal/logging"
	"streamhub/internal/telemetry"
	"streamhub/sink"
)

type state int32

const (
	stateCreated state = iota
	stateRunning
	stateStopping
	stateStopped
)

// Attached pairs a live sink with the kind tag it was built from.
type Attached struct {
	Kind string
	Sink sink.Sink
}

// Extractor owns exactly one broker connection and pulls messages until told
// to stop. Each message is dispatched to every attached sink concurrently;
// the next message is not pulled until all sinks have finished the current
// one, preserving per-consumer ordering.
type Extractor struct {
	id      string
	address string
	topic   string
	group   string

	dialer broker.Dialer
	sinks  []Attached

	// onFailure is invoked after a self-initiated shutdown (broker error).
	onFailure func(err error)

	state  atomic.Int32
	cancel context.CancelFunc
	done   chan struct{}
	conn   broker.Conn

	closeOnce sync.Once
}

func New(id, address, topic, group string, dialer broker.Dialer, sinks []Attached, onFailure func(error)) *Extractor {
	return &Extractor{
		id:        id,
		address:   address,
		topic:     topic,
		group:     group,
		dialer:    dialer,
		sinks:     sinks,
		onFailure: onFailure,
	}
}

// Start opens the broker connection and launches the pull loop. Calling
// Start on a running extractor is a no-op.
func (e *Extractor) Start(ctx context.Context) error {
	if !e.state.CompareAndSwap(int32(stateCreated), int32(stateRunning)) {
		return nil
	}

	conn, err := e.dialer.Dial(ctx, e.address, e.topic, e.group, e.id)
	if err != nil {
		e.state.Store(int32(stateCreated))
		return err
	}
	e.conn = conn

	loopCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	go e.pullLoop(loopCtx)

	logging.L().Info("extractor started", "consumer_id", e.id, "topic", e.topic, "group", e.group)
	return nil
}

func (e *Extractor) pullLoop(ctx context.Context) {
	defer close(e.done)

	for {
		msg, err := e.conn.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			logging.L().Error("extractor: broker connection lost", "consumer_id", e.id, "err", err)
			e.failed(err)
			return
		}
		telemetry.MessagesPulled.WithLabelValues(e.id).Inc()
		// Dispatch runs outside the loop-cancel context: a Stop only keeps
		// the loop from pulling again, it never aborts the in-flight
		// message's sinks mid-dispatch.
		e.dispatch(context.Background(), msg)
	}
}

// dispatch fans one message out to every sink concurrently. A failing sink
// is logged and counted; it never stops its siblings or the loop.
func (e *Extractor) dispatch(ctx context.Context, msg *broker.Message) {
	var wg sync.WaitGroup
	for _, at := range e.sinks {
		wg.Add(1)
		go func(at Attached) {
			defer wg.Done()
			if err := at.Sink.Process(ctx, msg); err != nil {
				telemetry.SinkErrors.WithLabelValues(at.Kind).Inc()
				logging.L().Warn("sink process failed",
					"consumer_id", e.id, "kind", at.Kind,
					"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset,
					"err", err)
			}
		}(at)
	}
	wg.Wait()
}

// Stop signals the pull loop to exit after the in-flight dispatch, waits for
// it, then closes the connection and every sink in attachment order. Stopping
// an extractor that never ran still releases its sinks; stopping one that is
// already stopping or stopped is a no-op.
func (e *Extractor) Stop(ctx context.Context) error {
	if e.state.CompareAndSwap(int32(stateCreated), int32(stateStopped)) {
		e.closeSinks()
		return nil
	}
	if !e.state.CompareAndSwap(int32(stateRunning), int32(stateStopping)) {
		return nil
	}

	e.cancel()
	select {
	case <-e.done:
	case <-ctx.Done():
		// The loop is already cancelled; finish the teardown in the
		// background once the in-flight dispatch completes, so the
		// connection and sinks are never stranded.
		go func() {
			<-e.done
			e.teardown()
		}()
		return ctx.Err()
	}

	e.teardown()
	logging.L().Info("extractor stopped", "consumer_id", e.id, "topic", e.topic)
	return nil
}

// failed is the self-healing shutdown path, run from inside the pull loop.
func (e *Extractor) failed(err error) {
	if !e.state.CompareAndSwap(int32(stateRunning), int32(stateStopping)) {
		return
	}
	e.teardown()
	if e.onFailure != nil {
		e.onFailure(err)
	}
}

func (e *Extractor) teardown() {
	if err := e.conn.Close(); err != nil {
		logging.L().Warn("extractor: connection close failed", "consumer_id", e.id, "err", err)
	}
	e.closeSinks()
	e.state.Store(int32(stateStopped))
}

func (e *Extractor) closeSinks() {
	e.closeOnce.Do(func() {
		for _, at := range e.sinks {
			if err := at.Sink.Close(); err != nil {
				logging.L().Warn("sink close failed", "consumer_id", e.id, "kind", at.Kind, "err", err)
			}
		}
	})
}

// Running reports whether the pull loop is live.
func (e *Extractor) Running() bool {
	return state(e.state.Load()) == stateRunning
}
