package mediagraph

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ConsumerState represents the state of a consumer.
type ConsumerState int32

const (
	ConsumerIdle    ConsumerState = iota // Not started
	ConsumerStarted                      // Pulling frames
	ConsumerStopped                      // Stopped or exhausted
	ConsumerClosed                       // Closed
)

func (s ConsumerState) String() string {
	switch s {
	case ConsumerIdle:
		return "idle"
	case ConsumerStarted:
		return "started"
	case ConsumerStopped:
		return "stopped"
	case ConsumerClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Sink receives the frames pulled by a Consumer.
type Sink interface {
	// WriteFrame delivers one frame. The frame is closed once it returns.
	WriteFrame(ctx context.Context, frame *Frame) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, frame *Frame) error

func (fn SinkFunc) WriteFrame(ctx context.Context, frame *Frame) error { return fn(ctx, frame) }

// sinkOpener is implemented by sinks that acquire resources on Start.
type sinkOpener interface {
	Open(ctx context.Context, props *Properties) error
}

// sinkFlusher is implemented by buffering sinks. Flush runs when the pull
// loop exits.
type sinkFlusher interface {
	Flush() error
}

// ConsumerStats provides consumer statistics.
type ConsumerStats struct {
	FramesPulled    uint64
	FramesDelivered uint64
	BytesDelivered  uint64
	LastPosition    int
	WriteTimeUs     uint64
	Errors          uint64
}

// Consumer pulls frames from its upstream on a worker goroutine and hands
// them to a Sink.
//
// Consumer properties:
//   - "realtime": when non-zero frames are paced at the profile frame rate
//   - "terminate_on_error": when non-zero a failed write stops the consumer
type Consumer struct {
	service
	sink Sink

	upstream FrameSource
	state    atomic.Int32
	cancel   context.CancelFunc
	done     chan struct{}
	wg       sync.WaitGroup
	err      error

	stats   ConsumerStats
	statsMu sync.Mutex

	onError func(error)
	mu      sync.Mutex
}

// NewConsumer creates a consumer writing to sink.
func NewConsumer(profile *Profile, svcID string, sink Sink, logger *slog.Logger) *Consumer {
	c := &Consumer{sink: sink}
	c.init(KindConsumer, svcID, profile, logger)
	c.state.Store(int32(ConsumerIdle))
	return c
}

// Sink returns the consumer's frame sink.
func (c *Consumer) Sink() Sink { return c.sink }

// Connect wires the single upstream source.
func (c *Consumer) Connect(src FrameSource) error {
	if src == nil {
		return fmt.Errorf("consumer connect: %w: nil source", ErrInvalidArgument)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.State() {
	case ConsumerClosed:
		return ErrClosed
	case ConsumerStarted:
		return ErrAlreadyRunning
	}
	c.upstream = src
	markConnected(src)
	return nil
}

// Start begins pulling frames until end of stream or Stop.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.State() {
	case ConsumerClosed:
		return ErrClosed
	case ConsumerStarted:
		return ErrAlreadyRunning
	}
	if c.upstream == nil {
		return ErrNotConnected
	}

	if o, ok := c.sink.(sinkOpener); ok {
		if err := o.Open(ctx, c.props); err != nil {
			return fmt.Errorf("consumer %s: open: %w", c.svcID, err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.err = nil
	c.state.Store(int32(ConsumerStarted))

	c.logger.Info("consumer started", "realtime", c.props.GetBool("realtime"))

	c.wg.Add(1)
	go c.processLoop(runCtx, cancel, c.upstream, c.done)

	return nil
}

// Stop cancels the pull loop and waits for it to exit. No frame is pulled
// after Stop returns. Stopping an idle or stopped consumer succeeds.
func (c *Consumer) Stop() error {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()

	c.state.CompareAndSwap(int32(ConsumerIdle), int32(ConsumerStopped))
	c.state.CompareAndSwap(int32(ConsumerStarted), int32(ConsumerStopped))
	return nil
}

// Wait blocks until the pull loop exits and returns its error. It returns
// immediately when the consumer was never started.
func (c *Consumer) Wait() error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done != nil {
		<-done
	}
	return c.Err()
}

// Err returns the error that aborted the last run, if any.
func (c *Consumer) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// OnError sets a callback invoked for failed writes. It runs on the worker
// goroutine before the next pull, so every call has returned once Stop or
// Wait returns. The callback must not call Stop or Close.
func (c *Consumer) OnError(callback func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

// State returns the current consumer state.
func (c *Consumer) State() ConsumerState {
	return ConsumerState(c.state.Load())
}

// IsStopped reports whether the consumer is not pulling frames.
func (c *Consumer) IsStopped() bool {
	return c.State() != ConsumerStarted
}

// Stats returns consumer statistics.
func (c *Consumer) Stats() ConsumerStats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

// Close stops the consumer and releases the sink. The upstream source is
// borrowed and stays open.
func (c *Consumer) Close() error {
	c.Stop()
	if c.closed.Swap(true) {
		return nil
	}
	c.state.Store(int32(ConsumerClosed))

	c.mu.Lock()
	c.upstream = nil
	c.mu.Unlock()

	if closer, ok := c.sink.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *Consumer) processLoop(ctx context.Context, cancel context.CancelFunc, src FrameSource, done chan struct{}) {
	defer c.wg.Done()
	defer cancel()
	defer close(done)
	defer c.state.CompareAndSwap(int32(ConsumerStarted), int32(ConsumerStopped))
	if f, ok := c.sink.(sinkFlusher); ok {
		defer func() {
			if err := f.Flush(); err != nil {
				c.logger.Warn("flush failed", "error", err)
			}
		}()
	}

	var tick <-chan time.Time
	if c.props.GetBool("realtime") && c.profile != nil && c.profile.FrameDuration() > 0 {
		ticker := time.NewTicker(c.profile.FrameDuration())
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, err := src.GetFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return // Stopped mid-pull
			}
			if IsEndOfStream(err) {
				c.logger.Info("end of stream", "frames", c.Stats().FramesDelivered)
				c.finish(nil)
				return
			}
			c.logger.Error("pull failed", "error", err)
			c.finish(err)
			return
		}

		c.statsMu.Lock()
		c.stats.FramesPulled++
		c.statsMu.Unlock()

		if tick != nil {
			select {
			case <-ctx.Done():
				frame.Close()
				return
			case <-tick:
			}
		}
		if ctx.Err() != nil {
			frame.Close()
			return
		}

		writeStart := time.Now()
		size := len(frame.Payload())
		err = c.sink.WriteFrame(ctx, frame)
		writeTime := time.Since(writeStart)
		position := frame.Position()
		frame.Close()

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.handleError(err)
			if c.props.GetBool("terminate_on_error") {
				c.logger.Error("write failed, stopping", "position", position, "error", err)
				c.finish(err)
				return
			}
			continue
		}

		c.statsMu.Lock()
		c.stats.FramesDelivered++
		c.stats.BytesDelivered += uint64(size)
		c.stats.LastPosition = position
		c.stats.WriteTimeUs += uint64(writeTime.Microseconds())
		c.statsMu.Unlock()
	}
}

func (c *Consumer) finish(err error) {
	c.mu.Lock()
	c.err = err
	c.state.CompareAndSwap(int32(ConsumerStarted), int32(ConsumerStopped))
	c.mu.Unlock()
}

func (c *Consumer) handleError(err error) {
	c.statsMu.Lock()
	c.stats.Errors++
	c.statsMu.Unlock()

	c.logger.Warn("write failed", "error", err)

	c.mu.Lock()
	cb := c.onError
	c.mu.Unlock()

	if cb != nil {
		cb(err)
	}
}
