package alerting

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stock-target-alerts/internal/errkind"
)

// StatusRecorder persists per-channel delivery outcomes after all attempts
// for an event have completed.
type StatusRecorder interface {
	UpdateDeliveryStatus(ctx context.Context, eventID int64, result DeliveryResult) error
}

// DispatcherOptions tune retry behaviour for transient channel failures.
type DispatcherOptions struct {
	RetryCount   int
	RetryBackoff time.Duration
}

// Dispatcher fans one event out to every configured channel. Channels are
// attempted concurrently and fail independently; the dispatcher is the
// boundary between "alert occurred" (always recorded) and "alert was
// communicated" (best effort).
type Dispatcher struct {
	channels []Channel
	recorder StatusRecorder
	opts     DispatcherOptions
	logger   zerolog.Logger
}

// NewDispatcher wires channels and an optional status recorder.
func NewDispatcher(channels []Channel, recorder StatusRecorder, opts DispatcherOptions, logger zerolog.Logger) *Dispatcher {
	if opts.RetryCount < 0 {
		opts.RetryCount = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}
	return &Dispatcher{
		channels: channels,
		recorder: recorder,
		opts:     opts,
		logger:   logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Dispatch attempts every channel for the event and returns one DeliveryResult
// per channel. Delivery statuses are written back through the recorder once
// all channels have finished.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) map[string]DeliveryResult {
	results := make(map[string]DeliveryResult, len(d.channels))
	if len(d.channels) == 0 {
		return results
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, channel := range d.channels {
		wg.Add(1)
		go func(channel Channel) {
			defer wg.Done()
			result := d.attempt(ctx, channel, event)
			mu.Lock()
			results[channel.Name()] = result
			mu.Unlock()
		}(channel)
	}
	wg.Wait()

	if d.recorder != nil && event.ID != 0 {
		for _, result := range results {
			if err := d.recorder.UpdateDeliveryStatus(ctx, event.ID, result); err != nil {
				d.logger.Error().Err(err).
					Int64("event_id", event.ID).
					Str("channel", result.Channel).
					Msg("failed to persist delivery status")
			}
		}
	}

	return results
}

// attempt runs one channel with bounded retry. Only transient failures are
// retried; fatal and data-integrity failures stop immediately.
func (d *Dispatcher) attempt(ctx context.Context, channel Channel, event Event) DeliveryResult {
	result := DeliveryResult{Channel: channel.Name()}

	maxAttempts := d.opts.RetryCount + 1
	backoff := d.opts.RetryBackoff

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result.Attempted = true
		result.Attempts = attempt

		err := channel.Send(ctx, event)
		if err == nil {
			result.Succeeded = true
			result.LastError = ""
			return result
		}

		result.LastError = err.Error()
		d.logger.Warn().Err(err).
			Str("channel", channel.Name()).
			Str("symbol", event.Symbol).
			Int("attempt", attempt).
			Str("kind", errkind.Of(err).String()).
			Msg("channel send failed")

		if !errkind.IsTransient(err) || attempt == maxAttempts {
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result
		case <-timer.C:
		}
		backoff *= 2
	}

	return result
}
