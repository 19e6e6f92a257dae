package vehicle

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/seagrayinc/overdrive/pkg/ble"
	"github.com/seagrayinc/overdrive/pkg/frame"
)

var (
	ErrSendBufferFull   = errors.New("vehicle: send buffer full")
	ErrSenderNotStarted = errors.New("vehicle: sender not started")
	ErrSenderStopped    = errors.New("vehicle: sender stopped")
)

const defaultSendBuffer = 100

// Transport moves frames between a Device and the vehicle facade.
type Transport struct {
	Device     ble.Device
	SendBuffer int           // Size of send buffer (default 100)
	WriteGap   time.Duration // Minimum time between writes (default none)
	// OnWrite is called with every frame after it was written.
	OnWrite func(frame.Frame)

	mu        sync.Mutex
	lastWrite time.Time

	sendOnce sync.Once
	stopOnce sync.Once
	frames   chan frame.Frame
	stopping bool
	stop     chan struct{}
	sent     chan struct{}
}

// Poll validates frames arriving on notifications and forwards the well formed ones. The
// returned channel is closed when notifications is closed or ctx ends.
func (t *Transport) Poll(ctx context.Context, notifications <-chan []byte) <-chan frame.Frame {
	out := make(chan frame.Frame)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return

			case b, ok := <-notifications:
				if !ok {
					slog.Info("notification channel closed", slog.String("address", t.Device.Address()))
					return
				}

				if err := frame.Validate(b); err != nil {
					slog.Warn("dropping malformed frame",
						slog.String("bytes", frame.EncodeToString(b)),
						slog.Any("error", err))
					continue
				}
				slog.Debug("frame received", slog.String("bytes", frame.EncodeToString(b)))

				select {
				case out <- frame.Frame(b):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// StartSender starts the background goroutine that writes buffered frames in order.
// It must be called before Send. The context controls the lifetime of the sender.
func (t *Transport) StartSender(ctx context.Context) {
	t.sendOnce.Do(func() {
		bufSize := t.SendBuffer
		if bufSize <= 0 {
			bufSize = defaultSendBuffer
		}
		t.mu.Lock()
		t.frames = make(chan frame.Frame, bufSize)
		t.stop = make(chan struct{})
		t.sent = make(chan struct{})
		t.mu.Unlock()

		go t.sendLoop(ctx)
	})
}

func (t *Transport) sendLoop(ctx context.Context) {
	defer close(t.sent)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			t.flush(ctx)
			return
		case f := <-t.frames:
			if !t.write(ctx, f) {
				return
			}
		}
	}
}

// flush writes the frames still buffered when the sender was stopped.
func (t *Transport) flush(ctx context.Context) {
	for {
		select {
		case f := <-t.frames:
			if !t.write(ctx, f) {
				return
			}
		default:
			return
		}
	}
}

// write reports false when ctx ended before f could be written.
func (t *Transport) write(ctx context.Context, f frame.Frame) bool {
	if !t.waitGap(ctx) {
		return false
	}

	if err := t.Device.Write(ctx, f); err != nil {
		slog.Warn("failed to write frame",
			slog.String("bytes", frame.EncodeToString(f)),
			slog.Any("error", err))
		return true
	}

	t.mu.Lock()
	t.lastWrite = time.Now()
	t.mu.Unlock()

	if t.OnWrite != nil {
		t.OnWrite(f)
	}
	return true
}

// Stop rejects further sends, writes the frames already buffered and waits for the sender to
// exit. If ctx ends first Stop returns its error and the sender keeps flushing until the
// context given to StartSender ends.
func (t *Transport) Stop(ctx context.Context) error {
	t.mu.Lock()
	t.stopping = true
	stop, sent := t.stop, t.sent
	t.mu.Unlock()
	if stop == nil {
		return nil
	}

	t.stopOnce.Do(func() { close(stop) })
	select {
	case <-sent:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// waitGap blocks until WriteGap has passed since the last write. It reports false when ctx
// ended first.
func (t *Transport) waitGap(ctx context.Context) bool {
	if t.WriteGap <= 0 {
		return true
	}

	t.mu.Lock()
	wait := t.WriteGap - time.Since(t.lastWrite)
	t.mu.Unlock()
	if wait <= 0 {
		return true
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Send buffers frames for sending. It is non-blocking.
// StartSender must be called before Send.
func (t *Transport) Send(_ context.Context, frames ...frame.Frame) error {
	// Held while queueing so a concurrent Stop flushes everything accepted here.
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.frames == nil {
		return ErrSenderNotStarted
	}
	if t.stopping {
		return ErrSenderStopped
	}

	for _, f := range frames {
		select {
		case t.frames <- f:
			slog.Debug("sending frame", slog.String("bytes", frame.EncodeToString(f)))
		default:
			slog.Warn("send buffer full, dropping frame", slog.String("bytes", frame.EncodeToString(f)))
			return ErrSendBufferFull
		}
	}

	return nil
}

func (t *Transport) Close() error {
	return t.Device.Close()
}
