// Package scanner drives a camera frame source through QR decoding and
// resolves the first decoded code to a live teacher profile.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"knowmystatus/internal/qrcode"
	"knowmystatus/internal/teacher"
)

// DefaultInterval samples ten frames per second.
const DefaultInterval = 100 * time.Millisecond

var (
	// ErrAcquire is returned when the camera cannot be opened or stops
	// delivering frames.
	ErrAcquire = errors.New("camera unavailable")
	// ErrCancelled is returned when the scan is stopped before a result.
	ErrCancelled = errors.New("scan cancelled")
	// ErrExhausted is returned when a finite frame source runs out without
	// a readable code.
	ErrExhausted = errors.New("no QR code found in frames")
)

// State is the position of a Loop in its lifecycle.
type State int

const (
	Idle State = iota
	Acquiring
	Sampling
	Decoded
	Resolving
	Done
	Error
	Cancelled
)

var stateNames = [...]string{"idle", "acquiring", "sampling", "decoded", "resolving", "done", "error", "cancelled"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transitions happen from s.
func (s State) Terminal() bool {
	return s == Done || s == Error || s == Cancelled
}

// Device opens a camera. Which physical camera is up to the implementation.
type Device interface {
	Open(ctx context.Context) (Camera, error)
}

// Camera delivers frames until closed. Frame returns a nil image when no
// frame is ready yet and io.EOF when a finite source is exhausted.
type Camera interface {
	Frame() (image.Image, error)
	Close() error
}

// Resolver looks up the live profile of a decoded payload.
type Resolver interface {
	Resolve(ctx context.Context, p qrcode.Payload) (teacher.Profile, error)
}

// Decoder finds QR text in a frame.
type Decoder func(img image.Image) (string, bool)

// Loop is a single-goroutine cooperative scan loop. Tick performs one
// synchronous decode; Stop may be called from any goroutine.
type Loop struct {
	device   Device
	resolver Resolver
	decode   Decoder
	interval time.Duration
	log      *zap.Logger

	mu      sync.Mutex
	state   State
	cam     Camera
	payload qrcode.Payload
	result  teacher.Profile
	err     error
}

// Option configures a Loop.
type Option func(*Loop)

func WithInterval(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.interval = d
		}
	}
}

func WithDecoder(d Decoder) Option {
	return func(l *Loop) { l.decode = d }
}

func WithLogger(log *zap.Logger) Option {
	return func(l *Loop) { l.log = log }
}

// New creates an idle loop.
func New(device Device, resolver Resolver, opts ...Option) *Loop {
	l := &Loop{
		device:   device,
		resolver: resolver,
		decode:   qrcode.DecodeImage,
		interval: DefaultInterval,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Result returns the resolved profile or the error that ended the loop.
func (l *Loop) Result() (teacher.Profile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.result, l.err
}

// Start acquires the camera and enters Sampling.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.state != Idle {
		l.mu.Unlock()
		return fmt.Errorf("scanner: start in state %s", l.state)
	}
	l.state = Acquiring
	l.mu.Unlock()

	cam, err := l.device.Open(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == Cancelled {
		if cam != nil {
			_ = cam.Close()
		}
		return ErrCancelled
	}
	if err != nil {
		return l.fail(fmt.Errorf("%w: %v", ErrAcquire, err))
	}
	l.cam = cam
	l.state = Sampling
	l.log.Debug("camera acquired")
	return nil
}

// Tick samples one frame. It returns true once the loop reached a terminal
// state. Frames without a code leave the loop in Sampling.
func (l *Loop) Tick(ctx context.Context) (bool, error) {
	l.mu.Lock()
	if l.state != Sampling {
		defer l.mu.Unlock()
		return l.state.Terminal(), l.err
	}

	frame, err := l.cam.Frame()
	if errors.Is(err, io.EOF) {
		defer l.mu.Unlock()
		return true, l.fail(ErrExhausted)
	}
	if err != nil {
		defer l.mu.Unlock()
		return true, l.fail(fmt.Errorf("%w: %v", ErrAcquire, err))
	}
	if frame == nil {
		l.mu.Unlock()
		return false, nil
	}
	text, ok := l.decode(frame)
	if !ok {
		l.mu.Unlock()
		return false, nil
	}

	payload, err := qrcode.ParseText(text)
	if err != nil {
		defer l.mu.Unlock()
		return true, l.fail(err)
	}
	l.state = Decoded
	l.payload = payload
	l.release()
	l.state = Resolving
	l.mu.Unlock()

	l.log.Debug("qr decoded", zap.String("teacher_id", payload.TeacherID), zap.Bool("bare", payload.Bare))
	profile, err := l.resolver.Resolve(ctx, payload)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Resolving {
		return true, l.err
	}
	if err != nil {
		return true, l.fail(err)
	}
	l.result = profile
	l.state = Done
	return true, nil
}

// Stop cancels a loop that has not finished and releases the camera. It
// waits for an in-flight decode to complete.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.Terminal() {
		return
	}
	l.state = Cancelled
	l.err = ErrCancelled
	l.release()
}

// Run starts the loop and samples on a ticker until a result, an error or
// ctx cancellation. The camera is released on every path.
func (l *Loop) Run(ctx context.Context) (teacher.Profile, error) {
	defer l.Stop()
	if err := l.Start(ctx); err != nil {
		return teacher.Profile{}, err
	}
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			l.Stop()
			return l.Result()
		case <-ticker.C:
			done, err := l.Tick(ctx)
			if done {
				if err != nil {
					return teacher.Profile{}, err
				}
				return l.Result()
			}
		}
	}
}

// fail moves to Error and releases the camera. Callers hold mu.
func (l *Loop) fail(err error) error {
	l.state = Error
	l.err = err
	l.release()
	l.log.Debug("scan failed", zap.Error(err))
	return err
}

// release closes the camera if open. Callers hold mu.
func (l *Loop) release() {
	if l.cam == nil {
		return
	}
	if err := l.cam.Close(); err != nil {
		l.log.Warn("close camera", zap.Error(err))
	}
	l.cam = nil
}
