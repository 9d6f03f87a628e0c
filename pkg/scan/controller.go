// Package scan drives a camera and a QR decoder to read a channel key.
//
// A Controller owns at most one Session at a time. Start acquires the camera
// and launches a polling loop that samples one frame per scheduler slot and
// hands it to the decoder until a payload is found or Stop is called. There
// is no timeout: scanning lasts until success, cancellation or a device
// error.
package scan

import (
	"errors"
	"fmt"
	"image"
	"slices"
	"sync"

	"keychannel/pkg/channel"
	"keychannel/pkg/context"
	"keychannel/pkg/frame"
	"keychannel/pkg/log"
	"keychannel/pkg/metrics"
	"keychannel/pkg/qr"
)

// ErrAlreadyScanning is returned by Start while a session holds the camera.
var ErrAlreadyScanning = errors.New("scan already in progress")

// Controller runs scan sessions.
type Controller struct {
	opCtx     *context.OperationContext
	camera    frame.Camera
	decoder   qr.Decoder
	scheduler Scheduler
	facing    frame.Facing
	inversion qr.Inversion

	mu       sync.Mutex
	seq      uint64
	session  *Session
	onResult []func(channel.Key)
	onError  []func(error)
}

// Option configures a Controller.
type Option func(*Controller)

// WithScheduler replaces the frame clock.
func WithScheduler(s Scheduler) Option {
	return func(c *Controller) { c.scheduler = s }
}

// WithFacing selects the preferred camera. Environment facing is the default.
func WithFacing(f frame.Facing) Option {
	return func(c *Controller) { c.facing = f }
}

// WithInversion sets the hint passed to the decoder.
func WithInversion(inv qr.Inversion) Option {
	return func(c *Controller) { c.inversion = inv }
}

// New creates a controller for camera and decoder. The frame rate defaults
// to the configured FPS.
func New(ctx *context.OperationContext, camera frame.Camera, decoder qr.Decoder, opts ...Option) *Controller {
	fps := 0
	if ctx != nil && ctx.Config != nil {
		fps = ctx.Config.FPS
	}
	c := &Controller{
		opCtx:     ctx,
		camera:    camera,
		decoder:   decoder,
		scheduler: NewFrameClock(fps),
		facing:    frame.FacingEnvironment,
		inversion: qr.AttemptBoth,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnResult registers fn to receive the decoded key of every successful scan.
// Handlers run on the scan goroutine after the camera is released and before
// Done is closed: they may call Stop or Start, but calling Wait from a
// handler blocks forever.
func (c *Controller) OnResult(fn func(channel.Key)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onResult = append(c.onResult, fn)
}

// OnError registers fn to receive the cause of every failed session. The
// same rules as for OnResult apply; an access failure is reported on the
// goroutine that called Start.
func (c *Controller) OnError(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = append(c.onError, fn)
}

// Start opens the camera and begins scanning. It returns the access error if
// the camera could not be opened, and ErrAlreadyScanning if a session is
// already active. Start never retries. If the previous session was stopped
// while its camera request was pending, Start waits for that camera to be
// released before opening it again.
func (c *Controller) Start() error {
	c.mu.Lock()
	if c.session != nil && c.session.state.Active() {
		id, state := c.session.id, c.session.state
		c.mu.Unlock()
		log.Debug("Start ignored, session %d is %s", id, state)
		return ErrAlreadyScanning
	}
	prev := c.session
	c.seq++
	s := newSession(c.seq)
	s.state = RequestingAccess
	c.session = s
	c.mu.Unlock()

	if prev != nil {
		<-prev.released
	}

	log.Debug("Session %d: requesting %s-facing camera", s.id, c.facing)
	var stream frame.Stream
	err := c.record("Scan_OpenCamera", metrics.MHardwareRead, func() error {
		var openErr error
		stream, openErr = c.camera.Open(c.facing)
		return openErr
	})

	c.mu.Lock()
	if s.state != RequestingAccess {
		// Stop ran while access was pending.
		c.mu.Unlock()
		if err == nil {
			s.releaseStream(stream)
		}
		s.finish()
		return nil
	}
	if err != nil {
		cause := classify(err)
		s.state = Error
		s.err = cause
		handlers := slices.Clone(c.onError)
		c.mu.Unlock()

		s.releaseStream(nil)
		log.Error("Session %d: camera access failed: %v", s.id, cause)
		for _, h := range handlers {
			h(cause)
		}
		s.finish()
		return cause
	}
	s.stream = stream
	s.state = Scanning
	c.mu.Unlock()

	log.Info("Session %d: scanning", s.id)
	go c.run(s, stream)
	return nil
}

// Stop cancels the active session. It is a no-op when no session is active.
// When scanning, the camera stream is closed before Stop returns; Stop waits
// for a frame read in progress but not for a decode. When access is still
// pending, the stream is released as soon as the camera grants it. Done is
// closed once the loop has exited.
func (c *Controller) Stop() {
	c.mu.Lock()
	s := c.session
	if s == nil || !s.state.Active() {
		c.mu.Unlock()
		return
	}
	prev, stream := s.state, s.stream
	s.state = Stopped
	s.stream = nil
	close(s.stop)
	c.mu.Unlock()

	if stream != nil {
		s.io.Lock()
		s.releaseStream(stream)
		s.io.Unlock()
	}
	log.Info("Session %d: stopped while %s", s.id, prev)
}

// State returns the state of the current session, or Idle if none was started.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Idle
	}
	return c.session.state
}

// Session returns a snapshot of the current session.
func (c *Controller) Session() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Snapshot{State: Idle}
	}
	return c.session.snapshot()
}

// Done returns a channel closed when the current session has released the
// camera and will do no more work. With no session it is already closed.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.session.done
}

// Wait blocks until the current session is done and returns its snapshot.
func (c *Controller) Wait() Snapshot {
	<-c.Done()
	return c.Session()
}

func (c *Controller) run(s *Session, stream frame.Stream) {
	defer s.finish()
	defer s.releaseStream(stream)

	for {
		if !c.scheduler.Wait(s.stop) || c.cancelled(s) {
			return
		}

		img, ready, live, err := c.readFrame(s, stream)
		if !live {
			return
		}
		if err != nil {
			c.fail(s, stream, err)
			return
		}
		if !ready {
			continue
		}
		if c.cancelled(s) {
			return
		}

		f := frame.Sample(img)
		c.mu.Lock()
		s.frames++
		s.attempts++
		c.mu.Unlock()
		c.count("scan.frames")

		var payload string
		var found bool
		c.measure("Scan_Decode", metrics.MDecode, func() {
			payload, found = c.decoder.Decode(f, c.inversion)
		})
		if !found {
			log.Trace("Session %d: no code in frame %d", s.id, s.frames)
			continue
		}
		c.succeed(s, stream, channel.Key(payload))
		return
	}
}

// readFrame reads from the stream unless the session was stopped. live is
// false when it was, in which case the stream must not be touched again.
func (c *Controller) readFrame(s *Session, stream frame.Stream) (img image.Image, ready, live bool, err error) {
	s.io.Lock()
	defer s.io.Unlock()
	if c.cancelled(s) {
		return nil, false, false, nil
	}
	err = c.record("Scan_ReadFrame", metrics.MHardwareRead, func() error {
		var readErr error
		img, ready, readErr = stream.Frame()
		return readErr
	})
	return img, ready, true, err
}

func (c *Controller) cancelled(s *Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return s.state != Scanning
}

// succeed records the result unless the session was stopped meanwhile.
func (c *Controller) succeed(s *Session, stream frame.Stream, key channel.Key) {
	c.mu.Lock()
	if s.state != Scanning {
		c.mu.Unlock()
		log.Debug("Session %d: discarding result decoded after stop", s.id)
		return
	}
	s.state = Found
	s.result = key
	s.stream = nil
	frames := s.frames
	handlers := slices.Clone(c.onResult)
	c.mu.Unlock()

	s.releaseStream(stream)
	c.count("scan.found")
	log.Info("Session %d: key found after %d frame(s)", s.id, frames)
	for _, h := range handlers {
		h(key)
	}
}

func (c *Controller) fail(s *Session, stream frame.Stream, err error) {
	cause := classify(err)

	c.mu.Lock()
	if s.state != Scanning {
		c.mu.Unlock()
		return
	}
	s.state = Error
	s.err = cause
	s.stream = nil
	handlers := slices.Clone(c.onError)
	c.mu.Unlock()

	s.releaseStream(stream)
	log.Error("Session %d: camera failed while scanning: %v", s.id, cause)
	for _, h := range handlers {
		h(cause)
	}
}

func (c *Controller) record(name string, mType metrics.MeasurementType, f func() error) error {
	if c.opCtx == nil || c.opCtx.Recorder == nil {
		return f()
	}
	return c.opCtx.Recorder.Record(name, mType, f)
}

// measure times f under name. Use it for steps that cannot fail.
func (c *Controller) measure(name string, mType metrics.MeasurementType, f func()) {
	_ = c.record(name, mType, func() error {
		f()
		return nil
	})
}

func (c *Controller) count(name string) {
	if c.opCtx != nil && c.opCtx.Recorder != nil {
		c.opCtx.Recorder.Inc(name)
	}
}

// classify keeps permission and device errors and files anything else as an
// unavailable device.
func classify(err error) error {
	if errors.Is(err, frame.ErrPermissionDenied) || errors.Is(err, frame.ErrDeviceUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", frame.ErrDeviceUnavailable, err)
}

func logReleaseError(id uint64, err error) {
	log.Error("Session %d: failed to release camera: %v", id, err)
}
