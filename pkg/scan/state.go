package scan

import (
	"sync"

	"keychannel/pkg/channel"
	"keychannel/pkg/frame"
)

// State is the lifecycle state of a scan session.
type State int

const (
	Idle State = iota
	RequestingAccess
	Scanning
	Found
	Stopped
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case RequestingAccess:
		return "RequestingAccess"
	case Scanning:
		return "Scanning"
	case Found:
		return "Found"
	case Stopped:
		return "Stopped"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

// Active reports whether the state holds (or is acquiring) the camera.
func (s State) Active() bool {
	return s == RequestingAccess || s == Scanning
}

// Terminal reports whether the session has ended.
func (s State) Terminal() bool {
	return s == Found || s == Stopped || s == Error
}

// Session is one run of the scanner, from Start to a terminal state.
// Its fields are guarded by the owning Controller's mutex.
type Session struct {
	id     uint64
	state  State
	stream frame.Stream // held only while RequestingAccess or Scanning
	result channel.Key  // set only in Found
	err    error        // set only in Error

	frames   int // frames sampled
	attempts int // decoder invocations

	stop     chan struct{}
	done     chan struct{}
	released chan struct{}
	release  sync.Once
	closed   sync.Once

	// io is held by the loop while it reads from the stream, so Stop can
	// close the stream without racing a read.
	io sync.Mutex
}

func newSession(id uint64) *Session {
	return &Session{
		id:       id,
		state:    Idle,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		released: make(chan struct{}),
	}
}

// releaseStream closes the camera stream exactly once and marks the session
// as no longer holding the camera. A nil stream only marks it.
func (s *Session) releaseStream(stream frame.Stream) {
	s.release.Do(func() {
		if stream != nil {
			if err := stream.Close(); err != nil {
				logReleaseError(s.id, err)
			}
		}
		close(s.released)
	})
}

func (s *Session) finish() {
	s.releaseStream(nil)
	s.closed.Do(func() { close(s.done) })
}

// Snapshot is a copy of a session's observable fields.
type Snapshot struct {
	ID       uint64
	State    State
	Result   channel.Key
	Err      error
	Frames   int
	Attempts int
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{
		ID:       s.id,
		State:    s.state,
		Result:   s.result,
		Err:      s.err,
		Frames:   s.frames,
		Attempts: s.attempts,
	}
}
