package frame

import (
	"image"
	"sync"
)

// MemoryCamera is an in-memory camera. Its streams replay a scripted list of
// images and then keep showing the last one, like a camera pointed at a
// still scene. A nil entry stands for a frame that is not ready yet.
type MemoryCamera struct {
	mu      sync.Mutex
	frames  []image.Image
	openErr error
	opens   int
	closes  int
	reads   int
}

// NewMemoryCamera creates a camera that replays frames.
func NewMemoryCamera(frames ...image.Image) *MemoryCamera {
	return &MemoryCamera{frames: frames}
}

// Deny makes every following Open fail with err.
func (c *MemoryCamera) Deny(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openErr = err
}

// Push appends a frame to the script.
func (c *MemoryCamera) Push(img image.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, img)
}

// Open implements Camera.
func (c *MemoryCamera) Open(Facing) (Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openErr != nil {
		return nil, c.openErr
	}
	c.opens++
	return &memoryStream{cam: c}, nil
}

// Opens returns how many streams were granted.
func (c *MemoryCamera) Opens() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens
}

// Closes returns how many times a stream was released.
func (c *MemoryCamera) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// Reads returns how many frames were requested across all streams.
func (c *MemoryCamera) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

type memoryStream struct {
	cam  *MemoryCamera
	next int
}

func (s *memoryStream) Frame() (image.Image, bool, error) {
	s.cam.mu.Lock()
	defer s.cam.mu.Unlock()
	s.cam.reads++
	if len(s.cam.frames) == 0 {
		return nil, false, nil
	}
	idx := s.next
	if idx >= len(s.cam.frames) {
		idx = len(s.cam.frames) - 1
	} else {
		s.next++
	}
	img := s.cam.frames[idx]
	return img, img != nil, nil
}

func (s *memoryStream) Close() error {
	s.cam.mu.Lock()
	defer s.cam.mu.Unlock()
	s.cam.closes++
	return nil
}
