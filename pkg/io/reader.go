package io

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"golang.org/x/xerrors"

	"keychannel/pkg/config"
	"keychannel/pkg/frame"
	"keychannel/pkg/log"
)

// --- DiskCamera (Reads frames from files) ---

// DiskCamera is a camera backed by a directory. Every PNG, JPEG and PDF in
// the directory is a frame; streams walk them in name order and start over
// at the end, picking up files added in the meantime.
type DiskCamera struct {
	dir string
}

// NewDiskCamera creates a camera reading frames from dir.
func NewDiskCamera(dir string) *DiskCamera {
	return &DiskCamera{dir: dir}
}

// Open implements frame.Camera. The facing is ignored.
func (c *DiskCamera) Open(frame.Facing) (frame.Stream, error) {
	info, err := os.Stat(c.dir)
	if err != nil {
		return nil, classifyFSError(c.dir, err)
	}
	if !info.IsDir() {
		return nil, xerrors.Errorf("%s is not a directory: %w", c.dir, frame.ErrDeviceUnavailable)
	}
	if _, err := os.ReadDir(c.dir); err != nil {
		return nil, classifyFSError(c.dir, err)
	}
	log.Debug("Disk camera streaming from %s", c.dir)
	return &diskStream{dir: c.dir, cache: make(map[string][]image.Image)}, nil
}

type diskStream struct {
	mu      sync.Mutex
	dir     string
	pending []image.Image
	cache   map[string][]image.Image
	closed  bool
}

func (s *diskStream) Frame() (image.Image, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false, xerrors.Errorf("stream closed: %w", frame.ErrDeviceUnavailable)
	}
	if len(s.pending) == 0 {
		if err := s.reload(); err != nil {
			return nil, false, err
		}
		if len(s.pending) == 0 {
			return nil, false, nil
		}
	}
	img := s.pending[0]
	s.pending = s.pending[1:]
	return img, true, nil
}

// reload lists the directory and queues one pass over its frames.
func (s *diskStream) reload() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return classifyFSError(s.dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isFrameFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(s.dir, name)
		imgs, ok := s.cache[path]
		if !ok {
			imgs, err = readFrameFile(path)
			if errors.Is(err, frame.ErrPermissionDenied) {
				return err
			}
			if err != nil {
				// A file still being written or a foreign file; skip it.
				log.Debug("Skipping %s: %v", path, err)
				continue
			}
			s.cache[path] = imgs
		}
		s.pending = append(s.pending, imgs...)
	}
	return nil
}

func (s *diskStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.pending = nil
	s.cache = nil
	return nil
}

func isFrameFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".pdf":
		return true
	}
	return false
}

// readFrameFile decodes the images held by a picture file or a PDF.
func readFrameFile(path string) ([]image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, classifyFSError(path, err)
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return readPDFImages(file, path)
	}
	img, _, err := image.Decode(file)
	if err != nil {
		return nil, xerrors.Errorf("image.Decode failed for %s: %w", path, err)
	}
	return []image.Image{img}, nil
}

// readPDFImages extracts every embedded image of a PDF.
func readPDFImages(rs io.ReadSeeker, path string) ([]image.Image, error) {
	// pdfcpu is used to extract raw image data from the PDF wrapper.
	extracted, err := api.ExtractImagesRaw(rs, nil, nil)
	if err != nil {
		return nil, xerrors.Errorf("could not extract images from PDF %s: %w", path, err)
	}

	// One map per page, keyed by object number.
	var out []image.Image
	for _, imgs := range extracted {
		objs := make([]int, 0, len(imgs))
		for nr := range imgs {
			objs = append(objs, nr)
		}
		sort.Ints(objs)
		for _, nr := range objs {
			img, _, err := image.Decode(imgs[nr])
			if err != nil {
				log.Debug("Undecodable image object %d in %s: %v", nr, path, err)
				continue
			}
			out = append(out, img)
		}
	}
	if len(out) == 0 {
		return nil, xerrors.Errorf("no images found in %s", path)
	}
	return out, nil
}

// classifyFSError maps file system errors onto the camera error classes.
func classifyFSError(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return xerrors.Errorf("%s: %v: %w", path, err, frame.ErrPermissionDenied)
	case errors.Is(err, fs.ErrNotExist):
		return xerrors.Errorf("%s: %v: %w", path, err, frame.ErrDeviceUnavailable)
	default:
		return xerrors.Errorf("%s: %w", path, err)
	}
}

// --- CommandCamera (Taking a picture) ---

// CommandCamera takes a still through the system camera command for every
// frame requested.
type CommandCamera struct {
	cfg     *config.Config
	command func(cfg *config.Config, outputPath string) (string, []string, error)
}

// NewCommandCamera creates a camera driven by the capture command of the
// configured system type.
func NewCommandCamera(cfg *config.Config) *CommandCamera {
	return &CommandCamera{
		cfg: cfg,
		command: func(cfg *config.Config, outputPath string) (string, []string, error) {
			return cfg.GetImageCommand(outputPath)
		},
	}
}

// Open implements frame.Camera. It checks that the capture command exists;
// the camera itself is only touched when a frame is taken.
func (c *CommandCamera) Open(facing frame.Facing) (frame.Stream, error) {
	cfg := *c.cfg
	cfg.Facing = config.Facing(facing)

	name, _, err := c.command(&cfg, "")
	if err != nil {
		return nil, xerrors.Errorf("%v: %w", err, frame.ErrDeviceUnavailable)
	}
	if _, err := exec.LookPath(name); err != nil {
		return nil, xerrors.Errorf("camera command %s: %v: %w", name, err, frame.ErrDeviceUnavailable)
	}
	return &commandStream{cfg: &cfg, command: c.command}, nil
}

type commandStream struct {
	cfg     *config.Config
	command func(cfg *config.Config, outputPath string) (string, []string, error)
}

// Frame takes a picture and decodes it. The still is removed afterwards.
func (s *commandStream) Frame() (image.Image, bool, error) {
	scannedFile := filepath.Join(s.cfg.PicturePath, fmt.Sprintf("image_%d.jpg", time.Now().UnixNano()))
	defer os.Remove(scannedFile)

	name, args, err := s.command(s.cfg, scannedFile)
	if err != nil {
		return nil, false, err
	}
	cmd := exec.Command(name, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, false, xerrors.Errorf("failed to run camera command '%s': %v, output: %s: %w",
			name, err, strings.TrimSpace(string(output)), frame.ErrDeviceUnavailable)
	}

	data, err := os.ReadFile(scannedFile)
	if err != nil {
		return nil, false, classifyFSError(scannedFile, err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		// A truncated still is a dropped frame, not a device failure.
		log.Debug("Dropping undecodable still %s: %v", scannedFile, err)
		return nil, false, nil
	}
	return img, true, nil
}

func (s *commandStream) Close() error { return nil }
