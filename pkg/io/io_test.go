package io

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"keychannel/pkg/config"
	"keychannel/pkg/context"
	"keychannel/pkg/frame"
	"keychannel/pkg/metrics"
	"keychannel/pkg/qr"
)

const testKey = "Zx3_q-9LmN0pQrStUvWxYz"

func renderTestKey(t *testing.T) *qr.Image {
	t.Helper()
	img, err := qr.Render(testKey, 256, qr.DefaultColors)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	return img
}

func decodeFrame(t *testing.T, s frame.Stream) (string, bool) {
	t.Helper()
	img, ok, err := s.Frame()
	if err != nil {
		t.Fatalf("Frame() error = %v", err)
	}
	if !ok {
		return "", false
	}
	return qr.NewZXingDecoder().Decode(frame.Sample(img), qr.AttemptBoth)
}

func TestDiskCameraOpen(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.png")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		dir     string
		wantErr error
	}{
		{"missing directory", filepath.Join(dir, "nope"), frame.ErrDeviceUnavailable},
		{"not a directory", file, frame.ErrDeviceUnavailable},
		{"existing directory", dir, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewDiskCamera(tt.dir).Open(frame.FacingEnvironment)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Open() error = %v", err)
				}
				_ = s.Close()
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Open() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSaveWriterToDiskCamera(t *testing.T) {
	dir := t.TempDir()
	rec := metrics.NewRecorder()
	ctx := context.NewContext(&config.Config{PicturePath: dir}, rec)

	path, err := NewSaveWriter(ctx.Config).Write(ctx, renderTestKey(t))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if filepath.Ext(path) != ".pdf" {
		t.Errorf("Write() returned %s, want the PDF", path)
	}
	if _, err := os.Stat(path[:len(path)-len(".pdf")] + ".png"); err != nil {
		t.Errorf("PNG not written: %v", err)
	}
	if s, ok := rec.Series("SaveFile_QR"); !ok || len(s.Samples) != 1 {
		t.Errorf("SaveFile_QR not recorded: %+v", s)
	}

	stream, err := NewDiskCamera(dir).Open(frame.FacingEnvironment)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer stream.Close()

	// Name order puts the PDF before the PNG; both carry the key.
	for i, kind := range []string{"pdf", "png", "pdf again"} {
		got, ok := decodeFrame(t, stream)
		if !ok || got != testKey {
			t.Errorf("frame %d (%s) = %q, %v", i, kind, got, ok)
		}
	}
}

func TestDiskStreamPicksUpNewFiles(t *testing.T) {
	dir := t.TempDir()
	stream, err := NewDiskCamera(dir).Open(frame.FacingEnvironment)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer stream.Close()

	if _, ok, err := stream.Frame(); ok || err != nil {
		t.Fatalf("empty directory: ok=%v err=%v", ok, err)
	}

	// Foreign and broken files are skipped.
	_ = os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0644)
	_ = os.WriteFile(filepath.Join(dir, "broken.png"), []byte("not a png"), 0644)
	if _, ok, err := stream.Frame(); ok || err != nil {
		t.Fatalf("only unusable files: ok=%v err=%v", ok, err)
	}

	png, err := renderTestKey(t).PNG()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "shared.png"), png, 0644); err != nil {
		t.Fatal(err)
	}
	if got, ok := decodeFrame(t, stream); !ok || got != testKey {
		t.Errorf("new file not streamed: %q, %v", got, ok)
	}
}

func TestDiskStreamUnreadableFile(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("file permissions are not enforced for root")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "locked.png")
	if err := os.WriteFile(path, []byte("x"), 0000); err != nil {
		t.Fatal(err)
	}
	stream, err := NewDiskCamera(dir).Open(frame.FacingEnvironment)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer stream.Close()
	if _, _, err := stream.Frame(); !errors.Is(err, frame.ErrPermissionDenied) {
		t.Errorf("Frame() error = %v, want ErrPermissionDenied", err)
	}
}

func TestDiskStreamClosed(t *testing.T) {
	stream, err := NewDiskCamera(t.TempDir()).Open(frame.FacingEnvironment)
	if err != nil {
		t.Fatal(err)
	}
	_ = stream.Close()
	if _, _, err := stream.Frame(); !errors.Is(err, frame.ErrDeviceUnavailable) {
		t.Errorf("Frame() after Close error = %v", err)
	}
}

func TestCommandCamera(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{PicturePath: dir, System: config.SystemPi}

	t.Run("missing binary", func(t *testing.T) {
		cam := NewCommandCamera(cfg)
		cam.command = func(*config.Config, string) (string, []string, error) {
			return "keychannel-no-such-camera", nil, nil
		}
		if _, err := cam.Open(frame.FacingEnvironment); !errors.Is(err, frame.ErrDeviceUnavailable) {
			t.Errorf("Open() error = %v, want ErrDeviceUnavailable", err)
		}
	})

	t.Run("unknown system", func(t *testing.T) {
		cam := NewCommandCamera(&config.Config{PicturePath: dir, System: "Amiga"})
		if _, err := cam.Open(frame.FacingEnvironment); !errors.Is(err, frame.ErrDeviceUnavailable) {
			t.Errorf("Open() error = %v, want ErrDeviceUnavailable", err)
		}
	})

	t.Run("captures a still per frame", func(t *testing.T) {
		png, err := renderTestKey(t).PNG()
		if err != nil {
			t.Fatal(err)
		}
		src := filepath.Join(t.TempDir(), "scene.png")
		if err := os.WriteFile(src, png, 0644); err != nil {
			t.Fatal(err)
		}

		var facing config.Facing
		cam := NewCommandCamera(cfg)
		cam.command = func(c *config.Config, out string) (string, []string, error) {
			facing = c.Facing
			return "cp", []string{src, out}, nil
		}
		stream, err := cam.Open(frame.FacingUser)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer stream.Close()

		if got, ok := decodeFrame(t, stream); !ok || got != testKey {
			t.Errorf("decoded %q, %v", got, ok)
		}
		if facing != config.FacingUser {
			t.Errorf("command built for facing %q, want user", facing)
		}
		if entries, _ := os.ReadDir(dir); len(entries) != 0 {
			t.Errorf("stills left behind: %d", len(entries))
		}
	})
}

func TestCoreWriter(t *testing.T) {
	cam := frame.NewMemoryCamera()
	w := NewCoreWriter(cam)
	loc, err := w.Write(nil, renderTestKey(t))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if loc != "memory:Zx3_…WxYz" {
		t.Errorf("location = %q", loc)
	}
	if len(w.Written()) != 1 {
		t.Errorf("Written() = %d images", len(w.Written()))
	}

	stream, err := cam.Open(frame.FacingEnvironment)
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Close()
	if got, ok := decodeFrame(t, stream); !ok || got != testKey {
		t.Errorf("camera shows %q, %v", got, ok)
	}
}
