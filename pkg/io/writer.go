package io

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/xerrors"

	"keychannel/pkg/channel"
	"keychannel/pkg/config"
	"keychannel/pkg/context"
	"keychannel/pkg/frame"
	"keychannel/pkg/log"
	"keychannel/pkg/metrics"
	"keychannel/pkg/qr"
)

// --- CoreWriter (In-Memory Mock) ---

// CoreWriter is a mock writer for the 'Core' hardware type. Rendered codes
// are shown to an in-memory camera instead of being written anywhere.
type CoreWriter struct {
	camera *frame.MemoryCamera

	mu      sync.Mutex
	written []*qr.Image
}

// NewCoreWriter creates a writer feeding camera.
func NewCoreWriter(camera *frame.MemoryCamera) *CoreWriter {
	return &CoreWriter{camera: camera}
}

// Write pushes the code image to the camera.
func (w *CoreWriter) Write(ctx *context.OperationContext, img *qr.Image) (string, error) {
	err := record(ctx, "Write_Core", metrics.MLogic, func() error {
		w.camera.Push(img.Image())
		w.mu.Lock()
		w.written = append(w.written, img)
		w.mu.Unlock()
		return nil
	})
	return "memory:" + qrFingerprint(img), err
}

// Written returns the images written so far.
func (w *CoreWriter) Written() []*qr.Image {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*qr.Image(nil), w.written...)
}

// --- SaveWriter (Writes to file) ---

// SaveWriter saves every code as a PNG and a single-page PDF in the picture
// path.
type SaveWriter struct {
	cfg *config.Config
}

// NewSaveWriter creates a writer that saves codes to files.
func NewSaveWriter(cfg *config.Config) *SaveWriter {
	return &SaveWriter{cfg: cfg}
}

// Write saves img and returns the path of the PDF.
func (w *SaveWriter) Write(ctx *context.OperationContext, img *qr.Image) (string, error) {
	base := filepath.Join(w.cfg.PicturePath, fmt.Sprintf("key_%d", time.Now().UnixNano()))
	pngPath, pdfPath := base+".png", base+".pdf"

	err := record(ctx, "SaveFile_QR", metrics.MDiskWrite, func() error {
		if err := writeFile(pngPath, img.WritePNG); err != nil {
			return err
		}
		return writeFile(pdfPath, img.WritePDF)
	})
	if err != nil {
		return "", err
	}
	log.Debug("Saved code %s to %s and %s", qrFingerprint(img), pngPath, pdfPath)
	return pdfPath, nil
}

// writeFile creates path and fills it with write.
func writeFile(path string, write func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return xerrors.Errorf("failed to create file %s: %w", path, err)
	}
	if err := write(file); err != nil {
		file.Close()
		return xerrors.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}

// --- PrinterWriter (Prints via CUPS) ---

// PrinterWriter decorates a SaveWriter by sending the PDF to the receipt
// printer.
type PrinterWriter struct {
	saveWriter *SaveWriter
	cfg        *config.Config
}

// NewPrinterWriter creates a writer that saves to a file and then prints it.
func NewPrinterWriter(cfg *config.Config) *PrinterWriter {
	return &PrinterWriter{
		saveWriter: NewSaveWriter(cfg),
		cfg:        cfg,
	}
}

// Write first saves the code to a file, then prints it.
func (w *PrinterWriter) Write(ctx *context.OperationContext, img *qr.Image) (string, error) {
	filePath, err := w.saveWriter.Write(ctx, img)
	if err != nil {
		return "", err
	}
	return filePath, record(ctx, "Print_QR", metrics.MHardwareWrite, func() error {
		return w.printFile(filePath)
	})
}

// printFile handles the logic of interacting with the CUPS printing system.
func (w *PrinterWriter) printFile(filePath string) error {
	_ = exec.Command("killall", "cupsd").Run() // Force restart for clean measurement

	cupsDaemon := exec.Command("/usr/sbin/cupsd", "-f")
	if err := cupsDaemon.Start(); err != nil {
		return xerrors.Errorf("failed to start cupsd: %w", err)
	}

	// Give the daemon a moment to initialize.
	time.Sleep(time.Duration(w.cfg.CUPSWaitTime) * time.Millisecond)

	cmdName, args := w.cfg.GetPrintCommand(filePath)
	cmd := exec.Command(cmdName, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		_ = cupsDaemon.Process.Kill()
		return xerrors.Errorf("print command '%s' failed, output: %s: %w", cmdName, string(output), err)
	}

	// cupsd exits once the job is processed.
	_ = cupsDaemon.Wait()
	return nil
}

func qrFingerprint(img *qr.Image) string {
	return channel.Key(img.Key).Fingerprint()
}

func record(ctx *context.OperationContext, name string, mType metrics.MeasurementType, f func() error) error {
	if ctx == nil || ctx.Recorder == nil {
		return f()
	}
	return ctx.Recorder.Record(name, mType, f)
}
