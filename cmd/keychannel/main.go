package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"keychannel/pkg/channel"
	"keychannel/pkg/config"
	"keychannel/pkg/context"
	"keychannel/pkg/display"
	"keychannel/pkg/frame"
	"keychannel/pkg/hardware"
	"keychannel/pkg/log"
	"keychannel/pkg/metrics"
	"keychannel/pkg/qr"
	"keychannel/pkg/result"
	"keychannel/pkg/scan"
)

// App wires the keyring, the QR codec and the hardware for one invocation.
type App struct {
	config    *config.Config
	metrics   *metrics.Recorder
	ctx       *context.OperationContext
	store     *channel.Store
	hw        hardware.Hardware
	colors    qr.Colors
	inversion qr.Inversion
}

func main() {
	// 1. Load configuration from flags.
	cfg := config.NewConfig()
	channel.InitRandom(cfg.Seed)
	rec := metrics.NewRecorder()

	app, err := NewApp(cfg, rec)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	runErr := rec.Record("Run_"+string(cfg.Mode), metrics.MLogic, app.Run)

	if cfg.PrintMetrics {
		rec.PrintSummary(os.Stdout)
	}
	if cfg.WriteResults {
		w := result.NewWriter(cfg.ResultsPath, cfg.System, app.hw.Name(), cfg.Mode)
		if _, _, err := w.WriteAllResults(rec); err != nil {
			log.Error("Failed to write results: %v", err)
		}
	}
	if runErr != nil {
		log.Fatalf("%s failed: %v", cfg.Mode, runErr)
	}
}

// NewApp creates and initializes all components required for a run.
func NewApp(cfg *config.Config, rec *metrics.Recorder) (*App, error) {
	colors, err := qr.ParseColors(cfg.DarkColor, cfg.LightColor)
	if err != nil {
		return nil, err
	}
	inversion, err := qr.ParseInversion(cfg.Inversion)
	if err != nil {
		return nil, err
	}

	// A demo on disk scans only the codes it wrote itself.
	if cfg.Mode == config.ModeDemo && cfg.HardwareType == config.HWDisk {
		dir := filepath.Join(cfg.PicturePath, "demo-"+uuid.NewString()[:8])
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create demo directory: %w", err)
		}
		cfg.PicturePath, cfg.FramesPath = dir, dir
	}

	store, err := channel.OpenStore(cfg.StorePath)
	if err != nil {
		return nil, err
	}
	hw, err := hardware.New(cfg)
	if err != nil {
		return nil, err
	}
	log.Debug("Running %s on '%s' hardware", cfg.Mode, hw.Name())

	return &App{
		config:    cfg,
		metrics:   rec,
		ctx:       context.NewContext(cfg, rec),
		store:     store,
		hw:        hw,
		colors:    colors,
		inversion: inversion,
	}, nil
}

// Run performs the configured mode.
func (a *App) Run() error {
	switch a.config.Mode {
	case config.ModeGenKey:
		_, err := a.genKey(a.config.Name)
		return err
	case config.ModeShare:
		return a.share(channel.Key(a.config.Key))
	case config.ModeScan:
		_, err := a.scan()
		return err
	case config.ModeDemo:
		return a.demo()
	case config.ModeEncrypt:
		_, err := a.encrypt(channel.Key(a.config.Key), a.config.Text)
		return err
	case config.ModeDecrypt:
		_, err := a.decrypt(channel.Key(a.config.Key), a.config.Ciphertext)
		return err
	default:
		return fmt.Errorf("unknown mode %q", a.config.Mode)
	}
}

func (a *App) genKey(name string) (*channel.Channel, error) {
	ch, err := a.store.Create(name)
	if err != nil {
		return nil, err
	}
	fmt.Printf("Created channel %q (%s)\n", ch.Name, ch.Key.Fingerprint())
	return ch, a.share(ch.Key)
}

// share renders key and hands it to the hardware writer.
func (a *App) share(key channel.Key) error {
	if err := key.Validate(); err != nil {
		return err
	}

	var img *qr.Image
	if err := a.metrics.Record("QR_Render", metrics.MLogic, func() error {
		var err error
		img, err = qr.Render(key.String(), a.config.QRSize, a.colors)
		return err
	}); err != nil {
		return err
	}

	location, err := a.hw.Write(a.ctx, img)
	if err != nil {
		return fmt.Errorf("failed to write code: %w", err)
	}
	fmt.Printf("Key %s written to %s\n", key.Fingerprint(), location)

	if a.config.Show {
		return display.Show(img, "Scan to join "+key.Fingerprint()+" - press any key")
	}
	return nil
}

// scan reads a key with the hardware camera and joins its channel. It
// returns nil without error when the scan is cancelled.
func (a *App) scan() (*channel.Channel, error) {
	c := scan.New(a.ctx, a.hw.Camera(), qr.NewZXingDecoder(),
		scan.WithFacing(frame.Facing(a.config.Facing)),
		scan.WithInversion(a.inversion),
	)

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupts)

	if err := c.Start(); err != nil {
		return nil, err
	}
	fmt.Println("Scanning, press Ctrl-C to cancel...")

	go func() {
		select {
		case <-interrupts:
			c.Stop()
		case <-c.Done():
		}
	}()

	snap := c.Wait()
	switch snap.State {
	case scan.Found:
		ch, created, err := a.store.Join(snap.Result, a.config.Name)
		if err != nil {
			return nil, err
		}
		if created {
			fmt.Printf("Joined channel %q (%s) after %d frame(s)\n", ch.Name, ch.Key.Fingerprint(), snap.Frames)
		} else {
			fmt.Printf("Already a member of %q (%s)\n", ch.Name, ch.Key.Fingerprint())
		}
		return ch, nil
	case scan.Stopped:
		fmt.Println("Scan cancelled")
		return nil, nil
	default:
		return nil, snap.Err
	}
}

// demo shares a fresh key and scans it back through the same hardware.
func (a *App) demo() error {
	name := a.config.Name
	if name == "" {
		name = "demo-" + uuid.NewString()[:8]
	}
	created, err := a.genKey(name)
	if err != nil {
		return err
	}
	scanned, err := a.scan()
	if err != nil || scanned == nil {
		return err
	}
	if scanned.Key != created.Key {
		return fmt.Errorf("scanned key %s does not match shared key %s",
			scanned.Key.Fingerprint(), created.Key.Fingerprint())
	}

	digest, err := a.store.Digest()
	if err != nil {
		return err
	}
	fmt.Printf("Round trip OK, keyring holds %d channel(s), digest %s\n", a.store.Len(), hex.EncodeToString(digest))
	return nil
}

// encrypt encrypts text for a channel in the keyring and records the
// ciphertext in the channel's history.
func (a *App) encrypt(key channel.Key, text string) ([]int, error) {
	ch, err := a.store.Lookup(key)
	if err != nil {
		return nil, err
	}
	c, err := channel.NewCipher(ch.Key)
	if err != nil {
		return nil, err
	}

	var ciphertext []int
	if err := a.metrics.Record("Encrypt", metrics.MLogic, func() error {
		ciphertext, err = c.Encrypt(text)
		return err
	}); err != nil {
		return nil, err
	}
	if _, err := a.store.AddMessage(ch.Key, ciphertext); err != nil {
		return nil, err
	}
	fmt.Printf("Encrypted for %q: %s\n", ch.Name, channel.FormatCiphertext(ciphertext))
	return ciphertext, nil
}

// decrypt decrypts a ciphertext printed by encrypt for a channel in the
// keyring.
func (a *App) decrypt(key channel.Key, input string) (string, error) {
	ch, err := a.store.Lookup(key)
	if err != nil {
		return "", err
	}
	values, err := channel.ParseCiphertext(input)
	if err != nil {
		return "", err
	}
	c, err := channel.NewCipher(ch.Key)
	if err != nil {
		return "", err
	}

	var text string
	if err := a.metrics.Record("Decrypt", metrics.MLogic, func() error {
		text, err = c.Decrypt(values)
		return err
	}); err != nil {
		return "", err
	}
	fmt.Printf("Decrypted from %q: %s\n", ch.Name, text)
	return text, nil
}
