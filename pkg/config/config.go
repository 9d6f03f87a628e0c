package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"keychannel/pkg/log"
)

// SystemType defines the platforms the tool runs on. The platform decides
// which external commands drive the camera, see GetImageCommand().
type SystemType string

const (
	SystemMac   SystemType = "Mac"
	SystemKiosk SystemType = "Kiosk"
	SystemPi    SystemType = "Pi"
)

// HardwareType defines the functional hardware implementation to use.
type HardwareType string

const (
	HWCore       HardwareType = "Core"        // In-memory loopback, no I/O.
	HWDisk       HardwareType = "Disk"        // QR images written to and scanned from files.
	HWPeripheral HardwareType = "Peripherals" // Physical camera and receipt printer.
)

// Facing selects which camera is preferred when several are available.
type Facing string

const (
	FacingEnvironment Facing = "environment"
	FacingUser        Facing = "user"
)

// Mode is the action the command line tool performs.
type Mode string

const (
	ModeGenKey  Mode = "genkey"  // Create a channel and share its key.
	ModeShare   Mode = "share"   // Render an existing key.
	ModeScan    Mode = "scan"    // Scan a key and join its channel.
	ModeDemo    Mode = "demo"    // Share then scan through the same hardware.
	ModeEncrypt Mode = "encrypt" // Encrypt a message for a channel in the keyring.
	ModeDecrypt Mode = "decrypt" // Decrypt a message of a channel in the keyring.
)

// Config holds all parameters for a single invocation.
type Config struct {
	Mode         Mode
	HardwareType HardwareType
	System       SystemType
	Facing       Facing

	Key        string // Channel key for ModeShare, ModeEncrypt and ModeDecrypt.
	Name       string // Channel name for ModeGenKey and ModeScan.
	Text       string // Plain text for ModeEncrypt.
	Ciphertext string // Ciphertext for ModeDecrypt, e.g. "[1234, 5678]".

	Printer      string // The name of the receipt printer, as named in CUPS
	PicturePath  string // Where rendered codes and captured stills are stored.
	FramesPath   string // Directory scanned by the Disk camera.
	ResultsPath  string
	StorePath    string // Keyring file.
	CUPSWaitTime int    // Wait time for CUPS to start in ms

	QRSize     int
	DarkColor  string
	LightColor string
	FPS        int
	Inversion  string
	Show       bool // Draw shared codes in the terminal.

	LogLevel     log.LogLevel
	PrintMetrics bool
	WriteResults bool
	Seed         string
}

// NewConfig creates a new Config by parsing the process command line.
func NewConfig() *Config {
	log.Debug("Parsing command-line flags...")
	cfg, err := Parse(os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

// Parse builds a Config from command line arguments and prepares the output
// directories it refers to.
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("keychannel", flag.ContinueOnError)

	mode := fs.String("mode", string(ModeDemo), "Action to run (genkey, share, scan, demo, encrypt, decrypt).")
	hwType := fs.String("hw", string(HWCore), "Hardware implementation (Core, Disk, Peripherals).")
	system := fs.String("system", string(SystemMac), "System the camera commands are built for (Mac, Kiosk, Pi).")
	facing := fs.String("facing", string(FacingEnvironment), "Preferred camera (environment, user).")
	key := fs.String("key", "", "Channel key to share.")
	name := fs.String("name", "", "Channel name.")
	text := fs.String("text", "", "Message to encrypt.")
	ciphertext := fs.String("ciphertext", "", "Message to decrypt, as printed by encrypt.")
	printer := fs.String("printer", "TM", "Name of the printer in CUPS if Peripherals is set.")
	picPath := fs.String("pics", "output/pics/", "Path for storing rendered codes and captured stills.")
	framesPath := fs.String("frames", "", "Directory the Disk camera reads frames from (defaults to -pics).")
	resultsPath := fs.String("results", "output/results/", "Path for storing metric results.")
	storePath := fs.String("store", "output/channels.json", "Keyring file.")
	cupsWait := fs.Int("cups-wait", 100, "Wait time in ms for CUPS daemon to start.")
	qrSize := fs.Int("qr-size", 128, "Side of the rendered QR code in pixels.")
	dark := fs.String("qr-dark", "#05d9e8", "QR module color.")
	light := fs.String("qr-light", "#0d0d1a", "QR background color.")
	fps := fs.Int("fps", 30, "Frames sampled per second while scanning.")
	inversion := fs.String("inversion", "attemptBoth", "Inverted code handling (dontInvert, onlyInvert, attemptBoth, invertFirst).")
	show := fs.Bool("show", false, "Draw shared codes in the terminal.")
	logLevel := fs.String("log-level", "info", "Set log level (trace, debug, info, error).")
	printMetrics := fs.Bool("print-metrics", false, "Print metric summaries on exit.")
	writeResults := fs.Bool("write-results", false, "Write metric CSV files to -results.")
	seed := fs.String("seed", "", "Seed for key generation; empty uses the system random source.")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	level, err := log.ParseLevel(*logLevel)
	if err != nil {
		log.Info("Unknown log level '%s', defaulting to 'info'", *logLevel)
	}
	log.SetLevel(level)

	cfg := &Config{
		Mode:         Mode(*mode),
		HardwareType: HardwareType(*hwType),
		System:       SystemType(*system),
		Facing:       Facing(*facing),
		Key:          *key,
		Name:         *name,
		Text:         *text,
		Ciphertext:   *ciphertext,
		Printer:      *printer,
		StorePath:    filepath.Clean(*storePath),
		CUPSWaitTime: *cupsWait,
		QRSize:       *qrSize,
		DarkColor:    *dark,
		LightColor:   *light,
		FPS:          *fps,
		Inversion:    *inversion,
		Show:         *show,
		LogLevel:     level,
		PrintMetrics: *printMetrics,
		WriteResults: *writeResults,
		Seed:         *seed,
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.PicturePath, err = cleanAndCreateDirectory(*picPath); err != nil {
		return nil, err
	}
	cfg.FramesPath = cfg.PicturePath
	if *framesPath != "" {
		cfg.FramesPath = filepath.Clean(*framesPath)
	}
	if cfg.WriteResults {
		if cfg.ResultsPath, err = cleanAndCreateDirectory(*resultsPath); err != nil {
			return nil, err
		}
	} else {
		cfg.ResultsPath = filepath.Clean(*resultsPath)
	}

	log.Debug("Config: %s", cfg)
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Mode {
	case ModeGenKey, ModeShare, ModeScan, ModeDemo, ModeEncrypt, ModeDecrypt:
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	switch c.HardwareType {
	case HWCore, HWDisk, HWPeripheral:
	default:
		return fmt.Errorf("unknown hardware type %q", c.HardwareType)
	}
	switch c.Facing {
	case FacingEnvironment, FacingUser:
	default:
		return fmt.Errorf("unknown camera facing %q", c.Facing)
	}
	switch c.Mode {
	case ModeShare, ModeEncrypt, ModeDecrypt:
		if strings.TrimSpace(c.Key) == "" {
			return fmt.Errorf("mode %s requires -key", c.Mode)
		}
	}
	if c.Mode == ModeEncrypt && c.Text == "" {
		return fmt.Errorf("mode %s requires -text", c.Mode)
	}
	if c.Mode == ModeDecrypt && strings.TrimSpace(c.Ciphertext) == "" {
		return fmt.Errorf("mode %s requires -ciphertext", c.Mode)
	}
	if c.QRSize <= 0 {
		return fmt.Errorf("qr-size must be positive, got %d", c.QRSize)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %d", c.FPS)
	}
	return nil
}

// GetImageCommand returns the command that captures a still from the
// preferred camera into outputPath. Only used with HWPeripheral.
func (c *Config) GetImageCommand(outputPath string) (string, []string, error) {
	switch c.System {
	case SystemPi, SystemKiosk:
		camera := "0"
		if c.Facing == FacingUser {
			camera = "1"
		}
		return "libcamera-still", []string{"--camera", camera, "-o", outputPath, "--timeout", "1", "--nopreview"}, nil
	case SystemMac:
		return "imagesnap", []string{"-q", outputPath}, nil
	default:
		return "", nil, fmt.Errorf("no camera command for system type %s", c.System)
	}
}

// GetPrintCommand returns the command to print a file on the receipt printer.
func (c *Config) GetPrintCommand(filePath string) (string, []string) {
	return "lp", []string{"-d", c.Printer, "-o", "fit-to-page", "-o", "TmxPaperCut=CutPerPage", filePath}
}

// String returns a string representation of the Config instance
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode:%s HW:%s System:%s Facing:%s Name:%q Printer:%s "+
		"PicPath:%s FramesPath:%s ResultsPath:%s Store:%s CUPSWait:%d QRSize:%d "+
		"Colors:%s/%s FPS:%d Inversion:%s Show:%t LogLevel:%d PrintMetrics:%t Seeded:%t}",
		c.Mode, c.HardwareType, c.System, c.Facing, c.Name, c.Printer,
		c.PicturePath, c.FramesPath, c.ResultsPath, c.StorePath, c.CUPSWaitTime, c.QRSize,
		c.DarkColor, c.LightColor, c.FPS, c.Inversion, c.Show, c.LogLevel, c.PrintMetrics, c.Seed != "")
}

// --- Config Helpers ---

// cleanAndCreateDirectory ensures the specified directory exists, creating it
// if necessary, and returns the cleaned path.
func cleanAndCreateDirectory(path string) (string, error) {
	path = filepath.Clean(path)
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return path, nil
}
