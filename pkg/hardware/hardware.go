package hardware

import (
	"fmt"

	"keychannel/pkg/config"
	"keychannel/pkg/frame"
	"keychannel/pkg/io"
)

// baseHardware provides common functionality for hardware implementations.
type baseHardware struct {
	camera frame.Camera
	CodeWriter
}

func (h *baseHardware) Camera() frame.Camera { return h.camera }

// Core is a mock hardware implementation that operates entirely in memory:
// its camera sees whatever its writer produced.
type Core struct {
	baseHardware
}

func newCore() *Core {
	cam := frame.NewMemoryCamera()
	return &Core{baseHardware{camera: cam, CodeWriter: io.NewCoreWriter(cam)}}
}

func (c *Core) Name() string { return "Core" }

// Disk writes codes as files and scans frames from a directory.
type Disk struct {
	baseHardware
}

func newDisk(cfg *config.Config) *Disk {
	return &Disk{baseHardware{
		camera:     io.NewDiskCamera(cfg.FramesPath),
		CodeWriter: io.NewSaveWriter(cfg),
	}}
}

func (d *Disk) Name() string { return "Disk" }

// Peripheral interacts with a physical camera and receipt printer.
type Peripheral struct {
	baseHardware
}

func newPeripheral(cfg *config.Config) *Peripheral {
	return &Peripheral{baseHardware{
		camera:     io.NewCommandCamera(cfg),
		CodeWriter: io.NewPrinterWriter(cfg),
	}}
}

func (p *Peripheral) Name() string { return "Peripheral" }

// New selects and creates the appropriate hardware implementation based on config.
func New(cfg *config.Config) (Hardware, error) {
	switch cfg.HardwareType {
	case config.HWCore:
		return newCore(), nil
	case config.HWDisk:
		return newDisk(cfg), nil
	case config.HWPeripheral:
		return newPeripheral(cfg), nil
	default:
		return nil, fmt.Errorf("unknown hardware type specified: %s", cfg.HardwareType)
	}
}
