package hardware

import (
	"keychannel/pkg/context"
	"keychannel/pkg/frame"
	"keychannel/pkg/qr"
)

// CodeWriter defines the ability to output a rendered key code. It returns
// where the code went.
type CodeWriter interface {
	Write(ctx *context.OperationContext, img *qr.Image) (string, error)
}

// Hardware is a composite interface representing a device that can show
// codes and scan them.
type Hardware interface {
	CodeWriter
	Camera() frame.Camera
	Name() string
}
