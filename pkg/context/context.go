package context

import (
	"keychannel/pkg/config"
	"keychannel/pkg/metrics"
)

// OperationContext holds request-scoped data for a single operation.
type OperationContext struct {
	Config   *config.Config    // The invocation configuration
	Recorder *metrics.Recorder // The metrics recorder for the current run.
}

// NewContext creates a new OperationContext.
func NewContext(config *config.Config, rec *metrics.Recorder) *OperationContext {
	return &OperationContext{
		Config:   config,
		Recorder: rec,
	}
}
