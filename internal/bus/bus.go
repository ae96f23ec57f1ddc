// Package bus provides event bus implementations for the scoring pipeline.
package bus

import (
	"fmt"

	"github.com/yusdesign/trier/internal/domain"
)

// New creates a new event bus based on configuration. The channel bus
// runs in-process; NATS connects the pipeline across nodes.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}
