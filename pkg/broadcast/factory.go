// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package broadcast

import (
	"fmt"

	"github.com/luxfi/relay/pkg/config"
)

// Subject is the NATS subject relay messages travel on.
const Subject = "relay.messages"

// New builds the bus described by the configuration.
func New(cfg config.Bus) (Bus, error) {
	switch cfg.Kind {
	case config.BusKindMemory:
		return NewMemory(cfg.Capacity), nil
	case config.BusKindNATS:
		return NewNATS(cfg.URL, Subject, cfg.Capacity)
	default:
		return nil, fmt.Errorf("broadcast: unknown bus kind %q", cfg.Kind)
	}
}
