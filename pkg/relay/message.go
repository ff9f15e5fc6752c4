// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package relay implements the line relay core: per-connection sessions
// coupled to the shared broadcast bus.
package relay

import (
	"fmt"
	"strings"
)

// AckMessage is the acknowledgment returned to a sender for every line it
// submits, trailing newline included.
const AckMessage = "ACK:MESSAGE\n"

// UppercaseTransform converts an inbound line to its broadcast form.
// Locale-naive codepoint uppercasing.
func UppercaseTransform(line string) string {
	return strings.ToUpper(line)
}

// BuildAcknowledgment returns the per-sender acknowledgment line.
func BuildAcknowledgment() string {
	return AckMessage
}

// BuildBroadcastPayload wraps a transformed line with its origin label. No
// trailing newline is added; the writer terminates the line.
func BuildBroadcastPayload(originLabel, line string) string {
	return fmt.Sprintf("MESSAGE:%s %s", originLabel, line)
}
