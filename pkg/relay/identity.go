// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package relay

import (
	"net"
	"strconv"

	"github.com/google/uuid"
)

// Identity names one live connection. It is minted at accept time and
// independent of transport addressing: peer ports can collide across
// distinct peers or be reused after reconnects, so they are never used to
// distinguish connections.
type Identity struct {
	// Seq is the protocol-visible numeric label, unique for the lifetime
	// of the server process.
	Seq uint64

	// UID is the collision-free identity used for the self-exclusion
	// check and log correlation.
	UID string

	// Remote is the transport-level peer address, kept for logging.
	Remote net.Addr
}

func mintIdentity(seq uint64, remote net.Addr) Identity {
	return Identity{Seq: seq, UID: uuid.NewString(), Remote: remote}
}

// Label returns the decimal form used in the LOGIN banner and the MESSAGE
// prefix.
func (id Identity) Label() string {
	return strconv.FormatUint(id.Seq, 10)
}
