// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package broadcast

import "github.com/fxamacker/cbor/v2"

// Messages crossing a process boundary (the NATS bus) are CBOR-encoded.
// The in-process bus passes Message values directly and never touches this.

func encodeMessage(msg Message) ([]byte, error) {
	return cbor.Marshal(msg)
}

func decodeMessage(data []byte) (Message, error) {
	var msg Message
	if err := cbor.Unmarshal(data, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
