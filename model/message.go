// SPDX-License-Identifier: ice License 1.0

package model

import (
	"bytes"

	"github.com/cockroachdb/errors"
	"github.com/nbd-wtf/go-nostr"
)

// ParseMessage decodes one inbound relay frame. The PAY envelope is not
// part of the standard protocol, so it is sniffed and decoded here;
// everything else passes through to the go-nostr parser.
func ParseMessage(message []byte) (e nostr.Envelope, err error) {
	firstComma := bytes.IndexByte(message, ',')
	if firstComma == -1 {
		return nil, ErrUnknownMessage
	}

	if bytes.Contains(message[:firstComma], []byte("PAY")) {
		var payEnvelope PayEnvelope

		if err = payEnvelope.UnmarshalJSON(message); err != nil {
			return nil, errors.Wrap(err, "unmarshal pay envelope")
		}

		e = &payEnvelope
	} else {
		e = nostr.ParseMessage(message)
	}

	if e == nil {
		err = ErrParseMessage
	}

	return e, err
}
