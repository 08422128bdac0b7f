// SPDX-License-Identifier: ice License 1.0

package model

import (
	"encoding/json"
	"fmt"

	"github.com/nbd-wtf/go-nostr"
	"github.com/tidwall/gjson"
)

type (
	EnvelopeType string

	Envelope interface {
		nostr.Envelope
	}

	// PayEnvelope is the nonstandard relay payment request some paid
	// relays emit: ["PAY", invoice, description, url].
	PayEnvelope struct {
		Invoice     string
		Description string
		Url         string
	}
)

const (
	EnvelopeTypeEvent  EnvelopeType = "EVENT"
	EnvelopeTypeOK     EnvelopeType = "OK"
	EnvelopeTypeAuth   EnvelopeType = "AUTH"
	EnvelopeTypeNotice EnvelopeType = "NOTICE"
	EnvelopeTypePay    EnvelopeType = "PAY"
)

func (*PayEnvelope) Label() string {
	return string(EnvelopeTypePay)
}

func (v *PayEnvelope) UnmarshalJSON(data []byte) error {
	arr := gjson.ParseBytes(data).Array()
	if len(arr) < 4 {
		return fmt.Errorf("failed to decode PAY envelope: missing fields")
	}
	v.Invoice = arr[1].Str
	v.Description = arr[2].Str
	v.Url = arr[3].Str

	return nil
}

func (v *PayEnvelope) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{EnvelopeTypePay, v.Invoice, v.Description, v.Url})
}

func (v *PayEnvelope) String() string {
	data, _ := json.Marshal(v)
	return string(data)
}
