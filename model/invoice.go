// SPDX-License-Identifier: ice License 1.0

package model

import (
	"regexp"
	"strconv"
)

var invoiceAmountRx = regexp.MustCompile(`^lnbc(\d+)([munp])`)

// InvoiceAmount extracts the amount in satoshi from a BOLT11 invoice
// string by its magnitude suffix: m = milli-bitcoin, u = micro, n = nano,
// p = pico. Invoices without a recognized amount prefix yield 0; full
// invoice decoding is out of scope here.
func InvoiceAmount(invoice string) int64 {
	m := invoiceAmountRx.FindStringSubmatch(invoice)
	if m == nil {
		return 0
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0
	}

	switch m[2] {
	case "m":
		return n * 100_000
	case "u":
		return n * 100
	case "n":
		return n / 10
	case "p":
		return n / 10_000
	}

	return 0
}
