package flow

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var addressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{16}$`)

// IsValidAddress reports whether addr is a 0x-prefixed 8 byte Flow address.
func IsValidAddress(addr string) bool {
	return addressPattern.MatchString(addr)
}

// FormatAmount renders a FLOW amount with eight decimal places.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(8)
}

// ParseAmount reads a decimal amount; an empty string is zero.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// FlowScanURL links to an account or, when txID is set, a transaction on the
// network's explorer. Networks without an explorer return "".
func FlowScanURL(n Network, account, txID string) string {
	if n.FlowScan == "" {
		return ""
	}
	base := strings.TrimRight(n.FlowScan, "/")
	if txID != "" {
		return base + "/tx/" + txID
	}
	if account != "" {
		return base + "/account/" + account
	}
	return base
}
