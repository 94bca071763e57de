package util

import (
	"fmt"
	"strconv"
	"strings"
)

// NanoPerCoin is the number of nano units in one coin
const NanoPerCoin = 1_000_000_000

// FormatAmount formats nano units as a coin amount with trailing zeros trimmed,
// e.g. 1_500_000_000 -> "1.5"
func FormatAmount(nano int64) string {
	sign := ""
	u := uint64(nano)
	if nano < 0 {
		sign = "-"
		u = uint64(-nano)
	}
	whole, frac := u/NanoPerCoin, u%NanoPerCoin
	if frac == 0 {
		return fmt.Sprintf("%s%d", sign, whole)
	}
	fraction := strings.TrimRight(fmt.Sprintf("%09d", frac), "0")
	return fmt.Sprintf("%s%d.%s", sign, whole, fraction)
}

// FormatSigned is FormatAmount with an explicit plus for positive values
func FormatSigned(nano int64) string {
	if nano > 0 {
		return "+" + FormatAmount(nano)
	}
	return FormatAmount(nano)
}

// ParseAmount parses a coin amount such as "1.5" into nano units
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("empty amount")
	}
	if len(frac) > 9 {
		return 0, fmt.Errorf("amount %q has more than 9 decimals", s)
	}
	var w, f int64
	var err error
	if whole != "" {
		if w, err = strconv.ParseInt(whole, 10, 64); err != nil || strings.HasPrefix(whole, "+") {
			return 0, fmt.Errorf("invalid amount %q", s)
		}
	}
	if frac != "" {
		padded := frac + strings.Repeat("0", 9-len(frac))
		if f, err = strconv.ParseInt(padded, 10, 64); err != nil || strings.ContainsAny(frac, "+-") {
			return 0, fmt.Errorf("invalid amount %q", s)
		}
	}
	nano := w*NanoPerCoin + f
	if negative {
		nano = -nano
	}
	return nano, nil
}

// ShortAddress shortens a long address to its head and tail
func ShortAddress(address string) string {
	if len(address) <= 16 {
		return address
	}
	return address[:8] + "..." + address[len(address)-6:]
}
