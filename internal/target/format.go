package target

import (
	"fmt"
	"net"
)

// AddrString renders a 16-byte address in standard IPv6 text form.
func AddrString(addr [16]byte) string {
	return net.IP(addr[:]).String()
}

// Canonical renders a Spec in a lossless, parser-internal form: the full
// 32-hex-digit address and mask, used only for round-trip verification
// (its "parse then format" invariant) rather than as a
// user-documented notation.
func (s Spec) Canonical() string {
	return fmt.Sprintf("%x/%x", s.Addr[:], s.Mask[:])
}

// ParseCanonical parses the form produced by Canonical.
func ParseCanonical(s string) (Spec, error) {
	var addrHex, maskHex string
	n, err := fmt.Sscanf(s, "%32s/%32s", &addrHex, &maskHex)
	if n != 2 || err != nil {
		return Spec{}, fmt.Errorf("malformed canonical spec %q", s)
	}
	var out Spec
	if _, err := fmt.Sscanf(addrHex, "%x", (*bigHex)(&out.Addr)); err != nil {
		return Spec{}, err
	}
	if _, err := fmt.Sscanf(maskHex, "%x", (*bigHex)(&out.Mask)); err != nil {
		return Spec{}, err
	}
	return out, nil
}

// bigHex adapts a [16]byte to fmt.Scanner for hex decoding of a
// fixed-width 32-digit string.
type bigHex [16]byte

func (b *bigHex) Scan(state fmt.ScanState, verb rune) error {
	tok, err := state.Token(false, func(r rune) bool {
		return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
	})
	if err != nil {
		return err
	}
	if len(tok) != 32 {
		return fmt.Errorf("expected 32 hex digits, got %d", len(tok))
	}
	for i := 0; i < 16; i++ {
		var v byte
		if _, err := fmt.Sscanf(string(tok[2*i:2*i+2]), "%x", &v); err != nil {
			return err
		}
		b[i] = v
	}
	return nil
}
