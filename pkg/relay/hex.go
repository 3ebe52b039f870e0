package relay

import (
	"encoding/hex"
	"encoding/json"
	"strings"
)

// HexBytes marshals to and from 0x-prefixed hex, the relay's wire form for
// byte strings.
type HexBytes []byte

// MarshalJSON encodes as "0x…".
func (h HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal("0x" + hex.EncodeToString(h))
}

// UnmarshalJSON accepts "0x…" or bare hex; empty strings decode to nil.
func (h *HexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		*h = nil
		return nil
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	*h = decoded
	return nil
}

// String returns the 0x-prefixed hex form.
func (h HexBytes) String() string {
	return "0x" + hex.EncodeToString(h)
}
