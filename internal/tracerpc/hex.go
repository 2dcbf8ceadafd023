package tracerpc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// hexBig unmarshals a "0x..."-prefixed JSON string into a *big.Int,
// matching the quantity encoding every debug_trace* tracer uses for value
// fields.
type hexBig big.Int

func (h *hexBig) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" || s == "0x" {
		*h = hexBig(*big.NewInt(0))
		return nil
	}
	s = strings.TrimPrefix(s, "0x")
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return fmt.Errorf("tracerpc: invalid hex quantity %q", s)
	}
	*h = hexBig(*n)
	return nil
}

// hexBytes unmarshals a "0x..."-prefixed JSON string into raw bytes,
// matching the byte-array encoding debug_trace* uses for input/output.
type hexBytes []byte

func (h *hexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 != 0 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("tracerpc: invalid hex bytes %q: %w", s, err)
	}
	*h = b
	return nil
}
