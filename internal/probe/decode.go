package probe

import (
	"encoding/binary"
	"fmt"
)

// decodeRegisters converts big-endian register bytes into words.
func decodeRegisters(raw []byte, quantity int) ([]uint16, error) {
	if len(raw) != quantity*2 {
		return nil, fmt.Errorf("register payload has %d bytes, expected %d", len(raw), quantity*2)
	}
	values := make([]uint16, quantity)
	for i := range values {
		values[i] = binary.BigEndian.Uint16(raw[i*2:])
	}
	return values, nil
}

// decodeBits unpacks LSB-first bit bytes into 0/1 values. Padding bits in
// the final byte are dropped.
func decodeBits(raw []byte, quantity int) ([]uint16, error) {
	if len(raw)*8 < quantity {
		return nil, fmt.Errorf("bit payload has %d bytes, expected %d", len(raw), (quantity+7)/8)
	}
	values := make([]uint16, quantity)
	for i := range values {
		values[i] = uint16(raw[i/8] >> (uint(i) % 8) & 1)
	}
	return values, nil
}
