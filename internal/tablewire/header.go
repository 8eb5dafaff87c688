// Package tablewire frames stored code tables with a fixed binary header.
package tablewire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

// Version is the only header layout understood by Unframe.
const Version uint8 = 1

type Header struct {
	Version    uint8
	KindID     uint8  // position of the code kind in the registry
	DataBits   uint16
	ParityBits uint16
	Flags      uint16 // reserved
	PayloadLen uint32
	CRC32      uint32 // IEEE checksum of the payload
}

const HeaderLen = 1 + 1 + 2 + 2 + 2 + 4 + 4

var (
	ErrShort    = errors.New("tablewire: record shorter than header")
	ErrVersion  = errors.New("tablewire: unsupported version")
	ErrLength   = errors.New("tablewire: payload length mismatch")
	ErrChecksum = errors.New("tablewire: payload checksum mismatch")
)

func (h *Header) MarshalBinary(b []byte) []byte {
	if len(b) < HeaderLen {
		b = make([]byte, HeaderLen)
	}
	b[0] = h.Version
	b[1] = h.KindID
	binary.LittleEndian.PutUint16(b[2:4], h.DataBits)
	binary.LittleEndian.PutUint16(b[4:6], h.ParityBits)
	binary.LittleEndian.PutUint16(b[6:8], h.Flags)
	binary.LittleEndian.PutUint32(b[8:12], h.PayloadLen)
	binary.LittleEndian.PutUint32(b[12:16], h.CRC32)
	return b[:HeaderLen]
}

func (h *Header) UnmarshalBinary(b []byte) bool {
	if len(b) < HeaderLen {
		return false
	}
	h.Version = b[0]
	h.KindID = b[1]
	h.DataBits = binary.LittleEndian.Uint16(b[2:4])
	h.ParityBits = binary.LittleEndian.Uint16(b[4:6])
	h.Flags = binary.LittleEndian.Uint16(b[6:8])
	h.PayloadLen = binary.LittleEndian.Uint32(b[8:12])
	h.CRC32 = binary.LittleEndian.Uint32(b[12:16])
	return true
}

// Frame prepends a header describing payload. Version, PayloadLen and CRC32
// are filled in from the payload.
func Frame(h Header, payload []byte) []byte {
	h.Version = Version
	h.PayloadLen = uint32(len(payload))
	h.CRC32 = crc32.ChecksumIEEE(payload)
	out := make([]byte, HeaderLen+len(payload))
	h.MarshalBinary(out)
	copy(out[HeaderLen:], payload)
	return out
}

// Unframe validates a record and returns its header and payload.
func Unframe(rec []byte) (Header, []byte, error) {
	var h Header
	if !h.UnmarshalBinary(rec) {
		return h, nil, ErrShort
	}
	if h.Version != Version {
		return h, nil, fmt.Errorf("%w: %d", ErrVersion, h.Version)
	}
	payload := rec[HeaderLen:]
	if int(h.PayloadLen) != len(payload) {
		return h, nil, fmt.Errorf("%w: header says %d, have %d", ErrLength, h.PayloadLen, len(payload))
	}
	if crc32.ChecksumIEEE(payload) != h.CRC32 {
		return h, nil, ErrChecksum
	}
	return h, payload, nil
}
