// Package frame implements the Fröling serial wire format: a fixed
// block-start marker, a big-endian length of the command+payload portion,
// the bytes themselves and a trailing one-byte checksum.
package frame

import (
	"bytes"
	"encoding/binary"
)

// Frame layout:
//
//	02 FD       - block start
//	LL LL       - big-endian length of cmd+payload
//	CC          - command byte
//	.. .. ..    - payload (0..n bytes)
//	XX          - checksum over all preceding bytes
const (
	// HeaderSize is the fixed prefix read before the variable part:
	// block start (2) + length field (2).
	HeaderSize = 4

	// MaxMessageSize is the largest cmd+payload the length field can declare.
	MaxMessageSize = 0xFFFF
)

var blockStart = []byte{0x02, 0xfd}

// Checksum folds every byte b of data as crc ^= b ^ (2*b mod 256).
// The algorithm must match the boiler controller's own computation;
// anything else is rejected on the controller side.
func Checksum(data []byte) byte {
	var crc byte
	for _, b := range data {
		crc = crc ^ b ^ (b << 1)
	}
	return crc
}

// Encode builds a complete wire frame for the given command and payload.
func Encode(cmd byte, payload []byte) ([]byte, error) {
	msgLen := 1 + len(payload)
	if msgLen > MaxMessageSize {
		return nil, &PayloadTooLargeError{Size: len(payload), Max: MaxMessageSize - 1}
	}
	fr := make([]byte, 0, HeaderSize+msgLen+1)
	fr = append(fr, blockStart...)
	fr = binary.BigEndian.AppendUint16(fr, uint16(msgLen))
	fr = append(fr, cmd)
	fr = append(fr, payload...)
	fr = append(fr, Checksum(fr))
	return fr, nil
}

// BodyLen validates the block-start marker of a frame header and returns
// the number of bytes that follow it on the wire: the declared cmd+payload
// length plus the checksum byte. Used by the serial channel to size the
// second read of a reply.
func BodyLen(header []byte) (int, error) {
	if len(header) < HeaderSize || !bytes.HasPrefix(header, blockStart) {
		return 0, &WrongResponseHeaderError{Received: clone(header)}
	}
	return int(binary.BigEndian.Uint16(header[2:HeaderSize])) + 1, nil
}

// Decode validates a complete raw frame and returns the embedded command
// and payload. The input is never mutated and the returned payload does not
// alias it. Checksum verification only runs when validateCRC is set; some
// controllers (S4 Turbo) are known to emit wrong checksums on occasion.
func Decode(raw []byte, validateCRC bool) (byte, []byte, error) {
	if len(raw) < HeaderSize || !bytes.HasPrefix(raw, blockStart) {
		return 0, nil, &WrongResponseHeaderError{Received: clone(raw)}
	}
	declared := int(binary.BigEndian.Uint16(raw[2:HeaderSize]))
	actual := len(raw) - HeaderSize - 1
	if declared < 1 || declared != actual {
		return 0, nil, &FrameLengthError{Declared: declared, Actual: actual}
	}
	if validateCRC {
		want := Checksum(raw[:len(raw)-1])
		if got := raw[len(raw)-1]; got != want {
			return 0, nil, &ChecksumError{Expected: want, Actual: got}
		}
	}
	return raw[HeaderSize], clone(raw[HeaderSize+1 : len(raw)-1]), nil
}

func clone(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
