// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

/*
UDP Packet Structure (BigEndian)

|<---- 4 Bytes ---->|<------ 8 Bytes ------>|<-- 2 Bytes -->|<----- N * 4 Bytes ----->|
+-------------------+-----------------------+---------------+-------------------------+
|  Sequence Number  |       Timestamp       |   Magnitude   |       Magnitudes        |
|      (uint32)     |  (int64, ns epoch)    |     Count     |      (N * float32)      |
|                   |                       |     (uint16)  |                         |
+-------------------+-----------------------+---------------+-------------------------+
*/

// HeaderSize is the number of bytes before the magnitude payload.
const HeaderSize = 4 + 8 + 2

// MaxMagnitudes is the largest count the uint16 header field can carry.
const MaxMagnitudes = math.MaxUint16

// ErrShortPacket is returned when a datagram is smaller than its header
// claims.
var ErrShortPacket = errors.New("short packet")

// Packet is a decoded spectrum datagram.
type Packet struct {
	Seq        uint32
	Timestamp  int64
	Magnitudes []float32
}

// AppendPacket encodes one packet onto dst and returns the extended slice.
// Magnitudes beyond MaxMagnitudes are truncated.
func AppendPacket(dst []byte, seq uint32, timestamp int64, mags []float32) []byte {
	if len(mags) > MaxMagnitudes {
		mags = mags[:MaxMagnitudes]
	}
	dst = binary.BigEndian.AppendUint32(dst, seq)
	dst = binary.BigEndian.AppendUint64(dst, uint64(timestamp))
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(mags)))
	for _, m := range mags {
		dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(m))
	}
	return dst
}

// ParsePacket decodes a datagram produced by AppendPacket.
func ParsePacket(b []byte) (Packet, error) {
	if len(b) < HeaderSize {
		return Packet{}, fmt.Errorf("%w: %d bytes, header needs %d", ErrShortPacket, len(b), HeaderSize)
	}
	p := Packet{
		Seq:       binary.BigEndian.Uint32(b[0:4]),
		Timestamp: int64(binary.BigEndian.Uint64(b[4:12])),
	}
	count := int(binary.BigEndian.Uint16(b[12:14]))
	payload := b[HeaderSize:]
	if len(payload) < count*4 {
		return Packet{}, fmt.Errorf("%w: %d magnitudes declared, %d bytes present", ErrShortPacket, count, len(payload))
	}

	p.Magnitudes = make([]float32, count)
	for i := range count {
		p.Magnitudes[i] = math.Float32frombits(binary.BigEndian.Uint32(payload[i*4:]))
	}
	return p, nil
}
