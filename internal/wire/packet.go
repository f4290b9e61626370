package wire

import (
	"encoding/binary"
	"strings"

	"github.com/pkg/errors"
)

// Wire sizes. MTU is sized to fit inside a minimum Ethernet frame:
// 1500 (Ethernet MTU) - 20 (IP header) - 8 (UDP header).
const (
	EtherMTU = 1500
	IPHeaderLen  = 20
	UDPHeaderLen = 8

	MTU = EtherMTU - IPHeaderLen - UDPHeaderLen

	FlagsLen = 1
	SeqLen   = 8
	HeaderLen = FlagsLen + SeqLen
	BodyLen   = MTU - HeaderLen
	bodyStart = HeaderLen
)

// CR and LF are the bytes that terminate a filename carried in a packet
// body.
const (
	CR byte = 13
	LF byte = 10
)

// Packet is one fixed-size frame of the wire protocol: a flags byte, a
// big-endian sequence number (a byte offset, not a packet counter), and an
// opaque 1463-byte body.
type Packet [MTU]byte

// Flags returns the packet's mode byte.
func (p *Packet) Flags() Flag { return Flag(p[0]) }

// Seq decodes the big-endian sequence number from bytes [1:9].
func (p *Packet) Seq() uint64 {
	return binary.BigEndian.Uint64(p[FlagsLen : FlagsLen+SeqLen])
}

// Body returns a copy of the packet's body bytes [9:MTU].
func (p *Packet) Body() [BodyLen]byte {
	var b [BodyLen]byte
	copy(b[:], p[bodyStart:])
	return b
}

// CreateHeader builds a packet with the given flag and sequence number and
// a zeroed body; used for ACKs and control frames.
func CreateHeader(flag Flag, seq uint64) Packet {
	var pkt Packet
	pkt[0] = byte(flag)
	binary.BigEndian.PutUint64(pkt[FlagsLen:FlagsLen+SeqLen], seq)
	return pkt
}

// CreatePacket builds a packet with the given flag, sequence number, and
// body. Pure; performs no I/O.
func CreatePacket(flag Flag, seq uint64, body [BodyLen]byte) Packet {
	pkt := CreateHeader(flag, seq)
	copy(pkt[bodyStart:], body[:])
	return pkt
}

// CalculateIndex computes the window slot for a sequence number relative to
// the window's current start. The caller must ensure seq >= start.
func CalculateIndex(seq, start uint64) int {
	return int((seq - start) / BodyLen)
}

// FilenameAsBody writes name's UTF-8 bytes into a body buffer terminated by
// a literal CR LF pair. Fails if name is longer than BodyLen-2 bytes.
func FilenameAsBody(name string) ([BodyLen]byte, error) {
	var body [BodyLen]byte
	b := []byte(name)
	if len(b) > BodyLen-2 {
		return body, errors.Errorf("filename exceeds %d bytes, cannot fit into packet body", BodyLen-2)
	}
	copy(body[:], b)
	body[len(b)] = CR
	body[len(b)+1] = LF
	return body, nil
}

// FilenameFromBody recovers the filename written by FilenameAsBody by
// scanning for the first CR byte. There is no protection against a filename
// that itself contains a CR; the result is silently truncated at the first
// occurrence, matching the wire format's documented limitation.
func FilenameFromBody(body [BodyLen]byte) (string, error) {
	i := strings.IndexByte(string(body[:]), CR)
	if i < 0 {
		return "", errors.New("cannot determine filename: no CR terminator in body")
	}
	return string(body[:i]), nil
}
