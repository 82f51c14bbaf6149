// Package frame implements the wire framing for Solari glasses audio
// streams: the markers that delimit stream boundaries, the per-chunk
// headers, and the chunker that splits an audio buffer into
// MTU-sized transmission units.
//
// Three wire profiles exist. ProfileText and ProfileTextLength match the
// two sentinel dialects spoken by deployed glasses firmware and must stay
// byte-compatible with it. ProfileBinary is the versioned tag+length
// framing recommended for new deployments; it removes the text profiles'
// payload/sentinel ambiguity.
package frame

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
)

// Kind classifies a decoded frame.
type Kind int

const (
	// KindUnknown marks bytes that match no marker. Receivers treat these
	// as raw continuation data belonging to the active stream, never as
	// an error, so a sentinel fragmented across writes does not poison
	// the stream.
	KindUnknown Kind = iota
	// KindStart opens a new inbound stream.
	KindStart
	// KindData carries a chunk of stream payload.
	KindData
	// KindEnd closes the active inbound stream.
	KindEnd
	// KindCommand carries a short out-of-band control message.
	KindCommand
)

func (k Kind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindData:
		return "data"
	case KindEnd:
		return "end"
	case KindCommand:
		return "command"
	default:
		return "unknown"
	}
}

// Frame is the result of decoding a single transport write.
type Frame struct {
	Kind    Kind
	Payload []byte
	// Total is the stream byte count embedded in a Start marker, or -1
	// when the profile carries none. It is a diagnostic hint for the
	// receiver, not a framing boundary.
	Total int
	// Version is the protocol version byte (ProfileBinary Start frames
	// only, zero otherwise).
	Version byte
}

// Codec encodes and decodes frames for one wire profile.
type Codec interface {
	// EncodeStart produces the stream-start marker. total is the byte
	// count of the payload that will follow; profiles without an
	// embedded length ignore it.
	EncodeStart(total int) []byte
	// EncodeData wraps one chunk payload with its per-chunk header.
	EncodeData(payload []byte) []byte
	// EncodeEnd produces the stream-end marker.
	EncodeEnd() []byte
	// EncodeCommand frames a short control message sent outside the
	// audio stream.
	EncodeCommand(text []byte) []byte
	// Overhead is the per-data-chunk header size in bytes. Chunk
	// payloads must not exceed unitSize-Overhead().
	Overhead() int
	// Decode classifies one received write. Bytes matching no marker
	// come back as KindUnknown with the input as payload.
	Decode(p []byte) Frame
}

// Profile names a wire framing dialect.
type Profile string

const (
	// ProfileText is firmware dialect A: "AUDIO_START" / "AUDIO_DATA"
	// prefix on every chunk / "AUDIO_END".
	ProfileText Profile = "text"
	// ProfileTextLength is firmware dialect B: "S_START:<length>", raw
	// data chunks, "S_END".
	ProfileTextLength Profile = "text-length"
	// ProfileBinary is the redesigned framing: 1-byte kind, big-endian
	// u16 length, payload. Start payloads carry a version byte and the
	// total stream length.
	ProfileBinary Profile = "binary"
)

// New returns the codec for the named profile.
func New(p Profile) (Codec, error) {
	switch p {
	case ProfileText:
		return textCodec{}, nil
	case ProfileTextLength:
		return textLengthCodec{}, nil
	case ProfileBinary:
		return binaryCodec{}, nil
	default:
		return nil, fmt.Errorf("frame: unknown profile %q", string(p))
	}
}

// Text sentinels (ASCII, case-sensitive). These are firmware constants;
// changing them breaks deployed glasses.
const (
	textStart = "AUDIO_START"
	textData  = "AUDIO_DATA"
	textEnd   = "AUDIO_END"

	textLenStart = "S_START:"
	textLenEnd   = "S_END"
)

// textCodec implements ProfileText. Every marker and data header is a
// plain ASCII sentinel mixed into the binary stream, so a payload that
// happens to begin with a sentinel byte sequence is indistinguishable
// from a real marker. That ambiguity is kept for firmware compatibility.
type textCodec struct{}

func (textCodec) EncodeStart(int) []byte { return []byte(textStart) }

func (textCodec) EncodeData(payload []byte) []byte {
	out := make([]byte, 0, len(textData)+len(payload))
	out = append(out, textData...)
	return append(out, payload...)
}

func (textCodec) EncodeEnd() []byte { return []byte(textEnd) }

// Commands are unframed raw ASCII in the text dialects; the glasses
// route them by characteristic, not by marker.
func (textCodec) EncodeCommand(text []byte) []byte { return text }

func (textCodec) Overhead() int { return len(textData) }

func (textCodec) Decode(p []byte) Frame {
	switch {
	case bytes.HasPrefix(p, []byte(textStart)):
		return Frame{Kind: KindStart, Payload: p[len(textStart):], Total: -1}
	case bytes.HasPrefix(p, []byte(textData)):
		return Frame{Kind: KindData, Payload: p[len(textData):], Total: -1}
	case bytes.HasPrefix(p, []byte(textEnd)):
		return Frame{Kind: KindEnd, Payload: p[len(textEnd):], Total: -1}
	default:
		return Frame{Kind: KindUnknown, Payload: p, Total: -1}
	}
}

// textLengthCodec implements ProfileTextLength: a start marker with an
// embedded decimal payload length, raw data chunks with zero per-chunk
// overhead, and a short end marker.
type textLengthCodec struct{}

func (textLengthCodec) EncodeStart(total int) []byte {
	return []byte(textLenStart + strconv.Itoa(total))
}

func (textLengthCodec) EncodeData(payload []byte) []byte { return payload }

func (textLengthCodec) EncodeEnd() []byte { return []byte(textLenEnd) }

func (textLengthCodec) EncodeCommand(text []byte) []byte { return text }

func (textLengthCodec) Overhead() int { return 0 }

func (textLengthCodec) Decode(p []byte) Frame {
	// "S_START:" must be checked before "S_END"; both share the "S_"
	// prefix but not each other's.
	if bytes.HasPrefix(p, []byte(textLenStart)) {
		rest := p[len(textLenStart):]
		i := 0
		for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
			i++
		}
		total := -1
		if i > 0 {
			if n, err := strconv.Atoi(string(rest[:i])); err == nil {
				total = n
			}
		}
		return Frame{Kind: KindStart, Payload: rest[i:], Total: total}
	}
	if bytes.HasPrefix(p, []byte(textLenEnd)) {
		return Frame{Kind: KindEnd, Payload: p[len(textLenEnd):], Total: -1}
	}
	return Frame{Kind: KindUnknown, Payload: p, Total: -1}
}

// Binary profile constants.
const (
	binKindStart   = 0x01
	binKindData    = 0x02
	binKindEnd     = 0x03
	binKindCommand = 0x04

	// BinaryVersion is the protocol version stamped into every
	// ProfileBinary Start frame.
	BinaryVersion = 0x01

	// binHeaderLen is kind (1) + big-endian u16 payload length (2).
	binHeaderLen = 3
)

// binaryCodec implements ProfileBinary. A frame is
// [kind:1][length:u16 BE][payload]; a Start payload is
// [version:1][total:u32 BE]. Length must match the write exactly, so a
// data payload can never masquerade as a marker.
type binaryCodec struct{}

func binFrame(kind byte, payload []byte) []byte {
	out := make([]byte, binHeaderLen, binHeaderLen+len(payload))
	out[0] = kind
	binary.BigEndian.PutUint16(out[1:3], uint16(len(payload)))
	return append(out, payload...)
}

func (binaryCodec) EncodeStart(total int) []byte {
	payload := make([]byte, 5)
	payload[0] = BinaryVersion
	binary.BigEndian.PutUint32(payload[1:5], uint32(total))
	return binFrame(binKindStart, payload)
}

func (binaryCodec) EncodeData(payload []byte) []byte {
	return binFrame(binKindData, payload)
}

func (binaryCodec) EncodeEnd() []byte { return binFrame(binKindEnd, nil) }

func (binaryCodec) EncodeCommand(text []byte) []byte {
	return binFrame(binKindCommand, text)
}

func (binaryCodec) Overhead() int { return binHeaderLen }

func (binaryCodec) Decode(p []byte) Frame {
	if len(p) < binHeaderLen {
		return Frame{Kind: KindUnknown, Payload: p, Total: -1}
	}
	kind := p[0]
	length := int(binary.BigEndian.Uint16(p[1:3]))
	if length != len(p)-binHeaderLen {
		return Frame{Kind: KindUnknown, Payload: p, Total: -1}
	}
	payload := p[binHeaderLen:]
	switch kind {
	case binKindStart:
		f := Frame{Kind: KindStart, Total: -1}
		if len(payload) >= 5 {
			f.Version = payload[0]
			f.Total = int(binary.BigEndian.Uint32(payload[1:5]))
			f.Payload = payload[5:]
		} else {
			f.Payload = payload
		}
		return f
	case binKindData:
		return Frame{Kind: KindData, Payload: payload, Total: -1}
	case binKindEnd:
		return Frame{Kind: KindEnd, Payload: payload, Total: -1}
	case binKindCommand:
		return Frame{Kind: KindCommand, Payload: payload, Total: -1}
	default:
		return Frame{Kind: KindUnknown, Payload: p, Total: -1}
	}
}
