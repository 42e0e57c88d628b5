package audio

import (
	"bytes"
	"encoding/binary"

	"github.com/zaf/g711"
)

// Sun .au encodings.
const (
	auMagic        = 0x2e736e64
	auHeaderSize   = 24
	auEncodingUlaw = 1
	auEncodingAlaw = 27
)

// auFormat writes G.711 companded audio in a Sun .au container. G.711 is
// defined for 8 kHz mono only.
type auFormat struct {
	alaw bool
}

func (f auFormat) MIME() string {
	if f.alaw {
		return MIMEAlaw
	}
	return MIMEUlaw
}

func (auFormat) Extension() string { return "au" }

func (auFormat) Supports(p Params) bool {
	return p.SampleRate == 8000 && p.Channels == 1
}

func (f auFormat) Encode(chunks [][]byte, p Params) ([]byte, error) {
	var pcm []byte
	for _, c := range chunks {
		pcm = append(pcm, c...)
	}
	// g711 encoders expect whole samples.
	pcm = pcm[:len(pcm)&^1]
	var payload []byte
	encoding := uint32(auEncodingUlaw)
	if f.alaw {
		payload = g711.EncodeAlaw(pcm)
		encoding = auEncodingAlaw
	} else {
		payload = g711.EncodeUlaw(pcm)
	}

	var buf bytes.Buffer
	buf.Grow(auHeaderSize + len(payload))
	for _, v := range []uint32{auMagic, auHeaderSize, uint32(len(payload)), encoding, uint32(p.SampleRate), uint32(p.Channels)} {
		_ = binary.Write(&buf, binary.BigEndian, v)
	}
	buf.Write(payload)
	return buf.Bytes(), nil
}
