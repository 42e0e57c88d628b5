package audio

import (
	"bytes"
	"encoding/binary"
)

const (
	pcmFormatTag   = 1
	bytesPerSample = 2
	bitsPerSample  = 16
)

type wavFormat struct{}

func (wavFormat) MIME() string      { return MIMEWav }
func (wavFormat) Extension() string { return "wav" }

func (wavFormat) Supports(p Params) bool {
	return p.SampleRate > 0 && p.Channels > 0 && p.Channels <= 2
}

func (wavFormat) Encode(chunks [][]byte, p Params) ([]byte, error) {
	size := 0
	for _, c := range chunks {
		size += len(c)
	}
	var buf bytes.Buffer
	buf.Grow(44 + size)
	byteRate := p.SampleRate * p.Channels * bytesPerSample

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+size))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(pcmFormatTag))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(p.Channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(p.SampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(p.Channels*bytesPerSample))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(size))
	for _, c := range chunks {
		buf.Write(c)
	}
	return buf.Bytes(), nil
}
