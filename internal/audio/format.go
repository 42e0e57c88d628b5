package audio

import (
	"errors"
	"strings"
)

// ErrNoSupportedFormat is returned by Negotiate when no preferred format can
// encode the device stream.
var ErrNoSupportedFormat = errors.New("audio: no supported recording format")

// Format is a container encoding an answer is uploaded in.
type Format interface {
	MIME() string
	Extension() string
	Supports(p Params) bool
	// Encode assembles PCM chunks into one payload. An empty chunk list
	// still yields a valid, header-only payload.
	Encode(chunks [][]byte, p Params) ([]byte, error)
}

var registry = map[string]Format{
	MIMEWav:  wavFormat{},
	MIMEUlaw: auFormat{alaw: false},
	MIMEAlaw: auFormat{alaw: true},
}

const (
	MIMEWav  = "audio/wav"
	MIMEUlaw = "audio/basic"
	MIMEAlaw = "audio/x-alaw-basic"
)

// DefaultPreference is tried in order when none is configured.
var DefaultPreference = []string{MIMEWav, MIMEUlaw, MIMEAlaw}

// Lookup returns the registered format for a MIME type, ignoring parameters
// such as "; codecs=...".
func Lookup(mime string) (Format, bool) {
	base, _, _ := strings.Cut(mime, ";")
	f, ok := registry[strings.ToLower(strings.TrimSpace(base))]
	return f, ok
}

// Negotiate walks preferred and returns the first format able to encode p.
func Negotiate(preferred []string, p Params) (Format, error) {
	if len(preferred) == 0 {
		preferred = DefaultPreference
	}
	for _, mime := range preferred {
		if f, ok := Lookup(mime); ok && f.Supports(p) {
			return f, nil
		}
	}
	return nil, ErrNoSupportedFormat
}
