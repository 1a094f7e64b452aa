// Package link carries speech between the laptop running the assistant and
// the Pi that plays it, as short text frames over a websocket.
package link

import (
	"errors"
	"strings"
)

// Kind is the prefix of a frame.
type Kind string

const (
	KindName Kind = "NAME"
	KindTTS  Kind = "TTS"
	KindExit Kind = "EXIT"
)

// ErrUnknownFrame is returned by Decode for frames without a known prefix.
var ErrUnknownFrame = errors.New("link: unknown frame")

// Frame is one message on the link.
type Frame struct {
	Kind    Kind
	Payload string
}

func Name(who string) Frame    { return Frame{Kind: KindName, Payload: who} }
func Speech(text string) Frame { return Frame{Kind: KindTTS, Payload: text} }
func Exit() Frame              { return Frame{Kind: KindExit} }

// Encode renders f as "KIND:payload".
func Encode(f Frame) string {
	return string(f.Kind) + ":" + f.Payload
}

// Decode parses a raw frame. TTS payloads drop repeated leading "TTS:" markers
// left over from coalesced writes and are trimmed; markers inside the text
// are kept.
func Decode(raw string) (Frame, error) {
	kind, payload, ok := strings.Cut(raw, ":")
	if !ok {
		return Frame{}, ErrUnknownFrame
	}

	switch Kind(kind) {
	case KindName:
		return Frame{Kind: KindName, Payload: strings.TrimSpace(payload)}, nil
	case KindTTS:
		marker := string(KindTTS) + ":"
		payload = strings.TrimSpace(payload)
		for strings.HasPrefix(payload, marker) {
			payload = strings.TrimSpace(strings.TrimPrefix(payload, marker))
		}
		return Frame{Kind: KindTTS, Payload: payload}, nil
	case KindExit:
		return Frame{Kind: KindExit}, nil
	default:
		return Frame{}, ErrUnknownFrame
	}
}
