// Package envelope defines the signaling payloads carried inside ordinary
// chat message bodies, and the codec that tells them apart from chat text.
//
// The wire shape is the JSON the web client emits: a "type" tag plus
// type-specific fields. Anything that does not parse as a recognized
// envelope is chat content — Decode reports that with its second result,
// never with an error.
package envelope

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Wire values of the "type" tag.
const (
	typeOffer     = "call-offer"
	typeAnswer    = "call-answer"
	typeCandidate = "ice-candidate"
	typeEnd       = "call-end"
)

// Envelope is one signaling payload: Offer, Answer, IceCandidate or End.
type Envelope interface {
	envelope()
}

// Offer proposes a call. Video reports whether the caller wants a camera
// track in addition to audio.
type Offer struct {
	Description webrtc.SessionDescription
	Video       bool
}

// Answer completes the offer/answer exchange.
type Answer struct {
	Description webrtc.SessionDescription
}

// IceCandidate carries one discovered connectivity candidate, verbatim.
type IceCandidate struct {
	Candidate webrtc.ICECandidateInit
}

// End terminates the call. It has no payload.
type End struct{}

func (Offer) envelope()        {}
func (Answer) envelope()       {}
func (IceCandidate) envelope() {}
func (End) envelope()          {}

type offerWire struct {
	Type    string                    `json:"type"`
	Offer   webrtc.SessionDescription `json:"offer"`
	IsVideo bool                      `json:"isVideo"`
}

type answerWire struct {
	Type   string                    `json:"type"`
	Answer webrtc.SessionDescription `json:"answer"`
}

type candidateWire struct {
	Type      string                  `json:"type"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

type endWire struct {
	Type string `json:"type"`
}

// Encode serializes an envelope into a message body.
func Encode(env Envelope) (string, error) {
	var v any
	switch e := env.(type) {
	case Offer:
		v = offerWire{Type: typeOffer, Offer: e.Description, IsVideo: e.Video}
	case Answer:
		v = answerWire{Type: typeAnswer, Answer: e.Description}
	case IceCandidate:
		v = candidateWire{Type: typeCandidate, Candidate: e.Candidate}
	case End:
		v = endWire{Type: typeEnd}
	default:
		return "", fmt.Errorf("unknown envelope type %T", env)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Decode attempts to parse a message body as a signaling envelope. The
// second result is false when the body is not signaling — plain text,
// JSON without a recognized "type" tag, or JSON of the wrong shape. That
// is the expected case for regular chat messages, not a failure.
func Decode(body string) (Envelope, bool) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(body), &probe); err != nil {
		return nil, false
	}

	switch probe.Type {
	case typeOffer:
		var w offerWire
		if err := json.Unmarshal([]byte(body), &w); err != nil {
			return nil, false
		}
		return Offer{Description: w.Offer, Video: w.IsVideo}, true

	case typeAnswer:
		var w answerWire
		if err := json.Unmarshal([]byte(body), &w); err != nil {
			return nil, false
		}
		return Answer{Description: w.Answer}, true

	case typeCandidate:
		var w candidateWire
		if err := json.Unmarshal([]byte(body), &w); err != nil {
			return nil, false
		}
		return IceCandidate{Candidate: w.Candidate}, true

	case typeEnd:
		return End{}, true

	default:
		return nil, false
	}
}
