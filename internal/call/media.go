package call

import (
	"context"

	"github.com/pion/webrtc/v4"

	"github.com/lumora-app/lumora/internal/envelope"
	"github.com/lumora-app/lumora/internal/media"
)

// Media is the slice of the media layer a call session drives.
// *media.Session implements it.
type Media interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer(remoteOffer webrtc.SessionDescription) (webrtc.SessionDescription, error)
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddRemoteCandidate(c webrtc.ICECandidateInit) error
	SetAudioEnabled(on bool) bool
	SetVideoEnabled(on bool) bool
	Close()
}

// MediaFactory acquires local capture devices and builds the Media session
// for one call. It runs once per call, only after the local user committed
// to it (originate or accept), and may block on device acquisition.
type MediaFactory func(wantsVideo bool, onRemoteStream func(*media.RemoteStream), onLocalCandidate func(webrtc.ICECandidateInit)) (Media, error)

// NewMediaFactory returns the production factory: mediadevices capture plus
// a pion peer connection configured from cfg.
func NewMediaFactory(cfg media.Config) MediaFactory {
	return func(wantsVideo bool, onRemoteStream func(*media.RemoteStream), onLocalCandidate func(webrtc.ICECandidateInit)) (Media, error) {
		local, err := media.Capture(wantsVideo)
		if err != nil {
			return nil, err
		}
		s, err := media.NewSession(cfg, local, onRemoteStream, onLocalCandidate)
		if err != nil {
			local.Close()
			return nil, err
		}
		return s, nil
	}
}

// Signal is the outbound signaling surface a session needs. The manager
// provides one scoped to the session's conversation and local peer ID.
type Signal interface {
	Send(ctx context.Context, env envelope.Envelope) error
}
