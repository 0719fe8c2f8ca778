// Package media owns local capture and the peer connection for one call:
// microphone/camera acquisition, offer/answer creation, candidate handling,
// track mute toggles, and teardown.
package media

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"

	"github.com/lumora-app/lumora/internal/util"
)

// ErrDeviceUnavailable reports that microphone or camera capture was denied
// or that no usable device is present.
var ErrDeviceUnavailable = errors.New("media: capture device unavailable")

// ErrNoSTUNServers reports an empty connectivity configuration.
var ErrNoSTUNServers = errors.New("media: at least one STUN server is required")

// Config is the connectivity configuration for a Session. STUN only — no
// TURN relay; peers that both sit behind symmetric NATs may fail to
// connect, which is accepted.
type Config struct {
	STUNServers []string
}

// attachment is one local track bound to its RTP sender. enabled mirrors
// whether the sender currently carries the track.
type attachment struct {
	track   *Track
	sender  *webrtc.RTPSender
	enabled bool
}

// Session wraps a single PeerConnection plus the local capture stream,
// exposing the negotiation primitives the call state machine drives.
type Session struct {
	pc    *webrtc.PeerConnection
	local *LocalStream

	mu          sync.Mutex
	attachments map[webrtc.RTPCodecType]*attachment
	remoteSet   bool
	closed      bool
}

// NewSession creates a PeerConnection configured with cfg's STUN servers,
// attaches every track of local (which may be nil for receive-only), and
// wires the two event callbacks. onRemoteStream fires once, on the first
// inbound track, with a stream that accumulates all remote tracks.
// onLocalCandidate fires once per locally discovered ICE candidate.
func NewSession(cfg Config, local *LocalStream, onRemoteStream func(*RemoteStream), onLocalCandidate func(webrtc.ICECandidateInit)) (*Session, error) {
	if len(cfg.STUNServers) == 0 {
		return nil, ErrNoSTUNServers
	}

	engine := &webrtc.MediaEngine{}
	if local != nil && local.configure != nil {
		local.configure(engine)
	} else if err := engine.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(engine, registry); err != nil {
		return nil, err
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(engine),
		webrtc.WithInterceptorRegistry(registry),
	)

	pc, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: cfg.STUNServers},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	s := &Session{
		pc:          pc,
		local:       local,
		attachments: make(map[webrtc.RTPCodecType]*attachment),
	}

	remote := &RemoteStream{}
	var remoteOnce sync.Once
	pc.OnTrack(func(t *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		util.LogDebug("media: remote track %s (%s)", t.ID(), t.Kind())
		remote.add(t)
		if onRemoteStream != nil {
			remoteOnce.Do(func() { onRemoteStream(remote) })
		}
	})

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		// nil marks the end of gathering.
		if c == nil || onLocalCandidate == nil {
			return
		}
		onLocalCandidate(c.ToJSON())
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		util.LogDebug("media: peer connection state %s", state)
	})

	if local != nil {
		for _, t := range local.Tracks() {
			sender, err := pc.AddTrack(t.Local)
			if err != nil {
				s.Close()
				return nil, fmt.Errorf("attach %s track: %w", t.Kind, err)
			}
			s.attachments[t.Kind] = &attachment{track: t, sender: sender, enabled: true}
		}
	}

	// Recvonly transceivers for kinds without a local track keep valid
	// m-lines in the SDP so the remote side can still send its media.
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		if _, ok := s.attachments[kind]; ok {
			continue
		}
		if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			s.Close()
			return nil, fmt.Errorf("add recvonly %s transceiver: %w", kind, err)
		}
	}

	return s, nil
}

// CreateOffer generates an SDP offer and sets it as the local description.
func (s *Session) CreateOffer() (webrtc.SessionDescription, error) {
	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("create offer: %w", err)
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("set local offer: %w", err)
	}
	return offer, nil
}

// CreateAnswer applies the remote offer, generates an answer, and sets it
// as the local description.
func (s *Session) CreateAnswer(remoteOffer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if err := s.pc.SetRemoteDescription(remoteOffer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("apply remote offer: %w", err)
	}
	s.mu.Lock()
	s.remoteSet = true
	s.mu.Unlock()

	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("create answer: %w", err)
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("set local answer: %w", err)
	}
	return answer, nil
}

// SetRemoteDescription applies the remote answer on the caller side.
func (s *Session) SetRemoteDescription(desc webrtc.SessionDescription) error {
	if err := s.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("apply remote description: %w", err)
	}
	s.mu.Lock()
	s.remoteSet = true
	s.mu.Unlock()
	return nil
}

// AddRemoteCandidate applies a remote ICE candidate. A candidate arriving
// before the remote description is logged and dropped — buffering such
// candidates is the call session's job.
func (s *Session) AddRemoteCandidate(c webrtc.ICECandidateInit) error {
	s.mu.Lock()
	set := s.remoteSet
	s.mu.Unlock()
	if !set {
		util.LogWarning("media: dropping candidate received before remote description")
		return nil
	}
	if err := s.pc.AddICECandidate(c); err != nil {
		return fmt.Errorf("add candidate: %w", err)
	}
	return nil
}

// SetAudioEnabled toggles the local audio track and returns the effective
// state. With no audio track it is a no-op returning false.
func (s *Session) SetAudioEnabled(on bool) bool {
	return s.setEnabled(webrtc.RTPCodecTypeAudio, on)
}

// SetVideoEnabled toggles the local video track and returns the effective
// state. With no video track it is a no-op returning false.
func (s *Session) SetVideoEnabled(on bool) bool {
	return s.setEnabled(webrtc.RTPCodecTypeVideo, on)
}

// setEnabled swaps the sender's track in or out. Replacing with nil stops
// RTP for that kind without renegotiation.
func (s *Session) setEnabled(kind webrtc.RTPCodecType, on bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.attachments[kind]
	if !ok || s.closed {
		return false
	}
	if a.enabled == on {
		return on
	}

	var err error
	if on {
		err = a.sender.ReplaceTrack(a.track.Local)
	} else {
		err = a.sender.ReplaceTrack(nil)
	}
	if err != nil {
		util.LogWarning("media: toggle %s failed: %v", kind, err)
		return a.enabled
	}
	a.enabled = on
	return on
}

// Close stops all local tracks (releasing camera and microphone) and closes
// the peer connection. Idempotent, and safe on a session whose negotiation
// never completed.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if s.local != nil {
		s.local.Close()
	}
	if err := s.pc.Close(); err != nil {
		util.LogWarning("media: close peer connection: %v", err)
	}
}
