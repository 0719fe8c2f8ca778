// Package call implements the per-conversation call lifecycle: originating
// and answering calls, routing signaling envelopes into WebRTC negotiation,
// buffering early ICE candidates, and tearing everything down exactly once.
package call

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/lumora-app/lumora/internal/envelope"
	"github.com/lumora-app/lumora/internal/media"
	"github.com/lumora-app/lumora/internal/util"
)

// State is a session's position in the call lifecycle. A conversation with
// no session at all is idle; a Session is created already moving out of it.
type State string

const (
	StateIdle           State = "idle"
	StateOriginating    State = "originating"
	StateAwaitingAnswer State = "awaiting-answer"
	StateRinging        State = "ringing"
	StateConnected      State = "connected"
	StateEnded          State = "ended"
)

// Role records which side of the call this session is.
type Role string

const (
	RoleCaller Role = "caller"
	RoleCallee Role = "callee"
)

// Session is one call, caller or callee side. All methods are safe for
// concurrent use; envelope handling runs on the manager's dispatch
// goroutine while Accept, Hangup and the toggles run on the caller's.
type Session struct {
	mgr            *Manager
	conversationID string
	localPeerID    string
	remotePeerID   string
	role           Role
	sig            Signal
	newMedia       MediaFactory

	mu            sync.Mutex
	state         State
	media         Media
	video         bool
	audioOn       bool
	videoOn       bool
	remoteOffer   *webrtc.SessionDescription
	remoteApplied bool
	pending       []webrtc.ICECandidateInit
	torndown      bool
}

func newSession(mgr *Manager, conversationID, remotePeerID string, role Role) *Session {
	return &Session{
		mgr:            mgr,
		conversationID: conversationID,
		localPeerID:    mgr.localPeerID,
		remotePeerID:   remotePeerID,
		role:           role,
		sig:            storeSignal{st: mgr.st, conversationID: conversationID, localPeerID: mgr.localPeerID},
		newMedia:       mgr.newMedia,
		state:          StateIdle,
	}
}

func (s *Session) ConversationID() string { return s.conversationID }
func (s *Session) Role() Role             { return s.role }

// RemotePeerID identifies the other side. On an originated call it may be
// empty until the first envelope arrives from the remote peer.
func (s *Session) RemotePeerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remotePeerID
}

// Video reports whether this call was requested with video.
func (s *Session) Video() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.video
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// originate drives the caller side up to the sent offer. Any failure tears
// the session down; an offer is only on the wire when this returns nil.
func (s *Session) originate(ctx context.Context, video bool) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrInvalidState
	}
	s.state = StateOriginating
	s.video = video
	s.mu.Unlock()
	s.notifyState(StateOriginating)

	m, err := s.newMedia(video, s.handleRemoteStream, s.handleLocalCandidate)
	if err != nil {
		// Nothing was offered yet, so the remote peer is not waiting:
		// end locally without a call-end envelope.
		s.shutdown(ctx, false)
		return err
	}
	if !s.attachMedia(m, StateOriginating) {
		return ErrCallEnded
	}

	offer, err := m.CreateOffer()
	if err != nil {
		s.shutdown(ctx, false)
		return err
	}
	if err := s.sig.Send(ctx, envelope.Offer{Description: offer, Video: video}); err != nil {
		s.shutdown(ctx, false)
		return &SignalingSendError{Err: err}
	}

	if !s.transition(StateAwaitingAnswer, StateOriginating) {
		return ErrCallEnded
	}
	return nil
}

// ring moves a freshly created callee session into Ringing, recording the
// remote offer for a later Accept.
func (s *Session) ring(offer envelope.Offer) {
	desc := offer.Description
	s.mu.Lock()
	s.remoteOffer = &desc
	s.video = offer.Video
	s.state = StateRinging
	s.mu.Unlock()
	s.notifyState(StateRinging)
}

// Accept answers a ringing call: acquire devices, apply the stored offer,
// send the answer. Device or negotiation failure rejects the call so the
// remote peer is not left ringing forever.
func (s *Session) Accept(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateRinging {
		s.mu.Unlock()
		return ErrInvalidState
	}
	offer := *s.remoteOffer
	video := s.video
	s.mu.Unlock()

	m, err := s.newMedia(video, s.handleRemoteStream, s.handleLocalCandidate)
	if err != nil {
		s.shutdown(ctx, true)
		return err
	}
	if !s.attachMedia(m, StateRinging) {
		return ErrCallEnded
	}

	answer, err := m.CreateAnswer(offer)
	if err != nil {
		// Malformed offer: negotiation cannot complete.
		util.LogWarning("call: remote offer rejected by media layer: %v", err)
		s.shutdown(ctx, true)
		return err
	}
	s.markRemoteApplied()

	if err := s.sig.Send(ctx, envelope.Answer{Description: answer}); err != nil {
		s.shutdown(ctx, true)
		return &SignalingSendError{Err: err}
	}

	if !s.transition(StateConnected, StateRinging) {
		return ErrCallEnded
	}
	return nil
}

// Reject declines a ringing call and notifies the remote peer.
func (s *Session) Reject(ctx context.Context) {
	s.shutdown(ctx, true)
}

// Hangup ends an active call and notifies the remote peer. Safe to call in
// any state; on an already ended session it is a no-op.
func (s *Session) Hangup(ctx context.Context) {
	s.shutdown(ctx, true)
}

// Close tears the session down as part of presentation teardown. The remote
// peer is notified only if it could still be waiting on us.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	st := s.state
	s.mu.Unlock()
	sendEnd := st == StateAwaitingAnswer || st == StateRinging || st == StateConnected
	s.shutdown(ctx, sendEnd)
}

// ToggleAudio flips the local microphone and returns the effective state.
// Outside Connected, or with no audio track, the result is always false.
func (s *Session) ToggleAudio() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected || s.media == nil {
		return false
	}
	s.audioOn = s.media.SetAudioEnabled(!s.audioOn)
	return s.audioOn
}

// ToggleVideo flips the local camera and returns the effective state.
func (s *Session) ToggleVideo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected || s.media == nil {
		return false
	}
	s.videoOn = s.media.SetVideoEnabled(!s.videoOn)
	return s.videoOn
}

// attachMedia installs the acquired media session unless the call ended
// while devices were being opened, in which case it is released.
func (s *Session) attachMedia(m Media, want State) bool {
	s.mu.Lock()
	if s.state != want {
		s.mu.Unlock()
		m.Close()
		return false
	}
	s.media = m
	s.audioOn = true
	s.videoOn = s.video
	s.mu.Unlock()
	return true
}

// handleEnvelope routes one remote signaling envelope into the session.
// Runs on the manager's dispatch goroutine, so envelopes for a conversation
// are handled strictly in arrival order.
func (s *Session) handleEnvelope(env envelope.Envelope, senderID string) {
	s.mu.Lock()
	if s.remotePeerID == "" {
		s.remotePeerID = senderID
	}
	s.mu.Unlock()

	switch e := env.(type) {
	case envelope.Offer:
		// A renegotiation or glare offer during an active call. Not
		// supported: the established call stands.
		util.LogWarning("call: ignoring offer from %s during active call", senderID)
	case envelope.Answer:
		s.handleAnswer(e)
	case envelope.IceCandidate:
		s.handleCandidate(e)
	case envelope.End:
		util.LogInfo("call: remote peer %s ended the call", senderID)
		s.shutdown(context.Background(), false)
	}
}

func (s *Session) handleAnswer(e envelope.Answer) {
	s.mu.Lock()
	if s.state != StateAwaitingAnswer {
		s.mu.Unlock()
		util.LogDebug("call: ignoring answer in state %s", s.state)
		return
	}
	m := s.media
	s.mu.Unlock()

	if err := m.SetRemoteDescription(e.Description); err != nil {
		util.LogWarning("call: malformed remote answer: %v", err)
		s.shutdown(context.Background(), true)
		return
	}
	s.markRemoteApplied()
	s.transition(StateConnected, StateAwaitingAnswer)
}

// handleCandidate applies a remote ICE candidate, or buffers it when the
// remote description has not been applied yet. A candidate the media layer
// rejects is logged and dropped; it does not end the call.
func (s *Session) handleCandidate(e envelope.IceCandidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.torndown {
		return
	}
	if !s.remoteApplied {
		s.pending = append(s.pending, e.Candidate)
		return
	}
	if err := s.media.AddRemoteCandidate(e.Candidate); err != nil {
		util.LogWarning("call: dropping remote candidate: %v", err)
	}
}

// markRemoteApplied flushes the buffered candidates in arrival order. Flag
// and flush share one critical section with handleCandidate, so a candidate
// arriving mid-flush cannot jump the queue.
func (s *Session) markRemoteApplied() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remoteApplied = true
	for _, c := range s.pending {
		if err := s.media.AddRemoteCandidate(c); err != nil {
			util.LogWarning("call: dropping buffered candidate: %v", err)
		}
	}
	s.pending = nil
}

// shutdown is the single teardown path. Exactly once it sends call-end (if
// requested), releases the media session, unregisters from the manager, and
// reports Ended. Every step is best-effort; a failed send never blocks the
// media release.
func (s *Session) shutdown(ctx context.Context, sendEnd bool) {
	s.mu.Lock()
	if s.torndown {
		s.mu.Unlock()
		return
	}
	s.torndown = true
	s.state = StateEnded
	m := s.media
	s.pending = nil
	s.mu.Unlock()

	if sendEnd {
		if err := s.sig.Send(ctx, envelope.End{}); err != nil {
			util.LogWarning("call: send call-end: %v", err)
		}
	}
	if m != nil {
		m.Close()
	}
	s.mgr.release(s)
	s.notifyState(StateEnded)
}

// transition moves from -> to if the session is still in from, notifying
// observers on success.
func (s *Session) transition(to, from State) bool {
	s.mu.Lock()
	ok := s.state == from
	if ok {
		s.state = to
	}
	s.mu.Unlock()
	if ok {
		s.notifyState(to)
	}
	return ok
}

func (s *Session) notifyState(st State) {
	s.mgr.notifyState(s, st)
}

func (s *Session) handleRemoteStream(rs *media.RemoteStream) {
	s.mgr.notifyRemoteStream(s, rs)
}

// handleLocalCandidate trickles a locally gathered candidate to the remote
// peer. Candidate loss degrades connectivity but is not fatal, so a failed
// send is only logged.
func (s *Session) handleLocalCandidate(c webrtc.ICECandidateInit) {
	s.mu.Lock()
	ended := s.torndown
	s.mu.Unlock()
	if ended {
		return
	}
	if err := s.sig.Send(context.Background(), envelope.IceCandidate{Candidate: c}); err != nil {
		util.LogWarning("call: send candidate: %v", err)
	}
}
