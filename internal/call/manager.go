package call

import (
	"context"
	"sync"

	"github.com/lumora-app/lumora/internal/envelope"
	"github.com/lumora-app/lumora/internal/media"
	"github.com/lumora-app/lumora/internal/signaling"
	"github.com/lumora-app/lumora/internal/store"
	"github.com/lumora-app/lumora/internal/util"
)

// Manager owns call sessions across conversations. It keeps one signaling
// watch per watched conversation and routes every envelope through a single
// dispatch path, so a session observes answer/candidate/end envelopes in
// exactly the order the store delivered them — including candidates sent
// immediately after an offer, before the callee even accepted.
type Manager struct {
	st          store.Store
	localPeerID string
	newMedia    MediaFactory

	mu       sync.Mutex
	sessions map[string]*Session
	watchers map[string]*signaling.Channel
	closed   bool

	onIncoming     func(*Session)
	onState        func(*Session, State)
	onRemoteStream func(*Session, *media.RemoteStream)
}

func NewManager(st store.Store, localPeerID string, factory MediaFactory) *Manager {
	return &Manager{
		st:          st,
		localPeerID: localPeerID,
		newMedia:    factory,
		sessions:    make(map[string]*Session),
		watchers:    make(map[string]*signaling.Channel),
	}
}

// OnIncoming registers the callback fired when an unsolicited offer creates
// a ringing session. Set before Watch; not safe to change afterwards.
func (m *Manager) OnIncoming(fn func(*Session)) { m.onIncoming = fn }

// OnStateChange registers the callback fired on every session state change.
func (m *Manager) OnStateChange(fn func(*Session, State)) { m.onState = fn }

// OnRemoteStream registers the callback fired once per call when the first
// remote track arrives.
func (m *Manager) OnRemoteStream(fn func(*Session, *media.RemoteStream)) { m.onRemoteStream = fn }

// Watch starts observing a conversation's signaling. Idempotent per
// conversation. Without a watch, offers from the remote peer never ring and
// replies to our own offers are never seen.
func (m *Manager) Watch(conversationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if _, ok := m.watchers[conversationID]; ok {
		return
	}
	m.watchers[conversationID] = signaling.Open(m.st, conversationID, m.localPeerID,
		func(env envelope.Envelope, senderID string) {
			m.dispatch(conversationID, env, senderID)
		})
}

// Unwatch stops observing a conversation and hangs up any call still active
// in it.
func (m *Manager) Unwatch(conversationID string) {
	m.mu.Lock()
	ch := m.watchers[conversationID]
	delete(m.watchers, conversationID)
	s := m.sessions[conversationID]
	m.mu.Unlock()

	if s != nil {
		s.Hangup(context.Background())
	}
	if ch != nil {
		ch.Close()
	}
}

// Close hangs up every active session and stops all watchers.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	watchers := m.watchers
	m.watchers = make(map[string]*signaling.Channel)
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Hangup(context.Background())
	}
	for _, ch := range watchers {
		ch.Close()
	}
}

// Originate starts an outgoing call. It fails with ErrCallInProgress while
// another session is active in the conversation, and with the device or
// signaling error when setup fails — in which case no session remains.
func (m *Manager) Originate(ctx context.Context, conversationID, remotePeerID string, video bool) (*Session, error) {
	m.Watch(conversationID)

	m.mu.Lock()
	if _, active := m.sessions[conversationID]; active {
		m.mu.Unlock()
		return nil, ErrCallInProgress
	}
	s := newSession(m, conversationID, remotePeerID, RoleCaller)
	m.sessions[conversationID] = s
	m.mu.Unlock()

	if err := s.originate(ctx, video); err != nil {
		return nil, err
	}
	return s, nil
}

// Active returns the session currently registered for a conversation, or
// nil when the conversation is idle.
func (m *Manager) Active(conversationID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[conversationID]
}

// dispatch routes one remote envelope. Offers with no active session ring;
// everything else belongs to the session, or is stale and dropped.
func (m *Manager) dispatch(conversationID string, env envelope.Envelope, senderID string) {
	m.mu.Lock()
	s := m.sessions[conversationID]
	if s == nil {
		offer, ok := env.(envelope.Offer)
		if !ok {
			m.mu.Unlock()
			util.LogDebug("call: dropping stale %T with no active call", env)
			return
		}
		s = newSession(m, conversationID, senderID, RoleCallee)
		m.sessions[conversationID] = s
		incoming := m.onIncoming
		m.mu.Unlock()

		s.ring(offer)
		if incoming != nil {
			incoming(s)
		}
		return
	}
	m.mu.Unlock()

	s.handleEnvelope(env, senderID)
}

// release unregisters an ended session. The conversation stays watched, so
// the next offer rings again.
func (m *Manager) release(s *Session) {
	m.mu.Lock()
	if m.sessions[s.conversationID] == s {
		delete(m.sessions, s.conversationID)
	}
	m.mu.Unlock()
}

func (m *Manager) notifyState(s *Session, st State) {
	if m.onState != nil {
		m.onState(s, st)
	}
}

func (m *Manager) notifyRemoteStream(s *Session, rs *media.RemoteStream) {
	if m.onRemoteStream != nil {
		m.onRemoteStream(s, rs)
	}
}

// storeSignal sends a session's envelopes through the shared message store.
type storeSignal struct {
	st             store.Store
	conversationID string
	localPeerID    string
}

func (s storeSignal) Send(ctx context.Context, env envelope.Envelope) error {
	return signaling.Send(ctx, s.st, s.conversationID, s.localPeerID, env)
}
