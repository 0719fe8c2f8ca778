package media

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

// Track pairs an attachable WebRTC track with the capture device backing it.
type Track struct {
	Local webrtc.TrackLocal
	Kind  webrtc.RTPCodecType
	stop  func()
}

// NewTrack wraps an attachable track. stop releases the capture device and
// may be nil for tracks that own no device.
func NewTrack(local webrtc.TrackLocal, kind webrtc.RTPCodecType, stop func()) *Track {
	return &Track{Local: local, Kind: kind, stop: stop}
}

// LocalStream owns the captured tracks for one call. Closing it releases
// the microphone and camera.
type LocalStream struct {
	mu     sync.Mutex
	tracks []*Track
	closed bool

	// configure registers the capture codecs on the media engine; nil means
	// the default codec set.
	configure func(*webrtc.MediaEngine)
}

// NewLocalStream bundles captured tracks into a stream.
func NewLocalStream(tracks ...*Track) *LocalStream {
	return &LocalStream{tracks: tracks}
}

// Tracks returns the stream's tracks.
func (s *LocalStream) Tracks() []*Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Track, len(s.tracks))
	copy(out, s.tracks)
	return out
}

// Close stops every track, releasing the capture devices. Idempotent.
func (s *LocalStream) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	tracks := s.tracks
	s.mu.Unlock()

	for _, t := range tracks {
		if t.stop != nil {
			t.stop()
		}
	}
}

// RemoteStream accumulates the inbound tracks of one negotiated call.
type RemoteStream struct {
	mu     sync.Mutex
	tracks []*webrtc.TrackRemote
}

func (r *RemoteStream) add(t *webrtc.TrackRemote) {
	r.mu.Lock()
	r.tracks = append(r.tracks, t)
	r.mu.Unlock()
}

// Tracks returns the remote tracks received so far.
func (r *RemoteStream) Tracks() []*webrtc.TrackRemote {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*webrtc.TrackRemote, len(r.tracks))
	copy(out, r.tracks)
	return out
}
