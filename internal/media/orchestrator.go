package media

import (
	"context"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// Options wires an Orchestrator to its collaborators.
type Options struct {
	// SessionID is the local room session id.
	SessionID string
	Factory   PeerFactory
	Signaler  Signaler
	Capture   CaptureSource
	// Backoff is the wait before the single reconnect attempt after a
	// peer-connection failure.
	Backoff time.Duration
	// Notice surfaces user-visible media problems (missing camera/mic
	// permission). Called at most once.
	Notice func(msg string)
	// OnRemoteTrack hands received remote media to the rendering
	// adapter supplied by the host.
	OnRemoteTrack func(peerID string, track *webrtc.TrackRemote)
}

// Orchestrator maintains one camera/mic call per co-present peer.
// Outgoing calls we placed and incoming calls we answered are tracked
// separately, mirroring the two directions of call setup.
type Orchestrator struct {
	opts   Options
	selfID string

	mu       sync.Mutex
	outgoing map[string]*session
	incoming map[string]*session
	stream   *LocalStream
	closed   bool

	noticeOnce sync.Once
}

func NewOrchestrator(opts Options) *Orchestrator {
	if opts.Backoff <= 0 {
		opts.Backoff = 3 * time.Second
	}
	return &Orchestrator{
		opts:     opts,
		selfID:   SanitizePeerID(opts.SessionID),
		outgoing: make(map[string]*session),
		incoming: make(map[string]*session),
	}
}

func (o *Orchestrator) SelfPeerID() string { return o.selfID }

// AcquireMedia obtains the shared camera/mic stream. Failure is not
// fatal: the notice fires once and the client keeps participating in
// world-state sync without local media.
func (o *Orchestrator) AcquireMedia(ctx context.Context) error {
	stream, err := o.opts.Capture.CaptureUserMedia(ctx)
	if err != nil {
		o.noticeOnce.Do(func() {
			if o.opts.Notice != nil {
				o.opts.Notice("No webcam or microphone found, or permission is blocked")
			}
		})
		log.Warn().Err(err).Str("module", "media").Msg("user media unavailable")
		return err
	}
	o.mu.Lock()
	o.stream = stream
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) HasMedia() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stream != nil
}

// SetAudioEnabled toggles the local audio track. Remote visibility of
// the mute goes through the authoritative player-props broadcast, not
// through the track itself.
func (o *Orchestrator) SetAudioEnabled(enabled bool) {
	o.mu.Lock()
	stream := o.stream
	o.mu.Unlock()
	if stream != nil {
		stream.SetAudioEnabled(enabled)
	}
}

func (o *Orchestrator) SetVideoEnabled(enabled bool) {
	o.mu.Lock()
	stream := o.stream
	o.mu.Unlock()
	if stream != nil {
		stream.SetVideoEnabled(enabled)
	}
}

// PeerState reports the relationship state for a peer's session id,
// checking outgoing calls first.
func (o *Orchestrator) PeerState(sessionID string) SessionState {
	peerID := SanitizePeerID(sessionID)
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.outgoing[peerID]; ok {
		return s.state
	}
	if s, ok := o.incoming[peerID]; ok {
		return s.state
	}
	return StateIdle
}

// ConnectToPeer places a call to another session. No-op without a
// local stream or when a call to that peer already exists.
func (o *Orchestrator) ConnectToPeer(sessionID string) {
	if sessionID == o.opts.SessionID {
		return
	}
	peerID := SanitizePeerID(sessionID)

	o.mu.Lock()
	if o.closed || o.stream == nil {
		o.mu.Unlock()
		log.Warn().Str("module", "media").Str("peer", peerID).Msg("cannot call without local stream")
		return
	}
	if _, exists := o.outgoing[peerID]; exists {
		o.mu.Unlock()
		return
	}
	s := &session{peerID: peerID, sessionID: sessionID, state: StateCalling}
	o.outgoing[peerID] = s
	stream := o.stream
	stream.acquire()
	s.stream = stream
	o.mu.Unlock()

	if err := o.dial(s, stream); err != nil {
		log.Error().Err(err).Str("module", "media").Str("peer", peerID).Msg("call failed")
		o.teardown(s, true)
	}
}

// dial builds a peer connection for s, attaches the shared stream and
// sends the offer. Callers hold no lock.
func (o *Orchestrator) dial(s *session, stream *LocalStream) error {
	pc, err := o.opts.Factory()
	if err != nil {
		return err
	}
	for _, track := range stream.Tracks() {
		if err := pc.AddTrack(track); err != nil {
			pc.Close()
			return err
		}
	}
	o.bindCallbacks(pc, s, true)

	o.mu.Lock()
	s.pc = pc
	o.mu.Unlock()

	offer, err := pc.CreateOffer()
	if err != nil {
		return err
	}
	return o.opts.Signaler.SendSignal(s.sessionID, offerPayload(offer, false))
}

func (o *Orchestrator) bindCallbacks(pc PeerConn, s *session, outgoing bool) {
	pc.OnICECandidate(func(cand webrtc.ICECandidateInit) {
		c := cand
		if err := o.opts.Signaler.SendSignal(s.sessionID, SignalPayload{Kind: SignalCandidate, Candidate: &c}); err != nil {
			log.Warn().Err(err).Str("module", "media").Str("peer", s.peerID).Msg("send candidate")
		}
	})
	pc.OnStateChange(func(st webrtc.PeerConnectionState) {
		o.handlePeerState(s, outgoing, st)
	})
	if o.opts.OnRemoteTrack != nil {
		pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
			o.opts.OnRemoteTrack(s.peerID, track)
		})
	}
}

func (o *Orchestrator) handlePeerState(s *session, outgoing bool, st webrtc.PeerConnectionState) {
	switch st {
	case webrtc.PeerConnectionStateConnected:
		o.mu.Lock()
		s.state = StateConnected
		o.mu.Unlock()
		log.Info().Str("module", "media").Str("peer", s.peerID).Msg("peer connected")

	case webrtc.PeerConnectionStateFailed:
		o.mu.Lock()
		retried := s.retried
		s.retried = true
		closed := o.closed
		o.mu.Unlock()

		if !outgoing || retried || closed {
			// Incoming calls are the caller's to retry; a second
			// failure leaves the relationship idle until a fresh
			// co-presence event.
			o.teardown(s, outgoing)
			return
		}
		log.Warn().Str("module", "media").Str("peer", s.peerID).Dur("backoff", o.opts.Backoff).Msg("peer failed, scheduling reconnect")
		time.AfterFunc(o.opts.Backoff, func() { o.redial(s) })

	case webrtc.PeerConnectionStateClosed:
		// Closed by teardown; nothing left to do.
	}
}

// redial is the single bounded reconnect attempt, reusing the local
// stream already attached to the relationship.
func (o *Orchestrator) redial(s *session) {
	o.mu.Lock()
	current, ok := o.outgoing[s.peerID]
	stream := o.stream
	if !ok || current != s || o.closed || stream == nil {
		o.mu.Unlock()
		return
	}
	old := s.pc
	s.state = StateCalling
	o.mu.Unlock()

	// The session keeps its original hold on the stream across the
	// retry; only the transport-level connection is rebuilt.
	if old != nil {
		old.Close()
	}
	if err := o.dial(s, stream); err != nil {
		log.Error().Err(err).Str("module", "media").Str("peer", s.peerID).Msg("reconnect failed")
		o.teardown(s, true)
	}
}

// HandleSignal processes one relayed camera-session payload from
// another session. Screen-share payloads belong to ScreenShare.
func (o *Orchestrator) HandleSignal(fromSessionID string, p SignalPayload) {
	peerID := SanitizePeerID(fromSessionID)
	switch p.Kind {
	case SignalOffer:
		o.answerCall(fromSessionID, peerID, p)

	case SignalAnswer:
		o.mu.Lock()
		s, ok := o.outgoing[peerID]
		pc := PeerConn(nil)
		if ok {
			pc = s.pc
		}
		o.mu.Unlock()
		if !ok || pc == nil {
			log.Warn().Str("module", "media").Str("peer", peerID).Msg("answer for unknown call")
			return
		}
		if err := pc.ApplyAnswer(p.description()); err != nil {
			log.Error().Err(err).Str("module", "media").Str("peer", peerID).Msg("apply answer")
			o.teardown(s, true)
		}

	case SignalCandidate:
		if p.Candidate == nil {
			return
		}
		o.mu.Lock()
		var pc PeerConn
		if s, ok := o.outgoing[peerID]; ok && s.pc != nil {
			pc = s.pc
		} else if s, ok := o.incoming[peerID]; ok && s.pc != nil {
			pc = s.pc
		}
		o.mu.Unlock()
		if pc == nil {
			return
		}
		if err := pc.AddICECandidate(*p.Candidate); err != nil {
			log.Warn().Err(err).Str("module", "media").Str("peer", peerID).Msg("add candidate")
		}
	}
}

// answerCall accepts an incoming offer, attaching the local stream
// when present; without one the call still completes receive-only.
func (o *Orchestrator) answerCall(fromSessionID, peerID string, p SignalPayload) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	if _, exists := o.incoming[peerID]; exists {
		o.mu.Unlock()
		return
	}
	s := &session{peerID: peerID, sessionID: fromSessionID, state: StateRinging}
	o.incoming[peerID] = s
	stream := o.stream
	if stream != nil {
		stream.acquire()
		s.stream = stream
	}
	o.mu.Unlock()

	pc, err := o.opts.Factory()
	if err != nil {
		log.Error().Err(err).Str("module", "media").Str("peer", peerID).Msg("answer factory")
		o.teardown(s, false)
		return
	}
	if stream != nil {
		for _, track := range stream.Tracks() {
			if err := pc.AddTrack(track); err != nil {
				log.Error().Err(err).Str("module", "media").Str("peer", peerID).Msg("answer add track")
			}
		}
	}
	o.bindCallbacks(pc, s, false)

	o.mu.Lock()
	s.pc = pc
	o.mu.Unlock()

	answer, err := pc.HandleOffer(p.description())
	if err != nil {
		log.Error().Err(err).Str("module", "media").Str("peer", peerID).Msg("handle offer")
		o.teardown(s, false)
		return
	}
	if err := o.opts.Signaler.SendSignal(fromSessionID, answerPayload(answer, false)); err != nil {
		log.Error().Err(err).Str("module", "media").Str("peer", peerID).Msg("send answer")
		o.teardown(s, false)
	}
}

// DisconnectPeer tears down the outgoing call to a session, leaving
// every other pairwise session untouched.
func (o *Orchestrator) DisconnectPeer(sessionID string) {
	peerID := SanitizePeerID(sessionID)
	o.mu.Lock()
	s, ok := o.outgoing[peerID]
	o.mu.Unlock()
	if ok {
		o.teardown(s, true)
	}
}

// DisconnectAnswered tears down the incoming call from a session.
func (o *Orchestrator) DisconnectAnswered(sessionID string) {
	peerID := SanitizePeerID(sessionID)
	o.mu.Lock()
	s, ok := o.incoming[peerID]
	o.mu.Unlock()
	if ok {
		o.teardown(s, false)
	}
}

// teardown closes the peer connection synchronously and releases the
// session's hold on the shared stream.
func (o *Orchestrator) teardown(s *session, outgoing bool) {
	o.mu.Lock()
	var registered bool
	if outgoing {
		if o.outgoing[s.peerID] == s {
			delete(o.outgoing, s.peerID)
			registered = true
		}
	} else {
		if o.incoming[s.peerID] == s {
			delete(o.incoming, s.peerID)
			registered = true
		}
	}
	s.state = StateIdle
	pc := s.pc
	s.pc = nil
	stream := s.stream
	s.stream = nil
	o.mu.Unlock()

	if !registered {
		return
	}
	if pc != nil {
		pc.Close()
	}
	if stream != nil {
		stream.release()
	}
	log.Info().Str("module", "media").Str("peer", s.peerID).Msg("peer session closed")
}

// StopMedia releases the local capture once every session has let go.
func (o *Orchestrator) StopMedia() {
	o.mu.Lock()
	stream := o.stream
	o.stream = nil
	o.mu.Unlock()
	if stream != nil {
		stream.Stop()
	}
}

// Close tears down every session and the local stream.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	sessions := make([]*session, 0, len(o.outgoing)+len(o.incoming))
	outFlags := make([]bool, 0, cap(sessions))
	for _, s := range o.outgoing {
		sessions = append(sessions, s)
		outFlags = append(outFlags, true)
	}
	for _, s := range o.incoming {
		sessions = append(sessions, s)
		outFlags = append(outFlags, false)
	}
	o.mu.Unlock()

	for i, s := range sessions {
		o.teardown(s, outFlags[i])
	}
	o.StopMedia()
}
