package media

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// ScreenShare runs the one-to-many presentation session: one presenter
// calls every current user of the shared computer. It is independent
// of the camera orchestrator — stopping the camera never touches an
// active presentation and vice versa.
type ScreenShare struct {
	opts   Options
	selfID string

	mu      sync.Mutex
	stream  *LocalStream
	viewers map[string]*session // calls we placed as presenter
	watched map[string]*session // presentations we answered as viewer
}

func NewScreenShare(opts Options) *ScreenShare {
	return &ScreenShare{
		opts:    opts,
		selfID:  ScreenPeerID(opts.SessionID),
		viewers: make(map[string]*session),
		watched: make(map[string]*session),
	}
}

func (s *ScreenShare) SelfPeerID() string { return s.selfID }

func (s *ScreenShare) Presenting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream != nil
}

// Start captures the display and calls every current user of the
// computer. Capture failure surfaces through the notice callback and
// leaves the manager idle.
func (s *ScreenShare) Start(ctx context.Context, currentUsers []string) error {
	stream, err := s.opts.Capture.CaptureDisplay(ctx)
	if err != nil {
		if s.opts.Notice != nil {
			s.opts.Notice("Could not start screen sharing. Please make sure you have permissions enabled.")
		}
		log.Warn().Err(err).Str("module", "media.screen").Msg("display capture failed")
		return err
	}
	s.mu.Lock()
	s.stream = stream
	s.mu.Unlock()

	for _, uid := range currentUsers {
		s.UserJoined(uid)
	}
	return nil
}

// UserJoined calls a user who sat down at the shared computer while we
// are presenting.
func (s *ScreenShare) UserJoined(sessionID string) {
	if sessionID == s.opts.SessionID {
		return
	}
	peerID := ScreenPeerID(sessionID)

	s.mu.Lock()
	stream := s.stream
	if stream == nil {
		s.mu.Unlock()
		return
	}
	if _, exists := s.viewers[peerID]; exists {
		s.mu.Unlock()
		return
	}
	sess := &session{peerID: peerID, sessionID: sessionID, state: StateCalling}
	s.viewers[peerID] = sess
	stream.acquire()
	sess.stream = stream
	s.mu.Unlock()

	if err := s.call(sess, stream); err != nil {
		log.Error().Err(err).Str("module", "media.screen").Str("peer", peerID).Msg("share call failed")
		s.drop(sess, true)
	}
}

func (s *ScreenShare) call(sess *session, stream *LocalStream) error {
	pc, err := s.opts.Factory()
	if err != nil {
		return err
	}
	for _, track := range stream.Tracks() {
		if err := pc.AddTrack(track); err != nil {
			pc.Close()
			return err
		}
	}
	s.bind(pc, sess, true)

	s.mu.Lock()
	sess.pc = pc
	s.mu.Unlock()

	offer, err := pc.CreateOffer()
	if err != nil {
		return err
	}
	return s.opts.Signaler.SendSignal(sess.sessionID, offerPayload(offer, true))
}

func (s *ScreenShare) bind(pc PeerConn, sess *session, asPresenter bool) {
	pc.OnICECandidate(func(cand webrtc.ICECandidateInit) {
		c := cand
		err := s.opts.Signaler.SendSignal(sess.sessionID, SignalPayload{Kind: SignalCandidate, Screen: true, Candidate: &c})
		if err != nil {
			log.Warn().Err(err).Str("module", "media.screen").Str("peer", sess.peerID).Msg("send candidate")
		}
	})
	pc.OnStateChange(func(st webrtc.PeerConnectionState) {
		switch st {
		case webrtc.PeerConnectionStateConnected:
			s.mu.Lock()
			sess.state = StateConnected
			s.mu.Unlock()
		case webrtc.PeerConnectionStateFailed:
			// Presentation sessions are re-established by fresh
			// occupancy events, not retried here.
			s.drop(sess, asPresenter)
		}
	})
	if !asPresenter && s.opts.OnRemoteTrack != nil {
		pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
			s.opts.OnRemoteTrack(sess.peerID, track)
		})
	}
}

// HandleSignal processes one relayed screen-session payload.
func (s *ScreenShare) HandleSignal(fromSessionID string, p SignalPayload) {
	peerID := ScreenPeerID(fromSessionID)
	switch p.Kind {
	case SignalOffer:
		s.answer(fromSessionID, peerID, p)

	case SignalAnswer:
		s.mu.Lock()
		sess, ok := s.viewers[peerID]
		var pc PeerConn
		if ok {
			pc = sess.pc
		}
		s.mu.Unlock()
		if !ok || pc == nil {
			return
		}
		if err := pc.ApplyAnswer(p.description()); err != nil {
			log.Error().Err(err).Str("module", "media.screen").Str("peer", peerID).Msg("apply answer")
			s.drop(sess, true)
		}

	case SignalCandidate:
		if p.Candidate == nil {
			return
		}
		s.mu.Lock()
		var pc PeerConn
		if sess, ok := s.viewers[peerID]; ok && sess.pc != nil {
			pc = sess.pc
		} else if sess, ok := s.watched[peerID]; ok && sess.pc != nil {
			pc = sess.pc
		}
		s.mu.Unlock()
		if pc == nil {
			return
		}
		if err := pc.AddICECandidate(*p.Candidate); err != nil {
			log.Warn().Err(err).Str("module", "media.screen").Str("peer", peerID).Msg("add candidate")
		}
	}
}

// answer accepts an incoming presentation. Viewers send no media back.
func (s *ScreenShare) answer(fromSessionID, peerID string, p SignalPayload) {
	s.mu.Lock()
	if _, exists := s.watched[peerID]; exists {
		s.mu.Unlock()
		return
	}
	sess := &session{peerID: peerID, sessionID: fromSessionID, state: StateRinging}
	s.watched[peerID] = sess
	s.mu.Unlock()

	pc, err := s.opts.Factory()
	if err != nil {
		log.Error().Err(err).Str("module", "media.screen").Str("peer", peerID).Msg("answer factory")
		s.drop(sess, false)
		return
	}
	s.bind(pc, sess, false)

	s.mu.Lock()
	sess.pc = pc
	s.mu.Unlock()

	answer, err := pc.HandleOffer(p.description())
	if err != nil {
		log.Error().Err(err).Str("module", "media.screen").Str("peer", peerID).Msg("handle offer")
		s.drop(sess, false)
		return
	}
	if err := s.opts.Signaler.SendSignal(fromSessionID, answerPayload(answer, true)); err != nil {
		log.Error().Err(err).Str("module", "media.screen").Str("peer", peerID).Msg("send answer")
		s.drop(sess, false)
	}
}

// UserLeft drops the pairwise session with a user who stood up or
// disconnected, as presenter and as viewer.
func (s *ScreenShare) UserLeft(sessionID string) {
	peerID := ScreenPeerID(sessionID)
	s.mu.Lock()
	viewer, hasViewer := s.viewers[peerID]
	watched, hasWatched := s.watched[peerID]
	s.mu.Unlock()
	if hasViewer {
		s.drop(viewer, true)
	}
	if hasWatched {
		s.drop(watched, false)
	}
}

// PresenterStopped tears down the presentation we were watching from
// the given session (triggered by the room's stop-screen-share
// notice).
func (s *ScreenShare) PresenterStopped(sessionID string) {
	peerID := ScreenPeerID(sessionID)
	s.mu.Lock()
	sess, ok := s.watched[peerID]
	s.mu.Unlock()
	if ok {
		s.drop(sess, false)
	}
}

// Stop ends the presentation: stops the display tracks and closes all
// viewer sessions. The caller announces it through the room so viewers
// clean up their side.
func (s *ScreenShare) Stop() {
	s.mu.Lock()
	stream := s.stream
	s.stream = nil
	viewers := make([]*session, 0, len(s.viewers))
	for _, sess := range s.viewers {
		viewers = append(viewers, sess)
	}
	s.mu.Unlock()

	for _, sess := range viewers {
		s.drop(sess, true)
	}
	if stream != nil {
		stream.Stop()
	}
	log.Info().Str("module", "media.screen").Msg("presentation stopped")
}

// Close releases everything, watching sessions included.
func (s *ScreenShare) Close() {
	s.Stop()
	s.mu.Lock()
	watched := make([]*session, 0, len(s.watched))
	for _, sess := range s.watched {
		watched = append(watched, sess)
	}
	s.mu.Unlock()
	for _, sess := range watched {
		s.drop(sess, false)
	}
}

func (s *ScreenShare) drop(sess *session, asPresenter bool) {
	s.mu.Lock()
	var registered bool
	if asPresenter {
		if s.viewers[sess.peerID] == sess {
			delete(s.viewers, sess.peerID)
			registered = true
		}
	} else {
		if s.watched[sess.peerID] == sess {
			delete(s.watched, sess.peerID)
			registered = true
		}
	}
	sess.state = StateIdle
	pc := sess.pc
	sess.pc = nil
	stream := sess.stream
	sess.stream = nil
	s.mu.Unlock()

	if !registered {
		return
	}
	if pc != nil {
		pc.Close()
	}
	if stream != nil {
		stream.release()
	}
}
