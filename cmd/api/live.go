package main

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	liveWriteTimeout = 10 * time.Second
	livePingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser origins are already gated by the API key.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// liveFeed fans out "leaderboard changed" signals to connected websocket clients.
type liveFeed struct {
	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

func newLiveFeed() *liveFeed {
	return &liveFeed{subs: make(map[chan struct{}]struct{})}
}

func (f *liveFeed) subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()
	return ch
}

func (f *liveFeed) unsubscribe(ch chan struct{}) {
	f.mu.Lock()
	delete(f.subs, ch)
	f.mu.Unlock()
}

// publish never blocks: a subscriber that has not consumed the previous signal
// will still send one fresh snapshot.
func (f *liveFeed) publish() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// handleLiveScores streams the top scores, sending a snapshot on connect and after every
// accepted submission.
func (s *Server) handleLiveScores(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.cfg.Logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	updates := s.live.subscribe()
	defer s.live.unsubscribe(updates)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(livePingInterval)
	defer ticker.Stop()

	send := func() bool {
		out, err := s.topScores(r.Context())
		if err != nil {
			s.cfg.Logger.Error("failed to load live leaderboard", zap.Error(err))
			return false
		}
		_ = conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
		return conn.WriteJSON(out) == nil
	}

	if !send() {
		return
	}
	for {
		select {
		case <-updates:
			if !send() {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteTimeout)); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
