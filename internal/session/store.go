// Package session provides the in-process conversation store: chat turns,
// remembered zodiac context, and TTL-based expiry. State is intentionally
// lost on restart.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/astrachat/astrachat/pkg/models"
)

// Store is a concurrency-safe session map keyed by session id. Chat turns
// expire after the session TTL; the remembered zodiac context lives longer
// (context TTL) so a user returning within a day keeps their sign.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session

	sessionTTL time.Duration
	contextTTL time.Duration
	maxTurns   int
}

// Options configures a Store. Zero values fall back to sane defaults.
type Options struct {
	SessionTTL time.Duration
	ContextTTL time.Duration
	MaxTurns   int
}

// NewStore creates an empty session store.
func NewStore(opts Options) *Store {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = time.Hour
	}
	if opts.ContextTTL <= 0 {
		opts.ContextTTL = 24 * time.Hour
	}
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = 10
	}
	return &Store{
		sessions:   make(map[string]*models.Session),
		sessionTTL: opts.SessionTTL,
		contextTTL: opts.ContextTTL,
		maxTurns:   opts.MaxTurns,
	}
}

// Create registers a new session and returns a snapshot of it.
func (s *Store) Create() models.Session {
	now := time.Now()
	sess := &models.Session{
		ID:           uuid.NewString(),
		CreatedAt:    now,
		LastActivity: now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	log.Debug().Str("sessionId", sess.ID).Msg("Session created")
	return *sess
}

// Get returns a snapshot of the session if it exists and its chat window has
// not expired. The remembered context may outlive the chat window; see
// Zodiac.
func (s *Store) Get(id string) (models.Session, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.RUnlock()
		return models.Session{}, false
	}
	snapshot := snapshotOf(sess)
	s.mu.RUnlock()

	if time.Since(snapshot.LastActivity) > s.sessionTTL {
		return models.Session{}, false
	}
	return snapshot, true
}

// GetOrCreate returns the session for id, creating it if absent or expired
// past the context TTL. Resolver-side callers arrive with ids minted by the
// gateway, so unknown ids are legitimate first contacts. An empty id is never
// a key: each anonymous caller gets a freshly minted session, so two clients
// that omit the id can never share state.
func (s *Store) GetOrCreate(id string) models.Session {
	if id == "" {
		return s.Create()
	}
	now := time.Now()

	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok && now.Sub(sess.LastActivity) > s.contextTTL {
		delete(s.sessions, id)
		ok = false
	}
	if !ok {
		sess = &models.Session{ID: id, CreatedAt: now, LastActivity: now}
		s.sessions[id] = sess
	}
	snapshot := snapshotOf(sess)
	s.mu.Unlock()

	return snapshot
}

// AppendTurn appends a turn to the session, bumping activity and trimming
// history to the retention bound. The update is atomic per session id.
func (s *Store) AppendTurn(id string, turn models.Turn) {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		sess = &models.Session{ID: id, CreatedAt: turn.Timestamp}
		s.sessions[id] = sess
	}
	sess.Turns = append(sess.Turns, turn)
	if len(sess.Turns) > s.maxTurns {
		sess.Turns = sess.Turns[len(sess.Turns)-s.maxTurns:]
	}
	sess.LastActivity = turn.Timestamp
}

// RememberZodiac stores an inferred sign on the session. A remembered sign is
// never overwritten by a lower-confidence inference.
func (s *Store) RememberZodiac(id, sign string, confidence float64, date string) {
	if sign == "" || sign == models.UnknownZodiac {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		now := time.Now()
		sess = &models.Session{ID: id, CreatedAt: now, LastActivity: now}
		s.sessions[id] = sess
	}
	if sess.Zodiac != "" && confidence < sess.ZodiacConfidence {
		log.Debug().
			Str("sessionId", id).
			Str("kept", sess.Zodiac).
			Str("rejected", sign).
			Float64("confidence", confidence).
			Msg("Keeping higher-confidence zodiac")
		return
	}
	sess.Zodiac = sign
	sess.ZodiacConfidence = confidence
	if date != "" {
		sess.ZodiacDate = date
	}
	sess.LastActivity = time.Now()

	log.Debug().Str("sessionId", id).Str("zodiac", sign).Float64("confidence", confidence).Msg("Zodiac remembered")
}

// Zodiac returns the remembered sign for id within the context TTL.
func (s *Store) Zodiac(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok || sess.Zodiac == "" {
		return "", false
	}
	if time.Since(sess.LastActivity) > s.contextTTL {
		return "", false
	}
	return sess.Zodiac, true
}

// Len returns the number of live sessions, expired or not yet swept included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes sessions idle past the context TTL and returns how many were
// dropped.
func (s *Store) Sweep() int {
	cutoff := time.Now().Add(-s.contextTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.LastActivity.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		log.Debug().Int("removed", removed).Int("remaining", len(s.sessions)).Msg("Session sweep complete")
	}
	return removed
}

// StartSweeper runs periodic sweeps until ctx is cancelled. Sweeps hold the
// write lock only for the map walk and never block in-flight lookups for
// longer than that.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

func snapshotOf(sess *models.Session) models.Session {
	snapshot := *sess
	snapshot.Turns = append([]models.Turn(nil), sess.Turns...)
	return snapshot
}
