// Package conversation implements the per-identity conversation store. Two
// independent instances run in the server: one keyed by opaque web session
// IDs, one keyed by WhatsApp phone numbers, each with its own history cap and
// idle TTL.
//
// Every record holds a bounded, time-ordered history, a sticky detected
// language, a sticky display name, and a daily message counter that rolls
// over with the calendar date. The quota check is a single locked
// check-and-increment (AppendUser returns the post-increment count) so the
// "check quota, then call the model" sequence cannot lose updates under
// concurrency.
//
// Nothing here is durable. The design accepts full state loss on restart.
package conversation

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/younesbotola/mdr-chatbot-server/internal/domain"
)

// Record is one identity's conversational state. All mutation goes through
// Store methods; callers receive copies.
type Record struct {
	History          []domain.Message `json:"history"`
	Language         string           `json:"language,omitempty"` // sticky once content-detected
	DisplayName      string           `json:"display_name,omitempty"`
	Subscribed       bool             `json:"subscribed"`
	DailyCount       int              `json:"daily_count"`
	DailyCountDate   string           `json:"daily_count_date"` // YYYY-MM-DD, UTC
	LastActivityAt   time.Time        `json:"last_activity_at"`
	languageDetected bool             // true when Language came from content inspection
}

// Store maps identities to records. Safe for concurrent use.
type Store struct {
	mu         sync.Mutex
	records    map[string]*Record
	maxHistory int
	ttl        time.Duration

	now func() time.Time // test seam
}

// NewStore constructs a store with the given history cap and idle TTL.
func NewStore(maxHistory int, ttl time.Duration) *Store {
	if maxHistory <= 0 {
		maxHistory = 20
	}
	return &Store{
		records:    make(map[string]*Record),
		maxHistory: maxHistory,
		ttl:        ttl,
		now:        time.Now,
	}
}

// getOrCreate returns the live record for identity, creating it when unseen.
// Caller must hold s.mu.
func (s *Store) getOrCreate(identity string) *Record {
	r, ok := s.records[identity]
	if !ok {
		r = &Record{DailyCountDate: s.today()}
		s.records[identity] = r
	}
	return r
}

// Get returns a copy of the record for identity, or (zero, false) when the
// identity has never been seen.
func (s *Store) Get(identity string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[identity]
	if !ok {
		return Record{}, false
	}
	return s.snapshot(r), true
}

// AppendUser appends a user turn, rolls the daily counter over when the
// calendar date changed, increments it, and returns the updated count so the
// caller can enforce its quota before paying for a model call.
func (s *Store) AppendUser(identity, text string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.getOrCreate(identity)
	today := s.today()
	if r.DailyCountDate != today {
		r.DailyCountDate = today
		r.DailyCount = 0
	}
	r.DailyCount++
	s.append(r, domain.RoleUser, text)
	return r.DailyCount
}

// AppendAssistant appends an assistant turn under the same truncation rule.
// Assistant turns do not count against the daily quota.
func (s *Store) AppendAssistant(identity, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.append(s.getOrCreate(identity), domain.RoleAssistant, text)
}

// append adds one turn and drops the oldest entries beyond the cap.
// Caller must hold s.mu.
func (s *Store) append(r *Record, role, text string) {
	r.History = append(r.History, domain.Message{Role: role, Content: text})
	if len(r.History) > s.maxHistory {
		r.History = r.History[len(r.History)-s.maxHistory:]
	}
	r.LastActivityAt = s.now()
}

// History returns a copy of the identity's history.
func (s *Store) History(identity string) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[identity]
	if !ok {
		return nil
	}
	out := make([]domain.Message, len(r.History))
	copy(out, r.History)
	return out
}

// SetDetectedLanguage stores a content-detected language. Content detection
// is the strongest signal, so it always wins and becomes sticky.
func (s *Store) SetDetectedLanguage(identity, language string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.getOrCreate(identity)
	r.Language = language
	r.languageDetected = true
}

// SuggestLanguage records a coarse guess (e.g. from a phone country code).
// It only fills a gap: a previously content-detected language is never
// overwritten, and neither is an earlier suggestion.
func (s *Store) SuggestLanguage(identity, language string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.getOrCreate(identity)
	if r.languageDetected || r.Language != "" {
		return
	}
	r.Language = language
}

// Language returns the identity's effective language, or "" when none is set.
func (s *Store) Language(identity string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[identity]; ok {
		return r.Language
	}
	return ""
}

// SetDisplayName stores a display name once; later calls with a non-empty
// name do not overwrite an existing one.
func (s *Store) SetDisplayName(identity, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.getOrCreate(identity)
	if r.DisplayName == "" && name != "" {
		r.DisplayName = name
	}
}

// SetSubscribed flips the identity's broadcast subscription flag.
func (s *Store) SetSubscribed(identity string, subscribed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreate(identity).Subscribed = subscribed
}

// Len reports the number of live records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Sweep removes every record idle longer than the store TTL and returns how
// many were evicted. Intended to run on a fixed period independent of
// request traffic.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	evicted := 0
	for id, r := range s.records {
		if now.Sub(r.LastActivityAt) > s.ttl {
			delete(s.records, id)
			evicted++
		}
	}
	if evicted > 0 {
		log.Debug().Int("evicted", evicted).Int("remaining", len(s.records)).Msg("conversation sweep")
	}
	return evicted
}

// StartSweeper runs Sweep every interval until stop is closed.
func (s *Store) StartSweeper(interval time.Duration, stop <-chan struct{}) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				s.Sweep()
			case <-stop:
				return
			}
		}
	}()
}

// snapshot copies a record for safe return. Caller must hold s.mu.
func (s *Store) snapshot(r *Record) Record {
	cp := *r
	cp.History = make([]domain.Message, len(r.History))
	copy(cp.History, r.History)
	return cp
}

// today formats the reference date used for daily counters. UTC keeps the
// rollover locale-agnostic.
func (s *Store) today() string {
	return s.now().UTC().Format("2006-01-02")
}
