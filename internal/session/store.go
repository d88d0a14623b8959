package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/annasalon/booking-assistant/pkg/logging"
)

// Store is the durable mapping from user identity to session state. The whole
// in-memory set is serialized on every persisting call; a write fully
// overwrites prior durable state. The store owns its locking: callers get
// serialized read-modify-persist sequences through Update.
type Store struct {
	path        string
	defaultLang string
	logger      *logging.Logger

	mu       sync.Mutex
	sessions map[int64]*Session
}

// NewStore creates a store persisting to path. Sessions for unknown users are
// created with defaultLang.
func NewStore(path, defaultLang string, logger *logging.Logger) *Store {
	if path == "" {
		panic("session: store path cannot be empty")
	}
	if defaultLang == "" {
		defaultLang = "en"
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		path:        path,
		defaultLang: defaultLang,
		logger:      logger,
		sessions:    make(map[int64]*Session),
	}
}

// LoadAll reads the persisted snapshot. A missing file initializes an empty
// store and is not an error.
func (s *Store) LoadAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.sessions = make(map[int64]*Session)
			return nil
		}
		return fmt.Errorf("session: failed to read store: %w", err)
	}

	var decoded map[string]*Session
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("session: failed to decode store: %w", err)
	}

	sessions := make(map[int64]*Session, len(decoded))
	for key, sess := range decoded {
		userID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return fmt.Errorf("session: invalid user key %q: %w", key, err)
		}
		if sess.Appointments == nil {
			sess.Appointments = []Appointment{}
		}
		sess.UserID = userID
		sessions[userID] = sess
	}
	s.sessions = sessions
	return nil
}

// SaveAll persists the full in-memory snapshot, replacing the previous file.
// The snapshot is written to a temp file and renamed into place so concurrent
// readers never observe a torn file.
func (s *Store) SaveAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(s.snapshotLocked(), "", "  ")
	if err != nil {
		return fmt.Errorf("session: failed to encode store: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".sessions-*.json")
	if err != nil {
		return fmt.Errorf("session: failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("session: failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("session: failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("session: failed to replace store: %w", err)
	}
	return nil
}

func (s *Store) snapshotLocked() map[string]*Session {
	out := make(map[string]*Session, len(s.sessions))
	for userID, sess := range s.sessions {
		out[strconv.FormatInt(userID, 10)] = sess
	}
	return out
}

// Get returns the session for userID, creating a default one if absent. It
// never fails. The returned pointer must only be mutated through Update.
func (s *Store) Get(userID int64) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(userID)
}

func (s *Store) getLocked(userID int64) *Session {
	sess, ok := s.sessions[userID]
	if !ok {
		sess = NewSession(userID, s.defaultLang)
		s.sessions[userID] = sess
	}
	return sess
}

// Update runs fn against the user's session under the store lock and then
// persists the full snapshot. The in-memory mutation always applies; a
// persistence failure is returned for logging but does not roll back.
func (s *Store) Update(userID int64, fn func(*Session)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(s.getLocked(userID))
	if err := s.saveLocked(); err != nil {
		return err
	}
	return nil
}

// Apply runs fn against the user's session under the store lock and persists
// the full snapshot only when fn reports the session changed. Like Update, the
// in-memory mutation always applies regardless of persistence outcome.
func (s *Store) Apply(userID int64, fn func(*Session) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !fn(s.getLocked(userID)) {
		return nil
	}
	return s.saveLocked()
}

// View runs fn against the user's session under the store lock without
// persisting. fn must not mutate the session.
func (s *Store) View(userID int64, fn func(*Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.getLocked(userID))
}

// Snapshot returns a defensive copy of the user's session.
func (s *Store) Snapshot(userID int64) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getLocked(userID)
	copied := *sess
	copied.Appointments = append([]Appointment(nil), sess.Appointments...)
	if sess.SelectedDate != nil {
		d := *sess.SelectedDate
		copied.SelectedDate = &d
	}
	if sess.SelectedTime != nil {
		t := *sess.SelectedTime
		copied.SelectedTime = &t
	}
	return copied
}

// Language returns the user's selected language, or the default for unknown
// users.
func (s *Store) Language(userID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(userID).Language
}

// Len reports the number of known sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// UserIDs returns all known user IDs in ascending order.
func (s *Store) UserIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
