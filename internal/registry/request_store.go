package registry

import (
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/rxtech-lab/argo-broker/pkg/errors"
)

// Response is the outcome of a request, replayed for duplicates.
type Response struct {
	Value any
	Err   error
}

type requestEntry struct {
	id       string
	seen     time.Time
	response Response
}

func requestLess(a, b requestEntry) bool {
	if a.seen.Equal(b.seen) {
		return a.id < b.id
	}

	return a.seen.Before(b.seen)
}

// RequestStore remembers the responses of recent requests by id. Entries older
// than the ttl are forgotten.
type RequestStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]requestEntry
	// expiry orders entries by the time they were seen.
	expiry *btree.BTreeG[requestEntry]
}

// NewRequestStore returns a store keeping entries for ttl. now defaults to time.Now.
func NewRequestStore(ttl time.Duration, now func() time.Time) *RequestStore {
	if now == nil {
		now = time.Now
	}

	return &RequestStore{
		ttl:     ttl,
		now:     now,
		entries: map[string]requestEntry{},
		expiry:  btree.NewG[requestEntry](8, requestLess),
	}
}

// Lookup returns the response remembered for id.
func (s *RequestStore) Lookup(id string) (Response, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purge()

	entry, ok := s.entries[id]
	if !ok {
		return Response{}, false
	}

	return entry.response, true
}

// Remember records the response of id. It fails with ErrCodeDuplicateRequest
// when id is still remembered.
func (s *RequestStore) Remember(id string, response Response) error {
	if id == "" {
		return errors.New(errors.ErrCodeBadParameter, "request id is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.purge()

	if _, ok := s.entries[id]; ok {
		return errors.Newf(errors.ErrCodeDuplicateRequest, "request %s was already handled", id)
	}

	entry := requestEntry{id: id, seen: s.now(), response: response}
	s.entries[id] = entry
	s.expiry.ReplaceOrInsert(entry)

	return nil
}

// Purge drops expired entries and returns how many were dropped.
func (s *RequestStore) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.purge()
}

func (s *RequestStore) purge() int {
	cutoff := s.now().Add(-s.ttl)

	var expired []requestEntry

	s.expiry.Ascend(func(entry requestEntry) bool {
		if entry.seen.After(cutoff) {
			return false
		}

		expired = append(expired, entry)

		return true
	})

	for _, entry := range expired {
		s.expiry.Delete(entry)
		delete(s.entries, entry.id)
	}

	return len(expired)
}

// Len returns the number of remembered requests, expired ones included.
func (s *RequestStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}
