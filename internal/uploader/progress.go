package uploader

import (
	"sync"

	"github.com/motorscan/carhealth/internal/types/media"
)

// Status is the transfer state of one asset. The happy path is
// pending -> uploading -> registering -> completed; the proxy path
// goes straight from uploading to completed because the backend
// registers the asset as part of the transfer. Error is reachable
// from any non-terminal state and is never retried automatically.
type Status string

const (
	StatusPending     Status = "pending"
	StatusUploading   Status = "uploading"
	StatusRegistering Status = "registering"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "error"
)

// Progress is the externally visible transfer state for one media id.
type Progress struct {
	MediaID   string          `json:"media_id"`
	Type      media.MediaType `json:"type"`
	PhotoType media.PhotoType `json:"photo_type,omitempty"`
	FileName  string          `json:"file_name"`
	Percent   int             `json:"percent"`
	Status    Status          `json:"status"`
	Error     string          `json:"error,omitempty"`
}

// Store is an in-memory map from media id to transfer state. It holds
// no pipeline logic: the upload flow drives every transition and the
// store only upserts and snapshots. Not persisted anywhere.
type Store struct {
	mu      sync.RWMutex
	uploads map[string]Progress
}

func NewStore() *Store {
	return &Store{uploads: make(map[string]Progress)}
}

// Put upserts the full record for a media id.
func (s *Store) Put(p Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads[p.MediaID] = p
}

// Update applies a mutation to an existing entry. Unknown ids are
// ignored, mirroring how progress events for cleared uploads are
// dropped.
func (s *Store) Update(mediaID string, mutate func(*Progress)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.uploads[mediaID]
	if !ok {
		return
	}
	mutate(&p)
	s.uploads[mediaID] = p
}

// Get returns the current state for a media id.
func (s *Store) Get(mediaID string) (Progress, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.uploads[mediaID]
	return p, ok
}

// Snapshot returns a copy of all tracked uploads, safe for the caller
// to iterate while transfers continue.
func (s *Store) Snapshot() map[string]Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Progress, len(s.uploads))
	for id, p := range s.uploads {
		out[id] = p
	}
	return out
}

// Active reports whether any upload is still in a non-terminal state.
func (s *Store) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.uploads {
		switch p.Status {
		case StatusPending, StatusUploading, StatusRegistering:
			return true
		}
	}
	return false
}

// Clear drops the entry for a media id.
func (s *Store) Clear(mediaID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.uploads, mediaID)
}

// ClearAll drops every entry.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads = make(map[string]Progress)
}
