package uploader

import (
	"testing"

	"github.com/motorscan/carhealth/internal/types/media"
)

func TestStore_PutAndGet(t *testing.T) {
	s := NewStore()

	s.Put(Progress{MediaID: "m-1", Type: media.TypePhoto, PhotoType: media.PhotoFront, Status: StatusPending})

	p, ok := s.Get("m-1")
	if !ok {
		t.Fatal("Expected entry for m-1")
	}
	if p.Status != StatusPending {
		t.Fatalf("Expected pending status, got %s", p.Status)
	}

	if _, ok := s.Get("unknown"); ok {
		t.Fatal("Expected no entry for unknown id")
	}
}

func TestStore_UpdateUnknownIDIgnored(t *testing.T) {
	s := NewStore()

	called := false
	s.Update("ghost", func(p *Progress) { called = true })

	if called {
		t.Fatal("Expected mutation to be skipped for unknown id")
	}
}

func TestStore_Update(t *testing.T) {
	s := NewStore()
	s.Put(Progress{MediaID: "m-1", Status: StatusUploading, Percent: 10})

	s.Update("m-1", func(p *Progress) {
		p.Percent = 45
	})

	p, _ := s.Get("m-1")
	if p.Percent != 45 {
		t.Fatalf("Expected percent 45, got %d", p.Percent)
	}
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	s := NewStore()
	s.Put(Progress{MediaID: "m-1", Percent: 10})

	snap := s.Snapshot()
	entry := snap["m-1"]
	entry.Percent = 99
	snap["m-1"] = entry

	p, _ := s.Get("m-1")
	if p.Percent != 10 {
		t.Fatalf("Snapshot mutation leaked into the store: got %d", p.Percent)
	}
}

func TestStore_Active(t *testing.T) {
	s := NewStore()

	if s.Active() {
		t.Fatal("Empty store should not be active")
	}

	s.Put(Progress{MediaID: "m-1", Status: StatusUploading})
	if !s.Active() {
		t.Fatal("Store with an uploading entry should be active")
	}

	s.Update("m-1", func(p *Progress) { p.Status = StatusCompleted })
	if s.Active() {
		t.Fatal("Store with only terminal entries should not be active")
	}

	s.Put(Progress{MediaID: "m-2", Status: StatusFailed})
	if s.Active() {
		t.Fatal("Errored entries are terminal")
	}
}

func TestStore_Clear(t *testing.T) {
	s := NewStore()
	s.Put(Progress{MediaID: "m-1"})
	s.Put(Progress{MediaID: "m-2"})

	s.Clear("m-1")
	if _, ok := s.Get("m-1"); ok {
		t.Fatal("Expected m-1 to be cleared")
	}
	if _, ok := s.Get("m-2"); !ok {
		t.Fatal("Expected m-2 to survive")
	}

	s.ClearAll()
	if len(s.Snapshot()) != 0 {
		t.Fatal("Expected empty store after ClearAll")
	}
}
