package index

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/bookmarks/internal/domain"
)

func collectionOf(n int) *domain.Collection {
	c := domain.NewCollection()
	posts := make([]domain.Post, 0, n)
	for i := 0; i < n; i++ {
		posts = append(posts, domain.Post{ID: fmt.Sprint(i), AuthorID: "a"})
	}
	c.AddPage(posts, []domain.Author{{ID: "a", Username: "alice"}}, nil)
	return c
}

// fakeClock is a settable time source.
type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestIndex() (*MemoryIndex, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	idx := NewMemoryIndex()
	idx.now = clock.now
	return idx, clock
}

func TestNewMemoryIndex(t *testing.T) {
	index := NewMemoryIndex()
	if index == nil {
		t.Fatal("NewMemoryIndex() returned nil")
	}
	if index.Count() != 0 {
		t.Errorf("NewMemoryIndex() should start empty, got %v", index.Count())
	}
	if !index.GetLastSet().IsZero() {
		t.Error("GetLastSet() should be zero before any Set")
	}
}

func TestGetMissing(t *testing.T) {
	index := NewMemoryIndex()
	if c, ok := index.Get("nope"); ok || c != nil {
		t.Errorf("Get() on missing session = (%v, %v), want (nil, false)", c, ok)
	}
}

func TestSetAndGet(t *testing.T) {
	index, clock := newTestIndex()
	c := collectionOf(3)

	index.Set("s1", c)

	got, ok := index.Get("s1")
	if !ok {
		t.Fatal("Get() did not find the stored collection")
	}
	if got != c {
		t.Error("Get() should return the stored collection")
	}
	if !index.GetLastSet().Equal(clock.t) {
		t.Errorf("GetLastSet() = %v, want %v", index.GetLastSet(), clock.t)
	}
	if at, ok := index.StoredAt("s1"); !ok || !at.Equal(clock.t) {
		t.Errorf("StoredAt() = (%v, %v), want (%v, true)", at, ok, clock.t)
	}
}

func TestSetOverwrites(t *testing.T) {
	index := NewMemoryIndex()

	index.Set("s1", collectionOf(1))
	index.Set("s1", collectionOf(5))

	got, _ := index.Get("s1")
	if got.Len() != 5 {
		t.Errorf("Set() should overwrite, got %v posts want 5", got.Len())
	}
	if index.Count() != 1 {
		t.Errorf("Count() = %v, want 1", index.Count())
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	index := NewMemoryIndex()

	index.Set("s1", collectionOf(1))
	index.Set("s2", collectionOf(2))
	index.Invalidate("s1")

	if _, ok := index.Get("s1"); ok {
		t.Error("Invalidate() should remove s1")
	}
	if got, ok := index.Get("s2"); !ok || got.Len() != 2 {
		t.Error("Invalidate() of s1 should not touch s2")
	}
	if index.PostCount() != 2 {
		t.Errorf("PostCount() = %v, want 2", index.PostCount())
	}
}

func TestInvalidateMissingIsNoop(t *testing.T) {
	index := NewMemoryIndex()
	index.Invalidate("nonexistent")
	if index.Count() != 0 {
		t.Errorf("Count() = %v, want 0", index.Count())
	}
}

func TestSweepEvictsIdle(t *testing.T) {
	index, clock := newTestIndex()

	index.Set("idle", collectionOf(1))
	index.Set("busy", collectionOf(1))

	clock.advance(20 * time.Minute)
	index.Get("busy")
	clock.advance(20 * time.Minute)

	evicted := index.Sweep(30 * time.Minute)

	if len(evicted) != 1 || evicted[0] != "idle" {
		t.Errorf("Sweep() evicted %v, want [idle]", evicted)
	}
	if _, ok := index.Get("busy"); !ok {
		t.Error("Sweep() should keep recently accessed sessions")
	}
}

func TestConcurrentAccess(t *testing.T) {
	index := NewMemoryIndex()
	index.Set("s1", collectionOf(10))

	var wg sync.WaitGroup

	// Concurrent reads
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = index.Get("s1")
			_ = index.PostCount()
		}()
	}

	// Concurrent writes on distinct sessions
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			index.Set(fmt.Sprintf("s-%d", i), collectionOf(1))
		}(i)
	}

	wg.Wait()

	if index.Count() != 101 {
		t.Errorf("Count() after concurrent Set = %v, want 101", index.Count())
	}
}
