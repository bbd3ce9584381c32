package dictionary

import (
	"testing"

	"github.com/scarab-search/scarab-core/internal/core/domain"
)

func TestTermDictionary_UpsertAndGet(t *testing.T) {
	d := New(DefaultConfig())
	d.UpsertEntry("idx", "title", "hello", domain.PostingEntry{DocID: "1", Frequency: 1})

	list := d.GetPostingList("idx", "title", "hello")
	if list == nil {
		t.Fatal("expected posting list to be present")
	}
	if list.Size() != 1 {
		t.Errorf("size = %d, want 1", list.Size())
	}
}

func TestTermDictionary_GetTerms_ScopedPerIndex(t *testing.T) {
	d := New(DefaultConfig())
	d.UpsertEntry("idx-a", "title", "hello", domain.PostingEntry{DocID: "1"})
	d.UpsertEntry("idx-b", "title", "world", domain.PostingEntry{DocID: "2"})

	terms := d.GetTerms("idx-a")
	if len(terms) != 1 || terms[0].Token != "hello" {
		t.Fatalf("expected exactly [hello] for idx-a, got %+v", terms)
	}
}

func TestTermDictionary_DirtyTermsSince(t *testing.T) {
	d := New(DefaultConfig())
	cp := d.Checkpoint()

	d.UpsertEntry("idx", "title", "hello", domain.PostingEntry{DocID: "1"})

	dirty := d.DirtyTermsSince(cp)
	if len(dirty) != 1 {
		t.Fatalf("expected 1 dirty term, got %d", len(dirty))
	}

	d.MarkClean(dirty)
	if len(d.DirtyTermsSince(cp)) != 0 {
		t.Error("expected no dirty terms after MarkClean")
	}
}

func TestTermDictionary_Clear(t *testing.T) {
	d := New(DefaultConfig())
	d.UpsertEntry("idx", "title", "hello", domain.PostingEntry{DocID: "1"})

	d.Clear("idx")

	if d.GetPostingList("idx", "title", "hello") != nil {
		t.Error("expected posting list to be cleared")
	}
	if len(d.GetTerms("idx")) != 0 {
		t.Error("expected no terms after clear")
	}
}

func TestTermDictionary_Evict_PinsDirtyEntries(t *testing.T) {
	d := New(Config{Cap: 4, EvictionThreshold: 0.5})

	d.UpsertEntry("idx", "f", "a", domain.PostingEntry{DocID: "1"})
	d.UpsertEntry("idx", "f", "b", domain.PostingEntry{DocID: "1"})
	d.UpsertEntry("idx", "f", "c", domain.PostingEntry{DocID: "1"})
	d.UpsertEntry("idx", "f", "d", domain.PostingEntry{DocID: "1"})

	// All four keys are dirty (never committed), so eviction must not drop
	// any of them even though the cache is at capacity.
	evicted := d.Evict()
	if evicted != 0 {
		t.Errorf("expected 0 evicted while all entries are dirty, got %d", evicted)
	}
	if d.Len() != 4 {
		t.Errorf("len = %d, want 4", d.Len())
	}

	// Once committed, eviction can proceed down to cap*threshold = 2.
	d.MarkClean([]domain.TermKey{
		domain.NewTermKey("idx", "f", "a"),
		domain.NewTermKey("idx", "f", "b"),
		domain.NewTermKey("idx", "f", "c"),
		domain.NewTermKey("idx", "f", "d"),
	})
	evicted = d.Evict()
	if evicted != 2 {
		t.Errorf("expected 2 evicted, got %d", evicted)
	}
	if d.Len() != 2 {
		t.Errorf("len = %d, want 2", d.Len())
	}
}
