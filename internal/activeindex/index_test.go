package activeindex

import (
	"testing"

	"github.com/loqalabs/loqa-decoder/internal/token"
)

func TestInsertFind(t *testing.T) {
	ix := New()
	tok := &token.Token{TotalCost: 1.0}
	ix.Insert(42, tok)

	e := ix.Find(42)
	if e == nil || e.Tok != tok {
		t.Fatalf("Find(42) did not return the inserted token")
	}
	if ix.Find(99) != nil {
		t.Fatalf("Find(99) should be nil")
	}
}

func TestClearReturnsSnapshotAndEmpties(t *testing.T) {
	ix := New()
	t1 := &token.Token{TotalCost: 1.0}
	t2 := &token.Token{TotalCost: 2.0}
	ix.Insert(1, t1)
	ix.Insert(2, t2)

	head := ix.Clear()

	count := 0
	seen := map[uint64]bool{}
	for e := head; e != nil; e = e.Tail {
		seen[e.State] = true
		count++
	}
	if count != 2 {
		t.Fatalf("snapshot length = %d, want 2", count)
	}
	if !seen[1] || !seen[2] {
		t.Fatalf("snapshot missing entries: %v", seen)
	}

	if ix.Find(1) != nil || ix.Find(2) != nil {
		t.Fatalf("index should be empty immediately after Clear()")
	}
}

func TestSetSizeGrowsWithoutLosingEntries(t *testing.T) {
	ix := New()
	ix.Insert(5, &token.Token{})
	ix.SetSize(1000)

	if ix.Find(5) == nil {
		t.Fatalf("SetSize should not drop existing entries")
	}
}

func TestDeleteClearsEntry(t *testing.T) {
	ix := New()
	tok := &token.Token{}
	e := ix.Insert(7, tok)
	head := ix.Clear()
	ix.Delete(head)
	if e.Tok != nil || e.Tail != nil {
		t.Fatalf("Delete should release the entry's references")
	}
}
