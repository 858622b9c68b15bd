package token

import "testing"

func TestNewTokenAndDelete(t *testing.T) {
	s := NewStore()
	tok := s.NewToken(1.5, 0.0, nil, nil, nil)
	s.IncToks()
	if tok.TotalCost != 1.5 {
		t.Fatalf("TotalCost = %v, want 1.5", tok.TotalCost)
	}
	if s.NumToks() != 1 {
		t.Fatalf("NumToks() = %d, want 1", s.NumToks())
	}
	s.DeleteToken(tok)
	s.DecToks()
	if s.NumToks() != 0 {
		t.Fatalf("NumToks() after delete = %d, want 0", s.NumToks())
	}
}

func TestDeleteLinksFrom(t *testing.T) {
	s := NewStore()
	dst := s.NewToken(0, 0, nil, nil, nil)
	src := s.NewToken(0, 0, nil, nil, nil)
	src.Links = s.NewLink(dst, 1, 2, 0.1, 0.2, nil)
	src.Links = s.NewLink(dst, 3, 4, 0.3, 0.4, src.Links)

	count := 0
	for l := src.Links; l != nil; l = l.Next {
		count++
	}
	if count != 2 {
		t.Fatalf("expected 2 links before delete, got %d", count)
	}

	s.DeleteLinksFrom(src)
	if src.Links != nil {
		t.Fatalf("expected nil link list after DeleteLinksFrom")
	}
}

func TestClear(t *testing.T) {
	s := NewStore()
	fl := NewList()
	a := s.NewToken(0, 0, nil, nil, nil)
	b := s.NewToken(0, 0, nil, a, nil)
	fl.Head = b
	s.IncToks()
	s.IncToks()

	s.Clear([]*List{fl})

	if fl.Head != nil {
		t.Fatalf("expected empty list after Clear")
	}
	if s.NumToks() != 0 {
		t.Fatalf("NumToks() after Clear = %d, want 0", s.NumToks())
	}
}

func TestNewListDefaults(t *testing.T) {
	fl := NewList()
	if !fl.MustPruneForwardLinks || !fl.MustPruneTokens {
		t.Fatalf("NewList() should default both dirty flags to true")
	}
}
