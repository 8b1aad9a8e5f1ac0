package main

import (
	"testing"

	"hemlockc/hemlock"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

func TestRangeFromLocIsZeroBased(t *testing.T) {
	end := 9
	loc := hemlock.Loc{Line: 3, ColStart: 5, ColEnd: &end}

	r := lspRangeFromLoc(loc)

	want := protocol.Range{
		Start: protocol.Position{Line: 2, Character: 4},
		End:   protocol.Position{Line: 2, Character: 9},
	}
	if r != want {
		t.Fatalf("range = %+v, want %+v", r, want)
	}
}

func TestRangeFromLocWithoutEndSpansOneCharacter(t *testing.T) {
	loc := hemlock.Loc{Line: 1, ColStart: 1}

	r := lspRangeFromLoc(loc)

	if r.Start.Line != 0 || r.Start.Character != 0 {
		t.Fatalf("start = %+v, want line 0 char 0", r.Start)
	}
	if r.End.Character != r.Start.Character+1 {
		t.Fatalf("end char = %d, want %d", r.End.Character, r.Start.Character+1)
	}
}
