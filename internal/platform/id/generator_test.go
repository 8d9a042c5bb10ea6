package id

import (
	"testing"

	"github.com/google/uuid"
)

func TestUUIDGenerator_NewID(t *testing.T) {
	t.Parallel()

	g := NewUUIDGenerator()
	first, err := g.NewID()
	if err != nil {
		t.Fatalf("NewID error: %v", err)
	}
	second := MustNewID(g)

	if first == second {
		t.Fatalf("expected distinct ids, got %s twice", first)
	}
	if _, err := uuid.Parse(first); err != nil {
		t.Fatalf("id %q is not a uuid: %v", first, err)
	}
}

func TestMustNewID_NilGenerator(t *testing.T) {
	t.Parallel()

	if got := MustNewID(nil); got != "" {
		t.Fatalf("expected empty id, got %q", got)
	}
}
