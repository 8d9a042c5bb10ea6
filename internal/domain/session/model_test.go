package session

import "testing"

func TestTokenPair_WithAccessRetainsRefresh(t *testing.T) {
	t.Parallel()

	pair := TokenPair{Access: "A1", Refresh: "R1"}
	next := pair.WithAccess("A2")

	if next.Access != "A2" || next.Refresh != "R1" {
		t.Fatalf("unexpected pair: %+v", next)
	}
	if pair.Access != "A1" {
		t.Fatalf("original pair must not change, got %+v", pair)
	}
}

func TestTokenPair_Validate(t *testing.T) {
	t.Parallel()

	if err := (TokenPair{Access: "A1"}).Validate(); err == nil {
		t.Fatalf("expected error for missing refresh token")
	}
	if err := (TokenPair{Refresh: "R1"}).Validate(); err == nil {
		t.Fatalf("expected error for missing access token")
	}
	if err := (TokenPair{Access: "A1", Refresh: "R1"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIdentity_HasRole(t *testing.T) {
	t.Parallel()

	judge := Identity{Username: "alice", IsJudge: true}
	if !judge.HasRole(RoleJudge) || judge.HasRole(RolePlayer) {
		t.Fatalf("unexpected roles for %+v", judge)
	}
	if judge.HasRole(Role("admin")) {
		t.Fatalf("unknown role must never match")
	}
	if _, err := ParseRole("admin"); err == nil {
		t.Fatalf("expected parse error for unknown role")
	}
}
