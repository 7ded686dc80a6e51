package httpclient

import "testing"

func TestParsePathCaptures(t *testing.T) {
	got, ok := parsePath("/users/42/posts/99", "/users/{user_id}/posts/{post_id}")
	if !ok {
		t.Fatal("expected match")
	}
	if got["user_id"] != "42" || got["post_id"] != "99" {
		t.Fatalf("unexpected captures: %v", got)
	}
}

func TestParsePathCatchAll(t *testing.T) {
	got, ok := parsePath("/files/docs/readme.md", "/files/{*rest}")
	if !ok {
		t.Fatal("expected match")
	}
	if got["rest"] != "docs/readme.md" {
		t.Fatalf("unexpected capture: %v", got)
	}
}

func TestParsePathNoMatch(t *testing.T) {
	_, ok := parsePath("/other", "/users/{id}")
	if ok {
		t.Fatal("expected no match")
	}
}

func TestParsePathNoCapturesMatches(t *testing.T) {
	got, ok := parsePath("/health", "/health")
	if !ok {
		t.Fatal("expected match")
	}
	if len(got) != 0 {
		t.Fatalf("expected empty captures, got %v", got)
	}
}

func TestParsePathSegmentCountMismatch(t *testing.T) {
	_, ok := parsePath("/users/42/extra", "/users/{id}")
	if ok {
		t.Fatal("expected no match on segment count mismatch")
	}
}
