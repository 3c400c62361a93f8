package store

import (
	"context"
	"testing"
	"time"
)

func setupSessionTest(t *testing.T) (*SessionStore, string) {
	t.Helper()
	db := openTestDB(t)
	u, err := NewUserStore(db).Create(context.Background(), "session@example.com", "Session")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return NewSessionStore(db), u.ID
}

func TestSessionCreateAndGet(t *testing.T) {
	s, userID := setupSessionTest(t)
	ctx := context.Background()

	sess, err := s.Create(ctx, userID, time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if len(sess.Token) != 64 {
		t.Errorf("token length = %d, want 64", len(sess.Token))
	}

	got, err := s.GetByToken(ctx, sess.Token)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got == nil || got.UserID != userID || got.ID != sess.ID {
		t.Fatalf("got %+v", got)
	}

	var stored string
	if err := s.db.QueryRow(`SELECT token_digest FROM sessions WHERE id = ?`, sess.ID).Scan(&stored); err != nil {
		t.Fatalf("query digest: %v", err)
	}
	if stored == sess.Token {
		t.Error("raw token must not be stored")
	}
	if stored != tokenDigest(sess.Token) {
		t.Error("stored digest does not match token")
	}
}

func TestSessionUnknownToken(t *testing.T) {
	s, _ := setupSessionTest(t)

	got, err := s.GetByToken(context.Background(), "not-a-token")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got != nil {
		t.Error("expected nil for unknown token")
	}
}

func TestSessionExpiry(t *testing.T) {
	s, userID := setupSessionTest(t)
	ctx := context.Background()

	expired, err := s.Create(ctx, userID, -time.Minute)
	if err != nil {
		t.Fatalf("create expired session: %v", err)
	}
	live, err := s.Create(ctx, userID, time.Hour)
	if err != nil {
		t.Fatalf("create live session: %v", err)
	}

	got, err := s.GetByToken(ctx, expired.Token)
	if err != nil {
		t.Fatalf("get expired: %v", err)
	}
	if got != nil {
		t.Error("expired session should not resolve")
	}

	n, err := s.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d, want 1", n)
	}

	got, _ = s.GetByToken(ctx, live.Token)
	if got == nil {
		t.Error("live session should survive cleanup")
	}
}

func TestSessionDelete(t *testing.T) {
	s, userID := setupSessionTest(t)
	ctx := context.Background()

	sess, err := s.Create(ctx, userID, time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := s.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	got, _ := s.GetByToken(ctx, sess.Token)
	if got != nil {
		t.Error("deleted session should not resolve")
	}
}
