package repo

import (
	"context"
	"errors"
	"testing"
)

func TestUpsertUserBySubject(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u1, err := UpsertUserBySubject(ctx, db, "sub-123", "Ada", "ada@example.com")
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if u1.ID == "" || u1.Subject != "sub-123" {
		t.Fatalf("u1 = %+v", u1)
	}

	// repeated sight of the subject returns the same row
	u2, err := UpsertUserBySubject(ctx, db, "sub-123", "Ada Updated", "other@example.com")
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if u2.ID != u1.ID {
		t.Errorf("upsert created duplicate: %s vs %s", u1.ID, u2.ID)
	}

	u3, err := UpsertUserBySubject(ctx, db, "sub-456", "Brin", "")
	if err != nil {
		t.Fatalf("third upsert: %v", err)
	}
	if u3.ID == u1.ID {
		t.Error("distinct subjects must map to distinct users")
	}
}

func TestGetUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u, err := UpsertUserBySubject(ctx, db, "sub-789", "Cleo", "cleo@example.com")
	if err != nil {
		t.Fatal(err)
	}

	got, err := GetUser(ctx, db, u.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Name != "Cleo" {
		t.Errorf("got = %+v", got)
	}

	if _, err := GetUser(ctx, db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing err = %v; want ErrNotFound", err)
	}
}
