package repo

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCreateAndGetCharacter(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	c, err := CreateCharacter(ctx, db, "u1", "Aria", "singer", "https://res.cloudinary.com/demo/a.png", true)
	if err != nil {
		t.Fatalf("CreateCharacter: %v", err)
	}
	if c.ID == "" {
		t.Fatal("missing generated ID")
	}

	got, err := GetCharacter(ctx, db, c.ID)
	if err != nil {
		t.Fatalf("GetCharacter: %v", err)
	}
	if got.Name != "Aria" || got.OwnerID != "u1" || !got.Public {
		t.Errorf("got = %+v", got)
	}

	if _, err := GetCharacter(ctx, db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing err = %v; want ErrNotFound", err)
	}
}

func TestGetCharacterByName_CaseInsensitiveLatest(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	old, err := CreateCharacter(ctx, db, "u1", "Merlin", "first", "x", true)
	if err != nil {
		t.Fatal(err)
	}
	// later row with the same name wins
	db.Model(old).Update("created_at", time.Now().UTC().Add(-time.Hour))
	newer, err := CreateCharacter(ctx, db, "u2", "merlin", "second", "y", true)
	if err != nil {
		t.Fatal(err)
	}

	got, err := GetCharacterByName(ctx, db, "MERLIN")
	if err != nil {
		t.Fatalf("GetCharacterByName: %v", err)
	}
	if got.ID != newer.ID {
		t.Errorf("got %s; want latest %s", got.ID, newer.ID)
	}

	if _, err := GetCharacterByName(ctx, db, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing err = %v; want ErrNotFound", err)
	}
}

func TestPublicListingAndCounts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i, pub := range []bool{true, true, false} {
		if _, err := CreateCharacter(ctx, db, "u1", "c", "", "x", pub); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}

	total, err := CountPublicCharacters(ctx, db)
	if err != nil || total != 2 {
		t.Fatalf("count = %d err = %v; want 2", total, err)
	}

	page, err := ListPublicCharactersPage(ctx, db, 0, 10)
	if err != nil || len(page) != 2 {
		t.Fatalf("page = %d err = %v; want 2", len(page), err)
	}
	for _, c := range page {
		if !c.Public {
			t.Errorf("private character leaked: %+v", c)
		}
	}

	owned, err := CountOwnedCharacters(ctx, db, "u1")
	if err != nil || owned != 3 {
		t.Fatalf("owned = %d err = %v; want 3", owned, err)
	}
	ownedPage, err := ListOwnedCharactersPage(ctx, db, "u1", 0, 2)
	if err != nil || len(ownedPage) != 2 {
		t.Fatalf("owned page = %d err = %v; want 2", len(ownedPage), err)
	}
}

func TestUpdateCharacter_OwnershipScoped(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	c, err := CreateCharacter(ctx, db, "u1", "Original", "", "x", false)
	if err != nil {
		t.Fatal(err)
	}

	if err := UpdateCharacter(ctx, db, c.ID, "u2", map[string]any{"name": "Hijacked"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign update err = %v; want ErrNotFound", err)
	}

	if err := UpdateCharacter(ctx, db, c.ID, "u1", map[string]any{"name": "Renamed", "public": true}); err != nil {
		t.Fatalf("owner update: %v", err)
	}
	got, _ := GetCharacter(ctx, db, c.ID)
	if got.Name != "Renamed" || !got.Public {
		t.Errorf("got = %+v", got)
	}
}

func TestUpdateCharacterImage_NoOwnershipCheck(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	c, err := CreateCharacter(ctx, db, "u1", "Migrated", "", "https://api.together.xyz/x.png", true)
	if err != nil {
		t.Fatal(err)
	}
	durable := "https://res.cloudinary.com/demo/character-avatars/x.png"
	if err := UpdateCharacterImage(ctx, db, c.ID, durable); err != nil {
		t.Fatalf("UpdateCharacterImage: %v", err)
	}
	got, _ := GetCharacter(ctx, db, c.ID)
	if got.ImageURL != durable {
		t.Errorf("image_url = %q", got.ImageURL)
	}

	if err := UpdateCharacterImage(ctx, db, "missing", durable); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing err = %v; want ErrNotFound", err)
	}
}

func TestDeleteCharacter(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	c, err := CreateCharacter(ctx, db, "u1", "Doomed", "", "x", true)
	if err != nil {
		t.Fatal(err)
	}

	if err := DeleteCharacter(ctx, db, c.ID, "u2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign delete err = %v; want ErrNotFound", err)
	}
	if err := DeleteCharacter(ctx, db, c.ID, "u1"); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, err := GetCharacter(ctx, db, c.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted row still readable: %v", err)
	}
}

func TestListTransientAvatarCharacters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	urls := []string{
		"https://api.together.xyz/imgproxy/a.png",
		"https://replicate.delivery/pbxt/b.png",
		"https://res.cloudinary.com/demo/character-avatars/c.png",
		"https://api.dicebear.com/7.x/initials/svg?seed=D",
	}
	for _, u := range urls {
		if _, err := CreateCharacter(ctx, db, "u1", "n", "", u, true); err != nil {
			t.Fatal(err)
		}
	}

	stale, err := ListTransientAvatarCharacters(ctx, db, []string{"together.xyz", "replicate.delivery"})
	if err != nil {
		t.Fatalf("ListTransientAvatarCharacters: %v", err)
	}
	if len(stale) != 2 {
		t.Fatalf("stale = %d; want 2", len(stale))
	}
	for _, c := range stale {
		if c.ImageURL == urls[2] || c.ImageURL == urls[3] {
			t.Errorf("durable URL matched: %q", c.ImageURL)
		}
	}

	empty, err := ListTransientAvatarCharacters(ctx, db, nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("no hosts should match nothing: %v %d", err, len(empty))
	}
}
