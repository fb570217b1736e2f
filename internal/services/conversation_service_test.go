package services

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/xAGI-labs/charstream-sub001/internal/repo"
)

// openTestDB opens a throwaway SQLite database with the full schema.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedCharacter(t *testing.T, db *gorm.DB, ownerID, name string, public bool) string {
	t.Helper()
	c, err := repo.CreateCharacter(context.Background(), db, ownerID, name, "a test persona", "https://res.cloudinary.com/demo/a.png", public)
	if err != nil {
		t.Fatalf("seed character: %v", err)
	}
	return c.ID
}

func TestStart_CreatesTitledConversationWithGreeting(t *testing.T) {
	db := openTestDB(t)
	charID := seedCharacter(t, db, "owner", "luna lovegood", true)
	s := &ConversationService{DB: db}

	conv, err := s.Start(context.Background(), "u1", charID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if conv.Title != "Chat With Luna Lovegood" {
		t.Errorf("title = %q", conv.Title)
	}

	msgs, total, err := s.ListMessagesPage(context.Background(), "u1", conv.ID, 1, 10)
	if err != nil {
		t.Fatalf("ListMessagesPage: %v", err)
	}
	if total != 1 || len(msgs) != 1 {
		t.Fatalf("want a single greeting, got total=%d", total)
	}
	if msgs[0].Role != roleCharacter || !strings.Contains(msgs[0].Content, "luna lovegood") {
		t.Errorf("greeting = %+v", msgs[0])
	}
}

func TestStart_HiddenCharacter(t *testing.T) {
	db := openTestDB(t)
	charID := seedCharacter(t, db, "owner", "Secret", false)
	s := &ConversationService{DB: db}

	if _, err := s.Start(context.Background(), "stranger", charID); !errors.Is(err, ErrCharacterNotFound) {
		t.Errorf("stranger err = %v; want ErrCharacterNotFound", err)
	}
	if _, err := s.Start(context.Background(), "owner", charID); err != nil {
		t.Errorf("owner start: %v", err)
	}
	if _, err := s.Start(context.Background(), "u1", "no-such-id"); !errors.Is(err, ErrCharacterNotFound) {
		t.Errorf("missing err = %v; want ErrCharacterNotFound", err)
	}
}

func TestAppend_PersistsPairAndReturnsReply(t *testing.T) {
	db := openTestDB(t)
	charID := seedCharacter(t, db, "owner", "Gandalf", true)
	s := &ConversationService{DB: db}

	conv, err := s.Start(context.Background(), "u1", charID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	reply, err := s.Append(context.Background(), "u1", conv.ID, "  tell me about the road ahead  ")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if reply.Role != roleCharacter || !strings.Contains(reply.Content, "Gandalf") {
		t.Errorf("reply = %+v", reply)
	}

	msgs, total, err := s.ListMessagesPage(context.Background(), "u1", conv.ID, 1, 10)
	if err != nil {
		t.Fatalf("ListMessagesPage: %v", err)
	}
	if total != 3 { // greeting + user + reply
		t.Fatalf("total = %d; want 3", total)
	}
	if msgs[1].Role != roleUser || msgs[1].Content != "tell me about the road ahead" {
		t.Errorf("user message = %+v", msgs[1])
	}
}

func TestAppend_Validation(t *testing.T) {
	db := openTestDB(t)
	charID := seedCharacter(t, db, "owner", "Kira", true)
	s := &ConversationService{DB: db, MaxMessageRunes: 10}

	conv, err := s.Start(context.Background(), "u1", charID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := s.Append(context.Background(), "u1", conv.ID, "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("blank err = %v; want ErrEmptyMessage", err)
	}
	if _, err := s.Append(context.Background(), "u1", conv.ID, "this is far too long"); !errors.Is(err, ErrTooLong) {
		t.Errorf("long err = %v; want ErrTooLong", err)
	}
	if _, err := s.Append(context.Background(), "someone-else", conv.ID, "hi"); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("foreign conversation err = %v; want ErrConversationNotFound", err)
	}
}

func TestList_ScopedToUser(t *testing.T) {
	db := openTestDB(t)
	charID := seedCharacter(t, db, "owner", "Zed", true)
	s := &ConversationService{DB: db}

	if _, err := s.Start(context.Background(), "u1", charID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Start(context.Background(), "u2", charID); err != nil {
		t.Fatal(err)
	}

	convs, err := s.List(context.Background(), "u1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(convs) != 1 || convs[0].UserID != "u1" {
		t.Errorf("convs = %+v", convs)
	}
}

func TestListMessagesPage_UnknownConversation(t *testing.T) {
	db := openTestDB(t)
	s := &ConversationService{DB: db}
	if _, _, err := s.ListMessagesPage(context.Background(), "u1", "missing", 1, 10); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("err = %v; want ErrConversationNotFound", err)
	}
}

func TestClipRunes(t *testing.T) {
	if got := clipRunes("héllo wörld", 5); got != "héllo" {
		t.Errorf("clipRunes = %q", got)
	}
	if got := clipRunes("short", 100); got != "short" {
		t.Errorf("clipRunes = %q", got)
	}
}
