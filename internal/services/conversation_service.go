// Package services – ConversationService
//
// This file implements ConversationService, which owns the lifecycle of
// conversations and their messages. It verifies character visibility, starts
// conversations with a generated title and greeting, and persists user /
// character message pairs atomically.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/xAGI-labs/charstream-sub001/internal/domain"
	"github.com/xAGI-labs/charstream-sub001/internal/repo"
)

const (
	roleUser      = "user"
	roleCharacter = "character"
)

// ConversationService coordinates conversation persistence and the persona
// reply path.
type ConversationService struct {
	DB *gorm.DB

	// MaxMessageRunes guards user message length; 0 disables the check.
	MaxMessageRunes int
	// TitleLocale selects casing rules for generated titles.
	TitleLocale language.Tag
}

// Start creates a conversation between userID and a visible character, and
// seeds it with a greeting message authored by the character.
func (s *ConversationService) Start(ctx context.Context, userID, characterID string) (*domain.Conversation, error) {
	c, err := repo.GetCharacter(ctx, s.DB, characterID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCharacterNotFound
		}
		return nil, err
	}
	if !c.Public && c.OwnerID != userID {
		return nil, ErrCharacterNotFound
	}

	title := cases.Title(s.localeOrDefault()).String("chat with " + c.Name)
	var conv *domain.Conversation
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cv, err := repo.CreateConversation(ctx, tx, userID, characterID, title)
		if err != nil {
			return err
		}
		conv = cv
		_, err = repo.CreateMessage(tx, cv.ID, roleCharacter, greeting(c))
		return err
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// List returns the user's conversations, most recent first.
func (s *ConversationService) List(ctx context.Context, userID string) ([]domain.Conversation, error) {
	return repo.ListConversations(ctx, s.DB, userID)
}

// Append validates and persists a user message plus the character's reply in
// one transaction, returning the reply.
func (s *ConversationService) Append(ctx context.Context, userID, conversationID, content string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if s.MaxMessageRunes > 0 && utf8.RuneCountInString(content) > s.MaxMessageRunes {
		return nil, ErrTooLong
	}

	conv, err := repo.GetConversation(ctx, s.DB, conversationID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}

	c, err := repo.GetCharacter(ctx, s.DB, conv.CharacterID)
	if err != nil {
		return nil, err
	}

	var reply *domain.Message
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.CreateMessage(tx, conversationID, roleUser, content); err != nil {
			return err
		}
		m, err := repo.CreateMessage(tx, conversationID, roleCharacter, personaReply(c, content))
		if err != nil {
			return err
		}
		reply = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// ListMessagesPage returns paginated messages for a conversation owned by
// userID.
func (s *ConversationService) ListMessagesPage(ctx context.Context, userID, conversationID string, page, pageSize int) ([]domain.Message, int64, error) {
	page, pageSize = clampPage(page, pageSize)
	offset := (page - 1) * pageSize

	if _, err := repo.GetConversation(ctx, s.DB, conversationID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, ErrConversationNotFound
		}
		return nil, 0, err
	}

	total, err := repo.CountMessages(s.DB.WithContext(ctx), conversationID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}

	items, err := repo.ListMessagesPage(s.DB.WithContext(ctx), conversationID, offset, pageSize)
	return items, total, err
}

func (s *ConversationService) localeOrDefault() language.Tag {
	if s.TitleLocale == language.Und {
		return language.English
	}
	return s.TitleLocale
}

// greeting is the character's opening line for a fresh conversation.
func greeting(c *domain.Character) string {
	if d := strings.TrimSpace(c.Description); d != "" {
		return fmt.Sprintf("Hi, I'm %s. %s What would you like to talk about?", c.Name, d)
	}
	return fmt.Sprintf("Hi, I'm %s. What would you like to talk about?", c.Name)
}

// personaReply produces the character's in-persona answer. The model-backed
// reply pipeline lives behind this seam; the stand-in keeps conversations
// functional when no inference backend is configured.
func personaReply(c *domain.Character, prompt string) string {
	return fmt.Sprintf("%s considers your words. %q. Tell me more.", c.Name, clipRunes(prompt, 120))
}

// clipRunes truncates s to max runes.
func clipRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
