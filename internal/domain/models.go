// Package domain defines the persistence models for users, characters, and
// conversations. These types are mapped with GORM and form the core data
// layer of the character-chat application.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// User represents an account as known to this service. Identity is delegated
// to an external provider; the row stores only the provider subject and basic
// profile data needed for ownership checks and display.
type User struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	Subject   string         `json:"-"          gorm:"type:varchar(128);not null;uniqueIndex:ux_user_subject"`
	Name      string         `json:"name"       gorm:"type:varchar(255)"`
	Email     string         `json:"email,omitempty" gorm:"type:varchar(255);index"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Character represents an AI persona users can converse with.
//
// ImageURL carries an invariant enforced by the service layer: once it holds
// a durable-store URL it is never overwritten with a transient provider URL.
// Deleting a character cascades to its conversations via FK constraints.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Name / Description: persona identity; Description feeds the avatar
//     generation prompt and the chat system prompt.
//   - ImageURL: durable avatar URL, or empty when resolution failed and the
//     client renders a deterministic placeholder.
//   - Public: whether the character is listed for all users.
//   - OwnerID: creator reference; indexed for "my characters" queries.
type Character struct {
	ID          string         `json:"id"          gorm:"type:char(36);primaryKey"`
	Name        string         `json:"name"        gorm:"type:varchar(255);not null;index"`
	Description string         `json:"description" gorm:"type:text"`
	ImageURL    string         `json:"image_url"   gorm:"type:varchar(512)"`
	Public      bool           `json:"public"      gorm:"not null;default:false;index"`
	OwnerID     string         `json:"owner_id"    gorm:"type:char(36);not null;index:idx_owner_characters"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"           gorm:"index"`
}

// TableName returns the database table name for Character.
func (Character) TableName() string { return "characters" }

// HomeCharacter is a curated, admin-managed variant of Character shown on the
// landing page. Category and DisplayOrder control presentation only; the
// ImageURL invariant is the same as Character's.
type HomeCharacter struct {
	ID           string         `json:"id"            gorm:"type:char(36);primaryKey"`
	Name         string         `json:"name"          gorm:"type:varchar(255);not null"`
	Description  string         `json:"description"   gorm:"type:text"`
	ImageURL     string         `json:"image_url"     gorm:"type:varchar(512)"`
	Category     string         `json:"category"      gorm:"type:varchar(64);not null;default:'featured';index:idx_home_category,priority:1"`
	DisplayOrder int            `json:"display_order" gorm:"not null;default:0;index:idx_home_category,priority:2"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-"             gorm:"index"`
}

// TableName returns the database table name for HomeCharacter.
func (HomeCharacter) TableName() string { return "home_characters" }

// Conversation links a user to a character. Messages hang off it and are
// cascade-deleted with their conversation; conversations themselves cascade
// when the character is removed.
type Conversation struct {
	ID          string         `json:"id"           gorm:"type:char(36);primaryKey"`
	UserID      string         `json:"user_id"      gorm:"type:char(36);not null;index:idx_user_convs"`
	CharacterID string         `json:"character_id" gorm:"type:char(36);not null;index"`
	Title       string         `json:"title"        gorm:"type:varchar(255);not null;default:'New conversation'"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"            gorm:"index"`

	Character Character `json:"-" gorm:"foreignKey:CharacterID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// Message is a single utterance within a conversation, authored either by
// the "user" or the "character".
type Message struct {
	ID             string         `json:"id"              gorm:"type:char(36);primaryKey"`
	ConversationID string         `json:"conversation_id" gorm:"type:char(36);not null;index:idx_conv_msgs,priority:1"`
	Role           string         `json:"role"            gorm:"type:varchar(16);not null;check:role IN ('user','character')"`
	Content        string         `json:"content"         gorm:"type:text;not null"`
	CreatedAt      time.Time      `json:"created_at"      gorm:"index:idx_conv_msgs,priority:2"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-"               gorm:"index"`

	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }
