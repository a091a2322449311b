package model

import "time"

type MessageType string

const (
	MessageTypeUser   MessageType = "user"
	MessageTypeSystem MessageType = "system"
)

type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
)

type MediaType string

const (
	MediaTypeImage    MediaType = "image"
	MediaTypeVideo    MediaType = "video"
	MediaTypeDocument MediaType = "document"
)

const (
	// DefaultChannel is the room every client lands in unless it asks otherwise.
	DefaultChannel = "general"

	// UnsentPlaceholder replaces the text of an unsent message.
	UnsentPlaceholder = "This message was unsent"

	// DeletedPlaceholder is shown instead of a soft-deleted message's text.
	// The stored text is kept untouched; redaction happens in Presentable.
	DeletedPlaceholder = "[message deleted]"
)

// MediaItem is an externally hosted attachment. The chat core never touches
// the bytes, only the URL and whatever metadata the uploader reported.
type MediaItem struct {
	URL      string    `json:"url"`
	Type     MediaType `json:"type"`
	Filename string    `json:"filename,omitempty"`
	Size     int64     `json:"size,omitempty"`
	MimeType string    `json:"mimeType,omitempty"`
}

// ReplyPreview is a point-in-time snapshot of the message being replied to.
// It is never invalidated when the referenced message changes later.
type ReplyPreview struct {
	MessageID     string    `json:"messageId"`
	Text          string    `json:"text,omitempty"`
	AuthorName    string    `json:"authorName"`
	ThumbnailURL  string    `json:"thumbnailUrl,omitempty"`
	ThumbnailType MediaType `json:"thumbnailType,omitempty"`
	MediaCount    int       `json:"mediaCount,omitempty"`
}

type ReadReceipt struct {
	UserID string    `json:"userId"`
	ReadAt time.Time `json:"readAt"`
}

type EditRecord struct {
	Text     string    `json:"text"`
	EditedAt time.Time `json:"editedAt"`
}

// SystemEventKind enumerates the closed set of system message variants.
type SystemEventKind string

const (
	SystemEventNotice     SystemEventKind = "notice"
	SystemEventUserJoined SystemEventKind = "user_joined"
	SystemEventUserLeft   SystemEventKind = "user_left"
)

// SystemPayload carries only the fields its kind requires.
type SystemPayload struct {
	Kind     SystemEventKind `json:"kind"`
	UserID   string          `json:"userId,omitempty"`
	UserName string          `json:"userName,omitempty"`
	Notice   string          `json:"notice,omitempty"`
}

// Message is the central chat entity. Everything that belongs to a single
// message (reactions, receipts, edit history, reply snapshot) lives on the
// same row as JSON columns, so a per-row lock gives per-message atomicity.
type Message struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Channel   string    `gorm:"size:64;not null;default:'general';index:idx_messages_channel_created,priority:1" json:"channel"`
	CreatedAt time.Time `gorm:"index:idx_messages_channel_created,priority:2" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Type MessageType `gorm:"size:16;not null;default:'user'" json:"type"`

	Text  string      `gorm:"type:text" json:"text"`
	Media []MediaItem `gorm:"serializer:json" json:"media,omitempty"`

	// Author snapshot, denormalized so history renders after renames/deletes.
	AuthorID        string `gorm:"size:64;index:idx_messages_author" json:"authorId"`
	AuthorName      string `gorm:"size:120" json:"authorName"`
	AuthorAvatarURL string `gorm:"type:text" json:"authorAvatarUrl,omitempty"`

	Status MessageStatus `gorm:"size:16;not null;default:'sent'" json:"status"`

	IsEdited    bool         `json:"isEdited"`
	EditedAt    *time.Time   `json:"editedAt,omitempty"`
	EditHistory []EditRecord `gorm:"serializer:json" json:"editHistory,omitempty"`

	IsDeleted bool       `json:"isDeleted"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
	DeletedBy string     `gorm:"size:64" json:"deletedBy,omitempty"`

	IsUnsent     bool       `json:"isUnsent"`
	UnsentAt     *time.Time `json:"unsentAt,omitempty"`
	OriginalText string     `gorm:"type:text" json:"-"`

	ReplyToID *string       `gorm:"type:uuid" json:"replyToId,omitempty"`
	ReplyTo   *ReplyPreview `gorm:"serializer:json" json:"replyTo,omitempty"`

	// Reactions maps emoji to the set of user ids that reacted with it.
	Reactions map[string][]string `gorm:"serializer:json" json:"reactions,omitempty"`

	ReadBy []ReadReceipt `gorm:"serializer:json" json:"readBy,omitempty"`

	System *SystemPayload `gorm:"serializer:json" json:"system,omitempty"`
}

func (Message) TableName() string {
	return "messages"
}

// Active reports whether the message can still be edited or unsent.
// Deleted and Unsent are terminal states.
func (m *Message) Active() bool {
	return !m.IsDeleted && !m.IsUnsent
}

// ReactionCounts derives per-emoji counts from the reaction sets.
func (m *Message) ReactionCounts() map[string]int {
	if len(m.Reactions) == 0 {
		return nil
	}
	counts := make(map[string]int, len(m.Reactions))
	for emoji, users := range m.Reactions {
		counts[emoji] = len(users)
	}
	return counts
}

// HasRead reports whether userID already has a read receipt.
func (m *Message) HasRead(userID string) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// Presentable returns a copy safe to hand to clients. Soft-deleted messages
// keep their stored text in the database but go out redacted.
func (m *Message) Presentable() *Message {
	out := *m
	if out.IsDeleted {
		out.Text = DeletedPlaceholder
		out.Media = nil
		out.EditHistory = nil
	}
	out.OriginalText = ""
	return &out
}
