package repository

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hackhub/backend/internal/model"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository owns the messages table. Mutations of a single message go
// through Mutate, which serializes them with a per-row lock; there are no
// cross-message transactions.
type MessageRepository interface {
	Append(ctx context.Context, msg *model.Message) error
	FindByID(ctx context.Context, id string) (*model.Message, error)

	// Page returns non-deleted messages oldest first, strictly after the
	// cursor. A cursor derived from (createdAt, id) never skips or duplicates
	// under concurrent appends.
	Page(ctx context.Context, channel, cursor string, limit int) ([]model.Message, bool, string, error)

	// PageByNumber is the offset flavour used by the REST surface.
	PageByNumber(ctx context.Context, channel string, page, limit int) ([]model.Message, int64, bool, error)

	Search(ctx context.Context, channel, query string, limit int) ([]model.Message, error)
	ByAuthor(ctx context.Context, authorID string, limit int) ([]model.Message, error)

	Mutate(ctx context.Context, id string, fn func(*model.Message) error) (*model.Message, error)
	MarkDelivered(ctx context.Context, ids []string) (int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Append(ctx context.Context, msg *model.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Channel == "" {
		msg.Channel = model.DefaultChannel
	}
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

func (r *messageRepository) FindByID(ctx context.Context, id string) (*model.Message, error) {
	var msg model.Message
	err := r.db.WithContext(ctx).First(&msg, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to find message: %w", err)
	}
	return &msg, nil
}

// encodeCursor packs the sort key of the last returned row.
func encodeCursor(t time.Time, id string) string {
	raw := strconv.FormatInt(t.UnixNano(), 10) + "|" + id
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(cursor string) (time.Time, string, error) {
	raw, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("invalid cursor: %w", err)
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", errors.New("invalid cursor format")
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("invalid cursor timestamp: %w", err)
	}
	return time.Unix(0, nanos), parts[1], nil
}

func (r *messageRepository) Page(ctx context.Context, channel, cursor string, limit int) ([]model.Message, bool, string, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	q := r.db.WithContext(ctx).
		Where("channel = ? AND is_deleted = ?", channel, false).
		Order("created_at ASC, id ASC").
		Limit(limit + 1)

	if cursor != "" {
		after, afterID, err := decodeCursor(cursor)
		if err != nil {
			return nil, false, "", err
		}
		// Ties on created_at are broken by id, same as the sort order.
		q = q.Where("(created_at, id) > (?, ?)", after, afterID)
	}

	var messages []model.Message
	if err := q.Find(&messages).Error; err != nil {
		return nil, false, "", fmt.Errorf("failed to page messages: %w", err)
	}

	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[:limit]
	}

	next := ""
	if len(messages) > 0 {
		last := messages[len(messages)-1]
		next = encodeCursor(last.CreatedAt, last.ID)
	}
	return messages, hasMore, next, nil
}

func (r *messageRepository) PageByNumber(ctx context.Context, channel string, page, limit int) ([]model.Message, int64, bool, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	base := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("channel = ? AND is_deleted = ?", channel, false)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, false, fmt.Errorf("failed to count messages: %w", err)
	}

	var messages []model.Message
	err := base.
		Order("created_at ASC, id ASC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to page messages: %w", err)
	}

	hasMore := int64(page*limit) < total
	return messages, total, hasMore, nil
}

func (r *messageRepository) Search(ctx context.Context, channel, query string, limit int) ([]model.Message, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}

	pattern := "%" + strings.TrimSpace(query) + "%"
	q := r.db.WithContext(ctx).
		Where("is_deleted = ?", false).
		Where("(text ILIKE ? OR author_name ILIKE ?)", pattern, pattern)
	if channel != "" {
		q = q.Where("channel = ?", channel)
	}

	var messages []model.Message
	err := q.Order("created_at DESC").Limit(limit).Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	return messages, nil
}

func (r *messageRepository) ByAuthor(ctx context.Context, authorID string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	var messages []model.Message
	err := r.db.WithContext(ctx).
		Where("author_id = ? AND is_deleted = ?", authorID, false).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages by author: %w", err)
	}
	return messages, nil
}

// Mutate loads the row under SELECT ... FOR UPDATE, applies fn and saves the
// result. Concurrent mutations of the same id are serialized by the row lock;
// there is no version counter, so the last applied patch wins.
func (r *messageRepository) Mutate(ctx context.Context, id string, fn func(*model.Message) error) (*model.Message, error) {
	var out *model.Message
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var msg model.Message
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&msg, "id = ?", id).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMessageNotFound
			}
			return fmt.Errorf("failed to lock message: %w", err)
		}

		if err := fn(&msg); err != nil {
			return err
		}

		if err := tx.Save(&msg).Error; err != nil {
			return fmt.Errorf("failed to save message: %w", err)
		}
		out = &msg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *messageRepository) MarkDelivered(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("id IN ? AND status = ?", ids, model.MessageStatusSent).
		Update("status", model.MessageStatusDelivered)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to mark messages delivered: %w", res.Error)
	}
	return res.RowsAffected, nil
}
