package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"hackhub/backend/internal/model"
	"hackhub/backend/internal/repository"
	"hackhub/backend/internal/telemetry"
)

const (
	MaxTextLength      = 2000
	MaxEmojiLength     = 32
	EditWindow         = 15 * time.Minute
	ReplyPreviewLength = 100

	dispatchTimeout = 10 * time.Second
)

// Engine owns every message lifecycle transition. It validates, mutates the
// store and returns the canonical persisted record; broadcasting that record
// is the gateway's job. Notification dispatch happens off the critical path.
type Engine struct {
	messages repository.MessageRepository
	users    repository.UserRepository
	cache    repository.ChannelCache
	limiter  Limiter
	notifier Dispatcher
}

func NewEngine(
	messages repository.MessageRepository,
	users repository.UserRepository,
	cache repository.ChannelCache,
	limiter Limiter,
	notifier Dispatcher,
) *Engine {
	return &Engine{
		messages: messages,
		users:    users,
		cache:    cache,
		limiter:  limiter,
		notifier: notifier,
	}
}

type CreateParams struct {
	SenderID  string
	Channel   string
	Text      string
	Media     []model.MediaItem
	ReplyToID string
}

// Create validates and persists a new message, resolving the reply snapshot
// if one was requested, then hands the push fan-out to the dispatcher without
// waiting for it.
func (e *Engine) Create(ctx context.Context, p CreateParams) (*model.Message, error) {
	if p.SenderID == "" {
		return nil, ErrUnknownSender
	}
	if !e.limiter.Admit(p.SenderID) {
		return nil, ErrRateLimited
	}

	text := strings.TrimSpace(p.Text)
	if text == "" && len(p.Media) == 0 {
		return nil, ErrInvalidContent
	}
	if len(text) > MaxTextLength {
		return nil, ErrInvalidContent
	}

	author, err := e.users.GetByID(ctx, p.SenderID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnknownSender
		}
		return nil, fmt.Errorf("resolving sender: %w", ErrUpstream)
	}

	channel := p.Channel
	if channel == "" {
		channel = model.DefaultChannel
	}

	msg := &model.Message{
		Channel:         channel,
		Type:            model.MessageTypeUser,
		Text:            text,
		Media:           p.Media,
		AuthorID:        author.ID,
		AuthorName:      author.Name,
		AuthorAvatarURL: author.AvatarURL,
		Status:          model.MessageStatusSent,
	}

	if p.ReplyToID != "" {
		if snapshot := e.resolveReplySnapshot(ctx, channel, p.ReplyToID); snapshot != nil {
			id := p.ReplyToID
			msg.ReplyToID = &id
			msg.ReplyTo = snapshot
		}
	}

	if err := e.messages.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("appending message: %w", ErrUpstream)
	}
	telemetry.MessagesCreated.Inc()

	if e.cache != nil {
		if err := e.cache.PushMessage(ctx, channel, msg); err != nil {
			log.Printf("channel cache write failed: %v", err)
		}
	}

	go e.notifyCreated(msg)

	return msg, nil
}

// resolveReplySnapshot captures a point-in-time preview of the referenced
// message. A missing, deleted or unsent referent is not an error; the new
// message is simply created without reply metadata.
func (e *Engine) resolveReplySnapshot(ctx context.Context, channel, replyToID string) *model.ReplyPreview {
	ref, err := e.messages.FindByID(ctx, replyToID)
	if err != nil {
		return nil
	}
	if !ref.Active() || ref.Channel != channel {
		return nil
	}

	snapshot := &model.ReplyPreview{
		MessageID:  ref.ID,
		Text:       truncate(ref.Text, ReplyPreviewLength),
		AuthorName: ref.AuthorName,
		MediaCount: len(ref.Media),
	}
	if len(ref.Media) > 0 {
		snapshot.ThumbnailURL = ref.Media[0].URL
		snapshot.ThumbnailType = ref.Media[0].Type
	}
	return snapshot
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}

// Edit replaces the text of an active message. Only the author may edit, and
// only within the edit window; the prior text is kept in the edit history.
func (e *Engine) Edit(ctx context.Context, id, requesterID, text string) (*model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" || len(text) > MaxTextLength {
		return nil, ErrInvalidContent
	}

	msg, err := e.messages.Mutate(ctx, id, func(m *model.Message) error {
		if !m.Active() {
			return ErrNotFound
		}
		if m.AuthorID != requesterID {
			return ErrNotOwner
		}
		if time.Since(m.CreatedAt) > EditWindow {
			return ErrTooOld
		}

		now := time.Now()
		m.EditHistory = append(m.EditHistory, model.EditRecord{Text: m.Text, EditedAt: now})
		m.Text = text
		m.IsEdited = true
		m.EditedAt = &now
		return nil
	})
	if err != nil {
		return nil, e.mapMutateErr(err)
	}

	e.invalidateChannel(ctx, msg.Channel)
	return msg, nil
}

// Delete soft-deletes a message. Permitted for the author or an elevated
// role; the stored text is left intact and redacted at the presentation
// boundary.
func (e *Engine) Delete(ctx context.Context, id, requesterID string) (*model.Message, error) {
	requester, err := e.users.GetByID(ctx, requesterID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnknownSender
		}
		return nil, fmt.Errorf("resolving requester: %w", ErrUpstream)
	}

	msg, err := e.messages.Mutate(ctx, id, func(m *model.Message) error {
		if m.IsUnsent {
			return ErrNotFound
		}
		if m.IsDeleted {
			// Already terminal; nothing to re-apply.
			return nil
		}
		if m.AuthorID != requesterID && !requester.Elevated() {
			return ErrNotOwner
		}

		now := time.Now()
		m.IsDeleted = true
		m.DeletedAt = &now
		m.DeletedBy = requesterID
		return nil
	})
	if err != nil {
		return nil, e.mapMutateErr(err)
	}

	e.invalidateChannel(ctx, msg.Channel)
	return msg, nil
}

// Unsend is the stronger, author-only redaction: the original text is
// archived, the visible text becomes a fixed placeholder and all media is
// cleared. No role overrides this, and no time window bounds it.
func (e *Engine) Unsend(ctx context.Context, id, requesterID string) (*model.Message, error) {
	msg, err := e.messages.Mutate(ctx, id, func(m *model.Message) error {
		if !m.Active() {
			return ErrNotFound
		}
		if m.AuthorID != requesterID {
			return ErrNotOwner
		}

		now := time.Now()
		m.OriginalText = m.Text
		m.Text = model.UnsentPlaceholder
		m.Media = nil
		m.IsUnsent = true
		m.UnsentAt = &now
		return nil
	})
	if err != nil {
		return nil, e.mapMutateErr(err)
	}

	e.invalidateChannel(ctx, msg.Channel)
	return msg, nil
}

// React adds the sender to the emoji's reaction set, creating it if absent.
func (e *Engine) React(ctx context.Context, id, senderID, emoji string) (*model.Message, error) {
	if _, err := e.users.GetByID(ctx, senderID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnknownSender
		}
		return nil, fmt.Errorf("resolving sender: %w", ErrUpstream)
	}

	emoji = strings.TrimSpace(emoji)
	if emoji == "" || len(emoji) > MaxEmojiLength {
		return nil, ErrInvalidContent
	}

	msg, err := e.messages.Mutate(ctx, id, func(m *model.Message) error {
		if m.Reactions == nil {
			m.Reactions = make(map[string][]string)
		}
		for _, uid := range m.Reactions[emoji] {
			if uid == senderID {
				return nil
			}
		}
		m.Reactions[emoji] = append(m.Reactions[emoji], senderID)
		return nil
	})
	if err != nil {
		return nil, e.mapMutateErr(err)
	}

	e.invalidateChannel(ctx, msg.Channel)
	return msg, nil
}

// RemoveReaction removes the sender from the emoji's set, dropping the entry
// once it empties. Removing a reaction that was never added is a no-op.
func (e *Engine) RemoveReaction(ctx context.Context, id, senderID, emoji string) (*model.Message, error) {
	msg, err := e.messages.Mutate(ctx, id, func(m *model.Message) error {
		users, ok := m.Reactions[emoji]
		if !ok {
			return nil
		}
		kept := users[:0]
		for _, uid := range users {
			if uid != senderID {
				kept = append(kept, uid)
			}
		}
		if len(kept) == 0 {
			delete(m.Reactions, emoji)
		} else {
			m.Reactions[emoji] = kept
		}
		return nil
	})
	if err != nil {
		return nil, e.mapMutateErr(err)
	}

	e.invalidateChannel(ctx, msg.Channel)
	return msg, nil
}

// MarkRead appends a read receipt for the sender. The author's own reads are
// ignored, and a second read by the same sender is a no-op.
func (e *Engine) MarkRead(ctx context.Context, id, senderID string) (*model.Message, error) {
	msg, err := e.messages.Mutate(ctx, id, func(m *model.Message) error {
		if senderID == "" || senderID == m.AuthorID {
			return nil
		}
		if m.HasRead(senderID) {
			return nil
		}
		m.ReadBy = append(m.ReadBy, model.ReadReceipt{UserID: senderID, ReadAt: time.Now()})
		m.Status = model.MessageStatusRead
		return nil
	})
	if err != nil {
		return nil, e.mapMutateErr(err)
	}
	return msg, nil
}

// MarkDelivered bulk-transitions sent messages to delivered.
func (e *Engine) MarkDelivered(ctx context.Context, ids []string) (int64, error) {
	n, err := e.messages.MarkDelivered(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("marking delivered: %w", ErrUpstream)
	}
	return n, nil
}

// CreateSystem persists a system message. System messages are exempt from the
// non-empty-content rule.
func (e *Engine) CreateSystem(ctx context.Context, channel string, payload model.SystemPayload) (*model.Message, error) {
	if channel == "" {
		channel = model.DefaultChannel
	}

	msg := &model.Message{
		Channel: channel,
		Type:    model.MessageTypeSystem,
		Text:    payload.Notice,
		System:  &payload,
		Status:  model.MessageStatusSent,
	}
	if err := e.messages.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("appending system message: %w", ErrUpstream)
	}

	if e.cache != nil {
		if err := e.cache.PushMessage(ctx, channel, msg); err != nil {
			log.Printf("channel cache write failed: %v", err)
		}
	}
	return msg, nil
}

// Get returns a single message, for reply lookups.
func (e *Engine) Get(ctx context.Context, id string) (*model.Message, error) {
	msg, err := e.messages.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("finding message: %w", ErrUpstream)
	}
	return msg, nil
}

// History returns the channel tail for a newly connected client, preferring
// the cache and falling back to the store.
func (e *Engine) History(ctx context.Context, channel string, limit int) ([]model.Message, error) {
	if channel == "" {
		channel = model.DefaultChannel
	}

	if e.cache != nil {
		cached, err := e.cache.Recent(ctx, channel, limit)
		if err != nil {
			log.Printf("channel cache read failed: %v", err)
		} else if len(cached) > 0 {
			return cached, nil
		}
	}

	messages, _, _, err := e.messages.Page(ctx, channel, "", limit)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", ErrUpstream)
	}
	return messages, nil
}

func (e *Engine) mapMutateErr(err error) error {
	if errors.Is(err, repository.ErrMessageNotFound) {
		return ErrNotFound
	}
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrNotOwner),
		errors.Is(err, ErrTooOld),
		errors.Is(err, ErrInvalidContent):
		return err
	}
	log.Printf("message mutation failed: %v", err)
	return ErrUpstream
}

func (e *Engine) invalidateChannel(ctx context.Context, channel string) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Invalidate(ctx, channel); err != nil {
		log.Printf("channel cache invalidation failed: %v", err)
	}
}

// notifyCreated runs outside the create critical path. Failures here are
// logged and never surface to the sender.
func (e *Engine) notifyCreated(msg *model.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	tokens, err := e.users.PushTokensExcept(ctx, msg.AuthorID)
	if err != nil {
		log.Printf("push token lookup failed: %v", err)
		return
	}
	if len(tokens) == 0 {
		return
	}

	e.notifier.Dispatch(ctx, Notification{
		Title:     msg.AuthorName,
		Body:      ComposeNotificationBody(msg),
		Tokens:    tokens,
		MessageID: msg.ID,
		Channel:   msg.Channel,
	})
	telemetry.NotificationsDispatched.Inc()
}

// ComposeNotificationBody renders the push body: the message text, or a
// description of the attachments when there is none, with a reply indicator
// in front when applicable.
func ComposeNotificationBody(msg *model.Message) string {
	body := msg.Text
	if body == "" {
		body = describeMedia(msg.Media)
	}
	if msg.ReplyTo != nil {
		body = fmt.Sprintf("replying to %s: %s", msg.ReplyTo.AuthorName, body)
	}
	return body
}

func describeMedia(media []model.MediaItem) string {
	if len(media) == 0 {
		return ""
	}

	images := 0
	for _, m := range media {
		if m.Type == model.MediaTypeImage {
			images++
		}
	}
	if images == len(media) {
		return fmt.Sprintf("sent %d image(s)", images)
	}
	return fmt.Sprintf("sent %d attachment(s)", len(media))
}
