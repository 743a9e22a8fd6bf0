package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"studyforum/internal/apperr"
	"studyforum/internal/logger"
	"studyforum/internal/models"
	"studyforum/internal/utils"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const (
	chatSystemPrompt = "You are a helpful AI study assistant. Help students understand concepts, solve problems, and learn effectively. Provide clear, step-by-step explanations. Support markdown for formatting and code blocks."

	defaultConversationTitle = "New Conversation"
	maxTitleRunes            = 60
	maxChatMessageRunes      = 8000
)

// ChatTurn 一轮对话的结果
type ChatTurn struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
	Text           string `json:"text"`
	Truncated      bool   `json:"truncated"`
}

// ChunkSink receives each fragment as it arrives. A returned error means the
// caller is gone; forwarding stops but the turn still completes.
type ChunkSink func(chunk string) error

// ChatRelay persists a conversation transcript and proxies the provider stream.
type ChatRelay struct {
	db       *gorm.DB
	provider Provider
	timeout  time.Duration
	log      *logger.Logger
}

func NewChatRelay(db *gorm.DB, provider Provider, timeout time.Duration, log *logger.Logger) *ChatRelay {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &ChatRelay{db: db, provider: provider, timeout: timeout, log: log.With("service", "ChatRelay")}
}

// Send runs one turn. The provider call is detached from ctx cancellation and
// bounded by the relay timeout; the assistant message is written exactly once.
// If the stream fails after some text arrived, the partial text is stored as
// truncated and returned together with the error.
func (r *ChatRelay) Send(ctx context.Context, userID, conversationID, message string, sink ChunkSink) (*ChatTurn, error) {
	if err := requireID("userId", userID); err != nil {
		return nil, err
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperr.Invalid("message", "is required")
	}
	if utf8.RuneCountInString(message) > maxChatMessageRunes {
		return nil, apperr.Invalid("message", "must be at most 8000 characters")
	}

	ctx, span := tracer.Start(ctx, "chat.send")
	defer span.End()

	conv, err := r.appendUserMessage(ctx, userID, conversationID, message)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("chat.conversation_id", conv.ID))

	history, err := r.transcript(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	prompt := make([]Message, 0, len(history)+1)
	prompt = append(prompt, Message{Role: "system", Content: chatSystemPrompt})
	for _, m := range history {
		prompt = append(prompt, Message{Role: m.Role, Content: m.Content})
	}

	// 调用方断开不影响上游请求，仅停止转发
	providerCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	forwarding := true
	onChunk := func(chunk string) {
		if !forwarding || sink == nil {
			return
		}
		if ctx.Err() != nil {
			forwarding = false
			return
		}
		if err := sink(chunk); err != nil {
			r.log.Debug("Chat client went away, buffering remaining output", "conversation", conv.ID, "error", err)
			forwarding = false
		}
	}

	text, streamErr := r.provider.CompleteStream(providerCtx, prompt, onChunk)
	if streamErr != nil && text == "" {
		r.log.Warn("Chat provider failed before any output", "conversation", conv.ID, "error", streamErr)
		return nil, apperr.Upstream(streamErr)
	}

	truncated := streamErr != nil
	reply := models.ChatMessage{
		ConversationID: conv.ID,
		Role:           models.RoleAssistant,
		Content:        text,
		Truncated:      truncated,
	}
	if err := r.appendMessage(context.WithoutCancel(ctx), &reply); err != nil {
		return nil, err
	}

	turn := &ChatTurn{ConversationID: conv.ID, MessageID: reply.ID, Text: text, Truncated: truncated}
	if truncated {
		r.log.Warn("Chat stream ended early, stored partial reply", "conversation", conv.ID, "chars", len(text), "error", streamErr)
		return turn, apperr.Upstream(streamErr)
	}
	return turn, nil
}

// appendUserMessage 解析或创建会话，并在同一事务内写入用户消息
func (r *ChatRelay) appendUserMessage(ctx context.Context, userID, conversationID, message string) (*models.ChatConversation, error) {
	var conv models.ChatConversation
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if conversationID != "" {
			if err := r.ownedConversation(tx, userID, conversationID, &conv); err != nil {
				return err
			}
		} else {
			conv = models.ChatConversation{UserID: userID, Title: conversationTitle(message)}
			if err := tx.Create(&conv).Error; err != nil {
				return err
			}
		}

		msg := models.ChatMessage{ConversationID: conv.ID, Role: models.RoleUser, Content: message}
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.ChatConversation{}).Where("id = ?", conv.ID).Update("updated_at", time.Now().UTC()).Error
	})
	if err != nil {
		return nil, storageErr("append user message", err)
	}
	return &conv, nil
}

func (r *ChatRelay) appendMessage(ctx context.Context, msg *models.ChatMessage) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.ChatConversation{}).Where("id = ?", msg.ConversationID).Update("updated_at", time.Now().UTC()).Error
	})
	return storageErr("append assistant message", err)
}

func (r *ChatRelay) ownedConversation(db *gorm.DB, userID, conversationID string, out *models.ChatConversation) error {
	if requireID("conversationId", conversationID) != nil {
		return apperr.NotFound("Conversation")
	}
	err := db.Where("id = ? AND user_id = ?", conversationID, userID).Take(out).Error
	return notFoundOr("Conversation", "load conversation", err)
}

func (r *ChatRelay) transcript(ctx context.Context, conversationID string) ([]models.ChatMessage, error) {
	messages := make([]models.ChatMessage, 0)
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, storageErr("load transcript", err)
	}
	return messages, nil
}

// ListConversations returns the user's conversations, most recently active first.
func (r *ChatRelay) ListConversations(ctx context.Context, userID string) ([]models.ChatConversation, error) {
	convs := make([]models.ChatConversation, 0)
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&convs).Error
	if err != nil {
		return nil, storageErr("list conversations", err)
	}
	return convs, nil
}

func (r *ChatRelay) Messages(ctx context.Context, userID, conversationID string) ([]models.ChatMessage, error) {
	var conv models.ChatConversation
	if err := r.ownedConversation(r.db.WithContext(ctx), userID, conversationID, &conv); err != nil {
		return nil, err
	}
	return r.transcript(ctx, conv.ID)
}

func conversationTitle(message string) string {
	title := utils.Truncate(strings.Join(strings.Fields(message), " "), maxTitleRunes)
	if title == "" {
		return defaultConversationTitle
	}
	return title
}
