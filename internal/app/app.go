package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"helpdeskai/internal/util"
	"helpdeskai/pkg/ai"
	"helpdeskai/pkg/domain"
	"helpdeskai/pkg/storage"
	"helpdeskai/pkg/store"
)

const (
	defaultMessageCap       = 10
	defaultGeneratorTimeout = 30 * time.Second
	attachmentURLTTL        = 15 * time.Minute
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL      string
	Store            store.Store
	Generator        ai.TextGenerator
	GeminiAPIKey     string
	GenerationModel  string
	Attachments      storage.ObjectStore
	MessageCap       int
	GeneratorTimeout time.Duration
}

// App is the core application service wiring together storage, the text
// generator, and the conversation/device/ticket/article logic.
type App struct {
	store       store.Store
	generator   ai.TextGenerator
	attachments storage.ObjectStore
	messageCap  int
	genTimeout  time.Duration
}

// New constructs the application with database-backed storage.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	generator := cfg.Generator
	if generator == nil {
		if cfg.GenerationModel == "" {
			return nil, fmt.Errorf("generation model required")
		}
		gemini, err := ai.NewGeminiClient(cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		generator = ai.NewGeminiGenerator(gemini, cfg.GenerationModel)
	}
	messageCap := cfg.MessageCap
	if messageCap <= 0 {
		messageCap = defaultMessageCap
	}
	genTimeout := cfg.GeneratorTimeout
	if genTimeout <= 0 {
		genTimeout = defaultGeneratorTimeout
	}
	return &App{
		store:       dataStore,
		generator:   generator,
		attachments: cfg.Attachments,
		messageCap:  messageCap,
		genTimeout:  genTimeout,
	}, nil
}

// Store exposes the underlying persistence layer for components that share
// it, such as the session manager.
func (a *App) Store() store.Store {
	return a.store
}

// CreateConversation starts a new active conversation for a user.
func (a *App) CreateConversation(userID, title string) (domain.Conversation, error) {
	userID = strings.TrimSpace(userID)
	title = strings.TrimSpace(title)
	if userID == "" || title == "" {
		return domain.Conversation{}, fmt.Errorf("userId and title required")
	}
	now := time.Now().UTC()
	conversation := domain.Conversation{
		ID:           util.NewID(),
		UserID:       userID,
		Title:        title,
		Status:       domain.ConversationActive,
		MessageCount: 0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.CreateConversation(conversation); err != nil {
		return domain.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return conversation, nil
}

// GetOrCreateActiveConversation returns the user's most recent active
// conversation, creating one with a timestamped title when none exists.
func (a *App) GetOrCreateActiveConversation(userID string) (domain.Conversation, error) {
	conversation, ok, err := a.store.LatestActiveConversation(userID)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("find active conversation: %w", err)
	}
	if ok {
		return conversation, nil
	}
	title := "IT Support Chat " + time.Now().Format("2006-01-02 15:04:05")
	return a.CreateConversation(userID, title)
}

// CloseConversation marks a conversation closed on behalf of its owner.
// Ownership mismatch surfaces as store.ErrConversationNotFound.
func (a *App) CloseConversation(id, userID string) (domain.Conversation, error) {
	conversation, err := a.store.CloseConversation(id, userID)
	if err != nil {
		return domain.Conversation{}, err
	}
	return conversation, nil
}

// ListConversations returns the user's conversation history, most recently
// updated first.
func (a *App) ListConversations(userID string, limit int) ([]domain.Conversation, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("userId required")
	}
	if limit <= 0 {
		limit = 10
	}
	items, err := a.store.ListConversationsByUser(userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return items, nil
}

// ListMessages returns a conversation's messages in chronological order,
// with attachment download URLs resolved against the object store.
func (a *App) ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	msgs, err := a.store.ListMessages(conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	a.resolveAttachmentURLs(ctx, msgs)
	return msgs, nil
}

// resolveAttachmentURLs fills in short-lived presigned download URLs. A
// presign failure leaves the URL empty instead of failing the listing.
func (a *App) resolveAttachmentURLs(ctx context.Context, msgs []domain.Message) {
	if a.attachments == nil {
		return
	}
	for i, msg := range msgs {
		if msg.Attachment == nil {
			continue
		}
		url, err := a.attachments.PresignGet(ctx, msg.Attachment.Key, attachmentURLTTL)
		if err != nil {
			slog.Warn("presign attachment failed", "key", msg.Attachment.Key, "err", err)
			continue
		}
		resolved := *msg.Attachment
		resolved.URL = url
		msgs[i].Attachment = &resolved
	}
}
