package app

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"helpdeskai/internal/util"
	"helpdeskai/pkg/domain"
)

// RefusalMessage is returned verbatim when a query is filtered out.
const RefusalMessage = "This system is only for IT Support-related inquiries."

const (
	LabelITSupport    = "IT Support"
	LabelNotITSupport = "Not IT Support"
)

const assistantPersona = "You are an IT Support assistant. Provide helpful, accurate, and concise responses."

// ImageUpload is an optional image payload attached to a chat message.
type ImageUpload struct {
	Data        []byte
	ContentType string
}

// ChatResult is the outcome of one pipeline run.
type ChatResult struct {
	Conversation     domain.Conversation `json:"conversation"`
	UserMessage      domain.Message      `json:"userMessage"`
	AIMessage        domain.Message      `json:"aiMessage"`
	Filtered         bool                `json:"filtered"`
	Response         string              `json:"response"`
	DeviceRegistered bool                `json:"deviceRegistered"`
}

// ClassifyQuery asks the generator whether a query is IT-support related.
// Any generator failure defaults to IT Support so legitimate queries are
// never blocked by a classifier outage.
func (a *App) ClassifyQuery(ctx context.Context, query string) string {
	prompt := fmt.Sprintf("Is this query related to IT Support? Answer with either %q or %q.\n\nQuery: %q", LabelITSupport, LabelNotITSupport, query)
	ctx, cancel := context.WithTimeout(ctx, a.genTimeout)
	defer cancel()
	response, err := a.generator.GenerateText(ctx, "", prompt)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("classification failed, defaulting to IT Support", "err", err)
		return LabelITSupport
	}
	if strings.Contains(strings.ToLower(response), "not it support") {
		return LabelNotITSupport
	}
	return LabelITSupport
}

// ProcessMessage runs the intake pipeline for an inbound chat message:
// classify, gate, resolve the active conversation, persist the user turn,
// enrich with device context, generate, persist the assistant turn.
func (a *App) ProcessMessage(ctx context.Context, userID, message string, image *ImageUpload) (ChatResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || strings.TrimSpace(message) == "" {
		return ChatResult{}, fmt.Errorf("userId and message required")
	}

	if a.ClassifyQuery(ctx, message) != LabelITSupport {
		return ChatResult{Filtered: true, Response: RefusalMessage}, nil
	}

	conversation, err := a.GetOrCreateActiveConversation(userID)
	if err != nil {
		return ChatResult{}, err
	}

	userMessage, err := a.appendUserMessage(ctx, conversation.ID, userID, message, image)
	if err != nil {
		return ChatResult{}, err
	}

	response, err := a.generateReply(ctx, userID, conversation.ID, message)
	if err != nil {
		// The user turn stays persisted; the conversation simply has an
		// unanswered message.
		return ChatResult{}, fmt.Errorf("generate response: %w", err)
	}

	aiMessage := domain.Message{
		ID:             util.NewID(),
		ConversationID: conversation.ID,
		UserID:         userID,
		Content:        response,
		IsUser:         false,
		CreatedAt:      time.Now().UTC(),
	}
	if err := a.store.AppendMessage(aiMessage, a.messageCap); err != nil {
		return ChatResult{}, fmt.Errorf("save assistant message: %w", err)
	}

	conversation, _, err = a.store.GetConversation(conversation.ID)
	if err != nil {
		return ChatResult{}, fmt.Errorf("reload conversation: %w", err)
	}
	return ChatResult{
		Conversation:     conversation,
		UserMessage:      userMessage,
		AIMessage:        aiMessage,
		Response:         response,
		DeviceRegistered: a.HasDevice(userID),
	}, nil
}

// AppendToConversation appends one user turn plus the generated assistant
// turn to an existing conversation, without classification.
func (a *App) AppendToConversation(ctx context.Context, conversationID, userID, message string) (domain.Message, domain.Message, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || strings.TrimSpace(message) == "" {
		return domain.Message{}, domain.Message{}, fmt.Errorf("userId and message required")
	}
	userMessage, err := a.appendUserMessage(ctx, conversationID, userID, message, nil)
	if err != nil {
		return domain.Message{}, domain.Message{}, err
	}
	response, err := a.generateReply(ctx, userID, conversationID, message)
	if err != nil {
		return domain.Message{}, domain.Message{}, fmt.Errorf("generate response: %w", err)
	}
	aiMessage := domain.Message{
		ID:             util.NewID(),
		ConversationID: conversationID,
		UserID:         userID,
		Content:        response,
		IsUser:         false,
		CreatedAt:      time.Now().UTC(),
	}
	if err := a.store.AppendMessage(aiMessage, a.messageCap); err != nil {
		return domain.Message{}, domain.Message{}, fmt.Errorf("save assistant message: %w", err)
	}
	return userMessage, aiMessage, nil
}

func (a *App) appendUserMessage(ctx context.Context, conversationID, userID, message string, image *ImageUpload) (domain.Message, error) {
	msg := domain.Message{
		ID:             util.NewID(),
		ConversationID: conversationID,
		UserID:         userID,
		Content:        message,
		IsUser:         true,
		CreatedAt:      time.Now().UTC(),
	}
	if image != nil {
		attachment, err := a.storeAttachment(ctx, msg.ID, image)
		if err != nil {
			return domain.Message{}, err
		}
		msg.Attachment = attachment
	}
	if err := a.store.AppendMessage(msg, a.messageCap); err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

func (a *App) storeAttachment(ctx context.Context, messageID string, image *ImageUpload) (*domain.Attachment, error) {
	if a.attachments == nil {
		return nil, fmt.Errorf("attachments not enabled")
	}
	if len(image.Data) == 0 {
		return nil, fmt.Errorf("attachment data required")
	}
	contentType := image.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := "attachments/" + messageID
	if err := a.attachments.Put(ctx, key, bytes.NewReader(image.Data), int64(len(image.Data)), contentType); err != nil {
		return nil, fmt.Errorf("store attachment: %w", err)
	}
	return &domain.Attachment{Key: key, ContentType: contentType}, nil
}

func (a *App) generateReply(ctx context.Context, userID, conversationID, message string) (string, error) {
	brand, model := a.deviceInfo(userID)
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "The user is using a %s %s. ", brand, model)
	fmt.Fprintf(&prompt, "This is part of an ongoing IT support conversation (ID: %s). ", conversationID)
	fmt.Fprintf(&prompt, "Query: %s", message)

	genCtx, cancel := context.WithTimeout(ctx, a.genTimeout)
	defer cancel()
	response, err := a.generator.GenerateText(genCtx, assistantPersona, prompt.String())
	if err != nil {
		slog.Error("text generation failed", "conversation_id", conversationID, "err", err)
		return "", err
	}
	return response, nil
}
