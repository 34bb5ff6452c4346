package app

import (
	"fmt"
	"strings"

	"helpdeskai/pkg/domain"
)

// UserExport aggregates every record stored for one user.
type UserExport struct {
	Tickets       []domain.Ticket       `json:"tickets"`
	Conversations []domain.Conversation `json:"conversations"`
	Messages      []domain.Message      `json:"messages"`
	Devices       []domain.Device       `json:"devices"`
	Articles      []domain.Article      `json:"articles"`
}

// UserData collects a user's tickets, full conversation history, messages,
// registered device, and user-requested articles.
func (a *App) UserData(userID string) (UserExport, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return UserExport{}, fmt.Errorf("userId required")
	}
	tickets, err := a.store.ListTicketsByUser(userID)
	if err != nil {
		return UserExport{}, fmt.Errorf("export tickets: %w", err)
	}
	conversations, err := a.store.ListConversationsByUser(userID, 0)
	if err != nil {
		return UserExport{}, fmt.Errorf("export conversations: %w", err)
	}
	messages, err := a.store.ListMessagesByUser(userID)
	if err != nil {
		return UserExport{}, fmt.Errorf("export messages: %w", err)
	}
	articles, err := a.store.ListArticlesByUser(userID)
	if err != nil {
		return UserExport{}, fmt.Errorf("export articles: %w", err)
	}
	devices := make([]domain.Device, 0, 1)
	device, ok, err := a.store.GetDevice(userID)
	if err != nil {
		return UserExport{}, fmt.Errorf("export device: %w", err)
	}
	if ok {
		devices = append(devices, device)
	}
	return UserExport{
		Tickets:       tickets,
		Conversations: conversations,
		Messages:      messages,
		Devices:       devices,
		Articles:      articles,
	}, nil
}
