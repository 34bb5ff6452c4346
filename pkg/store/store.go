package store

import (
	"errors"

	"helpdeskai/pkg/domain"
)

var (
	// ErrConversationNotFound indicates the conversation does not exist or
	// is not owned by the requesting user.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrConversationClosed indicates an append against a closed conversation.
	ErrConversationClosed = errors.New("conversation closed")
	// ErrMessageLimit indicates the conversation reached its message cap.
	ErrMessageLimit = errors.New("message limit exceeded")
)

// Store defines persistence operations for conversations, messages,
// sessions, devices, articles, and tickets.
type Store interface {
	// conversations
	CreateConversation(domain.Conversation) error
	GetConversation(id string) (domain.Conversation, bool, error)
	LatestActiveConversation(userID string) (domain.Conversation, bool, error)
	// ListConversationsByUser returns a user's conversations, most recently
	// updated first. A limit <= 0 returns the full history.
	ListConversationsByUser(userID string, limit int) ([]domain.Conversation, error)
	CloseConversation(id, userID string) (domain.Conversation, error)

	// messages
	// AppendMessage inserts the message and increments the conversation's
	// message count in one conditional operation: it fails with
	// ErrConversationClosed or ErrMessageLimit without inserting when the
	// conversation is closed or already holds maxMessages messages.
	AppendMessage(msg domain.Message, maxMessages int) error
	ListMessages(conversationID string) ([]domain.Message, error)
	ListMessagesByUser(userID string) ([]domain.Message, error)

	// sessions
	CreateSession(domain.Session) error
	GetSessionByToken(token string) (domain.Session, bool, error)
	DeleteSessionByToken(token string) error

	// devices
	UpsertDevice(domain.Device) (domain.Device, bool, error)
	GetDevice(userID string) (domain.Device, bool, error)

	// articles
	CreateArticle(domain.Article) error
	GetArticle(id string) (domain.Article, bool, error)
	ListArticles(category string, limit, offset int) ([]domain.Article, int64, error)
	ListArticlesByUser(userID string) ([]domain.Article, error)
	ListArticleCategories() ([]string, error)

	// tickets
	CreateTicket(domain.Ticket) error
	GetTicket(id string) (domain.Ticket, bool, error)
	ListTicketsByUser(userID string) ([]domain.Ticket, error)
	UpdateTicket(domain.Ticket) error
}
