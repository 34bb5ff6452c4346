package store

import (
	"sort"
	"sync"
	"time"

	"helpdeskai/pkg/domain"
)

// MemoryStore keeps all records in-process. It mirrors the conditional-write
// semantics of the Postgres store under a mutex and is used by tests.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]domain.Conversation
	messages      map[string][]domain.Message // conversation ID -> messages
	sessions      map[string]domain.Session   // token -> session
	devices       map[string]domain.Device    // user ID -> device
	articles      map[string]domain.Article
	articleOrder  []string
	tickets       map[string]domain.Ticket
	ticketOrder   []string
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]domain.Conversation),
		messages:      make(map[string][]domain.Message),
		sessions:      make(map[string]domain.Session),
		devices:       make(map[string]domain.Device),
		articles:      make(map[string]domain.Article),
		tickets:       make(map[string]domain.Ticket),
	}
}

// CreateConversation stores a conversation record.
func (m *MemoryStore) CreateConversation(c domain.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations[c.ID] = c
	return nil
}

// GetConversation retrieves a conversation by ID.
func (m *MemoryStore) GetConversation(id string) (domain.Conversation, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.conversations[id]
	return c, ok, nil
}

// LatestActiveConversation returns the most recently created active
// conversation for a user.
func (m *MemoryStore) LatestActiveConversation(userID string) (domain.Conversation, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest domain.Conversation
	found := false
	for _, c := range m.conversations {
		if c.UserID != userID || c.Status != domain.ConversationActive {
			continue
		}
		if !found || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
			found = true
		}
	}
	return latest, found, nil
}

// ListConversationsByUser returns a user's conversations, most recently
// updated first. A limit <= 0 returns the full history.
func (m *MemoryStore) ListConversationsByUser(userID string, limit int) ([]domain.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]domain.Conversation, 0)
	for _, c := range m.conversations {
		if c.UserID == userID {
			items = append(items, c)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].UpdatedAt.After(items[j].UpdatedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// CloseConversation marks a conversation closed for its owner.
func (m *MemoryStore) CloseConversation(id, userID string) (domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok || c.UserID != userID {
		return domain.Conversation{}, ErrConversationNotFound
	}
	c.Status = domain.ConversationClosed
	c.UpdatedAt = time.Now().UTC()
	m.conversations[id] = c
	return c, nil
}

// AppendMessage checks state and inserts under one lock, matching the
// Postgres store's conditional update.
func (m *MemoryStore) AppendMessage(msg domain.Message, maxMessages int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[msg.ConversationID]
	if !ok {
		return ErrConversationNotFound
	}
	if c.Status == domain.ConversationClosed {
		return ErrConversationClosed
	}
	if c.MessageCount >= maxMessages {
		return ErrMessageLimit
	}
	c.MessageCount++
	c.UpdatedAt = time.Now().UTC()
	m.conversations[c.ID] = c
	m.messages[c.ID] = append(m.messages[c.ID], msg)
	return nil
}

// ListMessages returns a conversation's messages in chronological order.
func (m *MemoryStore) ListMessages(conversationID string) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := make([]domain.Message, len(m.messages[conversationID]))
	copy(msgs, m.messages[conversationID])
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs, nil
}

// ListMessagesByUser returns every message a user sent or received, in
// chronological order across conversations.
func (m *MemoryStore) ListMessagesByUser(userID string) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := make([]domain.Message, 0)
	for _, conversation := range m.messages {
		for _, msg := range conversation {
			if msg.UserID == userID {
				msgs = append(msgs, msg)
			}
		}
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs, nil
}

// CreateSession stores a session record keyed by token.
func (m *MemoryStore) CreateSession(sess domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.Token] = sess
	return nil
}

// GetSessionByToken retrieves a session record.
func (m *MemoryStore) GetSessionByToken(token string) (domain.Session, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[token]
	return sess, ok, nil
}

// DeleteSessionByToken removes a session record if present.
func (m *MemoryStore) DeleteSessionByToken(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

// UpsertDevice creates or replaces the device record for a user.
func (m *MemoryStore) UpsertDevice(d domain.Device) (domain.Device, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.devices[d.UserID]
	if ok {
		existing.Brand = d.Brand
		existing.Model = d.Model
		existing.UpdatedAt = d.UpdatedAt
		m.devices[d.UserID] = existing
		return existing, false, nil
	}
	m.devices[d.UserID] = d
	return d, true, nil
}

// GetDevice returns the device record for a user.
func (m *MemoryStore) GetDevice(userID string) (domain.Device, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.devices[userID]
	return d, ok, nil
}

// CreateArticle stores an article and tracks insertion order.
func (m *MemoryStore) CreateArticle(a domain.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.articles[a.ID]; !exists {
		m.articleOrder = append(m.articleOrder, a.ID)
	}
	m.articles[a.ID] = a
	return nil
}

// GetArticle retrieves an article by ID.
func (m *MemoryStore) GetArticle(id string) (domain.Article, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.articles[id]
	return a, ok, nil
}

// ListArticles returns a page of articles, newest first.
func (m *MemoryStore) ListArticles(category string, limit, offset int) ([]domain.Article, int64, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	matched := make([]domain.Article, 0)
	for i := len(m.articleOrder) - 1; i >= 0; i-- {
		a, ok := m.articles[m.articleOrder[i]]
		if !ok {
			continue
		}
		if category != "" && a.Category != category {
			continue
		}
		matched = append(matched, a)
	}
	total := int64(len(matched))
	if offset >= len(matched) {
		return []domain.Article{}, total, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total, nil
}

// ListArticlesByUser returns the articles generated for a user, newest
// first. Scheduled articles carry no user and are never included.
func (m *MemoryStore) ListArticlesByUser(userID string) ([]domain.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]domain.Article, 0)
	for i := len(m.articleOrder) - 1; i >= 0; i-- {
		a, ok := m.articles[m.articleOrder[i]]
		if ok && a.UserID == userID && userID != "" {
			items = append(items, a)
		}
	}
	return items, nil
}

// ListArticleCategories returns the distinct categories in use.
func (m *MemoryStore) ListArticleCategories() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]struct{})
	categories := make([]string, 0)
	for _, a := range m.articles {
		if _, ok := seen[a.Category]; ok {
			continue
		}
		seen[a.Category] = struct{}{}
		categories = append(categories, a.Category)
	}
	sort.Strings(categories)
	return categories, nil
}

// CreateTicket stores a ticket and tracks insertion order.
func (m *MemoryStore) CreateTicket(t domain.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tickets[t.ID]; !exists {
		m.ticketOrder = append(m.ticketOrder, t.ID)
	}
	m.tickets[t.ID] = t
	return nil
}

// GetTicket retrieves a ticket by ID.
func (m *MemoryStore) GetTicket(id string) (domain.Ticket, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tickets[id]
	return t, ok, nil
}

// ListTicketsByUser returns a user's tickets, newest first.
func (m *MemoryStore) ListTicketsByUser(userID string) ([]domain.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]domain.Ticket, 0)
	for i := len(m.ticketOrder) - 1; i >= 0; i-- {
		t, ok := m.tickets[m.ticketOrder[i]]
		if ok && t.UserID == userID {
			items = append(items, t)
		}
	}
	return items, nil
}

// UpdateTicket replaces the mutable fields of a stored ticket.
func (m *MemoryStore) UpdateTicket(t domain.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.tickets[t.ID]
	if !ok {
		return nil
	}
	existing.Description = t.Description
	existing.Status = t.Status
	existing.Priority = t.Priority
	existing.UpdatedAt = time.Now().UTC()
	m.tickets[t.ID] = existing
	return nil
}
