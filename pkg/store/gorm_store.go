package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"helpdeskai/pkg/domain"
)

const migrateLockID int64 = 48114811

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations under an advisory lock
// so multiple server processes can start concurrently.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&ConversationModel{},
			&MessageModel{},
			&SessionModel{},
			&DeviceModel{},
			&ArticleModel{},
			&TicketModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// CreateConversation inserts a new conversation record.
func (s *GormStore) CreateConversation(c domain.Conversation) error {
	model := conversationToModel(c)
	return s.db.Create(&model).Error
}

// GetConversation returns one conversation by ID.
func (s *GormStore) GetConversation(id string) (domain.Conversation, bool, error) {
	var model ConversationModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Conversation{}, false, nil
		}
		return domain.Conversation{}, false, err
	}
	return conversationFromModel(model), true, nil
}

// LatestActiveConversation returns the most recently created active
// conversation for a user.
func (s *GormStore) LatestActiveConversation(userID string) (domain.Conversation, bool, error) {
	var model ConversationModel
	err := s.db.Where("user_id = ? AND status = ?", userID, string(domain.ConversationActive)).
		Order("created_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Conversation{}, false, nil
		}
		return domain.Conversation{}, false, err
	}
	return conversationFromModel(model), true, nil
}

// ListConversationsByUser returns a user's conversations, most recently
// updated first. A limit <= 0 returns the full history.
func (s *GormStore) ListConversationsByUser(userID string, limit int) ([]domain.Conversation, error) {
	query := s.db.Where("user_id = ?", userID).Order("updated_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var models []ConversationModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	items := make([]domain.Conversation, 0, len(models))
	for _, model := range models {
		items = append(items, conversationFromModel(model))
	}
	return items, nil
}

// CloseConversation marks a conversation closed. Ownership mismatch is
// indistinguishable from a missing record.
func (s *GormStore) CloseConversation(id, userID string) (domain.Conversation, error) {
	res := s.db.Model(&ConversationModel{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{
			"status":     string(domain.ConversationClosed),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return domain.Conversation{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Conversation{}, ErrConversationNotFound
	}
	var model ConversationModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		return domain.Conversation{}, err
	}
	return conversationFromModel(model), nil
}

// AppendMessage increments the message count and inserts the message in one
// transaction. The increment only applies while the conversation is active
// and under the cap, so two concurrent appends cannot push past the limit.
func (s *GormStore) AppendMessage(msg domain.Message, maxMessages int) error {
	model := messageToModel(msg)
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&ConversationModel{}).
			Where("id = ? AND status = ? AND message_count < ?",
				msg.ConversationID, string(domain.ConversationActive), maxMessages).
			Updates(map[string]any{
				"message_count": gorm.Expr("message_count + 1"),
				"updated_at":    time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var conv ConversationModel
			if err := tx.First(&conv, "id = ?", msg.ConversationID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrConversationNotFound
				}
				return err
			}
			if conv.Status == string(domain.ConversationClosed) {
				return ErrConversationClosed
			}
			return ErrMessageLimit
		}
		return tx.Create(&model).Error
	})
}

// ListMessages returns a conversation's messages in chronological order.
func (s *GormStore) ListMessages(conversationID string) ([]domain.Message, error) {
	var models []MessageModel
	if err := s.db.Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	msgs := make([]domain.Message, 0, len(models))
	for _, model := range models {
		msgs = append(msgs, messageFromModel(model))
	}
	return msgs, nil
}

// ListMessagesByUser returns every message a user sent or received, in
// chronological order across conversations.
func (s *GormStore) ListMessagesByUser(userID string) ([]domain.Message, error) {
	var models []MessageModel
	if err := s.db.Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	msgs := make([]domain.Message, 0, len(models))
	for _, model := range models {
		msgs = append(msgs, messageFromModel(model))
	}
	return msgs, nil
}

// CreateSession persists the record mirroring an issued token.
func (s *GormStore) CreateSession(sess domain.Session) error {
	model := sessionToModel(sess)
	return s.db.Create(&model).Error
}

// GetSessionByToken looks up the mirrored record for a token.
func (s *GormStore) GetSessionByToken(token string) (domain.Session, bool, error) {
	var model SessionModel
	if err := s.db.First(&model, "token = ?", token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Session{}, false, nil
		}
		return domain.Session{}, false, err
	}
	return sessionFromModel(model), true, nil
}

// DeleteSessionByToken removes the record; deleting an absent token is not
// an error.
func (s *GormStore) DeleteSessionByToken(token string) error {
	return s.db.Delete(&SessionModel{}, "token = ?", token).Error
}

// UpsertDevice creates or updates the single device record for a user.
// The second return value reports whether a new record was created.
func (s *GormStore) UpsertDevice(d domain.Device) (domain.Device, bool, error) {
	created := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&DeviceModel{}).Where("user_id = ?", d.UserID).Count(&count).Error; err != nil {
			return err
		}
		created = count == 0
		model := deviceToModel(d)
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"brand", "model", "updated_at"}),
		}).Create(&model).Error
	})
	if err != nil {
		return domain.Device{}, false, err
	}
	var model DeviceModel
	if err := s.db.First(&model, "user_id = ?", d.UserID).Error; err != nil {
		return domain.Device{}, false, err
	}
	return deviceFromModel(model), created, nil
}

// GetDevice returns the device record for a user.
func (s *GormStore) GetDevice(userID string) (domain.Device, bool, error) {
	var model DeviceModel
	if err := s.db.First(&model, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Device{}, false, nil
		}
		return domain.Device{}, false, err
	}
	return deviceFromModel(model), true, nil
}

// CreateArticle inserts a generated article.
func (s *GormStore) CreateArticle(a domain.Article) error {
	model := articleToModel(a)
	return s.db.Create(&model).Error
}

// GetArticle returns one article by ID.
func (s *GormStore) GetArticle(id string) (domain.Article, bool, error) {
	var model ArticleModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Article{}, false, nil
		}
		return domain.Article{}, false, err
	}
	return articleFromModel(model), true, nil
}

// ListArticles returns a page of articles, newest first, with the total
// count for pagination. An empty category matches everything.
func (s *GormStore) ListArticles(category string, limit, offset int) ([]domain.Article, int64, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	query := s.db.Model(&ArticleModel{})
	if category != "" {
		query = query.Where("category = ?", category)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var models []ArticleModel
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&models).Error; err != nil {
		return nil, 0, err
	}
	items := make([]domain.Article, 0, len(models))
	for _, model := range models {
		items = append(items, articleFromModel(model))
	}
	return items, total, nil
}

// ListArticlesByUser returns the articles generated for a user, newest
// first. Scheduled articles carry no user and are never included.
func (s *GormStore) ListArticlesByUser(userID string) ([]domain.Article, error) {
	items := make([]domain.Article, 0)
	if userID == "" {
		return items, nil
	}
	var models []ArticleModel
	if err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	for _, model := range models {
		items = append(items, articleFromModel(model))
	}
	return items, nil
}

// ListArticleCategories returns the distinct categories in use.
func (s *GormStore) ListArticleCategories() ([]string, error) {
	var categories []string
	if err := s.db.Model(&ArticleModel{}).
		Distinct("category").
		Order("category ASC").
		Pluck("category", &categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

// CreateTicket inserts a support ticket.
func (s *GormStore) CreateTicket(t domain.Ticket) error {
	model := ticketToModel(t)
	return s.db.Create(&model).Error
}

// GetTicket returns one ticket by ID.
func (s *GormStore) GetTicket(id string) (domain.Ticket, bool, error) {
	var model TicketModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Ticket{}, false, nil
		}
		return domain.Ticket{}, false, err
	}
	return ticketFromModel(model), true, nil
}

// ListTicketsByUser returns a user's tickets, newest first.
func (s *GormStore) ListTicketsByUser(userID string) ([]domain.Ticket, error) {
	var models []TicketModel
	if err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	items := make([]domain.Ticket, 0, len(models))
	for _, model := range models {
		items = append(items, ticketFromModel(model))
	}
	return items, nil
}

// UpdateTicket replaces the mutable fields of a ticket.
func (s *GormStore) UpdateTicket(t domain.Ticket) error {
	return s.db.Model(&TicketModel{}).
		Where("id = ?", t.ID).
		Updates(map[string]any{
			"description": t.Description,
			"status":      string(t.Status),
			"priority":    t.Priority,
			"updated_at":  time.Now().UTC(),
		}).Error
}

func conversationToModel(c domain.Conversation) ConversationModel {
	return ConversationModel{
		ID:           c.ID,
		UserID:       c.UserID,
		Title:        c.Title,
		Status:       string(c.Status),
		MessageCount: c.MessageCount,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func conversationFromModel(m ConversationModel) domain.Conversation {
	return domain.Conversation{
		ID:           m.ID,
		UserID:       m.UserID,
		Title:        m.Title,
		Status:       domain.ConversationStatus(m.Status),
		MessageCount: m.MessageCount,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func messageToModel(msg domain.Message) MessageModel {
	var attachment datatypes.JSON
	if msg.Attachment != nil {
		raw, _ := json.Marshal(msg.Attachment)
		attachment = raw
	}
	return MessageModel{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		UserID:         msg.UserID,
		Content:        msg.Content,
		IsUser:         msg.IsUser,
		Attachment:     attachment,
		CreatedAt:      msg.CreatedAt,
	}
}

func messageFromModel(m MessageModel) domain.Message {
	var attachment *domain.Attachment
	if len(m.Attachment) > 0 {
		attachment = &domain.Attachment{}
		if err := json.Unmarshal(m.Attachment, attachment); err != nil {
			attachment = nil
		}
	}
	return domain.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		UserID:         m.UserID,
		Content:        m.Content,
		IsUser:         m.IsUser,
		Attachment:     attachment,
		CreatedAt:      m.CreatedAt,
	}
}

func sessionToModel(sess domain.Session) SessionModel {
	return SessionModel{
		ID:        sess.ID,
		UserID:    sess.UserID,
		Token:     sess.Token,
		Role:      string(sess.Role),
		ExpiresAt: sess.ExpiresAt,
		CreatedAt: sess.CreatedAt,
	}
}

func sessionFromModel(m SessionModel) domain.Session {
	return domain.Session{
		ID:        m.ID,
		UserID:    m.UserID,
		Token:     m.Token,
		Role:      domain.UserRole(m.Role),
		ExpiresAt: m.ExpiresAt,
		CreatedAt: m.CreatedAt,
	}
}

func deviceToModel(d domain.Device) DeviceModel {
	return DeviceModel{
		UserID:    d.UserID,
		Brand:     d.Brand,
		Model:     d.Model,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func deviceFromModel(m DeviceModel) domain.Device {
	return domain.Device{
		UserID:    m.UserID,
		Brand:     m.Brand,
		Model:     m.Model,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func articleToModel(a domain.Article) ArticleModel {
	return ArticleModel{
		ID:        a.ID,
		UserID:    a.UserID,
		Title:     a.Title,
		Content:   a.Content,
		Category:  a.Category,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func articleFromModel(m ArticleModel) domain.Article {
	return domain.Article{
		ID:        m.ID,
		UserID:    m.UserID,
		Title:     m.Title,
		Content:   m.Content,
		Category:  m.Category,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func ticketToModel(t domain.Ticket) TicketModel {
	return TicketModel{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    t.Priority,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func ticketFromModel(m TicketModel) domain.Ticket {
	return domain.Ticket{
		ID:          m.ID,
		UserID:      m.UserID,
		Title:       m.Title,
		Description: m.Description,
		Status:      domain.TicketStatus(m.Status),
		Priority:    m.Priority,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
