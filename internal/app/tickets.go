package app

import (
	"fmt"
	"strings"
	"time"

	"helpdeskai/internal/util"
	"helpdeskai/pkg/domain"
)

// CreateTicket opens a new support ticket for the user.
func (a *App) CreateTicket(userID, title, description, priority string) (domain.Ticket, error) {
	userID = strings.TrimSpace(userID)
	title = strings.TrimSpace(title)
	if userID == "" || title == "" {
		return domain.Ticket{}, fmt.Errorf("userId and title required")
	}
	if priority == "" {
		priority = "medium"
	}
	now := time.Now().UTC()
	ticket := domain.Ticket{
		ID:          util.NewID(),
		UserID:      userID,
		Title:       title,
		Description: strings.TrimSpace(description),
		Status:      domain.TicketOpen,
		Priority:    priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.store.CreateTicket(ticket); err != nil {
		return domain.Ticket{}, fmt.Errorf("create ticket: %w", err)
	}
	return ticket, nil
}

// GetTicket returns a ticket the user owns.
func (a *App) GetTicket(id, userID string) (domain.Ticket, error) {
	ticket, ok, err := a.store.GetTicket(id)
	if err != nil {
		return domain.Ticket{}, fmt.Errorf("load ticket: %w", err)
	}
	if !ok || ticket.UserID != userID {
		return domain.Ticket{}, ErrTicketNotFound
	}
	return ticket, nil
}

// ListTickets returns the user's tickets, newest first.
func (a *App) ListTickets(userID string) ([]domain.Ticket, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("userId required")
	}
	tickets, err := a.store.ListTicketsByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return tickets, nil
}

// UpdateTicket applies a partial update to a ticket the user owns.
func (a *App) UpdateTicket(id, userID string, status domain.TicketStatus, priority, description string) (domain.Ticket, error) {
	ticket, err := a.GetTicket(id, userID)
	if err != nil {
		return domain.Ticket{}, err
	}
	if status != "" {
		if !status.Valid() {
			return domain.Ticket{}, fmt.Errorf("invalid status %q", status)
		}
		ticket.Status = status
	}
	if priority = strings.TrimSpace(priority); priority != "" {
		ticket.Priority = priority
	}
	if description = strings.TrimSpace(description); description != "" {
		ticket.Description = description
	}
	ticket.UpdatedAt = time.Now().UTC()
	if err := a.store.UpdateTicket(ticket); err != nil {
		return domain.Ticket{}, fmt.Errorf("update ticket: %w", err)
	}
	return ticket, nil
}
