package app

import (
	"fmt"
	"strings"
	"time"

	"helpdeskai/pkg/domain"
)

const unknownDevice = "Unknown"

// RegisterDevice records the user's device, replacing any previous record.
// It reports whether a new record was created.
func (a *App) RegisterDevice(userID, brand, model string) (domain.Device, bool, error) {
	userID = strings.TrimSpace(userID)
	brand = strings.TrimSpace(brand)
	model = strings.TrimSpace(model)
	if userID == "" || brand == "" || model == "" {
		return domain.Device{}, false, fmt.Errorf("userId, brand and model required")
	}
	now := time.Now().UTC()
	device, created, err := a.store.UpsertDevice(domain.Device{
		UserID:    userID,
		Brand:     brand,
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return domain.Device{}, false, fmt.Errorf("save device: %w", err)
	}
	return device, created, nil
}

// UpdateDevice partially updates the user's device record. Empty fields
// keep their current values.
func (a *App) UpdateDevice(userID, brand, model string) (domain.Device, error) {
	current, ok, err := a.store.GetDevice(userID)
	if err != nil {
		return domain.Device{}, fmt.Errorf("load device: %w", err)
	}
	if !ok {
		return domain.Device{}, ErrDeviceNotFound
	}
	if brand = strings.TrimSpace(brand); brand != "" {
		current.Brand = brand
	}
	if model = strings.TrimSpace(model); model != "" {
		current.Model = model
	}
	current.UpdatedAt = time.Now().UTC()
	device, _, err := a.store.UpsertDevice(current)
	if err != nil {
		return domain.Device{}, fmt.Errorf("save device: %w", err)
	}
	return device, nil
}

// GetDevice returns the user's registered device.
func (a *App) GetDevice(userID string) (domain.Device, error) {
	device, ok, err := a.store.GetDevice(userID)
	if err != nil {
		return domain.Device{}, fmt.Errorf("load device: %w", err)
	}
	if !ok {
		return domain.Device{}, ErrDeviceNotFound
	}
	return device, nil
}

// HasDevice reports whether the user has a registered device. Lookup
// failures count as no device.
func (a *App) HasDevice(userID string) bool {
	_, ok, err := a.store.GetDevice(userID)
	return err == nil && ok
}

// deviceInfo returns the user's device brand and model for prompt
// enrichment, falling back to Unknown/Unknown.
func (a *App) deviceInfo(userID string) (brand, model string) {
	device, ok, err := a.store.GetDevice(userID)
	if err != nil || !ok {
		return unknownDevice, unknownDevice
	}
	return device.Brand, device.Model
}
