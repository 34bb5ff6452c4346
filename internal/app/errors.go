package app

import "errors"

var (
	// ErrDeviceNotFound indicates the user has no registered device.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrTicketNotFound indicates the ticket does not exist or is not
	// owned by the requesting user.
	ErrTicketNotFound = errors.New("ticket not found")
	// ErrUnknownCategory indicates a requested article category that is
	// not in the fixed category list.
	ErrUnknownCategory = errors.New("unknown category")
)
