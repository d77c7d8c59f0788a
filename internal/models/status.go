package models

// MessageStatus is the delivery state of a message as seen by its sender.
// Statuses only move forward: sending -> sent -> delivered -> read.
type MessageStatus string

const (
	StatusSending   MessageStatus = "sending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

func (s MessageStatus) rank() int {
	switch s {
	case StatusSending:
		return 1
	case StatusSent:
		return 2
	case StatusDelivered:
		return 3
	case StatusRead:
		return 4
	default:
		// Unknown or empty statuses from the server are treated as freshly sent.
		return 2
	}
}

// Before reports whether s precedes other in the delivery order.
func (s MessageStatus) Before(other MessageStatus) bool {
	return s.rank() < other.rank()
}

// Advance returns the later of s and next. It never moves a status backwards.
func (s MessageStatus) Advance(next MessageStatus) MessageStatus {
	if s == "" {
		return next
	}
	if s.Before(next) {
		return next
	}
	return s
}

// Normalize maps an empty status to sent.
func (s MessageStatus) Normalize() MessageStatus {
	if s == "" {
		return StatusSent
	}
	return s
}
