package domain

import "time"

// ScheduledMessage is an SMS queued for later delivery.
type ScheduledMessage struct {
	ID     string    `json:"id"`
	To     string    `json:"to"`
	Body   string    `json:"body"`
	SendAt time.Time `json:"send_at"`
	Status string    `json:"status"`
}

// Conversation is an internal chat thread summary.
type Conversation struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	LastMessage string    `json:"last_message"`
	UnreadCount int       `json:"unread_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}
