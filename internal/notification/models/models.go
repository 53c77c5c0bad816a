// Package models holds inbox notifications and outbound messages.
package models

import (
	"time"

	id "grievance/pkg/domain"
)

type Kind string

const (
	KindComplaintCreated  Kind = "complaint_created"
	KindComplaintReceived Kind = "complaint_received"
	KindStatusChanged     Kind = "status_changed"
	KindInfoRequested     Kind = "info_requested"
	KindTest              Kind = "test"
)

// Notification is one inbox entry of a user.
type Notification struct {
	ID        id.NotificationID
	UserID    id.UserID
	Kind      Kind
	Title     string
	Body      string
	Data      map[string]string
	ReadAt    *time.Time
	CreatedAt time.Time
}

func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}

// MarkRead sets ReadAt once; later calls keep the first timestamp.
func (n *Notification) MarkRead(now time.Time) {
	if n.ReadAt == nil {
		n.ReadAt = &now
	}
}

// Recipient is the addressable view of a user.
type Recipient struct {
	UserID   id.UserID
	Email    string
	Name     string
	FCMToken string
}

// Message is rendered once per recipient and delivered on every channel the
// recipient can receive. Push data values are strings as FCM requires.
type Message struct {
	Kind      Kind
	Title     string
	Body      string
	Data      map[string]string
	PushTitle string
	PushBody  string
	Mail      *Mail
}

type Mail struct {
	Subject string
	Lines   []string
	Action  string
	URL     string
	Outro   string
}
