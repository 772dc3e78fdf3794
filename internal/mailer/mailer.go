// Package mailer sends templated notifications with attachments.
package mailer

import (
	"context"
)

// Attachment is a file attached to a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a templated notification to one recipient.
type Message struct {
	To          string
	ToName      string
	TemplateID  string
	Variables   map[string]string
	Attachments []Attachment
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
