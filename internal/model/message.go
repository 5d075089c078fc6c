package model

import "time"

// Message is an inbox entry. Messages are append-only: once received they
// never change, so the revision is the creation time.
type Message struct {
	ID        string    `json:"_id" mapstructure:"_id"`
	From      UserRef   `json:"from" mapstructure:"from"`
	To        UserRef   `json:"to" mapstructure:"to"`
	Body      string    `json:"message" mapstructure:"message"`
	Warning   bool      `json:"warning" mapstructure:"warning"`
	Important bool      `json:"important" mapstructure:"important"`
	ReplyTo   string    `json:"replyTo,omitempty" mapstructure:"replyTo"`
	CreatedAt time.Time `json:"createdAt" mapstructure:"createdAt"`
}

// UserRef is the short user reference embedded in messages.
type UserRef struct {
	ID   string `json:"_id" mapstructure:"_id"`
	Name string `json:"name,omitempty" mapstructure:"name"`
}

func (m Message) Key() string        { return m.ID }
func (m Message) Revision() Revision { return Revision{UpdatedAt: m.CreatedAt} }

// Broadcast reports whether the message has no single recipient.
func (m Message) Broadcast() bool { return m.To.ID == "" }
