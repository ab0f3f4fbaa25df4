// Package email defines the interface for transactional email delivery and
// provides a Resend-backed implementation.
package email

import "context"

// Attachment is a file attached to an outgoing message.
type Attachment struct {
	Filename    string
	Content     []byte
	ContentType string
}

// Message is one outgoing receipt email. CampaignID and DonorID ride along as
// headers so the delivery webhook can route status events back to the right
// receipt row.
type Message struct {
	FromAddr    string // the charity user's own address
	FromName    string // the charity's display name
	To          string
	Subject     string
	HTML        string
	Attachments []Attachment
	CampaignID  string
	DonorID     string
}

// SendResult reports the provider's immediate answer. Rejected means the
// provider refused the recipient outright (hard bounce at submission time);
// later delivery outcomes arrive via webhook.
type SendResult struct {
	MessageID string
	Rejected  bool
}

// Sender is the interface the receipt sender uses to transmit email.
// Tests inject a stub that records calls without hitting the network.
type Sender interface {
	Send(ctx context.Context, msg Message) (SendResult, error)
}
