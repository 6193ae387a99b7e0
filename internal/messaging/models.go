// Package messaging runs the send pipeline: admission, risk scoring,
// escalation, envelope encryption. Plaintext never leaves the pipeline and is
// never stored.
package messaging

import "time"

// Kind classifies a message payload.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// IsValid reports whether the kind is recognized.
func (k Kind) IsValid() bool {
	return k == KindText || k == KindImage
}

// Message is the stored form of one message. The envelope is opaque; only the
// recipient's private key can recover the content. Deletion is soft: the
// envelope is dropped but the row and its moderation verdict remain.
type Message struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Kind        Kind      `json:"kind"`
	Envelope    string    `json:"envelope,omitempty"`
	Score       int       `json:"suspicion_score"`
	Flags       []string  `json:"flags,omitempty"`
	Flagged     bool      `json:"flagged"`
	CreatedAt   time.Time `json:"created_at"`
	EditedAt    time.Time `json:"edited_at,omitzero"`
	DeletedAt   time.Time `json:"deleted_at,omitzero"`
}

// Deleted reports whether the message has been soft deleted.
func (m *Message) Deleted() bool {
	return !m.DeletedAt.IsZero()
}

// SendResult is returned to the caller after a successful send.
type SendResult struct {
	MessageID string   `json:"message_id"`
	Score     int      `json:"suspicion_score"`
	Flags     []string `json:"flags,omitempty"`
	Flagged   bool     `json:"flagged"`
}
