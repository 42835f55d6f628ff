package models

import "time"

// ConfirmationKind is the outbound medium of a confirmation
type ConfirmationKind string

// Confirmation kinds
const (
	ConfirmationSMS   ConfirmationKind = "sms"
	ConfirmationVoice ConfirmationKind = "voice"
)

// Confirmation is an outbox record for a message owed to a reporter.
// It is delivered at least once; a failed attempt never touches the report.
type Confirmation struct {
	ID            string           `json:"id" bson:"_id"`
	ReportID      string           `json:"report_id" bson:"report_id"`
	Kind          ConfirmationKind `json:"kind" bson:"kind"`
	To            string           `json:"to" bson:"to"`
	Language      string           `json:"language" bson:"language"`
	Body          string           `json:"body,omitempty" bson:"body,omitempty"`
	CallbackURL   string           `json:"callback_url,omitempty" bson:"callback_url,omitempty"`
	Delivered     bool             `json:"delivered" bson:"delivered"`
	Attempts      int              `json:"attempts" bson:"attempts"`
	LastError     string           `json:"last_error,omitempty" bson:"last_error,omitempty"`
	ProviderRef   string           `json:"provider_ref,omitempty" bson:"provider_ref,omitempty"`
	NextAttemptAt time.Time        `json:"next_attempt_at" bson:"next_attempt_at"`
	CreatedAt     time.Time        `json:"created_at" bson:"created_at"`
	DeliveredAt   *time.Time       `json:"delivered_at,omitempty" bson:"delivered_at,omitempty"`
}
