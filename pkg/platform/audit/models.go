package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance:
	// every check of a national identifier.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring and forensics.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and operational visibility.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        uuid.UUID
	Category  EventCategory
	Timestamp time.Time
	Action    string
	// SubjectIDHash is a SHA-256 hash of the identifier being checked.
	// Raw national identifiers never enter the audit trail.
	SubjectIDHash string
	Decision      string
	Reason        string
	RequestID     string
	ClientIP      string
	// ActorID is set for admin operations.
	ActorID string
}

type AuditEvent string

const (
	// Verification events
	EventAadhaarVerified AuditEvent = "aadhaar_verified"
	EventAadhaarRejected AuditEvent = "aadhaar_rejected"

	// Admin events
	EventLedgerAccessed AuditEvent = "ledger_accessed"

	// Rate limit events
	EventRateLimitExceeded AuditEvent = "rate_limit_exceeded"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventAadhaarVerified:   CategoryCompliance,
	EventAadhaarRejected:   CategoryCompliance,
	EventLedgerAccessed:    CategorySecurity,
	EventRateLimitExceeded: CategorySecurity,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// OutboxEntry is an event waiting to be relayed to the message broker.
type OutboxEntry struct {
	ID          uuid.UUID
	EventType   string
	AggregateID string
	Payload     []byte
	CreatedAt   time.Time
}

// Outbox is implemented by stores that support relaying events to a broker.
type Outbox interface {
	PendingOutbox(ctx context.Context, limit int) ([]OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Payload is the JSON structure relayed to the broker.
type Payload struct {
	ID            string `json:"id"`
	Category      string `json:"category"`
	Timestamp     string `json:"timestamp"`
	Action        string `json:"action"`
	SubjectIDHash string `json:"subject_id_hash,omitempty"`
	Decision      string `json:"decision,omitempty"`
	Reason        string `json:"reason,omitempty"`
	RequestID     string `json:"request_id,omitempty"`
	ClientIP      string `json:"client_ip,omitempty"`
	ActorID       string `json:"actor_id,omitempty"`
}

// PayloadOf converts an event into its broker representation.
func PayloadOf(e Event) Payload {
	return Payload{
		ID:            e.ID.String(),
		Category:      string(e.Category),
		Timestamp:     e.Timestamp.UTC().Format(time.RFC3339Nano),
		Action:        e.Action,
		SubjectIDHash: e.SubjectIDHash,
		Decision:      e.Decision,
		Reason:        e.Reason,
		RequestID:     e.RequestID,
		ClientIP:      e.ClientIP,
		ActorID:       e.ActorID,
	}
}

// AggregateID groups events of one subject on the broker so they share a partition.
func AggregateID(e Event) string {
	if e.SubjectIDHash != "" {
		return e.SubjectIDHash
	}
	return e.ID.String()
}
