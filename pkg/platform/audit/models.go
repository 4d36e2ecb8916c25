package audit

import (
	"time"

	id "hearth/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryConsent covers events with consent significance: the record of
	// who allowed what must survive and be tamper-evident.
	// Examples: claim consumption, visibility overrides, preference writes.
	CategoryConsent EventCategory = "consent"

	// CategorySecurity covers events relevant to abuse monitoring.
	// Examples: rejected claim tokens, rate limit trips, admin logins.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and operational
	// visibility. These can be sampled with shorter retention.
	// Examples: invite issuance, mention promotion, person creation.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key privacy actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	// Person whose identity the action concerns, when known.
	PersonID id.PersonID `json:"person_id"`
	// Reference the action touched, when the action is reference-scoped.
	ReferenceID id.ReferenceID `json:"reference_id"`
	NoteID      id.NoteID      `json:"note_id"`
	// ActorID is who performed the action: a contributor ID, "claimant" for
	// anonymous token consumers, or "admin" for override actions.
	ActorID string `json:"actor_id"`
	// Decision records the visibility outcome of the action, when it has one.
	Decision string `json:"decision,omitempty"`
	Reason   string `json:"reason,omitempty"`
	// RequestID correlates the event with the HTTP request that caused it.
	RequestID string `json:"request_id,omitempty"`
	// Device is a short client summary (browser, OS, IP) captured for the
	// claim flow so replayed tokens can be investigated.
	Device string `json:"device,omitempty"`
}

// Action names every audited privacy action.
type Action string

const (
	ActionClaimIssued          Action = "claim_issued"
	ActionClaimConsumed        Action = "claim_consumed"
	ActionClaimRejected        Action = "claim_rejected"
	ActionVisibilityOverridden Action = "visibility_overridden"
	ActionPreferenceWritten    Action = "preference_written"
	ActionPersonCreated        Action = "person_created"
	ActionMentionPromoted      Action = "mention_promoted"
	ActionMentionIgnored       Action = "mention_ignored"
	ActionAdminLogin           Action = "admin_login"
	ActionRateLimited          Action = "rate_limited"
)

// actionCategories maps each audited action to its category.
var actionCategories = map[Action]EventCategory{
	ActionClaimConsumed:        CategoryConsent,
	ActionVisibilityOverridden: CategoryConsent,
	ActionPreferenceWritten:    CategoryConsent,

	ActionClaimRejected: CategorySecurity,
	ActionAdminLogin:    CategorySecurity,
	ActionRateLimited:   CategorySecurity,

	ActionClaimIssued:     CategoryOperations,
	ActionPersonCreated:   CategoryOperations,
	ActionMentionPromoted: CategoryOperations,
	ActionMentionIgnored:  CategoryOperations,
}

// Category returns the event category for the action, defaulting to
// operations for unknown actions.
func (a Action) Category() EventCategory {
	if c, ok := actionCategories[a]; ok {
		return c
	}
	return CategoryOperations
}
