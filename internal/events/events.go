// Package events defines the registry's event feed.
//
// Every successful claim submission, endorsement, and reward payout emits an
// Event. The in-process Log assigns sequence numbers and is the ordering
// authority; sinks (Kafka, the Postgres archive) receive the same stamped
// events for delivery beyond the process and are best-effort.
package events

import (
	"context"
	"time"

	claims "vitae/internal/claims/models"
	id "vitae/pkg/domain"
	"vitae/pkg/requestcontext"
)

// Kind classifies an event by the action that produced it.
type Kind string

const (
	KindClaimMadeWorkHistory          Kind = "claim_made_work_history"
	KindClaimMadeEducation            Kind = "claim_made_education"
	KindClaimMadeExpertise            Kind = "claim_made_expertise"
	KindClaimMadeGoodDeed             Kind = "claim_made_good_deed"
	KindClaimMadeIntellectualProperty Kind = "claim_made_intellectual_property"
	KindClaimEndorsed                 Kind = "claim_endorsed"
	KindRewardPaid                    Kind = "reward_paid"
)

var claimMadeKinds = map[claims.Category]Kind{
	claims.CategoryWorkHistory:          KindClaimMadeWorkHistory,
	claims.CategoryEducation:            KindClaimMadeEducation,
	claims.CategoryExpertise:            KindClaimMadeExpertise,
	claims.CategoryGoodDeed:             KindClaimMadeGoodDeed,
	claims.CategoryIntellectualProperty: KindClaimMadeIntellectualProperty,
}

// ClaimMadeKind returns the submission event kind for a claim category.
// Unknown categories map to the empty kind; callers validate categories
// before emitting.
func ClaimMadeKind(category claims.Category) Kind {
	return claimMadeKinds[category]
}

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	// Seq is assigned by the Log on append, starting at 1. Zero means the
	// event has not been recorded yet.
	Seq       uint64    `json:"seq"`
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	Claimant    id.AccountID   `json:"claimant"`
	Fingerprint id.Fingerprint `json:"fingerprint"`
	Content     []byte         `json:"content,omitempty"`
	Endorser    id.AccountID   `json:"endorser"`
	Amount      uint64         `json:"amount,omitempty"`

	// Enrichment fields for audit trail completeness.
	RequestID string `json:"request_id,omitempty"`
	Client    string `json:"client,omitempty"`
}

// ClaimMade builds the submission event for a freshly recorded claim.
func ClaimMade(ctx context.Context, claim claims.Claim) Event {
	return enrich(ctx, Event{
		Kind:        ClaimMadeKind(claim.Category),
		Claimant:    claim.Claimant,
		Fingerprint: claim.Fingerprint,
		Content:     claim.Content,
	})
}

// ClaimEndorsed builds the endorsement event. It is emitted whenever the
// endorse call succeeds, including when the endorser list is already at
// capacity and the endorsement is not recorded.
func ClaimEndorsed(ctx context.Context, claimant id.AccountID, fingerprint id.Fingerprint, endorser id.AccountID) Event {
	return enrich(ctx, Event{
		Kind:        KindClaimEndorsed,
		Claimant:    claimant,
		Fingerprint: fingerprint,
		Endorser:    endorser,
	})
}

// RewardPaid builds the payout event for an automatic reward transfer.
func RewardPaid(ctx context.Context, claimant id.AccountID, amount uint64) Event {
	return enrich(ctx, Event{
		Kind:     KindRewardPaid,
		Claimant: claimant,
		Amount:   amount,
	})
}

func enrich(ctx context.Context, event Event) Event {
	event.Timestamp = requestcontext.Now(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	event.Client = requestcontext.ClientLabel(ctx)
	return event
}
