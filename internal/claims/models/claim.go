// Package models defines the claim record and its invariants. Records are
// append-mostly: once registered, only the endorser list, endorsement count
// and visibility flag ever change.
package models

import (
	"strings"
	"unicode/utf8"

	id "vitae/pkg/domain"
	dErrors "vitae/pkg/domain-errors"
)

// Category tags the kind of life-and-work attestation a claim makes.
// The zero value is reserved for the absent-record sentinel.
type Category uint8

const (
	CategoryUnknown              Category = iota // sentinel, never stored for real claims
	CategoryWorkHistory                          // employment and engagements
	CategoryEducation                            // degrees, certifications, training
	CategoryExpertise                            // skills and competencies
	CategoryGoodDeed                             // volunteering, community contributions
	CategoryIntellectualProperty                 // authored works, identified by caller-supplied fingerprint
)

// Storage caps. Both bound unbounded growth of per-record and per-account
// collections; exceeding them is an externally observable condition, not an
// internal limit to be raised casually.
const (
	// MaxAccountClaims bounds the number of claims one account may hold in
	// one category.
	MaxAccountClaims = 491
	// MaxEndorsers bounds the endorser list of one claim, claimant included.
	MaxEndorsers = 491
)

// categoryLabels holds the canonical snake_case names used in JSON, metrics
// and event kinds.
var categoryLabels = map[Category]string{
	CategoryWorkHistory:          "work_history",
	CategoryEducation:            "education",
	CategoryExpertise:            "expertise",
	CategoryGoodDeed:             "good_deed",
	CategoryIntellectualProperty: "intellectual_property",
}

var categoriesByLabel = func() map[string]Category {
	m := make(map[string]Category, len(categoryLabels))
	for c, label := range categoryLabels {
		m[label] = c
	}
	return m
}()

// Categories returns all claim categories in resume order. Query results
// concatenate per-category lists in exactly this order.
func Categories() []Category {
	return []Category{
		CategoryWorkHistory,
		CategoryEducation,
		CategoryExpertise,
		CategoryGoodDeed,
		CategoryIntellectualProperty,
	}
}

// ParseCategory constructs a Category from external input. It accepts the
// canonical snake_case label and the kebab-case URL form.
//
// Errors: returns CodeInvalidInput for empty or unknown values.
func ParseCategory(s string) (Category, error) {
	if s == "" {
		return CategoryUnknown, dErrors.New(dErrors.CodeInvalidInput, "category cannot be empty")
	}
	normalized := strings.ReplaceAll(strings.ToLower(s), "-", "_")
	if c, ok := categoriesByLabel[normalized]; ok {
		return c, nil
	}
	return CategoryUnknown, dErrors.Newf(dErrors.CodeInvalidInput, "unknown category %q", s)
}

// String returns the canonical snake_case label, or "unknown" for the
// sentinel.
func (c Category) String() string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return "unknown"
}

// IsValid reports whether the category is one of the five claim kinds.
func (c Category) IsValid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Derived reports whether the category's fingerprint is computed from
// claimant and content. Intellectual-property claims carry their own.
func (c Category) Derived() bool {
	return c.IsValid() && c != CategoryIntellectualProperty
}

// Claim is one attestation record. The fingerprint is its registry-wide
// identity; everything else hangs off it.
type Claim struct {
	Category      Category       `json:"category"`
	Claimant      id.AccountID   `json:"claimant"`
	Content       []byte         `json:"content"`
	Fingerprint   id.Fingerprint `json:"fingerprint"`
	EndorserCount uint64         `json:"endorser_count"`
	Link          []byte         `json:"link"`
	Visible       bool           `json:"visible"`
	Endorsers     []id.AccountID `json:"endorsers"`
}

// New builds a fresh claim. The claimant is seeded as the first endorser
// but the endorsement count starts at zero: it tallies third parties only.
func New(category Category, claimant id.AccountID, content, link []byte, fp id.Fingerprint) Claim {
	return Claim{
		Category:    category,
		Claimant:    claimant,
		Content:     content,
		Fingerprint: fp,
		Link:        link,
		Visible:     true,
		Endorsers:   []id.AccountID{claimant},
	}
}

// Absent is the sentinel returned for fingerprints that were never
// registered: unknown category, zero claimant, visible by default.
func Absent() Claim {
	return Claim{Visible: true}
}

// IsAbsent reports whether the claim is the absent-record sentinel.
func (c Claim) IsAbsent() bool {
	return c.Category == CategoryUnknown
}

// OwnedBy reports whether the account registered this claim.
func (c Claim) OwnedBy(account id.AccountID) bool {
	return c.Claimant == account
}

// HasEndorser reports whether the account already appears in the endorser
// list. The claimant is seeded at creation, so this is true for them from
// the start.
func (c Claim) HasEndorser(account id.AccountID) bool {
	for _, e := range c.Endorsers {
		if e == account {
			return true
		}
	}
	return false
}

// Endorse records a third-party endorsement. Each account endorses a claim
// at most once; the claimant's implicit self-endorsement counts as taken.
//
// When the endorser list is full the endorsement is accepted but not
// recorded: recorded is false and the claim is unchanged. Callers still
// announce the endorsement, which is the long-standing observable behavior
// at capacity.
func (c *Claim) Endorse(endorser id.AccountID) (recorded bool, err error) {
	if c.HasEndorser(endorser) {
		return false, dErrors.New(dErrors.CodeDuplicateEndorsement, "account already endorsed this claim")
	}
	if len(c.Endorsers) >= MaxEndorsers {
		return false, nil
	}
	c.Endorsers = append(c.Endorsers, endorser)
	c.EndorserCount++
	return true, nil
}

// SetVisibility flips the public visibility flag. Only the service enforces
// ownership; the model just records the state.
func (c *Claim) SetVisibility(visible bool) {
	c.Visible = visible
}

// ContentText returns the claim content decoded as UTF-8, or the empty
// string when the bytes do not decode. Substring search operates on this
// view, so claims with undecodable content only match empty queries.
func (c Claim) ContentText() string {
	return DecodeText(c.Content)
}

// Matches reports whether the decoded content contains the already-decoded
// query text. An empty query matches every claim.
func (c Claim) Matches(queryText string) bool {
	return strings.Contains(c.ContentText(), queryText)
}

// DecodeText decodes bytes as UTF-8, degrading to the empty string on
// invalid input. Both stored content and incoming queries pass through
// here so the two sides degrade identically.
func DecodeText(b []byte) string {
	if !utf8.Valid(b) {
		return ""
	}
	return string(b)
}

// AccountActivity is the per-category submission tally for one account,
// served as a lightweight credibility signal.
type AccountActivity struct {
	WorkHistory          int `json:"work_history"`
	Education            int `json:"education"`
	Expertise            int `json:"expertise"`
	GoodDeeds            int `json:"good_deeds"`
	IntellectualProperty int `json:"intellectual_property"`
}

// Set records the count for one category.
func (a *AccountActivity) Set(c Category, count int) {
	switch c {
	case CategoryWorkHistory:
		a.WorkHistory = count
	case CategoryEducation:
		a.Education = count
	case CategoryExpertise:
		a.Expertise = count
	case CategoryGoodDeed:
		a.GoodDeeds = count
	case CategoryIntellectualProperty:
		a.IntellectualProperty = count
	}
}

// Total is the sum across all categories.
func (a AccountActivity) Total() int {
	return a.WorkHistory + a.Education + a.Expertise + a.GoodDeeds + a.IntellectualProperty
}
