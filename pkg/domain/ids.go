// Package domain holds the shared primitives of the attestation registry:
// typed account identifiers and claim fingerprints. Both are constructed at
// trust boundaries via Parse functions; direct casting bypasses validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "vitae/pkg/domain-errors"
)

// AccountID identifies an account holder. It is a distinct type over
// uuid.UUID so accounts cannot be confused with other identifiers at
// compile time.
type AccountID uuid.UUID

// NilAccount is the zero account. It never identifies a real caller; it
// appears only in sentinel records and in zeroed reward settings.
var NilAccount = AccountID(uuid.Nil)

// ParseAccountID constructs an AccountID from external input.
//
// Errors: returns CodeInvalidInput when the value is empty, not a UUID, or
// the nil UUID; no other errors are expected.
func ParseAccountID(s string) (AccountID, error) {
	if s == "" {
		return NilAccount, dErrors.New(dErrors.CodeInvalidInput, "account id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return NilAccount, dErrors.Wrap(err, dErrors.CodeInvalidInput, "account id must be a valid UUID")
	}
	if u == uuid.Nil {
		return NilAccount, dErrors.New(dErrors.CodeInvalidInput, "account id cannot be the nil UUID")
	}
	return AccountID(u), nil
}

// NewAccountID returns a fresh random AccountID.
func NewAccountID() AccountID {
	return AccountID(uuid.New())
}

// String returns the canonical lowercase UUID form.
func (a AccountID) String() string {
	return uuid.UUID(a).String()
}

// IsZero reports whether the account is the nil account.
func (a AccountID) IsZero() bool {
	return uuid.UUID(a) == uuid.Nil
}

// Bytes returns the 16-byte UUID encoding. Fingerprint derivation depends
// on this being fixed-length.
func (a AccountID) Bytes() []byte {
	u := uuid.UUID(a)
	return u[:]
}

// MarshalText implements encoding.TextMarshaler so AccountID round-trips
// through JSON as its UUID string.
func (a AccountID) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unlike ParseAccountID
// it accepts the nil UUID, because stored sentinel records carry it.
func (a *AccountID) UnmarshalText(text []byte) error {
	u, err := uuid.Parse(string(text))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "account id must be a valid UUID")
	}
	*a = AccountID(u)
	return nil
}
