package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"

	dErrors "vitae/pkg/domain-errors"
)

// FingerprintSize is the byte length of a claim fingerprint (SHA-256).
const FingerprintSize = 32

// Fingerprint is the content-derived identity of a claim. For most claim
// categories it is computed server-side from the claimant and the claim
// content; intellectual-property claims supply their own, expected to be a
// digest of the underlying work.
type Fingerprint [FingerprintSize]byte

// NilFingerprint is the zero fingerprint, used only in sentinel records.
var NilFingerprint = Fingerprint{}

// DeriveFingerprint computes the fingerprint of a claim from the claimant
// and the raw content: SHA-256 over the 16-byte account encoding followed
// by the content bytes. The account prefix is fixed-length, so the
// concatenation is unambiguous and two accounts submitting identical
// content produce distinct fingerprints.
func DeriveFingerprint(claimant AccountID, content []byte) Fingerprint {
	h := sha256.New()
	h.Write(claimant.Bytes())
	h.Write(content)
	var fp Fingerprint
	copy(fp[:], h.Sum(nil))
	return fp
}

// ParseFingerprint constructs a Fingerprint from its lowercase or uppercase
// hex form.
//
// Errors: returns CodeInvalidInput when the value is empty, not 64 hex
// characters, or all zero (the sentinel value is not addressable).
func ParseFingerprint(s string) (Fingerprint, error) {
	if s == "" {
		return NilFingerprint, dErrors.New(dErrors.CodeInvalidInput, "fingerprint cannot be empty")
	}
	if len(s) != hex.EncodedLen(FingerprintSize) {
		return NilFingerprint, dErrors.Newf(dErrors.CodeInvalidInput,
			"fingerprint must be %d hex characters", hex.EncodedLen(FingerprintSize))
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return NilFingerprint, dErrors.Wrap(err, dErrors.CodeInvalidInput, "fingerprint must be hex")
	}
	var fp Fingerprint
	copy(fp[:], raw)
	if fp.IsZero() {
		return NilFingerprint, dErrors.New(dErrors.CodeInvalidInput, "fingerprint cannot be zero")
	}
	return fp, nil
}

// String returns the lowercase hex form.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// IsZero reports whether the fingerprint is the sentinel zero value.
func (f Fingerprint) IsZero() bool {
	return bytes.Equal(f[:], NilFingerprint[:])
}

// MarshalText implements encoding.TextMarshaler (hex form in JSON).
func (f Fingerprint) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. The zero fingerprint
// is accepted here because sentinel records serialize it.
func (f *Fingerprint) UnmarshalText(text []byte) error {
	if len(text) != hex.EncodedLen(FingerprintSize) {
		return dErrors.Newf(dErrors.CodeInvalidInput,
			"fingerprint must be %d hex characters", hex.EncodedLen(FingerprintSize))
	}
	raw, err := hex.DecodeString(string(text))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "fingerprint must be hex")
	}
	copy(f[:], raw)
	return nil
}
