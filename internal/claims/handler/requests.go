package handler

import (
	"strings"

	dErrors "vitae/pkg/domain-errors"
)

// MaxContentBytes bounds the request body fields, not the registry model:
// the store accepts any content, the API refuses absurd payloads.
const MaxContentBytes = 64 * 1024

// SubmitClaimRequest is the body of POST /v1/claims/{category}.
type SubmitClaimRequest struct {
	Content string `json:"content"`
	Link    string `json:"link"`
}

func (r *SubmitClaimRequest) Validate() error {
	if strings.TrimSpace(r.Content) == "" {
		return dErrors.New(dErrors.CodeValidation, "content is required")
	}
	if len(r.Content) > MaxContentBytes {
		return dErrors.New(dErrors.CodeValidation, "content exceeds the maximum size")
	}
	if len(r.Link) > MaxContentBytes {
		return dErrors.New(dErrors.CodeValidation, "link exceeds the maximum size")
	}
	return nil
}

// SubmitIntellectualPropertyRequest is the body of
// POST /v1/claims/intellectual-property. The fingerprint is the
// caller-computed digest of the underlying work, hex-encoded.
type SubmitIntellectualPropertyRequest struct {
	Content     string `json:"content"`
	Link        string `json:"link"`
	Fingerprint string `json:"fingerprint"`
}

func (r *SubmitIntellectualPropertyRequest) Validate() error {
	if strings.TrimSpace(r.Content) == "" {
		return dErrors.New(dErrors.CodeValidation, "content is required")
	}
	if len(r.Content) > MaxContentBytes {
		return dErrors.New(dErrors.CodeValidation, "content exceeds the maximum size")
	}
	if len(r.Link) > MaxContentBytes {
		return dErrors.New(dErrors.CodeValidation, "link exceeds the maximum size")
	}
	if r.Fingerprint == "" {
		return dErrors.New(dErrors.CodeValidation, "fingerprint is required")
	}
	return nil
}

// SetVisibilityRequest is the body of PUT /v1/claims/{fingerprint}/visibility.
// Visible is a pointer so an absent field is distinguishable from false.
type SetVisibilityRequest struct {
	Visible *bool `json:"visible"`
}

func (r *SetVisibilityRequest) Validate() error {
	if r.Visible == nil {
		return dErrors.New(dErrors.CodeValidation, "visible is required")
	}
	return nil
}
