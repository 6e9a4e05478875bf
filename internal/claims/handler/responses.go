package handler

import (
	claims "vitae/internal/claims/models"
)

// ClaimResponse is the wire form of one claim record. Content and link are
// served as decoded text; undecodable bytes degrade to the empty string,
// matching search semantics.
type ClaimResponse struct {
	Category      string   `json:"category"`
	Claimant      string   `json:"claimant"`
	Content       string   `json:"content"`
	Fingerprint   string   `json:"fingerprint"`
	EndorserCount uint64   `json:"endorser_count"`
	Link          string   `json:"link"`
	Visible       bool     `json:"visible"`
	Endorsers     []string `json:"endorsers"`
}

func newClaimResponse(c claims.Claim) ClaimResponse {
	endorsers := make([]string, 0, len(c.Endorsers))
	for _, e := range c.Endorsers {
		endorsers = append(endorsers, e.String())
	}
	return ClaimResponse{
		Category:      c.Category.String(),
		Claimant:      c.Claimant.String(),
		Content:       c.ContentText(),
		Fingerprint:   c.Fingerprint.String(),
		EndorserCount: c.EndorserCount,
		Link:          claims.DecodeText(c.Link),
		Visible:       c.Visible,
		Endorsers:     endorsers,
	}
}

// ClaimListResponse wraps query results.
type ClaimListResponse struct {
	Claims []ClaimResponse `json:"claims"`
}

func newClaimListResponse(list []claims.Claim) ClaimListResponse {
	out := ClaimListResponse{Claims: make([]ClaimResponse, 0, len(list))}
	for _, c := range list {
		out.Claims = append(out.Claims, newClaimResponse(c))
	}
	return out
}

// EndorsersResponse lists the backing accounts of one claim.
type EndorsersResponse struct {
	Endorsers []string `json:"endorsers"`
}

// ActivityResponse is the per-category tally plus its sum.
type ActivityResponse struct {
	WorkHistory          int `json:"work_history"`
	Education            int `json:"education"`
	Expertise            int `json:"expertise"`
	GoodDeeds            int `json:"good_deeds"`
	IntellectualProperty int `json:"intellectual_property"`
	Total                int `json:"total"`
}

func newActivityResponse(a claims.AccountActivity) ActivityResponse {
	return ActivityResponse{
		WorkHistory:          a.WorkHistory,
		Education:            a.Education,
		Expertise:            a.Expertise,
		GoodDeeds:            a.GoodDeeds,
		IntellectualProperty: a.IntellectualProperty,
		Total:                a.Total(),
	}
}
