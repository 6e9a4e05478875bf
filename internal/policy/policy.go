// Package policy centralizes retention knobs for cached registry data.
package policy

import "time"

// ClaimCacheTTL bounds how long cached claim projections (details, resumes)
// may live without being touched. Mutations invalidate the affected keys
// precisely, so the TTL is a backstop against unbounded growth in shared
// cache layers, not a consistency mechanism.
var ClaimCacheTTL = 15 * time.Minute
