package compress

import "math"

// Budget bounds how much rendered diff text may be sent to a model.
//
// SoftBufferTokens is the headroom reserved under MaxTokens that the kept
// set must fit into. HardBufferTokens is larger: once the running total has
// passed MaxTokens-HardBufferTokens no further file is accepted, so at most
// one file crosses that boundary.
type Budget struct {
	MaxTokens            int     `json:"maxTokens"`
	SoftBufferTokens     int     `json:"softBufferTokens"`
	HardBufferTokens     int     `json:"hardBufferTokens"`
	TokenEstimateDivisor int     `json:"tokenEstimateDivisor"`
	ThresholdPercent     float64 `json:"thresholdPercent,omitempty"`
}

// DefaultBudget returns the static budget used when nothing is configured.
func DefaultBudget() Budget {
	return Budget{
		MaxTokens:            50000,
		SoftBufferTokens:     1000,
		HardBufferTokens:     4000,
		TokenEstimateDivisor: 4,
		ThresholdPercent:     0.6,
	}
}

// ResolveBudget derives the effective budget from a model's context window.
// When contextWindow and the configured ThresholdPercent are both known, the
// effective MaxTokens is contextWindow*ThresholdPercent; if that is smaller
// than the static MaxTokens the buffers are scaled down by the same ratio so
// the margins stay meaningful, rounding half-up. With no context window or
// threshold the static budget is returned unchanged.
func ResolveBudget(static Budget, contextWindow int) Budget {
	if contextWindow <= 0 || static.ThresholdPercent <= 0 {
		return static
	}

	resolved := static
	resolved.MaxTokens = int(float64(contextWindow) * static.ThresholdPercent)
	if static.MaxTokens > 0 && resolved.MaxTokens < static.MaxTokens {
		ratio := float64(resolved.MaxTokens) / float64(static.MaxTokens)
		resolved.SoftBufferTokens = scaleHalfUp(static.SoftBufferTokens, ratio)
		resolved.HardBufferTokens = scaleHalfUp(static.HardBufferTokens, ratio)
	}
	return resolved
}

func scaleHalfUp(n int, ratio float64) int {
	return int(math.Floor(float64(n)*ratio + 0.5))
}
