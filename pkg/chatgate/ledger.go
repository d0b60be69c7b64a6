package chatgate

import (
	"time"
)

// EstimateTokens approximates the token count of text as ceil(len/4).
// This is a cheap heuristic, not the provider's real tokenizer; it is only
// used to budget RateWindow policies and deliberately overcounts multi-byte
// runes rather than undercounting them.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// Check evaluates the policy against st at time now and returns a verdict.
// It never increments counters; Commit does that after the provider call
// succeeds, so a failed call does not consume quota.
//
// An expired cooldown is reset here, before the limit is evaluated, so the
// same check that observes the expiry also proceeds under fresh counters.
// A denial starts (or restates) the cooldown.
func (p QuotaPolicy) Check(st *UsageState, cost int, now time.Time) Verdict {
	if p.Kind == PolicyUnlimited {
		return Verdict{Allowed: true}
	}

	if !st.CooldownUntil.IsZero() {
		if now.Before(st.CooldownUntil) {
			return Verdict{RetryAfter: st.CooldownUntil.Sub(now)}
		}
		st.reset()
	}

	switch p.Kind {
	case PolicyCountWindow:
		if st.Uses >= p.MaxUses {
			st.CooldownUntil = now.Add(p.Cooldown)
			return Verdict{RetryAfter: p.Cooldown}
		}
	case PolicyRateWindow:
		if st.Requests >= p.MaxRequests || st.Tokens+cost >= p.MaxTokens {
			st.CooldownUntil = now.Add(p.Window)
			return Verdict{RetryAfter: p.Window}
		}
	}

	return Verdict{Allowed: true}
}

// Commit records one completed call against st. It must only be called after
// the downstream provider call succeeded, with the same cost passed to Check.
func (p QuotaPolicy) Commit(st *UsageState, cost int) {
	switch p.Kind {
	case PolicyCountWindow:
		st.Uses++
	case PolicyRateWindow:
		st.Requests++
		st.Tokens += cost
	}
}

// validate checks that the policy's limits are usable.
func (p QuotaPolicy) validate() error {
	switch p.Kind {
	case PolicyUnlimited:
		return nil
	case PolicyCountWindow:
		if p.MaxUses <= 0 || p.Cooldown <= 0 {
			return ErrInvalidConfig
		}
		return nil
	case PolicyRateWindow:
		if p.MaxRequests <= 0 || p.MaxTokens <= 0 || p.Window <= 0 {
			return ErrInvalidConfig
		}
		return nil
	default:
		return ErrInvalidConfig
	}
}

func (st *UsageState) reset() {
	st.Uses = 0
	st.Requests = 0
	st.Tokens = 0
	st.CooldownUntil = time.Time{}
}
