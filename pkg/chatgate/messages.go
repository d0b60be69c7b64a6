package chatgate

import (
	"fmt"
	"strings"
	"time"
)

// User-facing message text. Raw provider errors never appear here; they are
// logged for operators instead.

func denialMessage(name string, wait time.Duration) string {
	return fmt.Sprintf("%s limit reached. Please wait %s before trying again.", name, formatWait(wait))
}

func failureMessage(name string) string {
	return fmt.Sprintf("Sorry, %s did not respond. Try again in a moment or switch to another model.", name)
}

func (m *Manager) noProviderMessage() string {
	names := make([]string, 0, len(m.order))
	for _, id := range m.order {
		names = append(names, m.providers[id].Name)
	}
	return "No model selected. Choose one of: " + strings.Join(names, ", ") + "."
}

func (m *Manager) visionMismatchMessage(selected string) string {
	capable := make([]string, 0, len(m.order))
	for _, id := range m.order {
		if spec := m.providers[id]; spec.Caps.Vision {
			capable = append(capable, spec.Name)
		}
	}
	if len(capable) == 0 {
		return fmt.Sprintf("%s cannot analyze images, and no configured model can.", selected)
	}
	return fmt.Sprintf("%s cannot analyze images. Switch to one of: %s.", selected, strings.Join(capable, ", "))
}

// usageLine renders one provider's remaining quota without mutating state.
// A cooldown that has already expired is shown as fresh counters; the actual
// reset happens lazily on the next check.
func usageLine(policy QuotaPolicy, st *UsageState, now time.Time) string {
	if policy.Kind == PolicyUnlimited {
		return "no limits"
	}
	if st == nil {
		st = &UsageState{}
	}

	if !st.CooldownUntil.IsZero() {
		if now.Before(st.CooldownUntil) {
			return fmt.Sprintf("cooling down, %s left", formatWait(st.CooldownUntil.Sub(now)))
		}
		st = &UsageState{}
	}

	switch policy.Kind {
	case PolicyCountWindow:
		return fmt.Sprintf("%d/%d uses", st.Uses, policy.MaxUses)
	case PolicyRateWindow:
		return fmt.Sprintf("%d/%d requests, %d/%d tokens", st.Requests, policy.MaxRequests, st.Tokens, policy.MaxTokens)
	}
	return ""
}

func formatWait(d time.Duration) string {
	if d < time.Second {
		d = time.Second
	}
	return d.Round(time.Second).String()
}
