package chatgate_test

import (
	"testing"
	"time"

	"github.com/botfold/chatgate/pkg/chatgate"
)

func TestEstimateTokens(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abc", 1},
		{"abcd", 1},
		{"abcde", 2},
		{string(make([]byte, 4000)), 1000},
	}
	for _, tc := range cases {
		if got := chatgate.EstimateTokens(tc.text); got != tc.want {
			t.Errorf("EstimateTokens(%d chars) = %d, want %d", len(tc.text), got, tc.want)
		}
	}
}

func TestCountWindow_CheckDoesNotIncrement(t *testing.T) {
	policy := chatgate.CountWindow(3, 2*time.Minute)
	st := &chatgate.UsageState{}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		if v := policy.Check(st, 0, now); !v.Allowed {
			t.Fatalf("check %d denied without any commit", i)
		}
	}
	if st.Uses != 0 {
		t.Errorf("Uses = %d after checks only, want 0", st.Uses)
	}
}

func TestCountWindow_Scenario(t *testing.T) {
	// max_uses=3, cooldown=2m: three allowed calls, a fourth denied at the
	// same instant, a fifth allowed 3 minutes later with Uses back at 1.
	policy := chatgate.CountWindow(3, 2*time.Minute)
	st := &chatgate.UsageState{}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		v := policy.Check(st, 0, now)
		if !v.Allowed {
			t.Fatalf("call %d denied, want allowed", i+1)
		}
		policy.Commit(st, 0)
	}
	if st.Uses != 3 {
		t.Fatalf("Uses = %d, want 3", st.Uses)
	}

	v := policy.Check(st, 0, now)
	if v.Allowed {
		t.Fatal("fourth call allowed, want denied")
	}
	if v.RetryAfter != 2*time.Minute {
		t.Errorf("RetryAfter = %v, want 2m", v.RetryAfter)
	}
	wantUntil := now.Add(2 * time.Minute)
	if !st.CooldownUntil.Equal(wantUntil) {
		t.Errorf("CooldownUntil = %v, want %v", st.CooldownUntil, wantUntil)
	}

	// Still inside the cooldown one minute later.
	v = policy.Check(st, 0, now.Add(time.Minute))
	if v.Allowed {
		t.Fatal("call during cooldown allowed, want denied")
	}
	if v.RetryAfter != time.Minute {
		t.Errorf("remaining wait = %v, want 1m", v.RetryAfter)
	}

	// Three minutes later the cooldown has expired: counters reset before
	// the limit is evaluated and the call passes.
	v = policy.Check(st, 0, now.Add(3*time.Minute))
	if !v.Allowed {
		t.Fatal("call after cooldown denied, want allowed")
	}
	policy.Commit(st, 0)
	if st.Uses != 1 {
		t.Errorf("Uses after cooldown expiry = %d, want 1", st.Uses)
	}
	if !st.CooldownUntil.IsZero() {
		t.Errorf("CooldownUntil = %v, want zero after reset", st.CooldownUntil)
	}
}

func TestRateWindow_RequestCap(t *testing.T) {
	// max_requests=5, max_tokens=10000; a 4000-char message estimates to
	// 1000+500=1500 tokens. The sixth request is denied on request count
	// alone even though token budget remains.
	policy := chatgate.RateWindow(5, 10000, time.Hour)
	st := &chatgate.UsageState{}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cost := chatgate.EstimateTokens(string(make([]byte, 4000))) + 500

	for i := 0; i < 5; i++ {
		v := policy.Check(st, cost, now)
		if !v.Allowed {
			t.Fatalf("request %d denied, want allowed", i+1)
		}
		policy.Commit(st, cost)
	}
	if st.Requests != 5 || st.Tokens != 7500 {
		t.Fatalf("counters = %d requests / %d tokens, want 5 / 7500", st.Requests, st.Tokens)
	}

	v := policy.Check(st, cost, now)
	if v.Allowed {
		t.Fatal("sixth request allowed, want denied on request count")
	}
	if v.RetryAfter != time.Hour {
		t.Errorf("RetryAfter = %v, want 1h", v.RetryAfter)
	}
}

func TestRateWindow_TokenCap(t *testing.T) {
	policy := chatgate.RateWindow(100, 1000, time.Hour)
	st := &chatgate.UsageState{}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	v := policy.Check(st, 600, now)
	if !v.Allowed {
		t.Fatal("first request denied, want allowed")
	}
	policy.Commit(st, 600)

	// 600 + 400 >= 1000 trips the token cap.
	v = policy.Check(st, 400, now)
	if v.Allowed {
		t.Fatal("request over token budget allowed, want denied")
	}
	if st.Requests != 1 || st.Tokens != 600 {
		t.Errorf("denied check mutated counters: %d requests / %d tokens", st.Requests, st.Tokens)
	}
}

func TestRateWindow_LazyReset(t *testing.T) {
	policy := chatgate.RateWindow(2, 1000, 10*time.Minute)
	st := &chatgate.UsageState{}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		if v := policy.Check(st, 100, now); !v.Allowed {
			t.Fatalf("request %d denied", i+1)
		}
		policy.Commit(st, 100)
	}
	if v := policy.Check(st, 100, now); v.Allowed {
		t.Fatal("third request allowed, want denied")
	}

	// Past the window the same check observes reset counters first.
	later := now.Add(11 * time.Minute)
	if v := policy.Check(st, 100, later); !v.Allowed {
		t.Fatal("request after window denied, want allowed")
	}
	policy.Commit(st, 100)
	if st.Requests != 1 || st.Tokens != 100 {
		t.Errorf("counters after reset = %d requests / %d tokens, want 1 / 100", st.Requests, st.Tokens)
	}
}

func TestCountWindow_MonotonicWithinWindow(t *testing.T) {
	policy := chatgate.CountWindow(50, time.Minute)
	st := &chatgate.UsageState{}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	prev := 0
	for i := 0; i < 60; i++ {
		v := policy.Check(st, 0, now)
		if v.Allowed {
			policy.Commit(st, 0)
		}
		if st.Uses < prev {
			t.Fatalf("Uses decreased from %d to %d within the window", prev, st.Uses)
		}
		if st.Uses > 50 {
			t.Fatalf("Uses = %d exceeded the cap without a denial", st.Uses)
		}
		prev = st.Uses
	}
	if st.Uses != 50 {
		t.Errorf("Uses = %d, want capped at 50", st.Uses)
	}
}

func TestUnlimited_NoStateMutation(t *testing.T) {
	policy := chatgate.Unlimited()
	st := &chatgate.UsageState{}
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		if v := policy.Check(st, 1000, now); !v.Allowed {
			t.Fatal("unlimited policy denied")
		}
		policy.Commit(st, 1000)
	}
	if st.Uses != 0 || st.Requests != 0 || st.Tokens != 0 {
		t.Errorf("unlimited policy mutated state: %+v", st)
	}
}
