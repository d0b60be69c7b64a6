package chatgate

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Manager routes user messages to providers, enforcing per-user quota
// policies and keeping per-user conversational state. All state for a single
// user is serialized behind that user's lock; operations for different users
// run in parallel.
type Manager struct {
	store     Store
	providers map[ProviderID]ProviderSpec
	order     []ProviderID
	cfg       Config
	log       Logger
	metrics   Metrics
	now       func() time.Time

	mu    sync.RWMutex
	users map[UserID]*userState
}

// userState is all in-process state for one user. Its mutex is the per-user
// serialization point: no two checks or updates for the same user interleave.
type userState struct {
	mu        sync.Mutex
	selection ProviderID
	usage     map[ProviderID]*UsageState
	sessions  map[ProviderID]*Session
}

// New creates a manager backed by store and restores the durable subset from
// it. A load failure is logged and degraded to an empty state rather than
// refusing to start; usage history is lost but the bot keeps operating.
func New(ctx context.Context, store Store, cfg Config) (*Manager, error) {
	if store == nil {
		return nil, ErrStoreUnavailable
	}
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("%w: no providers registered", ErrInvalidConfig)
	}

	if cfg.MaxTurns == 0 {
		cfg.MaxTurns = 20
	}
	if cfg.AssumedOutputTokens == 0 {
		cfg.AssumedOutputTokens = 500
	}
	if cfg.Logger == nil {
		cfg.Logger = &NoopLogger{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &NoopMetrics{}
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}

	m := &Manager{
		store:     store,
		providers: make(map[ProviderID]ProviderSpec, len(cfg.Providers)),
		order:     make([]ProviderID, 0, len(cfg.Providers)),
		cfg:       cfg,
		log:       cfg.Logger,
		metrics:   cfg.Metrics,
		now:       cfg.Now,
		users:     make(map[UserID]*userState),
	}

	for _, spec := range cfg.Providers {
		if spec.ID == "" || spec.Client == nil {
			return nil, fmt.Errorf("%w: provider %q needs an ID and a client", ErrInvalidConfig, spec.ID)
		}
		if _, dup := m.providers[spec.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate provider %q", ErrInvalidConfig, spec.ID)
		}
		if err := spec.Policy.validate(); err != nil {
			return nil, fmt.Errorf("%w: provider %q has an unusable policy", ErrInvalidConfig, spec.ID)
		}
		if spec.Caps.Memory == MemoryHandle {
			if _, ok := spec.Client.(SessionClient); !ok {
				return nil, fmt.Errorf("%w: provider %q uses handle memory but its client is not a SessionClient", ErrInvalidConfig, spec.ID)
			}
		}
		if spec.Name == "" {
			spec.Name = string(spec.ID)
		}
		m.providers[spec.ID] = spec
		m.order = append(m.order, spec.ID)
	}

	m.restore(ctx)
	return m, nil
}

// Providers returns the registered provider specs in registration order.
// Transports use this to render selection menus.
func (m *Manager) Providers() []ProviderSpec {
	out := make([]ProviderSpec, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.providers[id])
	}
	return out
}

// HandleText routes a text message from user to their selected provider.
// Expected flows (no selection, quota denial, provider failure) come back as
// Result values with user-safe text; the error return is reserved for
// internal faults.
func (m *Manager) HandleText(ctx context.Context, user UserID, text string) (Result, error) {
	start := time.Now()
	st := m.user(user)
	st.mu.Lock()
	defer st.mu.Unlock()

	spec, ok := m.selected(st)
	if !ok {
		res := Result{Outcome: OutcomeNoProviderSelected, Text: m.noProviderMessage()}
		m.metrics.RecordRouting("", res.Outcome, time.Since(start))
		return res, nil
	}

	cost := EstimateTokens(text) + m.cfg.AssumedOutputTokens
	usage := st.usageFor(spec.ID)
	if v := spec.Policy.Check(usage, cost, m.now()); !v.Allowed {
		m.metrics.RecordQuotaDenial(spec.ID)
		res := Result{
			Outcome:    OutcomeQuotaExceeded,
			Text:       denialMessage(spec.Name, v.RetryAfter),
			RetryAfter: v.RetryAfter,
		}
		m.metrics.RecordRouting(spec.ID, res.Outcome, time.Since(start))
		return res, nil
	}

	reply, err := m.sendChat(ctx, spec, st, text)
	if err != nil {
		m.logProviderFailure(spec.ID, err)
		res := Result{Outcome: OutcomeProviderFailed, Text: failureMessage(spec.Name)}
		m.metrics.RecordRouting(spec.ID, res.Outcome, time.Since(start))
		return res, nil
	}

	spec.Policy.Commit(usage, cost)
	res := Result{Outcome: OutcomeAnswer, Text: reply}
	m.metrics.RecordRouting(spec.ID, res.Outcome, time.Since(start))
	return res, nil
}

// HandleImage routes an image with an optional caption to the selected
// provider's vision endpoint. Vision calls are one-shot exchanges and do not
// touch session state.
func (m *Manager) HandleImage(ctx context.Context, user UserID, image []byte, caption string) (Result, error) {
	start := time.Now()
	st := m.user(user)
	st.mu.Lock()
	defer st.mu.Unlock()

	spec, ok := m.selected(st)
	if !ok {
		res := Result{Outcome: OutcomeNoProviderSelected, Text: m.noProviderMessage()}
		m.metrics.RecordRouting("", res.Outcome, time.Since(start))
		return res, nil
	}

	if !spec.Caps.Vision {
		res := Result{Outcome: OutcomeCapabilityMismatch, Text: m.visionMismatchMessage(spec.Name)}
		m.metrics.RecordRouting(spec.ID, res.Outcome, time.Since(start))
		return res, nil
	}

	prompt := caption
	if prompt == "" {
		prompt = "Describe this image."
	}

	cost := EstimateTokens(prompt) + m.cfg.AssumedOutputTokens
	usage := st.usageFor(spec.ID)
	if v := spec.Policy.Check(usage, cost, m.now()); !v.Allowed {
		m.metrics.RecordQuotaDenial(spec.ID)
		res := Result{
			Outcome:    OutcomeQuotaExceeded,
			Text:       denialMessage(spec.Name, v.RetryAfter),
			RetryAfter: v.RetryAfter,
		}
		m.metrics.RecordRouting(spec.ID, res.Outcome, time.Since(start))
		return res, nil
	}

	callStart := time.Now()
	reply, err := spec.Client.SendVision(ctx, image, prompt)
	m.metrics.RecordProviderCall(spec.ID, time.Since(callStart), err)
	if err != nil {
		m.logProviderFailure(spec.ID, err)
		res := Result{Outcome: OutcomeProviderFailed, Text: failureMessage(spec.Name)}
		m.metrics.RecordRouting(spec.ID, res.Outcome, time.Since(start))
		return res, nil
	}

	spec.Policy.Commit(usage, cost)
	res := Result{Outcome: OutcomeAnswer, Text: reply}
	m.metrics.RecordRouting(spec.ID, res.Outcome, time.Since(start))
	return res, nil
}

// HandleSelection sets the user's active provider and returns a confirmation.
func (m *Manager) HandleSelection(ctx context.Context, user UserID, provider ProviderID) (Result, error) {
	spec, ok := m.providers[provider]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}

	st := m.user(user)
	st.mu.Lock()
	st.selection = provider
	st.mu.Unlock()

	m.log.Info("provider selected",
		Field{Key: "user", Value: user},
		Field{Key: "provider", Value: provider},
	)
	return Result{
		Outcome: OutcomeAnswer,
		Text:    fmt.Sprintf("Model selected: %s. Send me your questions and I will forward them to %s.", spec.Name, spec.Name),
	}, nil
}

// ClearSelection clears the user's active provider, as on an exit or switch
// command. The next message prompts for a new selection.
func (m *Manager) ClearSelection(user UserID) {
	st := m.user(user)
	st.mu.Lock()
	st.selection = ""
	st.mu.Unlock()
}

// ResetSession drops the user's conversation state with their selected
// provider. It silently no-ops when nothing is cached or nothing is selected.
func (m *Manager) ResetSession(user UserID) {
	st := m.user(user)
	st.mu.Lock()
	if st.selection != "" {
		delete(st.sessions, st.selection)
	}
	st.mu.Unlock()
}

// Status returns a user-facing summary of the user's selection and remaining
// quota per provider. It is a read-only view: an expired cooldown shows as
// fresh counters but is not reset here.
func (m *Manager) Status(user UserID) string {
	st := m.user(user)
	st.mu.Lock()
	defer st.mu.Unlock()

	now := m.now()
	out := "No model selected."
	if spec, ok := m.selected(st); ok {
		out = fmt.Sprintf("Current model: %s.", spec.Name)
	}

	for _, id := range m.order {
		spec := m.providers[id]
		out += "\n" + spec.Name + ": " + usageLine(spec.Policy, st.usage[id], now)
	}
	return out
}

// sendChat dispatches a text message according to the provider's memory
// style, creating session state lazily and updating it only on success.
func (m *Manager) sendChat(ctx context.Context, spec ProviderSpec, st *userState, text string) (string, error) {
	start := time.Now()

	switch spec.Caps.Memory {
	case MemoryHistory:
		sess := st.sessionFor(spec)
		reply, err := spec.Client.SendChat(ctx, sess.History.Turns(), text)
		m.metrics.RecordProviderCall(spec.ID, time.Since(start), err)
		if err != nil {
			return "", err
		}
		sess.History.Append(RoleUser, text)
		sess.History.Append(RoleAssistant, reply)
		sess.History.Truncate(m.cfg.MaxTurns)
		return reply, nil

	case MemoryHandle:
		sess := st.sessionFor(spec)
		sc := spec.Client.(SessionClient) // checked at construction
		reply, handle, err := sc.SendSession(ctx, sess.Handle, text)
		m.metrics.RecordProviderCall(spec.ID, time.Since(start), err)
		if err != nil {
			return "", err
		}
		sess.Handle = handle
		return reply, nil

	default:
		reply, err := spec.Client.SendChat(ctx, nil, text)
		m.metrics.RecordProviderCall(spec.ID, time.Since(start), err)
		return reply, err
	}
}

// selected resolves the user's current selection against the registry. A
// stale selection restored from an older snapshot is cleared.
func (m *Manager) selected(st *userState) (ProviderSpec, bool) {
	if st.selection == "" {
		return ProviderSpec{}, false
	}
	spec, ok := m.providers[st.selection]
	if !ok {
		st.selection = ""
		return ProviderSpec{}, false
	}
	return spec, true
}

func (m *Manager) logProviderFailure(provider ProviderID, err error) {
	kind := KindUnknown
	if pe, ok := asProviderError(err); ok {
		kind = pe.Kind
	}
	m.log.Error("provider call failed",
		Field{Key: "provider", Value: provider},
		Field{Key: "kind", Value: kind},
		Field{Key: "error", Value: err.Error()},
	)
}

// user returns the state entry for id, creating it if needed.
func (m *Manager) user(id UserID) *userState {
	m.mu.RLock()
	st, ok := m.users[id]
	m.mu.RUnlock()
	if ok {
		return st
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.users[id]; ok {
		return st
	}
	st = &userState{
		usage:    make(map[ProviderID]*UsageState),
		sessions: make(map[ProviderID]*Session),
	}
	m.users[id] = st
	return st
}

func (st *userState) usageFor(id ProviderID) *UsageState {
	u, ok := st.usage[id]
	if !ok {
		u = &UsageState{}
		st.usage[id] = u
	}
	return u
}

func (st *userState) sessionFor(spec ProviderSpec) *Session {
	sess, ok := st.sessions[spec.ID]
	if !ok {
		sess = newSession(spec.Caps.Memory)
		st.sessions[spec.ID] = sess
	}
	return sess
}
