package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redmag-edu/mentoria/internal/domain"
	"github.com/redmag-edu/mentoria/internal/domain/chat"
	"github.com/redmag-edu/mentoria/internal/domain/content"
	"github.com/redmag-edu/mentoria/internal/domain/profile"
	"github.com/redmag-edu/mentoria/internal/port/cache"
	"github.com/redmag-edu/mentoria/internal/port/llm"
	"github.com/redmag-edu/mentoria/internal/port/store"
	"github.com/redmag-edu/mentoria/internal/port/vectorindex"
)

// mockStore is an in-memory store with per-method error hooks.
type mockStore struct {
	mu            sync.Mutex
	conversations map[string]*chat.Conversation
	turns         map[string][]chat.Turn
	profiles      map[string]*profile.Profile
	nextID        int

	failAppend error
	failActive error
}

var _ store.Store = (*mockStore)(nil)

func newMockStore() *mockStore {
	return &mockStore{
		conversations: map[string]*chat.Conversation{},
		turns:         map[string][]chat.Turn{},
		profiles:      map[string]*profile.Profile{},
	}
}

func (m *mockStore) GetActiveConversation(_ context.Context, userID string) (*chat.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failActive != nil {
		return nil, m.failActive
	}
	for _, c := range m.conversations {
		if c.UserID == userID && c.Status != chat.StatusClosed {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) CreateConversation(_ context.Context, userID string) (*chat.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	c := &chat.Conversation{
		ID:        fmt.Sprintf("conv-%d", m.nextID),
		UserID:    userID,
		Status:    chat.StatusActive,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.conversations[c.ID] = c
	cp := *c
	return &cp, nil
}

func (m *mockStore) GetConversation(_ context.Context, id string) (*chat.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockStore) UpdateConversationStatus(_ context.Context, id string, status chat.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.Status = status
	return nil
}

func (m *mockStore) LatestConversationID(_ context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *chat.Conversation
	for _, c := range m.conversations {
		if c.UserID != userID {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	if latest == nil {
		return "", domain.ErrNotFound
	}
	return latest.ID, nil
}

func (m *mockStore) AppendTurn(_ context.Context, t *chat.Turn) (*chat.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAppend != nil {
		return nil, m.failAppend
	}
	c, ok := m.conversations[t.ConversationID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if c.Status == chat.StatusClosed {
		return nil, domain.ErrConflict
	}
	out := *t
	out.Seq = len(m.turns[t.ConversationID]) + 1
	out.ID = fmt.Sprintf("%s-turn-%d", t.ConversationID, out.Seq)
	out.CreatedAt = time.Now()
	m.turns[t.ConversationID] = append(m.turns[t.ConversationID], out)
	if t.Role == chat.RoleUser {
		c.MessageCount++
	}
	return &out, nil
}

func (m *mockStore) RecentTurns(_ context.Context, conversationID string, n int) ([]chat.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.turns[conversationID]
	if len(all) > n {
		all = all[len(all)-n:]
	}
	out := make([]chat.Turn, len(all))
	copy(out, all)
	return out, nil
}

func (m *mockStore) TurnPage(_ context.Context, conversationID string, page, size int) ([]chat.Turn, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.turns[conversationID]
	total := len(all)
	start := (page - 1) * size
	if start >= total {
		return nil, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	out := make([]chat.Turn, end-start)
	copy(out, all[start:end])
	return out, total, nil
}

func (m *mockStore) GetProfile(_ context.Context, userID string) (*profile.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockStore) UpsertProfile(_ context.Context, p *profile.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.profiles[p.UserID] = &cp
	return nil
}

// userTurns returns the persisted user-role turns for a conversation.
func (m *mockStore) userTurns(conversationID string) []chat.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []chat.Turn
	for _, t := range m.turns[conversationID] {
		if t.Role == chat.RoleUser {
			out = append(out, t)
		}
	}
	return out
}

// mockLLM returns canned completions and counts calls.
type mockLLM struct {
	mu        sync.Mutex
	responses []string // consumed in order; last one repeats
	completes int
	embeds    int

	failComplete error
	failEmbed    error
}

var _ llm.Client = (*mockLLM)(nil)

func (m *mockLLM) Complete(_ context.Context, _ llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completes++
	if m.failComplete != nil {
		return nil, m.failComplete
	}
	if len(m.responses) == 0 {
		return &llm.Response{Content: "{}"}, nil
	}
	content := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	return &llm.Response{Content: content, TokensIn: 10, TokensOut: 20}, nil
}

func (m *mockLLM) Embed(_ context.Context, _, _ string) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embeds++
	if m.failEmbed != nil {
		return nil, m.failEmbed
	}
	return []float64{0.1, 0.2, 0.3}, nil
}

func (m *mockLLM) completeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completes
}

// mockIndex serves canned matches and records upserts.
type mockIndex struct {
	mu       sync.Mutex
	matches  []vectorindex.Match
	items    map[string]content.Item
	searches int

	failSearch error
}

var _ vectorindex.Index = (*mockIndex)(nil)

func newMockIndex() *mockIndex {
	return &mockIndex{items: map[string]content.Item{}}
}

func (m *mockIndex) Search(_ context.Context, _ []float64, _ int) ([]vectorindex.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches++
	if m.failSearch != nil {
		return nil, m.failSearch
	}
	return m.matches, nil
}

func (m *mockIndex) ListByType(_ context.Context, t content.Type, page, size int) ([]content.Item, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []content.Item
	for _, it := range m.items {
		if it.Type == t {
			out = append(out, it)
		}
	}
	return out, len(out), nil
}

func (m *mockIndex) Upsert(_ context.Context, item content.Item, _ []float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = item
	return nil
}

func (m *mockIndex) Remove(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

// mockCache is a TTL-less map cache.
type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

var _ cache.Cache = (*mockCache)(nil)

func newMockCache() *mockCache { return &mockCache{data: map[string][]byte{}} }

func (m *mockCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mockCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
