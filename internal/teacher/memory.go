package teacher

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type refreshToken struct {
	teacherID string
	expiresAt time.Time
	revoked   bool
}

// MemoryRepository is an in-process Repository for local runs and tests.
type MemoryRepository struct {
	mu       sync.RWMutex
	now      func() time.Time
	teachers map[string]Teacher
	scans    []ScanEvent
	tokens   map[string]refreshToken
}

// NewMemoryRepository creates an empty repository. A nil now uses time.Now.
func NewMemoryRepository(now func() time.Time) *MemoryRepository {
	if now == nil {
		now = time.Now
	}
	return &MemoryRepository{
		now:      now,
		teachers: make(map[string]Teacher),
		tokens:   make(map[string]refreshToken),
	}
}

func (m *MemoryRepository) Create(_ context.Context, t Teacher) (Teacher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.teachers {
		if existing.Email == t.Email {
			return Teacher{}, ErrEmailTaken
		}
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = StatusAvailable
	}
	now := m.now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	m.teachers[t.ID] = t
	return t, nil
}

func (m *MemoryRepository) GetByID(_ context.Context, id string) (Teacher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.teachers[id]
	if !ok {
		return Teacher{}, ErrNotFound
	}
	return t, nil
}

func (m *MemoryRepository) GetByEmail(_ context.Context, email string) (Teacher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.teachers {
		if t.Email == email {
			return t, nil
		}
	}
	return Teacher{}, ErrNotFound
}

func (m *MemoryRepository) List(_ context.Context, opts ListOptions) ([]Teacher, error) {
	return m.filter(func(t Teacher) bool {
		return opts.Department == "" || (t.Department != nil && *t.Department == opts.Department)
	}, opts.NewestFirst), nil
}

func (m *MemoryRepository) Search(_ context.Context, query string) ([]Teacher, error) {
	q := strings.ToLower(query)
	contains := func(s *string) bool {
		return s != nil && strings.Contains(strings.ToLower(*s), q)
	}
	return m.filter(func(t Teacher) bool {
		return strings.Contains(strings.ToLower(t.Name), q) || contains(t.Subject) || contains(t.Department)
	}, false), nil
}

func (m *MemoryRepository) filter(keep func(Teacher) bool, newestFirst bool) []Teacher {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []Teacher
	for _, t := range m.teachers {
		if keep(t) {
			res = append(res, t)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if newestFirst {
			return res[i].CreatedAt.After(res[j].CreatedAt)
		}
		return res[i].Name < res[j].Name
	})
	return res
}

func (m *MemoryRepository) Departments(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := map[string]bool{}
	var res []string
	for _, t := range m.teachers {
		if t.Department == nil || *t.Department == "" || seen[*t.Department] {
			continue
		}
		seen[*t.Department] = true
		res = append(res, *t.Department)
	}
	sort.Strings(res)
	return res, nil
}

func (m *MemoryRepository) Update(_ context.Context, id string, c Changes) (Teacher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teachers[id]
	if !ok {
		return Teacher{}, ErrNotFound
	}
	if c.empty() {
		return t, nil
	}
	if c.Name != nil {
		t.Name = *c.Name
	}
	if c.Subject != nil {
		t.Subject = c.Subject
	}
	if c.Department != nil {
		t.Department = c.Department
	}
	if c.Status != nil {
		t.Status = *c.Status
	}
	if c.Phone.Set {
		t.Phone = c.Phone.Value
	}
	if c.Office.Set {
		t.Office = c.Office.Value
	}
	if c.StatusNote.Set {
		t.StatusNote = c.StatusNote.Value
	}
	if c.StatusUntil.Set {
		t.StatusUntil = c.StatusUntil.Value
		t.AvailableUntil = nil
	}
	t.UpdatedAt = m.now().UTC()
	m.teachers[id] = t
	return t, nil
}

func (m *MemoryRepository) SetQRCode(_ context.Context, id, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teachers[id]
	if !ok {
		return ErrNotFound
	}
	t.QRCode = &url
	t.UpdatedAt = m.now().UTC()
	m.teachers[id] = t
	return nil
}

func (m *MemoryRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.teachers[id]; !ok {
		return ErrNotFound
	}
	delete(m.teachers, id)
	kept := m.scans[:0]
	for _, s := range m.scans {
		if s.TeacherID != id {
			kept = append(kept, s)
		}
	}
	m.scans = kept
	return nil
}

func (m *MemoryRepository) InsertScan(_ context.Context, evt ScanEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.teachers[evt.TeacherID]; !ok {
		return ErrNotFound
	}
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.ScannedAt.IsZero() {
		evt.ScannedAt = m.now().UTC()
	}
	m.scans = append(m.scans, evt)
	return nil
}

func (m *MemoryRepository) ListScans(_ context.Context, teacherID string) ([]ScanEvent, error) {
	return m.scansWhere(func(s ScanEvent) bool { return s.TeacherID == teacherID }), nil
}

func (m *MemoryRepository) ScansSince(_ context.Context, since time.Time) ([]ScanEvent, error) {
	return m.scansWhere(func(s ScanEvent) bool { return !s.ScannedAt.Before(since) }), nil
}

func (m *MemoryRepository) scansWhere(keep func(ScanEvent) bool) []ScanEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []ScanEvent
	for _, s := range m.scans {
		if keep(s) {
			res = append(res, s)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].ScannedAt.After(res[j].ScannedAt) })
	return res
}

func (m *MemoryRepository) SaveRefreshToken(_ context.Context, teacherID, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token] = refreshToken{teacherID: teacherID, expiresAt: expiresAt}
	return nil
}

func (m *MemoryRepository) RefreshTokenActive(_ context.Context, token string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rt, ok := m.tokens[token]
	return ok && !rt.revoked && rt.expiresAt.After(m.now()), nil
}

func (m *MemoryRepository) RevokeRefreshToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rt, ok := m.tokens[token]; ok {
		rt.revoked = true
		m.tokens[token] = rt
	}
	return nil
}

var (
	_ Repository = (*MemoryRepository)(nil)
	_ Repository = (*PostgresRepository)(nil)
)
