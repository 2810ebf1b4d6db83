// Package testutil holds in-memory stand-ins for the Postgres repositories,
// the event broker and object storage, shared by service and handler tests.
package testutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cambosugarscan/apiserver/internal/events"
	"github.com/cambosugarscan/apiserver/internal/store"
	"github.com/cambosugarscan/apiserver/types"
)

// Now is the timestamp the in-memory repositories stamp on writes.
var Now = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// MemProducts mirrors store.ProductRepository, including the unique barcode
// constraint. Setting FailWith makes List and CountGroups fail.
type MemProducts struct {
	mu       sync.Mutex
	seq      int
	ByID     map[string]types.Product
	FailWith error
}

func NewMemProducts() *MemProducts {
	return &MemProducts{ByID: map[string]types.Product{}}
}

func (m *MemProducts) List(_ context.Context, q string, offset, limit int) ([]types.Product, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, 0, m.FailWith
	}
	var matched []types.Product
	for _, p := range m.ByID {
		if q == "" || strings.Contains(strings.ToLower(p.NameKh+p.NameEn+p.Barcode), strings.ToLower(q)) {
			matched = append(matched, p)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	total := len(matched)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (m *MemProducts) Get(_ context.Context, id string) (types.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.ByID[id]
	if !ok {
		return types.Product{}, store.ErrNotFound
	}
	return p, nil
}

func (m *MemProducts) GetByBarcode(_ context.Context, barcode string) (types.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.ByID {
		if p.Barcode == barcode {
			return p, nil
		}
	}
	return types.Product{}, store.ErrNotFound
}

func (m *MemProducts) Create(_ context.Context, p types.Product) (types.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.ByID {
		if other.Barcode == p.Barcode {
			return types.Product{}, store.ErrDuplicate
		}
	}
	m.seq++
	p.ID = fmt.Sprintf("p-%03d", m.seq)
	p.CreatedAt = Now
	p.UpdatedAt = Now
	m.ByID[p.ID] = p
	return p, nil
}

func (m *MemProducts) Update(_ context.Context, p types.Product) (types.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ByID[p.ID]; !ok {
		return types.Product{}, store.ErrNotFound
	}
	for _, other := range m.ByID {
		if other.ID != p.ID && other.Barcode == p.Barcode {
			return types.Product{}, store.ErrDuplicate
		}
	}
	p.UpdatedAt = Now
	m.ByID[p.ID] = p
	return p, nil
}

func (m *MemProducts) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ByID[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.ByID, id)
	return nil
}

func (m *MemProducts) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ByID), nil
}

func (m *MemProducts) CountGroups(_ context.Context, column string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	counts := map[string]int{}
	for _, p := range m.ByID {
		switch column {
		case store.ProductGroupSugarLevel:
			counts[string(p.SugarLevel)]++
		case store.ProductGroupConfidence:
			counts[string(p.Confidence)]++
		default:
			return nil, errors.New("unsupported column")
		}
	}
	return counts, nil
}

// MemUsers mirrors store.UserRepository, including the unique email constraint.
type MemUsers struct {
	mu   sync.Mutex
	seq  int
	ByID map[string]types.User
}

func NewMemUsers() *MemUsers {
	return &MemUsers{ByID: map[string]types.User{}}
}

func (m *MemUsers) List(_ context.Context, _ string, offset, limit int) ([]types.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []types.User
	for _, u := range m.ByID {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *MemUsers) GetByID(_ context.Context, id string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.ByID[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (m *MemUsers) GetByEmail(_ context.Context, email string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.ByID {
		if u.Email == email {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *MemUsers) Create(_ context.Context, u types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.ByID {
		if other.Email == u.Email {
			return types.User{}, store.ErrDuplicate
		}
	}
	m.seq++
	u.ID = fmt.Sprintf("u-%03d", m.seq)
	u.CreatedAt = Now
	u.UpdatedAt = Now
	m.ByID[u.ID] = u
	return u, nil
}

func (m *MemUsers) Update(_ context.Context, u types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ByID[u.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	for _, other := range m.ByID {
		if other.ID != u.ID && other.Email == u.Email {
			return types.User{}, store.ErrDuplicate
		}
	}
	m.ByID[u.ID] = u
	return u, nil
}

func (m *MemUsers) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ByID[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.ByID, id)
	return nil
}

func (m *MemUsers) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ByID), nil
}

func (m *MemUsers) CountByRole(_ context.Context, role types.Role) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, u := range m.ByID {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (m *MemUsers) CountGroups(_ context.Context, column string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[string]int{}
	for _, u := range m.ByID {
		switch column {
		case store.UserGroupRole:
			counts[string(u.Role)]++
		case store.UserGroupStatus:
			counts[string(u.Status)]++
		case store.UserGroupAgeGroup:
			counts[string(u.AgeGroup)]++
		default:
			return nil, errors.New("unsupported column")
		}
	}
	return counts, nil
}

// RecordingPublisher keeps every published event, or fails with Err.
type RecordingPublisher struct {
	mu     sync.Mutex
	Events []events.Event
	Err    error
}

func (r *RecordingPublisher) Publish(_ context.Context, ev events.Event) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return "", r.Err
	}
	r.Events = append(r.Events, ev)
	return "id", nil
}

func (r *RecordingPublisher) EventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Events))
	for _, ev := range r.Events {
		out = append(out, ev.Type)
	}
	return out
}

// MemObjects is an object storage bucket held in memory.
type MemObjects struct {
	bucket       string
	Objects      map[string][]byte
	ContentTypes map[string]string
	PutErr       error
}

func NewMemObjects() *MemObjects {
	return &MemObjects{bucket: "exports", Objects: map[string][]byte{}, ContentTypes: map[string]string{}}
}

func (m *MemObjects) EnsureBucket(context.Context) error { return nil }

func (m *MemObjects) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	if m.PutErr != nil {
		return m.PutErr
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.Objects[key] = body
	m.ContentTypes[key] = contentType
	return nil
}

func (m *MemObjects) Get(_ context.Context, key string) (io.ReadCloser, error) {
	body, ok := m.Objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func (m *MemObjects) Bucket() string { return m.bucket }
