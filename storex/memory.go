package storex

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps runs in process. Used when no database is configured.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]Run
}

var _ RunStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]Run)}
}

func (m *MemoryStore) SaveRun(ctx context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return nil
}

func (m *MemoryStore) GetRun(ctx context.Context, id string) (Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return Run{}, NotFound(id)
	}
	return run, nil
}

func (m *MemoryStore) ListRuns(ctx context.Context, opts PaginationOptions) (Paginated[Run], error) {
	opts = opts.Normalize()

	m.mu.RLock()
	all := make([]Run, 0, len(m.runs))
	for _, r := range m.runs {
		if opts.Backend != "" && r.Backend != opts.Backend {
			continue
		}
		all = append(all, r)
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].StartedAt.After(all[j].StartedAt) })

	start := min(opts.Offset(), len(all))
	end := min(start+opts.PageSize, len(all))
	return NewPaginated(all[start:end], opts.Page, opts.PageSize, len(all)), nil
}

func (m *MemoryStore) Close(ctx context.Context) error { return nil }
