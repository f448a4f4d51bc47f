package store

import (
	"context"
	"sync"

	"github.com/opensciencearchive/server-sub000/internal/domain/convention"
	"github.com/opensciencearchive/server-sub000/internal/domain/deposition"
	"github.com/opensciencearchive/server-sub000/internal/domain/record"
	"github.com/opensciencearchive/server-sub000/internal/outbox"
	"github.com/opensciencearchive/server-sub000/internal/srn"
)

// MemoryDepositionRepository is an in-process DepositionRepository for
// handler unit tests.
type MemoryDepositionRepository struct {
	mu   sync.Mutex
	data map[string]deposition.Deposition
}

// NewMemoryDepositionRepository constructs an empty repository.
func NewMemoryDepositionRepository() *MemoryDepositionRepository {
	return &MemoryDepositionRepository{data: make(map[string]deposition.Deposition)}
}

var _ DepositionRepository = (*MemoryDepositionRepository)(nil)

func (m *MemoryDepositionRepository) Get(_ context.Context, _ outbox.Executor, depositionSRN srn.SRN) (*deposition.Deposition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[depositionSRN.String()]
	if !ok {
		return nil, ErrNotFound
	}
	copied := d
	return &copied, nil
}

func (m *MemoryDepositionRepository) Save(_ context.Context, _ outbox.Executor, d *deposition.Deposition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[d.SRN.String()] = *d
	return nil
}

// MemoryConventionRepository is an in-process ConventionRepository for
// handler unit tests.
type MemoryConventionRepository struct {
	mu   sync.Mutex
	data map[string]convention.Convention
}

// NewMemoryConventionRepository constructs an empty repository.
func NewMemoryConventionRepository() *MemoryConventionRepository {
	return &MemoryConventionRepository{data: make(map[string]convention.Convention)}
}

var _ ConventionRepository = (*MemoryConventionRepository)(nil)

func (m *MemoryConventionRepository) Get(_ context.Context, _ outbox.Executor, conventionSRN srn.SRN) (*convention.Convention, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.data[conventionSRN.String()]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *MemoryConventionRepository) Save(_ context.Context, _ outbox.Executor, c convention.Convention) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[c.SRN.String()] = c
	return nil
}

func (m *MemoryConventionRepository) ListWithActiveSources(_ context.Context, _ outbox.Executor) ([]convention.Convention, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]convention.Convention, 0)
	for _, c := range m.data {
		if c.Source != nil && c.Source.HasSchedule() {
			out = append(out, c)
		}
	}
	return out, nil
}

// MemoryRecordRepository is an in-process RecordRepository for handler unit
// tests.
type MemoryRecordRepository struct {
	mu   sync.Mutex
	data map[string]record.Record
}

// NewMemoryRecordRepository constructs an empty repository.
func NewMemoryRecordRepository() *MemoryRecordRepository {
	return &MemoryRecordRepository{data: make(map[string]record.Record)}
}

var _ RecordRepository = (*MemoryRecordRepository)(nil)

func (m *MemoryRecordRepository) Get(_ context.Context, _ outbox.Executor, recordSRN srn.SRN) (*record.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.data[recordSRN.String()]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *MemoryRecordRepository) Save(_ context.Context, _ outbox.Executor, r record.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[r.SRN.String()] = r
	return nil
}
