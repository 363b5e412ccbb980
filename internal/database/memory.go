package database

import (
	"context"
	"sync"

	"github.com/franckalain/mealcoach/internal/models"
)

// MemoryTable keeps rows in process memory. Used for development and tests.
type MemoryTable struct {
	mu   sync.Mutex
	rows []models.Row
}

func NewMemoryTable() *MemoryTable {
	return &MemoryTable{}
}

func (m *MemoryTable) Append(ctx context.Context, row models.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, append(models.Row(nil), row...))
	return nil
}

func (m *MemoryTable) Rows(ctx context.Context) ([]models.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Row, len(m.rows))
	for i, r := range m.rows {
		out[i] = append(models.Row(nil), r...)
	}
	return out, nil
}

func (m *MemoryTable) Close() error {
	return nil
}
