package database

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/franckalain/mealcoach/internal/models"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

// Options selects and configures a Table backend
type Options struct {
	Type            string // "sqlite", "sheets" or "memory"
	Path            string
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
}

// Open creates the backend named by opts.Type
func Open(ctx context.Context, opts Options) (Table, error) {
	switch opts.Type {
	case "sqlite", "":
		return NewSQLiteTable(opts.Path)
	case "sheets":
		var clientOpts []option.ClientOption
		if opts.CredentialsFile != "" {
			clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
		}
		return NewSheetsTable(ctx, opts.SpreadsheetID, opts.SheetName, clientOpts...)
	case "memory":
		return NewMemoryTable(), nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", opts.Type)
	}
}

// RecordStore is the journal: append-only meal and evaluation rows over a
// Table. Reads are full scans, so a day view costs O(total rows); a short
// lived per-date cache absorbs repeated views of the same day.
type RecordStore struct {
	table   Table
	timeout time.Duration
	cache   *expirable.LRU[string, []models.MealRecord]

	// gens counts appends per date. A snapshot is cached only if no append
	// for its date landed while it was being read.
	mu   sync.Mutex
	gens map[string]uint64
}

// NewRecordStore wraps table. Every call is bounded by timeout. A cacheSize
// of zero disables the day cache.
func NewRecordStore(table Table, timeout time.Duration, cacheSize int, cacheTTL time.Duration) *RecordStore {
	s := &RecordStore{table: table, timeout: timeout, gens: make(map[string]uint64)}
	if cacheSize > 0 && cacheTTL > 0 {
		s.cache = expirable.NewLRU[string, []models.MealRecord](cacheSize, nil, cacheTTL)
	}
	return s
}

func (s *RecordStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// EnsureHeader writes the column header if the table is empty. Safe to call
// on every startup.
func (s *RecordStore) EnsureHeader(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.table.Rows(ctx)
	if err != nil {
		return &models.IOError{Op: "read", Err: err}
	}
	if len(rows) > 0 {
		return nil
	}

	if err := s.table.Append(ctx, models.Header); err != nil {
		return &models.IOError{Op: "append header", Err: err}
	}
	log.Info().Msg("Initialized empty journal with header row")
	return nil
}

// Append writes one record. On error nothing was written and the caller may
// retry from scratch.
func (s *RecordStore) Append(ctx context.Context, rec models.MealRecord) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.table.Append(ctx, models.RowFromRecord(rec))
	s.invalidate(rec.Date)
	if err != nil {
		return &models.IOError{Op: "append", Err: err}
	}
	return nil
}

func (s *RecordStore) invalidate(date string) {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens[date]++
	s.cache.Remove(date)
}

func (s *RecordStore) generation(date string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[date]
}

// remember caches recs unless date was appended to since gen was taken
func (s *RecordStore) remember(date string, gen uint64, recs []models.MealRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gens[date] != gen {
		return
	}
	s.cache.Add(date, append([]models.MealRecord(nil), recs...))
}

// AllForDate returns every row whose date cell equals date, meals and
// evaluations alike, in append order. It may be served from the day cache.
func (s *RecordStore) AllForDate(ctx context.Context, date string) ([]models.MealRecord, error) {
	if s.cache != nil {
		if recs, ok := s.cache.Get(date); ok {
			return append([]models.MealRecord(nil), recs...), nil
		}
	}
	return s.read(ctx, date)
}

// ReadThrough is AllForDate without the cache. Decisions that must see every
// earlier append, such as whether a day already has an evaluation, use it.
func (s *RecordStore) ReadThrough(ctx context.Context, date string) ([]models.MealRecord, error) {
	return s.read(ctx, date)
}

func (s *RecordStore) read(ctx context.Context, date string) ([]models.MealRecord, error) {
	var gen uint64
	if s.cache != nil {
		gen = s.generation(date)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.table.Rows(ctx)
	if err != nil {
		return nil, &models.IOError{Op: "read", Err: err}
	}

	var recs []models.MealRecord
	for _, row := range rows {
		if row.IsHeader() || strings.TrimSpace(row.Cell(models.ColDate)) != date {
			continue
		}
		recs = append(recs, models.RecordFromRow(row))
	}

	if s.cache != nil {
		s.remember(date, gen, recs)
	}
	return recs, nil
}

// Close releases the backend
func (s *RecordStore) Close() error {
	return s.table.Close()
}
