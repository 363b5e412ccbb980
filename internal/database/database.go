package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/franckalain/mealcoach/internal/models"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

// Table is an append-only sheet of text cells. Implementations must write a
// row in one operation so a failed Append leaves nothing behind.
type Table interface {
	Append(ctx context.Context, row models.Row) error
	Rows(ctx context.Context) ([]models.Row, error)
	Close() error
}

// SQLiteTable implements Table on a local SQLite file
type SQLiteTable struct {
	db *sql.DB
}

// NewSQLiteTable opens (and if needed creates) the journal database
func NewSQLiteTable(dbPath string) (*SQLiteTable, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// WAL lets the day view read while a meal is being appended
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error enabling WAL mode: %w", err)
	}

	if err := initializeSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing schema: %w", err)
	}

	return &SQLiteTable{db: db}, nil
}

func initializeSchema(db *sql.DB) error {
	schemaBytes, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("error reading schema file: %w", err)
	}

	if _, err := db.Exec(string(schemaBytes)); err != nil {
		return fmt.Errorf("error executing schema: %w", err)
	}

	log.Debug().Msg("Database schema initialized")
	return nil
}

// Append inserts one row; short rows are padded with empty cells
func (s *SQLiteTable) Append(ctx context.Context, row models.Row) error {
	query := `
		INSERT INTO journal_rows (
			date, time, meal_kind, menu_name, calories, protein_g,
			fat_g, carbs_g, advice, score, purine_mg
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	args := make([]any, models.NumColumns)
	for i := range args {
		args[i] = row.Cell(i)
	}

	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

// Rows returns every row in insertion order
func (s *SQLiteTable) Rows(ctx context.Context) ([]models.Row, error) {
	query := `
		SELECT date, time, meal_kind, menu_name, calories, protein_g,
			fat_g, carbs_g, advice, score, purine_mg
		FROM journal_rows
		ORDER BY seq ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.Row
	for rows.Next() {
		row := make(models.Row, models.NumColumns)
		dest := make([]any, models.NumColumns)
		for i := range row {
			dest[i] = &row[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		results = append(results, row)
	}

	return results, rows.Err()
}

// Close closes the database connection
func (s *SQLiteTable) Close() error {
	return s.db.Close()
}
