package progress

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kholikovA/ielts-wiz-sub001/internal/client/models"
	"github.com/kholikovA/ielts-wiz-sub001/internal/dbx"
	"github.com/kholikovA/ielts-wiz-sub001/internal/logging"
)

// Reader is the read side consumed by the progress aggregator.
type Reader interface {
	Read(ctx context.Context, category models.SkillCategory) models.ItemSet
}

type SQLiteRepository struct {
	db  *sql.DB
	log logging.Logger
}

func NewSQLiteRepository(db *sql.DB, log logging.Logger) *SQLiteRepository {
	if log == nil {
		log = logging.Nop{}
	}
	return &SQLiteRepository{db: db, log: logging.Component(log, "progress_cache")}
}

// Read returns the completed items of category. It never fails.
func (r *SQLiteRepository) Read(ctx context.Context, category models.SkillCategory) models.ItemSet {
	raw, err := readRaw(ctx, r.db, category)
	if err != nil {
		r.log.Warn(ctx, "progress read failed", "category", category, "error", err)
		return models.ItemSet{}
	}
	if raw == "" {
		return models.ItemSet{}
	}

	set, err := decodeItems(raw)
	if err != nil {
		r.log.Warn(ctx, "ignoring malformed progress entry", "category", category, "error", err)
		return models.ItemSet{}
	}
	return set
}

// Mark records itemID as completed in category.
func (r *SQLiteRepository) Mark(ctx context.Context, category models.SkillCategory, itemID string) error {
	if !category.Valid() {
		return fmt.Errorf("%w: %q", models.ErrInvalidSkill, category)
	}
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return errors.New("item id is required")
	}

	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		raw, err := readRaw(ctx, tx, category)
		if err != nil {
			return err
		}
		set, err := decodeItems(raw)
		if err != nil {
			// overwrite a corrupt entry rather than refuse to record progress
			set = models.ItemSet{}
		}
		set[itemID] = struct{}{}

		b, err := json.Marshal(set.Slice())
		if err != nil {
			return fmt.Errorf("encode progress: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO progress (category, items, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(category) DO UPDATE SET items = excluded.items, updated_at = excluded.updated_at
		`, string(category), string(b))
		if err != nil {
			return fmt.Errorf("failed to save progress[%s]: %w", category, err)
		}
		return nil
	})
}

// Clear forgets all recorded progress.
func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM progress`); err != nil {
		return fmt.Errorf("failed to clear progress: %w", err)
	}
	return nil
}

func readRaw(ctx context.Context, db dbx.DBTX, category models.SkillCategory) (string, error) {
	var raw sql.NullString
	err := db.QueryRowContext(ctx, `SELECT items FROM progress WHERE category = ?`, string(category)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get progress[%s]: %w", category, err)
	}
	return raw.String, nil
}

// decodeItems parses a JSON array of item identifiers. Strings are kept
// as-is, numbers by their literal text; other elements are skipped.
func decodeItems(raw string) (models.ItemSet, error) {
	set := models.ItemSet{}
	if strings.TrimSpace(raw) == "" {
		return set, nil
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var elems []any
	if err := dec.Decode(&elems); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	if dec.More() {
		return nil, errors.New("decode items: trailing data")
	}

	for _, e := range elems {
		switch v := e.(type) {
		case string:
			if v != "" {
				set[v] = struct{}{}
			}
		case json.Number:
			set[v.String()] = struct{}{}
		}
	}
	return set, nil
}
