package progress

import (
	"bytes"
	"context"
	"database/sql"
	"log/slog"
	"testing"

	"github.com/kholikovA/ielts-wiz-sub001/internal/client/localdb"
	"github.com/kholikovA/ielts-wiz-sub001/internal/client/models"
	"github.com/kholikovA/ielts-wiz-sub001/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*SQLiteRepository, *sql.DB, *bytes.Buffer) {
	t.Helper()
	db, err := localdb.InitDatabase(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var buf bytes.Buffer
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	return NewSQLiteRepository(db, log), db, &buf
}

func store(t *testing.T, db *sql.DB, category, raw string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO progress(category, items) VALUES (?, ?)`, category, raw)
	require.NoError(t, err)
}

func TestRead_Missing(t *testing.T) {
	r, _, buf := setup(t)

	got := r.Read(context.Background(), models.SkillReading)
	assert.Empty(t, got)
	assert.Empty(t, buf.String())
}

func TestRead_Formats(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
		warn bool
	}{
		{name: "strings", raw: `["r1","r2"]`, want: []string{"r1", "r2"}},
		{name: "duplicates collapse", raw: `["r1","r1","r2"]`, want: []string{"r1", "r2"}},
		{name: "numbers coerced", raw: `[1, 2, "3", 2]`, want: []string{"1", "2", "3"}},
		{name: "other kinds dropped", raw: `["a", null, true, {"x":1}, [2], ""]`, want: []string{"a"}},
		{name: "empty array", raw: `[]`, want: []string{}},
		{name: "null", raw: `null`, want: []string{}},
		{name: "object", raw: `{"a":1}`, want: []string{}, warn: true},
		{name: "garbage", raw: `not json`, want: []string{}, warn: true},
		{name: "trailing data", raw: `["a"] ["b"]`, want: []string{}, warn: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, db, buf := setup(t)
			store(t, db, "listening", tt.raw)

			got := r.Read(context.Background(), models.SkillListening)
			assert.Equal(t, tt.want, got.Slice())
			if tt.warn {
				assert.Contains(t, buf.String(), "malformed")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestRead_DatabaseErrorIsEmpty(t *testing.T) {
	r, db, buf := setup(t)
	require.NoError(t, db.Close())

	assert.Empty(t, r.Read(context.Background(), models.SkillWriting))
	assert.Contains(t, buf.String(), "progress read failed")
}

func TestMark_AddsOnce(t *testing.T) {
	r, _, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, r.Mark(ctx, models.SkillSpeaking, "s1"))
	require.NoError(t, r.Mark(ctx, models.SkillSpeaking, "s1"))
	require.NoError(t, r.Mark(ctx, models.SkillSpeaking, " s2 "))

	assert.Equal(t, []string{"s1", "s2"}, r.Read(ctx, models.SkillSpeaking).Slice())
	assert.Empty(t, r.Read(ctx, models.SkillReading))
}

func TestMark_ReplacesCorruptEntry(t *testing.T) {
	r, db, _ := setup(t)
	store(t, db, "reading", `{broken`)
	ctx := context.Background()

	require.NoError(t, r.Mark(ctx, models.SkillReading, "r9"))
	assert.Equal(t, []string{"r9"}, r.Read(ctx, models.SkillReading).Slice())
}

func TestMark_Validation(t *testing.T) {
	r, _, _ := setup(t)
	ctx := context.Background()

	require.ErrorIs(t, r.Mark(ctx, models.SkillCategory("maths"), "x"), models.ErrInvalidSkill)
	require.Error(t, r.Mark(ctx, models.SkillReading, "  "))
}

func TestClear(t *testing.T) {
	r, _, _ := setup(t)
	ctx := context.Background()
	require.NoError(t, r.Mark(ctx, models.SkillReading, "r1"))

	require.NoError(t, r.Clear(ctx))
	assert.Empty(t, r.Read(ctx, models.SkillReading))
}
