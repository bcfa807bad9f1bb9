// Package journal records engine events in SQLite. It is an audit trail of
// responses, rotations and evictions; it never restores the cache.
package journal

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/memvra/dejavu/internal/db"
	"github.com/memvra/dejavu/internal/engine"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02 15:04:05"

// Journal implements engine.Observer on top of a db.DB.
type Journal struct {
	db  *db.DB
	now func() time.Time
}

var _ engine.Observer = (*Journal)(nil)

// New returns a Journal writing to database.
func New(database *db.DB) *Journal {
	return &Journal{db: database, now: time.Now}
}

// Open opens (or creates) the journal database at path.
func Open(path string) (*Journal, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	return New(database), nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record is one journaled response.
type Record struct {
	ID          int64     `json:"id"`
	Query       string    `json:"query"`
	Tier        string    `json:"tier"`
	UnitID      string    `json:"unit_id,omitempty"`
	Similarity  float64   `json:"similarity"`
	TokensSaved int       `json:"tokens_saved"`
	SessionID   string    `json:"session_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Savings aggregates the journal.
type Savings struct {
	Responses    int            `json:"responses"`
	ByTier       map[string]int `json:"by_tier"`
	TokensSaved  int            `json:"tokens_saved"`
	Rotations    int            `json:"rotations"`
	AverageRatio float64        `json:"average_ratio"`
	Evictions    int            `json:"evictions"`
}

// ---- Observer ----

// OnResponse stores the response tier and the tokens it saved.
func (j *Journal) OnResponse(ev engine.ResponseEvent) error {
	r := ev.Response
	var saved int
	if r.IsAdaptive() {
		saved = r.TokensSaved
	}
	_, err := j.db.Conn().Exec(`
		INSERT INTO responses (query, tier, unit_id, similarity, tokens_saved, session_id, created_at)
		VALUES (?, ?, NULLIF(?, ''), ?, ?, NULLIF(?, ''), ?)`,
		ev.Query, string(r.Tier), r.ReferencedUnit, r.Similarity, saved, ev.SessionID, formatTime(ev.At),
	)
	if err != nil {
		return fmt.Errorf("journal: record response: %w", err)
	}
	return nil
}

// OnRotate stores the compression result of a rotated unit.
func (j *Journal) OnRotate(ev engine.RotateEvent) error {
	_, err := j.db.Conn().Exec(`
		INSERT INTO rotations (unit_id, entries, original_size, compressed_size, ratio, strategy, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.Unit.ID, ev.Unit.Entries, ev.Result.OriginalSize, ev.Result.CompressedSize,
		ev.Result.Ratio, string(ev.Result.Strategy), formatTime(ev.At),
	)
	if err != nil {
		return fmt.Errorf("journal: record rotation: %w", err)
	}
	return nil
}

// OnEvict stores why a unit left the cache.
func (j *Journal) OnEvict(ev engine.EvictEvent) error {
	_, err := j.db.Conn().Exec(`
		INSERT INTO evictions (unit_id, reason, entries, created_at)
		VALUES (?, ?, ?, ?)`,
		ev.Unit.ID, string(ev.Reason), ev.Unit.Entries, formatTime(ev.At),
	)
	if err != nil {
		return fmt.Errorf("journal: record eviction: %w", err)
	}
	return nil
}

// ---- Queries ----

// Recent returns the n most recent responses, newest first.
func (j *Journal) Recent(n int) ([]Record, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := j.db.Conn().Query(`
		SELECT id, query, tier, COALESCE(unit_id,''), similarity, tokens_saved, COALESCE(session_id,''), created_at
		FROM responses
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		var r Record
		var createdAt string
		if err := rows.Scan(&r.ID, &r.Query, &r.Tier, &r.UnitID, &r.Similarity, &r.TokensSaved, &r.SessionID, &createdAt); err != nil {
			return nil, fmt.Errorf("journal: recent: %w", err)
		}
		r.CreatedAt = parseTime(createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Savings returns per-tier response counts, total tokens saved and rotation
// and eviction totals.
func (j *Journal) Savings() (Savings, error) {
	s := Savings{ByTier: make(map[string]int)}
	conn := j.db.Conn()

	rows, err := conn.Query(`SELECT tier, COUNT(*), COALESCE(SUM(tokens_saved),0) FROM responses GROUP BY tier`)
	if err != nil {
		return s, fmt.Errorf("journal: savings: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var tier string
		var count, saved int
		if err := rows.Scan(&tier, &count, &saved); err != nil {
			return s, fmt.Errorf("journal: savings: %w", err)
		}
		s.ByTier[tier] = count
		s.Responses += count
		s.TokensSaved += saved
	}
	if err := rows.Err(); err != nil {
		return s, fmt.Errorf("journal: savings: %w", err)
	}

	var avg sql.NullFloat64
	if err := conn.QueryRow(`SELECT COUNT(*), AVG(ratio) FROM rotations`).Scan(&s.Rotations, &avg); err != nil {
		return s, fmt.Errorf("journal: savings: %w", err)
	}
	s.AverageRatio = avg.Float64

	if err := conn.QueryRow(`SELECT COUNT(*) FROM evictions`).Scan(&s.Evictions); err != nil {
		return s, fmt.Errorf("journal: savings: %w", err)
	}
	return s, nil
}

// Prune deletes journal rows older than the given number of days and
// returns how many rows were removed across all tables.
func (j *Journal) Prune(olderThanDays int) (int64, error) {
	if olderThanDays < 0 {
		return 0, fmt.Errorf("journal: prune: days must be >= 0, got %d", olderThanDays)
	}
	cutoff := formatTime(j.now().AddDate(0, 0, -olderThanDays))

	var total int64
	for _, table := range []string{"responses", "rotations", "evictions"} {
		res, err := j.db.Conn().Exec(`DELETE FROM `+table+` WHERE created_at < ?`, cutoff)
		if err != nil {
			return total, fmt.Errorf("journal: prune %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	layouts := []string{
		timeLayout,
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
