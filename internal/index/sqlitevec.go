package index

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/memvra/dejavu/internal/db"
)

const vecTable = "vec_units"

// SQLiteVec keeps centroids in a sqlite-vec vec0 table inside a private
// in-memory database. Vectors are L2-normalised on the way in, so the L2
// distance d it reports relates to cosine similarity by 1 - d²/2.
type SQLiteVec struct {
	mu  sync.Mutex
	db  *db.DB
	dim int
	n   int
}

// NewSQLiteVec opens the in-memory database and checks that the vec0 module
// is loaded.
func NewSQLiteVec() (*SQLiteVec, error) {
	database, err := db.OpenMemory()
	if err != nil {
		return nil, fmt.Errorf("index: sqlite-vec: %w", err)
	}
	if _, err := database.VecVersion(); err != nil {
		database.Close()
		return nil, fmt.Errorf("index: sqlite-vec: %w", err)
	}
	return &SQLiteVec{db: database}, nil
}

func (s *SQLiteVec) Name() string { return BackendSQLiteVec }

// ensureTable creates the vec0 table on first use, sized to dim.
func (s *SQLiteVec) ensureTable(dim int) error {
	if s.dim != 0 {
		if dim != s.dim {
			return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, dim, s.dim)
		}
		return nil
	}
	if err := s.db.CreateVectorTable(vecTable, dim); err != nil {
		return fmt.Errorf("index: sqlite-vec: %w", err)
	}
	s.dim = dim
	return nil
}

func (s *SQLiteVec) Add(id string, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureTable(len(vec)); err != nil {
		return err
	}
	conn := s.db.Conn()
	res, err := conn.Exec(`DELETE FROM `+vecTable+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("index: sqlite-vec: delete before insert: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.n--
	}
	if _, err := conn.Exec(`INSERT INTO `+vecTable+` (id, embedding) VALUES (?, ?)`,
		id, float32SliceToBlob(normalize(vec))); err != nil {
		return fmt.Errorf("index: sqlite-vec: insert: %w", err)
	}
	s.n++
	return nil
}

func (s *SQLiteVec) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dim == 0 {
		return nil
	}
	res, err := s.db.Conn().Exec(`DELETE FROM `+vecTable+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("index: sqlite-vec: delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.n--
	}
	return nil
}

func (s *SQLiteVec) Search(vec []float32, k int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dim == 0 || s.n == 0 || k <= 0 {
		return nil, nil
	}
	if len(vec) != s.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), s.dim)
	}

	rows, err := s.db.Conn().Query(
		`SELECT id, distance FROM `+vecTable+` WHERE embedding MATCH ? AND k = ?
		 ORDER BY distance`,
		float32SliceToBlob(normalize(vec)), k,
	)
	if err != nil {
		return nil, fmt.Errorf("index: sqlite-vec: search: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		var distance float64
		if err := rows.Scan(&id, &distance); err != nil {
			return nil, fmt.Errorf("index: sqlite-vec: scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteVec) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

func (s *SQLiteVec) Close() error {
	return s.db.Close()
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		copy(out, v)
		return out
	}
	n := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

// float32SliceToBlob serialises a float32 slice to a little-endian byte blob.
// This is the format expected by sqlite-vec's BLOB column input.
func float32SliceToBlob(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
