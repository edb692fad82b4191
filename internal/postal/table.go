package postal

import (
	"fmt"
	"time"

	"github.com/owldoor/zipradius/internal/geo"
	"github.com/owldoor/zipradius/internal/spatial"
)

// Table is a loaded reference dataset. It is never modified after NewTable
// returns and is safe for concurrent readers without locking.
type Table struct {
	records []Record
	byCode  map[string]int
	index   spatial.Index
	format  CodeFormat

	source   string
	stats    ParseStats
	loadedAt time.Time
}

// NewTable indexes records. Codes are expected to be normalised and unique,
// as Parse produces them; should a code repeat anyway the later record wins
// the lookup.
func NewTable(records []Record, format CodeFormat, kind spatial.Kind) (*Table, error) {
	points := make([]geo.Point, len(records))
	byCode := make(map[string]int, len(records))
	for i, r := range records {
		points[i] = r.Point()
		byCode[r.Code] = i
	}
	index, err := spatial.New(kind, points)
	if err != nil {
		return nil, fmt.Errorf("building %s index: %w", kind, err)
	}
	return &Table{
		records:  records,
		byCode:   byCode,
		index:    index,
		format:   format,
		loadedAt: time.Now(),
	}, nil
}

// Len is the number of records.
func (t *Table) Len() int { return len(t.records) }

// Get normalises code and returns its record.
func (t *Table) Get(code string) (Record, bool) {
	rec, err := t.Lookup(code)
	return rec, err == nil
}

// Lookup is Get with the reason for a miss: ErrMalformedCode or ErrNotFound.
func (t *Table) Lookup(code string) (Record, error) {
	norm, err := t.format.Normalize(code)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %q", err, code)
	}
	pos, ok := t.byCode[norm]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, norm)
	}
	return t.records[pos], nil
}

// At returns the record at insertion position pos.
func (t *Table) At(pos int) Record { return t.records[pos] }

// Within returns the positions of records within radiusMiles of center,
// nearest first.
func (t *Table) Within(center geo.Point, radiusMiles float64) ([]spatial.Match, int) {
	return t.index.Within(center, radiusMiles)
}

// Source names the data source the table was loaded from.
func (t *Table) Source() string { return t.source }

// Stats reports the parse of the source content.
func (t *Table) Stats() ParseStats { return t.stats }

// LoadedAt is when the table was built.
func (t *Table) LoadedAt() time.Time { return t.loadedAt }
