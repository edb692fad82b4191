package source

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// DefaultSQLQuery reads a postal_codes table holding the geonames columns.
const DefaultSQLQuery = `
	SELECT
		p.country_code,
		p.postal_code,
		p.place_name,
		p.admin_name1,
		p.admin_code1,
		p.latitude,
		p.longitude
	FROM postal_codes p
	ORDER BY p.postal_code ASC;
`

// SQLDrivers lists the database/sql drivers linked into the binary.
var SQLDrivers = []string{"mysql", "sqlite"}

// SQL reads the dataset from a database table and renders it in the
// geonames tab layout. The query must return, in order: country, postal code,
// city, region name, region code, latitude, longitude.
type SQL struct {
	DB    *sql.DB
	Query string
	Label string
}

// OpenSQL opens and pings a database for a SQL source.
func OpenSQL(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening %s connection: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error reaching %s database: %w", driver, err)
	}
	return db, nil
}

func (s *SQL) Name() string {
	if s.Label == "" {
		return "sql"
	}
	return "sql:" + s.Label
}

func (s *SQL) FetchRaw(ctx context.Context) ([]byte, error) {
	query := s.Query
	if query == "" {
		query = DefaultSQLQuery
	}

	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("SELECT postal codes failed: %w", err)
	}
	defer rows.Close()

	var buf bytes.Buffer
	for rows.Next() {
		var country, code, city, regionName, regionCode, lat, lon sql.NullString
		if err := rows.Scan(&country, &code, &city, &regionName, &regionCode, &lat, &lon); err != nil {
			return nil, fmt.Errorf("failed to parse row as postal code: %w", err)
		}
		writeGeonamesRow(&buf,
			emptyIfNull(country),
			emptyIfNull(code),
			emptyIfNull(city),
			emptyIfNull(regionName),
			emptyIfNull(regionCode),
			emptyIfNull(lat),
			emptyIfNull(lon),
		)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading postal code rows: %w", err)
	}
	return buf.Bytes(), nil
}

var fieldCleaner = strings.NewReplacer("\t", " ", "\r", " ", "\n", " ", `"`, "'")

// writeGeonamesRow emits the twelve geonames columns, leaving the ones the
// parser ignores empty.
func writeGeonamesRow(buf *bytes.Buffer, country, code, city, regionName, regionCode, lat, lon string) {
	cols := [12]string{
		0:  country,
		1:  code,
		2:  city,
		3:  regionName,
		4:  regionCode,
		9:  lat,
		10: lon,
	}
	for i, col := range cols {
		if i > 0 {
			buf.WriteByte('\t')
		}
		buf.WriteString(fieldCleaner.Replace(col))
	}
	buf.WriteByte('\n')
}

func emptyIfNull(s sql.NullString) string {
	if s.Valid {
		return s.String
	}
	return ""
}
