package source

import (
	"archive/zip"
	"bytes"
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owldoor/zipradius/internal/postal"
	"github.com/owldoor/zipradius/internal/postaltest"
)

type member struct {
	name string
	data []byte
}

func zipBytes(t *testing.T, members ...member) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, m := range members {
		f, err := w.Create(m.name)
		require.NoError(t, err)
		_, err = f.Write(m.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func geonamesArchive(t *testing.T) []byte {
	return zipBytes(t,
		member{"readme.txt", []byte("geonames postal codes\n")},
		member{"US.txt", postaltest.US},
	)
}

func TestUnpack(t *testing.T) {
	t.Run("plain text passes through", func(t *testing.T) {
		got, err := unpack(postaltest.US, "")
		require.NoError(t, err)
		assert.Equal(t, postaltest.US, got)
	})

	t.Run("zip member", func(t *testing.T) {
		got, err := unpack(geonamesArchive(t), "")
		require.NoError(t, err)
		assert.Equal(t, postaltest.US, got)
	})

	t.Run("member inside a directory", func(t *testing.T) {
		archive := zipBytes(t, member{"export/zip/CA.txt", []byte("CA\tT2P\n")})
		got, err := unpack(archive, "CA.txt")
		require.NoError(t, err)
		assert.Equal(t, "CA\tT2P\n", string(got))
	})

	t.Run("missing member", func(t *testing.T) {
		_, err := unpack(zipBytes(t, member{"readme.txt", []byte("hi")}), "")
		assert.ErrorContains(t, err, "no US.txt member")
	})

	t.Run("corrupt archive", func(t *testing.T) {
		_, err := unpack([]byte("PK\x03\x04garbage"), "")
		assert.Error(t, err)
	})
}

func TestHTTP_FetchZipAndCache(t *testing.T) {
	archive := geonamesArchive(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/export/zip/US.zip", r.URL.Path)
		w.Write(archive)
	}))
	defer srv.Close()

	cache := filepath.Join(t.TempDir(), "cache", "US.zip")
	src := &HTTP{URL: srv.URL + "/export/zip/US.zip", CachePath: cache}

	got, err := src.FetchRaw(context.Background())
	require.NoError(t, err)
	assert.Equal(t, postaltest.US, got)

	cached, err := os.ReadFile(cache)
	require.NoError(t, err)
	assert.Equal(t, archive, cached)
}

func TestHTTP_PlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(postaltest.US)
	}))
	defer srv.Close()

	got, err := (&HTTP{URL: srv.URL}).FetchRaw(context.Background())
	require.NoError(t, err)
	assert.Equal(t, postaltest.US, got)
}

func TestHTTP_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := (&HTTP{URL: srv.URL}).FetchRaw(context.Background())
	assert.ErrorContains(t, err, "status 404")
}

func TestHTTP_OversizedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(postaltest.US)
	}))
	defer srv.Close()

	cache := filepath.Join(t.TempDir(), "US.txt")
	src := &HTTP{URL: srv.URL, CachePath: cache, MaxBytes: int64(len(postaltest.US)) - 1}
	_, err := src.FetchRaw(context.Background())
	assert.ErrorContains(t, err, "exceeds")
	assert.NoFileExists(t, cache)

	src.MaxBytes = int64(len(postaltest.US))
	got, err := src.FetchRaw(context.Background())
	require.NoError(t, err)
	assert.Equal(t, postaltest.US, got)
}

func TestHTTP_RespectsContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := (&HTTP{URL: srv.URL}).FetchRaw(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestFile(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "US.txt")
	archive := filepath.Join(dir, "US.zip")
	require.NoError(t, os.WriteFile(plain, postaltest.US, 0o644))
	require.NoError(t, os.WriteFile(archive, geonamesArchive(t), 0o644))

	for _, path := range []string{plain, archive} {
		got, err := (&File{Path: path}).FetchRaw(context.Background())
		require.NoError(t, err, path)
		assert.Equal(t, postaltest.US, got, path)
	}

	_, err := (&File{Path: filepath.Join(dir, "missing.txt")}).FetchRaw(context.Background())
	assert.True(t, errors.Is(err, os.ErrNotExist))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = (&File{Path: plain}).FetchRaw(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// An unreachable download falls back to the copy it cached earlier.
func TestHTTPCacheServesFileFallback(t *testing.T) {
	archive := geonamesArchive(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	cache := filepath.Join(t.TempDir(), "US.zip")
	online := &HTTP{URL: srv.URL, CachePath: cache}

	_, err := postal.NewStore([]postal.DataSource{online}).Load(context.Background())
	require.NoError(t, err)
	srv.Close()

	store := postal.NewStore([]postal.DataSource{
		&HTTP{URL: srv.URL, CachePath: cache},
		&File{Path: cache},
	})
	table, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "file:"+cache, table.Source())
	assert.Equal(t, postaltest.Accepted, table.Len())
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenSQL(context.Background(), "sqlite", filepath.Join(t.TempDir(), "zips.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE postal_codes (
			country_code TEXT NOT NULL,
			postal_code  TEXT NOT NULL,
			place_name   TEXT,
			admin_name1  TEXT,
			admin_code1  TEXT,
			latitude     REAL,
			longitude    REAL
		);
	`)
	require.NoError(t, err)

	rows := []struct {
		country, code, city, regionName, region string
		lat, lon                                interface{}
	}{
		{"US", "90210", "Beverly Hills", "California", "CA", 34.0901, -118.4065},
		{"US", "10001", "New York", "New York", "NY", 40.7484, -73.9967},
		{"US", "00501", "Holtsville", "New York", "NY", 40.8154, -73.0451},
		{"US", "99999", "Nowhere\tTown", "Nowhere", "NW", nil, -100.0},
		{"MX", "22000", "Tijuana", "Baja California", "BCN", 32.5149, -117.0382},
	}
	for _, r := range rows {
		_, err := db.Exec(`INSERT INTO postal_codes VALUES (?, ?, ?, ?, ?, ?, ?);`,
			r.country, r.code, r.city, r.regionName, r.region, r.lat, r.lon)
		require.NoError(t, err)
	}
	return db
}

func TestSQL_RendersGeonamesRows(t *testing.T) {
	src := &SQL{DB: openTestDB(t), Label: "sqlite"}
	assert.Equal(t, "sql:sqlite", src.Name())

	raw, err := src.FetchRaw(context.Background())
	require.NoError(t, err)

	records, stats, err := postal.Parse(bytes.NewReader(raw), postal.DefaultParseOptions())
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Rows)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Excluded)

	require.Len(t, records, 3)
	// ordered by postal_code
	assert.Equal(t, "00501", records[0].Code)
	assert.Equal(t, "10001", records[1].Code)
	assert.Equal(t, postal.Record{
		Code:       "90210",
		City:       "Beverly Hills",
		Region:     "CA",
		RegionName: "California",
		Latitude:   34.0901,
		Longitude:  -118.4065,
	}, records[2])
}

func TestSQL_BadQuery(t *testing.T) {
	src := &SQL{DB: openTestDB(t), Query: "SELECT * FROM zips"}
	_, err := src.FetchRaw(context.Background())
	assert.ErrorContains(t, err, "SELECT postal codes failed")
}

func TestOpenSQL_UnknownDriver(t *testing.T) {
	_, err := OpenSQL(context.Background(), "oracle", "whatever")
	assert.Error(t, err)
}
