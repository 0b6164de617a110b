package stats

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func archiveZip(t *testing.T, name, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	entry, err := w.Create(name)
	require.NoError(t, err)
	_, err = entry.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestClient_SessionStats(t *testing.T) {
	content := strings.Join([]string{
		archiveLine("PETR4", "20250822", 37.55, 38.10, 37.20, 37.70, 38.00, 45120, 82000000, 3090000000),
		archiveLine("VALE3", "20250821", 60.00, 61.25, 59.80, 60.50, 61.00, 38900, 41000000, 2480000000),
	}, "\n")
	payload := archiveZip(t, "COTAHIST_A2025.TXT", content)

	downloads := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/COTAHIST_A2025.ZIP" {
			http.NotFound(w, r)
			return
		}
		downloads++
		w.Write(payload)
	}))
	defer server.Close()

	client, err := NewClient(Config{
		BaseURL:  server.URL,
		CacheDir: t.TempDir(),
	})
	require.NoError(t, err)

	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		rec, err := client.SessionStats(ctx, "PETR4", "2025-08-22")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, 45120, rec.TotalTrades)
		assert.InDelta(t, 38.00, rec.Close, 0.001)
	})

	t.Run("absent_session_is_nil_nil", func(t *testing.T) {
		rec, err := client.SessionStats(ctx, "PETR4", "2025-08-21")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("year_downloaded_once", func(t *testing.T) {
		_, err := client.SessionStats(ctx, "VALE3", "2025-08-21")
		require.NoError(t, err)
		assert.Equal(t, 1, downloads)
	})

	t.Run("bad_date", func(t *testing.T) {
		_, err := client.SessionStats(ctx, "PETR4", "22/08/2025")
		assert.Error(t, err)
	})
}

func TestClient_DownloadFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL, CacheDir: t.TempDir()})
	require.NoError(t, err)

	_, err = client.SessionStats(context.Background(), "PETR4", "2025-08-22")
	assert.Error(t, err)
}

func TestClient_ReusesDiskCache(t *testing.T) {
	cacheDir := t.TempDir()
	content := archiveLine("ITUB4", "20250820", 30.00, 30.50, 29.80, 30.10, 30.40, 21000, 15000000, 452000000)
	payload := archiveZip(t, "COTAHIST_A2025.TXT", content)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))

	first, err := NewClient(Config{BaseURL: server.URL, CacheDir: cacheDir})
	require.NoError(t, err)
	rec, err := first.SessionStats(context.Background(), "ITUB4", "2025-08-20")
	require.NoError(t, err)
	require.NotNil(t, rec)

	// A fresh client must serve from the extracted file even with the
	// archive host gone.
	server.Close()

	second, err := NewClient(Config{BaseURL: server.URL, CacheDir: cacheDir})
	require.NoError(t, err)
	rec, err = second.SessionStats(context.Background(), "ITUB4", "2025-08-20")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 21000, rec.TotalTrades)
}
