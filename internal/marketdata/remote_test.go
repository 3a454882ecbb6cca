package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/wonny/arbfilter/pkg/httputil"
	"github.com/wonny/arbfilter/pkg/logger"
)

func fivePointWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"expiry", "strike", "price", "forward", "rate"},
		{1, 0.8, 0.40, 1, 0},
		{1, 0.91, 0.20, 1, 0},
		{1, 1.0, 0.15, 1, 0},
		{1, 1.10, 0.18, 1, 0},
		{1, 1.22, 0.30, 1, 0},
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &rows[i]))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestLoad_RemoteAndLocal(t *testing.T) {
	workbook := fivePointWorkbook(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/quotes.csv":
			w.Write([]byte(fivePointCSV))
		case "/quotes.xlsx":
			w.Write(workbook)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := httputil.New(logger.Nop(), httputil.WithoutRetry())
	ctx := context.Background()

	remote, err := Load(ctx, client, server.URL+"/quotes.csv", volUnits)
	require.NoError(t, err)
	assert.Len(t, remote.Strikes, 5)

	path := filepath.Join(t.TempDir(), "quotes.csv")
	require.NoError(t, os.WriteFile(path, []byte(fivePointCSV), 0o644))
	local, err := Load(ctx, client, path, volUnits)
	require.NoError(t, err)
	assert.Equal(t, remote, local)

	sheet, err := Load(ctx, client, server.URL+"/quotes.xlsx?v=2", volUnits)
	require.NoError(t, err)
	assert.Equal(t, remote.Strikes, sheet.Strikes)
	assert.Equal(t, remote.Prices, sheet.Prices)

	_, err = Load(ctx, client, server.URL+"/missing.csv", volUnits)
	assert.ErrorContains(t, err, "unexpected status 404")
}

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("https://example.com/q.csv"))
	assert.True(t, IsRemote("http://localhost/q.csv"))
	assert.False(t, IsRemote("data/q.csv"))
	assert.False(t, IsRemote("q.xlsx"))
}

func TestIsXLSX(t *testing.T) {
	assert.True(t, isXLSX("https://example.com/data/Quotes.XLSX"))
	assert.True(t, isXLSX("https://example.com/q.xlsx?token=abc"))
	assert.False(t, isXLSX("https://example.com/q.csv"))
	assert.False(t, isXLSX("https://example.com/export?format=xlsx"))
}
