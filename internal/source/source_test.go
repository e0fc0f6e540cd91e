package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Registry Tests
// ============================================================================

func TestAll_PrimaryFirst(t *testing.T) {
	ids := All()
	require.Len(t, ids, 12)
	assert.Equal(t, Primary, ids[0])
	assert.Len(t, Sidecars(), 11)
	assert.NotContains(t, Sidecars(), Primary)
}

func TestResolve(t *testing.T) {
	srcs, err := Resolve(map[string]string{"price": "Fiyat!A:F"})
	require.NoError(t, err)
	require.Len(t, srcs, 12)

	byID := make(map[ID]string)
	for _, s := range srcs {
		byID[s.ID] = s.Range
	}
	assert.Equal(t, "Fiyat!A:F", byID[Price])
	assert.Equal(t, "Vehicles!A:Z", byID[Vehicles])
}

func TestResolve_UnknownOverride(t *testing.T) {
	_, err := Resolve(map[string]string{"pricing": "X!A:B", "colour": "Y!A:B"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "colour, pricing")
}

func TestCell_RaggedRows(t *testing.T) {
	row := []string{"a", "b"}
	assert.Equal(t, "a", Cell(row, 0))
	assert.Equal(t, "", Cell(row, 5))
	assert.Equal(t, "", Cell(row, -1))
	assert.Equal(t, "", Cell(nil, 0))
}

func TestGrid_HeaderRows(t *testing.T) {
	var empty Grid
	assert.Nil(t, empty.Header())
	assert.Nil(t, empty.Rows())

	g := Grid{{"id"}, {"ev01"}, {"ev02"}}
	assert.Equal(t, []string{"id"}, g.Header())
	assert.Len(t, g.Rows(), 2)
}

// ============================================================================
// FetchAll Tests
// ============================================================================

func TestFetchAll_PartialFailure(t *testing.T) {
	srcs, err := Resolve(nil)
	require.NoError(t, err)

	p := ProviderFunc(func(ctx context.Context, src Source) (Grid, error) {
		if src.ID == Price {
			return nil, errors.New("quota exceeded")
		}
		return Grid{{"id"}, {"ev01"}}, nil
	})

	results := FetchAll(context.Background(), p, srcs, time.Second)
	require.Len(t, results, len(srcs))

	for i, res := range results {
		assert.Equal(t, srcs[i].ID, res.Source.ID, "results keep source order")
		if res.Source.ID == Price {
			require.True(t, res.Failed())
			var fe *FetchError
			require.ErrorAs(t, res.Err, &fe)
			assert.Equal(t, Price, fe.Source)
			assert.NotNil(t, res.Grid)
			assert.Empty(t, res.Grid)
			continue
		}
		assert.False(t, res.Failed())
		assert.Len(t, res.Grid, 2)
	}
}

func TestFetchAll_RunsConcurrently(t *testing.T) {
	srcs, err := Resolve(nil)
	require.NoError(t, err)

	var inFlight, peak int32
	p := ProviderFunc(func(ctx context.Context, src Source) (Grid, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return Grid{}, nil
	})

	FetchAll(context.Background(), p, srcs, time.Second)
	assert.Greater(t, atomic.LoadInt32(&peak), int32(1))
}

func TestFetchAll_PerFetchTimeout(t *testing.T) {
	srcs := []Source{{ID: Vehicles}, {ID: Images}}

	p := ProviderFunc(func(ctx context.Context, src Source) (Grid, error) {
		if src.ID == Images {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return Grid{{"id"}}, nil
	})

	start := time.Now()
	results := FetchAll(context.Background(), p, srcs, 50*time.Millisecond)
	assert.Less(t, time.Since(start), time.Second)

	assert.NoError(t, results[0].Err)
	require.Error(t, results[1].Err)
	assert.ErrorIs(t, results[1].Err, context.DeadlineExceeded)
}

func TestFetchAll_ProviderIgnoringContext(t *testing.T) {
	srcs := []Source{{ID: Vehicles}, {ID: Price}}
	release := make(chan struct{})
	defer close(release)

	p := ProviderFunc(func(ctx context.Context, src Source) (Grid, error) {
		if src.ID == Price {
			<-release
		}
		return Grid{{"id"}}, nil
	})

	start := time.Now()
	results := FetchAll(context.Background(), p, srcs, 50*time.Millisecond)
	assert.Less(t, time.Since(start), time.Second)

	assert.NoError(t, results[0].Err)
	require.Error(t, results[1].Err)
	assert.ErrorIs(t, results[1].Err, context.DeadlineExceeded)
	assert.NotNil(t, results[1].Grid)

	var fe *FetchError
	require.ErrorAs(t, results[1].Err, &fe)
	assert.Equal(t, Price, fe.Source)
}

func TestFetchAll_ParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	defer close(release)

	p := ProviderFunc(func(ctx context.Context, src Source) (Grid, error) {
		<-release
		return Grid{}, nil
	})

	time.AfterFunc(20*time.Millisecond, cancel)
	results := FetchAll(ctx, p, []Source{{ID: Vehicles}}, 0)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
}

func TestFetchAll_ProviderPanic(t *testing.T) {
	p := ProviderFunc(func(ctx context.Context, src Source) (Grid, error) {
		panic("boom")
	})

	results := FetchAll(context.Background(), p, []Source{{ID: Comfort}}, 0)
	require.Error(t, results[0].Err)
	assert.Contains(t, results[0].Err.Error(), "boom")
	assert.NotNil(t, results[0].Grid)
}

func TestFetchAll_PreservesFetchError(t *testing.T) {
	inner := &FetchError{Source: Dimensions, Err: errors.New("403")}
	p := ProviderFunc(func(ctx context.Context, src Source) (Grid, error) {
		return nil, inner
	})

	results := FetchAll(context.Background(), p, []Source{{ID: Dimensions}}, 0)
	assert.Same(t, inner, results[0].Err)
}

// ============================================================================
// CSVReader Tests
// ============================================================================

func TestCSVReader_Fetch(t *testing.T) {
	dir := t.TempDir()
	content := "\xEF\xBB\xBFid,brand,model\nev01,Tesla,Model 3\nev02,BMW\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vehicles.csv"), []byte(content), 0o644))

	grid, err := NewCSVReader(dir).Fetch(context.Background(), Source{ID: Vehicles, Range: "Vehicles!A:Z"})
	require.NoError(t, err)

	require.Len(t, grid, 3)
	assert.Equal(t, []string{"id", "brand", "model"}, grid.Header())
	assert.Equal(t, []string{"ev02", "BMW"}, grid[2], "ragged rows are kept as-is")
}

func TestCSVReader_ExplicitFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fiyat.csv"), []byte("id,base\nev01,45000\n"), 0o644))

	grid, err := NewCSVReader(dir).Fetch(context.Background(), Source{ID: Price, Range: "fiyat.csv"})
	require.NoError(t, err)
	assert.Len(t, grid, 2)
}

func TestCSVReader_MissingFile(t *testing.T) {
	_, err := NewCSVReader(t.TempDir()).Fetch(context.Background(), Source{ID: Warranty})

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, Warranty, fe.Source)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSanitizeUTF8(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{name: "valid unchanged", input: []byte("Şarj süresi"), want: "Şarj süresi"},
		{name: "invalid byte replaced", input: []byte("caf\xe9"), want: "caf�"},
		{name: "empty", input: []byte{}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(sanitizeUTF8(tt.input)))
		})
	}
}

// ============================================================================
// SheetsReader Tests
// ============================================================================

func TestSheetsReader_Fetch(t *testing.T) {
	var gotPath, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"range":"Vehicles!A1:C3","majorDimension":"ROWS",` +
			`"values":[["id","brand","model"],["ev01","Tesla","Model 3"],["ev02","BMW"]]}`))
	}))
	defer srv.Close()

	r, err := NewSheetsReader(context.Background(), SheetsOptions{
		SpreadsheetID: "sheet-123",
		APIKey:        "test-key",
		Endpoint:      srv.URL + "/",
	})
	require.NoError(t, err)

	grid, err := r.Fetch(context.Background(), Source{ID: Vehicles, Range: "Vehicles!A:Z"})
	require.NoError(t, err)

	assert.True(t, strings.Contains(gotPath, "sheet-123"), "path %q", gotPath)
	assert.Equal(t, "test-key", gotKey)
	require.Len(t, grid, 3)
	assert.Equal(t, "BMW", grid[2][1])
	assert.Len(t, grid[2], 2)
}

func TestSheetsReader_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"The caller does not have permission",` +
			`"errors":[{"reason":"forbidden"}]}}`))
	}))
	defer srv.Close()

	r, err := NewSheetsReader(context.Background(), SheetsOptions{
		SpreadsheetID: "sheet-123",
		APIKey:        "test-key",
		Endpoint:      srv.URL + "/",
	})
	require.NoError(t, err)

	_, err = r.Fetch(context.Background(), Source{ID: Price, Range: "Price!A:Z"})
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, Price, fe.Source)
	assert.Contains(t, err.Error(), "403")
}

func TestNewSheetsReader_RequiresAuth(t *testing.T) {
	_, err := NewSheetsReader(context.Background(), SheetsOptions{SpreadsheetID: "x"})
	assert.Error(t, err)

	_, err = NewSheetsReader(context.Background(), SheetsOptions{APIKey: "k"})
	assert.Error(t, err)
}

func TestGridFromValues(t *testing.T) {
	g := gridFromValues([][]interface{}{
		{"id", "range"},
		{"ev01", float64(510), nil, true},
	})
	assert.Equal(t, Grid{{"id", "range"}, {"ev01", "510", "", "true"}}, g)
}
