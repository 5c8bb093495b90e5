package hydrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hojin-tools/gbiz-collector/internal/testutil"
	"github.com/hojin-tools/gbiz-collector/pkg/client"
	"github.com/hojin-tools/gbiz-collector/pkg/csvfile"
)

func newTestRunner(t *testing.T, mock *testutil.MockGbiz) *Runner {
	t.Helper()

	api, err := client.New(client.Config{
		Token:   "test-token",
		BaseURL: mock.URL(),
		Retry: client.RetryConfig{
			MaxAttempts:    2,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     5 * time.Millisecond,
		},
	})
	if err != nil {
		t.Fatalf("client.New() failed: %v", err)
	}
	t.Cleanup(func() { api.Close() })
	return New(api)
}

func writeListFile(t *testing.T, dir string, numbers ...string) string {
	t.Helper()

	path := filepath.Join(dir, "list.csv")
	rows := make([]csvfile.Row, 0, len(numbers))
	for _, n := range numbers {
		rows = append(rows, csvfile.Row{csvfile.KeyColumn: n, "name": "Corp " + n})
	}
	if err := csvfile.AppendRows(path, rows, []string{"corporate_number", "name"}); err != nil {
		t.Fatalf("writing list file: %v", err)
	}
	return path
}

func TestRun_EndToEnd(t *testing.T) {
	mock := testutil.NewMockGbiz()
	defer mock.Close()

	// One record exists, one is unknown to the registry, one keeps failing.
	mock.SetDetail("1000000000001", testutil.Item{
		CorporateNumber: "1000000000001",
		Name:            "Found KK",
		PrefectureCode:  "13",
	})
	mock.SetResponse(testutil.SearchPath+"/2000000000002", testutil.NewNotFoundResponse())
	mock.SetResponse(testutil.SearchPath+"/3000000000003", testutil.NewServerErrorResponse())

	dir := t.TempDir()
	in := writeListFile(t, dir, "1000000000001", "2000000000002", "3000000000003")
	out := filepath.Join(dir, "enriched.csv")

	stats, err := newTestRunner(t, mock).Run(context.Background(), Options{In: in, Out: out})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if stats.Done != 3 {
		t.Errorf("Done = %d, want 3", stats.Done)
	}
	if stats.Added != 1 {
		t.Errorf("Added = %d, want 1", stats.Added)
	}
	if stats.Errors != 1 {
		t.Errorf("Errors = %d, want 1", stats.Errors)
	}

	var rows []csvfile.Row
	if err := csvfile.EachRow(out, func(row csvfile.Row) error {
		rows = append(rows, row)
		return nil
	}); err != nil {
		t.Fatalf("EachRow() failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("enriched file has %d rows, want 1", len(rows))
	}
	if rows[0]["name"] != "Found KK" || rows[0]["prefecture_code"] != "13" {
		t.Errorf("unexpected row: %v", rows[0])
	}
	for _, field := range client.BasicFields {
		if _, ok := rows[0][field]; !ok {
			t.Errorf("enriched row missing column %q", field)
		}
	}
}

func TestRun_ResumeSkipsEnriched(t *testing.T) {
	mock := testutil.NewMockGbiz()
	defer mock.Close()
	mock.SetDetail("1000000000001", testutil.Item{CorporateNumber: "1000000000001", Name: "First KK"})
	mock.SetDetail("2000000000002", testutil.Item{CorporateNumber: "2000000000002", Name: "Second KK"})

	dir := t.TempDir()
	in := writeListFile(t, dir, "1000000000001", "2000000000002")
	out := filepath.Join(dir, "enriched.csv")

	// Seed the output as if an earlier run already covered the first number.
	if err := csvfile.AppendRows(out, []csvfile.Row{
		{csvfile.KeyColumn: "1000000000001", "name": "First KK"},
	}, client.BasicFields); err != nil {
		t.Fatalf("seeding output: %v", err)
	}

	stats, err := newTestRunner(t, mock).Run(context.Background(), Options{In: in, Out: out, Resume: true})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if stats.Done != 1 || stats.Added != 1 {
		t.Errorf("stats = %+v, want Done=1 Added=1", stats)
	}
	if got := mock.RequestsTo(testutil.SearchPath + "/1000000000001"); got != 0 {
		t.Errorf("already-enriched number was refetched %d times", got)
	}
	if got := mock.RequestsTo(testutil.SearchPath + "/2000000000002"); got != 1 {
		t.Errorf("expected one fetch for the remaining number, got %d", got)
	}

	count, err := csvfile.CountRows(out)
	if err != nil {
		t.Fatalf("CountRows() failed: %v", err)
	}
	if count != 2 {
		t.Errorf("output has %d rows, want 2", count)
	}
}

func TestRun_SkipsBlankNumbers(t *testing.T) {
	mock := testutil.NewMockGbiz()
	defer mock.Close()
	mock.SetDetail("1000000000001", testutil.Item{CorporateNumber: "1000000000001", Name: "Only KK"})

	dir := t.TempDir()
	in := writeListFile(t, dir, "", "1000000000001")
	out := filepath.Join(dir, "enriched.csv")

	stats, err := newTestRunner(t, mock).Run(context.Background(), Options{In: in, Out: out})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if stats.Done != 1 || stats.Added != 1 {
		t.Errorf("stats = %+v, want Done=1 Added=1", stats)
	}
}

func TestRun_MissingInput(t *testing.T) {
	mock := testutil.NewMockGbiz()
	defer mock.Close()

	dir := t.TempDir()
	stats, err := newTestRunner(t, mock).Run(context.Background(), Options{
		In:  filepath.Join(dir, "does-not-exist.csv"),
		Out: filepath.Join(dir, "enriched.csv"),
	})
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
	if stats.Done != 0 || stats.Added != 0 || stats.Errors != 0 {
		t.Errorf("expected zero work, got %+v", stats)
	}
	if got := mock.GetRequestCount(); got != 0 {
		t.Errorf("missing input must not hit the API, got %d requests", got)
	}
}

func TestFormatHMS(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0:00:00"},
		{59 * time.Second, "0:00:59"},
		{61 * time.Second, "0:01:01"},
		{3661 * time.Second, "1:01:01"},
		{25*time.Hour + 30*time.Minute, "25:30:00"},
		{-5 * time.Second, "0:00:00"},
	}
	for _, tt := range tests {
		if got := FormatHMS(tt.d); got != tt.want {
			t.Errorf("FormatHMS(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
