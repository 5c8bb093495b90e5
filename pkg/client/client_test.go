package client

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/hojin-tools/gbiz-collector/internal/testutil"
)

// fastRetry keeps test backoffs in the millisecond range.
func fastRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	c, err := New(Config{
		Token:   "test-token",
		BaseURL: baseURL,
		Retry:   fastRetry(),
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError error
	}{
		{
			name:   "valid config",
			config: DefaultConfig("tok"),
		},
		{
			name:        "missing token",
			config:      Config{BaseURL: DefaultBaseURL},
			expectError: ErrMissingToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.config)
			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Errorf("expected %v, got %v", tt.expectError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer c.Close()

			if c.config.BaseURL == "" {
				t.Error("expected base URL default to be filled")
			}
			if c.config.Timeout <= 0 {
				t.Error("expected timeout default to be filled")
			}
			if c.config.Retry.MaxAttempts <= 0 {
				t.Error("expected retry defaults to be filled")
			}
		})
	}
}

func TestSearch_RequestShape(t *testing.T) {
	mock := testutil.NewMockGbiz()
	defer mock.Close()

	var gotQuery map[string]string
	mock.SetHandler(testutil.SearchPath, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for key := range r.URL.Query() {
			gotQuery[key] = r.URL.Query().Get(key)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(testutil.SearchBody()))
	})

	c := newTestClient(t, mock.URL())
	_, err := c.Search(context.Background(), SearchQuery{
		Prefecture:    "13",
		CorporateType: "301",
		ExistFlag:     "true",
		Limit:         5000,
		Page:          2,
	})
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}

	if got := mock.LastRequestHeader.Get("X-hojinInfo-api-token"); got != "test-token" {
		t.Errorf("expected token header, got %q", got)
	}

	want := map[string]string{
		"prefecture":     "13",
		"corporate_type": "301",
		"exist_flg":      "true",
		"limit":          "5000",
		"page":           "2",
	}
	for key, value := range want {
		if gotQuery[key] != value {
			t.Errorf("query %s = %q, want %q", key, gotQuery[key], value)
		}
	}
}

func TestSearch_ExistFlagOmitted(t *testing.T) {
	// "any" and empty must not send the filter at all.
	for _, flag := range []string{"", "any"} {
		t.Run("flag="+flag, func(t *testing.T) {
			mock := testutil.NewMockGbiz()
			defer mock.Close()

			var rawQuery string
			mock.SetHandler(testutil.SearchPath, func(w http.ResponseWriter, r *http.Request) {
				rawQuery = r.URL.RawQuery
				w.WriteHeader(http.StatusNoContent)
			})

			c := newTestClient(t, mock.URL())
			if _, err := c.Search(context.Background(), SearchQuery{Prefecture: "01", CorporateType: "301", ExistFlag: flag, Limit: 10, Page: 1}); err != nil {
				t.Fatalf("Search() failed: %v", err)
			}
			if strings.Contains(rawQuery, "exist_flg") {
				t.Errorf("exist_flg leaked into query: %s", rawQuery)
			}
		})
	}
}

func TestSearch_NoContent(t *testing.T) {
	mock := testutil.NewMockGbiz()
	defer mock.Close()
	// Unconfigured paths answer 204.

	c := newTestClient(t, mock.URL())
	resp, err := c.Search(context.Background(), SearchQuery{Prefecture: "47", CorporateType: "301", Limit: 10, Page: 1})
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if len(resp.Items) != 0 {
		t.Errorf("expected empty result for 204, got %d items", len(resp.Items))
	}
}

func TestSearch_RetriesServerError(t *testing.T) {
	mock := testutil.NewMockGbiz()
	defer mock.Close()

	attempts := 0
	mock.SetHandler(testutil.SearchPath, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(testutil.SearchBody(testutil.Item{CorporateNumber: "1000000000001", Name: "Recovered KK"})))
	})

	c := newTestClient(t, mock.URL())
	resp, err := c.Search(context.Background(), SearchQuery{Prefecture: "13", CorporateType: "301", Limit: 10, Page: 1})
	if err != nil {
		t.Fatalf("Search() failed after retries: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if len(resp.Items) != 1 || resp.Items[0].Name != "Recovered KK" {
		t.Errorf("unexpected result: %+v", resp.Items)
	}
}

func TestSearch_ClientErrorNoRetry(t *testing.T) {
	mock := testutil.NewMockGbiz()
	defer mock.Close()
	mock.SetResponse(testutil.SearchPath, testutil.Response{
		StatusCode: http.StatusBadRequest,
		Body:       `{"message":"bad corporate_type"}`,
	})

	c := newTestClient(t, mock.URL())
	_, err := c.Search(context.Background(), SearchQuery{Prefecture: "13", CorporateType: "xxx", Limit: 10, Page: 1})
	if err == nil {
		t.Fatal("expected error for 400 response")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Class != ErrorClassClient {
		t.Errorf("unexpected error: %+v", apiErr)
	}
	if got := mock.RequestsTo(testutil.SearchPath); got != 1 {
		t.Errorf("client error must not be retried, got %d requests", got)
	}
}

func TestSearch_RetryExhausted(t *testing.T) {
	mock := testutil.NewMockGbiz()
	defer mock.Close()
	mock.SetResponse(testutil.SearchPath, testutil.NewServerErrorResponse())

	c := newTestClient(t, mock.URL())
	_, err := c.Search(context.Background(), SearchQuery{Prefecture: "13", CorporateType: "301", Limit: 10, Page: 1})
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("expected ErrRetryExhausted, got %v", err)
	}
	if got := mock.RequestsTo(testutil.SearchPath); got != fastRetry().MaxAttempts {
		t.Errorf("expected %d attempts, got %d", fastRetry().MaxAttempts, got)
	}
}

func TestDetail_Found(t *testing.T) {
	mock := testutil.NewMockGbiz()
	defer mock.Close()
	mock.SetDetail("7000012050002", testutil.Item{
		CorporateNumber: "7000012050002",
		Name:            "Example Trading KK",
		PostalCode:      "1000001",
		PrefectureCode:  "13",
		Location:        "東京都千代田区千代田1-1",
	})

	c := newTestClient(t, mock.URL())
	corp, err := c.Detail(context.Background(), "7000012050002")
	if err != nil {
		t.Fatalf("Detail() failed: %v", err)
	}
	if corp == nil {
		t.Fatal("expected a corporation record")
	}
	if corp.Name != "Example Trading KK" {
		t.Errorf("name = %q", corp.Name)
	}
	if string(corp.PrefectureCode) != "13" {
		t.Errorf("prefecture_code = %q", corp.PrefectureCode)
	}
}

func TestDetail_NotFound(t *testing.T) {
	tests := []struct {
		name  string
		setup func(mock *testutil.MockGbiz)
	}{
		{
			name: "404 response",
			setup: func(mock *testutil.MockGbiz) {
				mock.SetResponse(testutil.SearchPath+"/9999999999999", testutil.NewNotFoundResponse())
			},
		},
		{
			name:  "204 response",
			setup: func(mock *testutil.MockGbiz) {},
		},
		{
			name: "empty envelope",
			setup: func(mock *testutil.MockGbiz) {
				mock.SetResponse(testutil.SearchPath+"/9999999999999", testutil.Response{
					StatusCode: http.StatusOK,
					Body:       testutil.SearchBody(),
				})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockGbiz()
			defer mock.Close()
			tt.setup(mock)

			c := newTestClient(t, mock.URL())
			corp, err := c.Detail(context.Background(), "9999999999999")
			if err != nil {
				t.Fatalf("Detail() failed: %v", err)
			}
			if corp != nil {
				t.Errorf("expected nil record, got %+v", corp)
			}
		})
	}
}

func TestDetail_BlankNumberSkipsRequest(t *testing.T) {
	mock := testutil.NewMockGbiz()
	defer mock.Close()

	c := newTestClient(t, mock.URL())
	corp, err := c.Detail(context.Background(), "   ")
	if err != nil || corp != nil {
		t.Fatalf("expected (nil, nil), got (%v, %v)", corp, err)
	}
	if got := mock.GetRequestCount(); got != 0 {
		t.Errorf("blank number must not hit the API, got %d requests", got)
	}
}

func TestTruncateBody(t *testing.T) {
	long := strings.Repeat("x", bodySnippetLimit+100)
	if got := truncateBody([]byte(long)); len(got) != bodySnippetLimit {
		t.Errorf("expected %d bytes, got %d", bodySnippetLimit, len(got))
	}
	if got := truncateBody([]byte("  short  ")); got != "short" {
		t.Errorf("expected trimmed body, got %q", got)
	}
}
