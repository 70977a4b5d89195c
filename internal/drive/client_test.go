package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/models"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/pkg/retry"
)

func testClient(handler http.Handler) (*Client, *httptest.Server) {
	ts := httptest.NewServer(handler)
	c := New(Config{
		BaseURL: ts.URL,
		Token:   "secret",
		RetryConfig: retry.Config{
			MaxAttempts: 3,
			InitialWait: time.Millisecond,
			MaxWait:     time.Millisecond,
		},
	})
	return c, ts
}

func writeResult(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"result": v})
}

func TestListDrives_SendsAuthAndType(t *testing.T) {
	var gotAuth, gotType string
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.URL.Query().Get("type")
		writeResult(w, []models.Drive{{ID: "d1"}})
	}))
	defer ts.Close()

	drives, err := c.ListDrives(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(drives) != 1 || drives[0].ID != "d1" {
		t.Errorf("unexpected drives: %+v", drives)
	}
	if gotAuth != "dooray-api secret" {
		t.Errorf("unexpected auth header %q", gotAuth)
	}
	if gotType != "private" {
		t.Errorf("expected type=private, got %q", gotType)
	}
}

func TestListFolders_ClampsPageSize(t *testing.T) {
	var q map[string]string
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/drive/v1/drives/d1/files" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q = map[string]string{
			"parentId": r.URL.Query().Get("parentId"),
			"type":     r.URL.Query().Get("type"),
			"page":     r.URL.Query().Get("page"),
			"size":     r.URL.Query().Get("size"),
		}
		writeResult(w, []models.Item{{ID: "f1", Name: "A", Type: models.TypeFolder}})
	}))
	defer ts.Close()

	items, err := c.ListFolders(context.Background(), "d1", "root", 2, 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].Name != "A" {
		t.Errorf("unexpected items: %+v", items)
	}
	want := map[string]string{"parentId": "root", "type": "folder", "page": "2", "size": "50"}
	for k, v := range want {
		if q[k] != v {
			t.Errorf("query %s = %q, want %q", k, q[k], v)
		}
	}
}

func TestSearchInRoot_Query(t *testing.T) {
	var gotText, gotParent string
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotText = r.URL.Query().Get("searchText")
		gotParent = r.URL.Query().Get("parentId")
		writeResult(w, []models.Item{})
	}))
	defer ts.Close()

	if _, err := c.SearchInRoot(context.Background(), "d1", "회의록 2024", 0, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotText != "회의록 2024" || gotParent != "root" {
		t.Errorf("unexpected query: searchText=%q parentId=%q", gotText, gotParent)
	}
}

func TestGetJSON_RetriesThrottling(t *testing.T) {
	var calls int32
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeResult(w, []models.Drive{{ID: "d1"}})
	}))
	defer ts.Close()

	if _, err := c.ListDrives(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestGetJSON_TransportErrorAfterRetries(t *testing.T) {
	var calls int32
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := c.ListFiles(context.Background(), "d1", "f1", 0, 50)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if te.Status != http.StatusBadGateway || te.Op != "list_files" {
		t.Errorf("unexpected transport error: %+v", te)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	if c.IsOnline() {
		t.Error("expected client to be marked offline")
	}
}

func TestGetJSON_NoRetryOnClientError(t *testing.T) {
	var calls int32
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	if _, err := c.ListDrives(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestGetJSON_Gzip(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept-Encoding") != "gzip" {
			t.Errorf("expected gzip accept encoding")
		}
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		json.NewEncoder(gw).Encode(map[string]any{"result": []models.Drive{{ID: "gz"}}})
		gw.Close()
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(buf.Bytes())
	}))
	defer ts.Close()

	drives, err := c.ListDrives(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(drives) != 1 || drives[0].ID != "gz" {
		t.Errorf("unexpected drives: %+v", drives)
	}
}

func TestDownload_FollowsRedirectWithAuth(t *testing.T) {
	var blobAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /drive/v1/drives/d1/files/f1", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("media") != "raw" {
			t.Errorf("expected media=raw")
		}
		w.Header().Set("Location", "/blob/f1")
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc("GET /blob/f1", func(w http.ResponseWriter, r *http.Request) {
		blobAuth = r.Header.Get("Authorization")
		w.Write([]byte("hello world"))
	})
	c, ts := testClient(mux)
	defer ts.Close()

	rc, size, err := c.Download(context.Background(), "d1", "f1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "hello world" {
		t.Errorf("unexpected body %q", data)
	}
	if size != int64(len("hello world")) {
		t.Errorf("unexpected size %d", size)
	}
	if blobAuth != "dooray-api secret" {
		t.Errorf("expected auth on redirect target, got %q", blobAuth)
	}
}

func TestCollect_StopsOnEmptyPage(t *testing.T) {
	pages := [][]models.Item{
		{{ID: "a"}, {ID: "b"}},
		{{ID: "c"}},
		{},
		{{ID: "never"}},
	}
	var seen []int
	items, err := Collect(context.Background(), 2, func(ctx context.Context, page, size int) ([]models.Item, error) {
		seen = append(seen, page)
		return pages[page], nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 3 {
		t.Errorf("expected 3 items, got %d", len(items))
	}
	if len(seen) != 3 {
		t.Errorf("expected 3 page calls, got %v", seen)
	}
}

func TestFirstDrive_NoDrive(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, []models.Drive{})
	}))
	defer ts.Close()

	if _, err := FirstDrive(context.Background(), c); !errors.Is(err, ErrNoDrive) {
		t.Fatalf("expected ErrNoDrive, got %v", err)
	}
}

func TestRetryAfterHeader(t *testing.T) {
	if got := retryAfter("3"); got != 3*time.Second {
		t.Errorf("expected 3s, got %v", got)
	}
	if got := retryAfter("garbage"); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
}
