package docserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/akeeren/courier/internal/document"
	"github.com/akeeren/courier/internal/remote"
	"github.com/akeeren/courier/internal/storage"
)

func newTestServer(t *testing.T, accessKey string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	NewHandler(storage.NewMemoryStore(), accessKey).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, method, url, key, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if key != "" {
		req.Header.Set("X-Master-Key", key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestPutThenGet(t *testing.T) {
	srv := newTestServer(t, "secret")

	resp := doRequest(t, http.MethodPut, srv.URL+"/b/bin1", "secret", `{"users":[]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT status = %d", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodGet, srv.URL+"/b/bin1/latest", "secret", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET status = %d", resp.StatusCode)
	}
}

func TestAccessKeyRequired(t *testing.T) {
	srv := newTestServer(t, "secret")

	resp := doRequest(t, http.MethodGet, srv.URL+"/b/bin1/latest", "wrong", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	resp = doRequest(t, http.MethodPut, srv.URL+"/b/bin1", "", `{}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestGetUnknownBin(t *testing.T) {
	srv := newTestServer(t, "")

	resp := doRequest(t, http.MethodGet, srv.URL+"/b/nope/latest", "", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestPutRejectsNonObjectBody(t *testing.T) {
	srv := newTestServer(t, "")

	for _, body := range []string{`[1,2]`, `"text"`, `{broken`} {
		resp := doRequest(t, http.MethodPut, srv.URL+"/b/bin1", "", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("PUT %q status = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestUnknownPaths(t *testing.T) {
	srv := newTestServer(t, "")

	for _, path := range []string{"/b/", "/b/bin1", "/b/bin1/other", "/b/a/b/latest"} {
		resp := doRequest(t, http.MethodGet, srv.URL+path, "", "")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, resp.StatusCode)
		}
	}
}

// TestRemoteClientCompatibility runs the replication client against this
// server to pin the two ends to the same protocol.
func TestRemoteClientCompatibility(t *testing.T) {
	srv := newTestServer(t, "secret")
	c := remote.NewClient(srv.URL+"/b", "bin1", "secret")

	want := document.New()
	want.Users = append(want.Users, document.User{Username: "alice", PasswordHash: "h", CreatedAt: "2026-01-01T00:00:00Z"})
	want.Friends["alice"] = []string{"bob"}

	if err := c.Replace(context.Background(), want); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	got, err := c.FetchLatest(context.Background())
	if err != nil {
		t.Fatalf("FetchLatest() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("FetchLatest() = %+v, want %+v", got, want)
	}
}
