package transport

import (
	"context"
	"encoding/json"
	"encoding/pem"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roundTripperFunc подменяет транспорт http.Client в тестах.
type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(fn roundTripperFunc) *http.Client {
	return &http.Client{Transport: fn, Timeout: time.Second}
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

type session struct {
	SessionID int    `json:"session_id"`
	StartTime string `json:"start_time"`
}

func TestClient_Headers(t *testing.T) {
	var got *http.Request
	var gotBody []byte
	c := New("http://example.com/api/", WithHTTPClient(newTestClient(func(req *http.Request) (*http.Response, error) {
		got = req
		if req.Body != nil {
			gotBody, _ = io.ReadAll(req.Body)
		}
		return jsonResponse(http.StatusOK, `{}`), nil
	})))

	require.NoError(t, c.Get(context.Background(), "/subjects", "", nil))
	assert.Equal(t, "http://example.com/api/subjects", got.URL.String())
	assert.Empty(t, got.Header.Get("Authorization"))
	assert.Empty(t, got.Header.Get("Content-Type"))
	assert.Equal(t, "application/json", got.Header.Get("Accept"))
	_, err := uuid.Parse(got.Header.Get("X-Request-ID"))
	assert.NoError(t, err)

	require.NoError(t, c.Post(context.Background(), "/study-sessions", map[string]int{"subject_id": 2}, "tok", nil))
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "Bearer tok", got.Header.Get("Authorization"))
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"subject_id":2}`, string(gotBody))

	gotBody = nil
	require.NoError(t, c.Post(context.Background(), "/rewards/lucky-draw", nil, "tok", nil))
	assert.Empty(t, got.Header.Get("Content-Type"))
	assert.Empty(t, gotBody)

	require.NoError(t, c.Delete(context.Background(), "/homework/3", "tok", nil))
	assert.Equal(t, http.MethodDelete, got.Method)
}

func TestClient_DecodesJSON(t *testing.T) {
	c := New("http://example.com", WithHTTPClient(newTestClient(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusCreated, `{"session_id":7,"start_time":"09:00:00"}`), nil
	})))

	var out session
	err := c.Put(context.Background(), "/study-sessions/7", session{StartTime: "09:00:00"}, "tok", &out)
	require.NoError(t, err)
	assert.Equal(t, session{SessionID: 7, StartTime: "09:00:00"}, out)
}

func TestClient_EmptySuccess(t *testing.T) {
	tests := []struct {
		name string
		resp *http.Response
	}{
		{"no content", &http.Response{StatusCode: http.StatusNoContent, Header: http.Header{}, Body: io.NopCloser(strings.NewReader(""))}},
		{"plain text", &http.Response{StatusCode: http.StatusOK, Header: http.Header{"Content-Type": []string{"text/plain"}}, Body: io.NopCloser(strings.NewReader("ok"))}},
		{"no content with json type", &http.Response{StatusCode: http.StatusNoContent, Header: http.Header{"Content-Type": []string{"application/json"}}, Body: io.NopCloser(strings.NewReader(""))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New("http://example.com", WithHTTPClient(newTestClient(func(req *http.Request) (*http.Response, error) {
				return tt.resp, nil
			})))
			out := session{SessionID: 1}
			err := c.Delete(context.Background(), "/study-sessions/1", "tok", &out)
			require.NoError(t, err)
			assert.Equal(t, 1, out.SessionID)
		})
	}
}

func TestClient_HTTPError(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantDetail string
	}{
		{"string detail", 401, `{"detail":"Incorrect email or password"}`, "Incorrect email or password"},
		{"fastapi list", 422, `{"detail":[{"loc":["body","pin"],"msg":"String should match pattern"},{"loc":["body"],"msg":"bad body"}]}`, "pin: String should match pattern; bad body"},
		{"no detail", 500, `{"error":"boom"}`, "An unexpected error occurred (500 Internal Server Error)"},
		{"not json", 502, `<html>bad gateway</html>`, "An unexpected error occurred (502 Bad Gateway)"},
		{"empty detail", 404, `{"detail":""}`, "An unexpected error occurred (404 Not Found)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New("http://example.com", WithHTTPClient(newTestClient(func(req *http.Request) (*http.Response, error) {
				return jsonResponse(tt.status, tt.body), nil
			})))
			var out session
			err := c.Get(context.Background(), "/x", "tok", &out)

			var herr *HTTPError
			require.ErrorAs(t, err, &herr)
			assert.Equal(t, tt.status, herr.Status)
			assert.Equal(t, tt.wantDetail, herr.Detail)
			assert.Equal(t, tt.wantDetail, err.Error())
			assert.Equal(t, tt.status, StatusCode(err))
		})
	}
}

func TestClient_NetworkError(t *testing.T) {
	down := errors.New("network down")
	c := New("http://example.com", WithHTTPClient(newTestClient(func(req *http.Request) (*http.Response, error) {
		return nil, down
	})))

	err := c.Get(context.Background(), "/auth/me", "tok", nil)
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	if !errors.Is(err, down) {
		t.Errorf("expected cause to be preserved, got %v", err)
	}
	if StatusCode(err) != 0 {
		t.Errorf("network error must carry no status")
	}
}

func TestClient_MalformedResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "not-json"},
		{"empty json body", ""},
		{"blank json body", "  \n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New("http://example.com", WithHTTPClient(newTestClient(func(req *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, tt.body), nil
			})))

			var out session
			err := c.Get(context.Background(), "/study-sessions/1", "tok", &out)
			if !errors.Is(err, ErrMalformedResponse) {
				t.Fatalf("expected malformed response, got %v", err)
			}
			var merr *MalformedResponseError
			if !errors.As(err, &merr) || merr.Status != http.StatusOK {
				t.Errorf("unexpected error %#v", err)
			}
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New(srv.URL, WithTimeout(50*time.Millisecond))
	start := time.Now()
	err := c.Get(context.Background(), "/subjects", "", nil)

	require.ErrorIs(t, err, ErrNetwork)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestClient_CallerCancel(t *testing.T) {
	c := New("http://example.com", WithHTTPClient(newTestClient(func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Get(ctx, "/subjects", "", nil)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_Upload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data; boundary=") {
			http.Error(w, `{"detail":"wrong content type"}`, http.StatusBadRequest)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, `{"detail":"bad form"}`, http.StatusBadRequest)
			return
		}
		f, hdr, err := r.FormFile("photo")
		if err != nil {
			http.Error(w, `{"detail":"no photo"}`, http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"subject_id":   r.FormValue("subject_id"),
			"title":        r.FormValue("title"),
			"filename":     hdr.Filename,
			"content_type": hdr.Header.Get("Content-Type"),
			"photo":        string(data),
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	form := NewFormData().
		Add("subject_id", "3").
		Add("title", "Algebra p.2").
		AddFile("photo", "/tmp/page.png", strings.NewReader("\x89PNG"))

	var out map[string]string
	require.NoError(t, c.Upload(context.Background(), "/homework/upload", form, "tok", &out))
	assert.Equal(t, "3", out["subject_id"])
	assert.Equal(t, "Algebra p.2", out["title"])
	assert.Equal(t, "page.png", out["filename"])
	assert.Equal(t, "image/png", out["content_type"])
	assert.Equal(t, "\x89PNG", out["photo"])
}

func TestClient_Metrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	c := New(srv.URL, WithMetrics(m))

	require.NoError(t, c.Get(context.Background(), "/subjects", "", nil))
	require.NoError(t, c.Get(context.Background(), "/subjects", "", nil))

	assert.Equal(t, 1, testutil.CollectAndCount(m.Requests))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Duration))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.InFlight))
}

func TestClient_TLS(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"session_id":9}`))
	}))
	defer srv.Close()

	caFile := filepath.Join(t.TempDir(), "ca.pem")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	require.NoError(t, os.WriteFile(caFile, pemBytes, 0600))

	cfg, err := LoadTLSConfig(caFile, "", "")
	require.NoError(t, err)

	var out session
	c := New(srv.URL, WithTLSConfig(cfg))
	require.NoError(t, c.Get(context.Background(), "/study-sessions/9", "", &out))
	assert.Equal(t, 9, out.SessionID)

	// Without the CA the handshake fails.
	err = New(srv.URL).Get(context.Background(), "/study-sessions/9", "", nil)
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestLoadTLSConfig_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.pem")
	require.NoError(t, os.WriteFile(bad, []byte("not a cert"), 0600))

	_, err := LoadTLSConfig(filepath.Join(dir, "missing.pem"), "", "")
	assert.Error(t, err)

	_, err = LoadTLSConfig(bad, "", "")
	assert.EqualError(t, err, "failed to parse CA cert")

	_, err = LoadTLSConfig("", "client.crt", "")
	assert.Error(t, err)

	cfg, err := LoadTLSConfig("", "", "")
	require.NoError(t, err)
	assert.Nil(t, cfg.RootCAs)
}
