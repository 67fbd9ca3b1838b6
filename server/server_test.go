package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minios-linux/scriptloc/completion"
	"github.com/minios-linux/scriptloc/docx"
	"github.com/minios-linux/scriptloc/localize"
	"github.com/minios-linux/scriptloc/prompt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// substituter is a completer that returns the delimited chunk with names
// replaced literally.
type substituter struct{}

func (substituter) Complete(_ context.Context, p string) (string, error) {
	start := strings.Index(p, prompt.Delimiter) + len(prompt.Delimiter)
	end := strings.LastIndex(p, prompt.Delimiter)
	return strings.NewReplacer("Alex Smith", "Rahul Sharma", "Alex", "Rahul").Replace(p[start:end]), nil
}

// failing is a Localizer that always returns err.
type failing struct{ err error }

func (f failing) Run(context.Context, localize.Request) (*localize.Result, error) {
	return nil, f.err
}

type form struct {
	file                    []byte
	language, country, name string
}

func (f form) body(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	buf := new(bytes.Buffer)
	mw := multipart.NewWriter(buf)
	if f.file != nil {
		fw, err := mw.CreateFormFile("file", "demo.docx")
		require.NoError(t, err)
		_, err = fw.Write(f.file)
		require.NoError(t, err)
	}
	for k, v := range map[string]string{"language": f.language, "country": f.country, "name": f.name} {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func post(t *testing.T, h http.Handler, path string, f form) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := f.body(t)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func demoForm(t *testing.T) form {
	t.Helper()
	data, err := docx.Bytes("Alex Smith went to the market.\nAlex bought apples.")
	require.NoError(t, err)
	return form{file: data, language: "French", country: "India", name: "Rahul Sharma"}
}

func newTestServer(opts Options) *Server {
	return New(localize.New(substituter{}, localize.Options{}), opts)
}

func TestLocalizeJSON(t *testing.T) {
	srv := newTestServer(Options{})

	rec := post(t, srv.Handler(), "/api/localize", demoForm(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		RequestID string `json:"request_id"`
		Text      string `json:"text"`
		Chunks    int    `json:"chunks"`
		Filename  string `json:"filename"`
		Document  string `json:"document"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	want := "Rahul Sharma went to the market.\nRahul bought apples."
	assert.Equal(t, want, resp.Text)
	assert.Equal(t, 1, resp.Chunks)
	assert.Equal(t, "French_demo_script.docx", resp.Filename)
	assert.Equal(t, resp.RequestID, rec.Header().Get(RequestIDHeader))
	_, err := uuid.Parse(resp.RequestID)
	assert.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(resp.Document)
	require.NoError(t, err)
	doc, err := docx.ReadBytes(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{want}, doc.Paragraphs)
}

func TestLocalizeFile(t *testing.T) {
	srv := newTestServer(Options{FilenameTemplate: "demo-{target_language}.docx"})

	rec := post(t, srv.Handler(), "/localize", demoForm(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, docx.ContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="demo-French.docx"`, rec.Header().Get("Content-Disposition"))

	doc, err := docx.ReadBytes(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "Rahul Sharma went to the market.\nRahul bought apples.", doc.Text())
}

func TestRequestIDIsKept(t *testing.T) {
	srv := newTestServer(Options{})
	id := uuid.New().String()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, id)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, id, rec.Header().Get(RequestIDHeader))
}

func TestInputErrors(t *testing.T) {
	srv := newTestServer(Options{})
	valid := demoForm(t)

	tests := []struct {
		name string
		form form
	}{
		{"missing file", form{language: "French", country: "India", name: "Rahul"}},
		{"not a docx", form{file: []byte("plain text"), language: "French", country: "India", name: "Rahul"}},
		{"missing name", form{file: valid.file, language: "French", country: "India"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, srv.Handler(), "/api/localize", tt.form)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "invalid_request", body["error"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestUploadTooLarge(t *testing.T) {
	srv := newTestServer(Options{MaxUploadBytes: 1 << 10})

	f := demoForm(t)
	f.file = bytes.Repeat([]byte("x"), 4<<10)
	rec := post(t, srv.Handler(), "/api/localize", f)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())
}

func TestErrorStatusMapping(t *testing.T) {
	rateLimited := fmt.Errorf("giving up after 5 attempts: %w", completion.ErrRateLimited)

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"rate limit exhausted", &localize.ChunkError{Index: 1, Total: 3, Completed: 1, Err: rateLimited}, http.StatusTooManyRequests, "rate_limited"},
		{"remote failure", &localize.ChunkError{Total: 1, Err: completion.ErrEmptyResponse}, http.StatusBadGateway, "completion_failed"},
		{"canceled", &localize.ChunkError{Total: 1, Err: context.Canceled}, http.StatusRequestTimeout, "canceled"},
		{"unexpected", errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logged []string
			srv := New(failing{tt.err}, Options{
				OnError: func(format string, args ...any) { logged = append(logged, fmt.Sprintf(format, args...)) },
			})

			rec := post(t, srv.Handler(), "/api/localize", demoForm(t))
			assert.Equal(t, tt.status, rec.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body["error"])
			if tt.status != http.StatusRequestTimeout {
				assert.NotEmpty(t, logged)
			}
		})
	}
}

func TestChunkErrorDetails(t *testing.T) {
	err := &localize.ChunkError{Index: 1, Total: 3, Completed: 1, Err: completion.ErrRemote}
	srv := New(failing{err}, Options{})

	rec := post(t, srv.Handler(), "/api/localize", demoForm(t))
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 2, body["chunk"])
	assert.EqualValues(t, 3, body["total"])
}

func TestIndexPage(t *testing.T) {
	srv := newTestServer(Options{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<title>Demo Script Localization</title>")
	assert.Contains(t, body, `name="language"`)
	assert.Contains(t, body, `name="country"`)
	assert.Contains(t, body, `name="name"`)
	assert.Contains(t, body, "Maximum size: 10 MB")
	assert.Contains(t, body, "Documentation")
}

func TestCORS(t *testing.T) {
	srv := newTestServer(Options{CORSOrigins: []string{"http://localhost:3000"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/localize", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/localize", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServeStopsOnCancel(t *testing.T) {
	srv := newTestServer(Options{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, "127.0.0.1:0") }()
	cancel()

	assert.NoError(t, <-done)
}
