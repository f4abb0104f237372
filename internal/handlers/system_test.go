package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tasklane/apiserver/config"
	"github.com/tasklane/apiserver/internal/logging"
)

func TestRootAndHealthz(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Welcome to the Task Manager API!"}`, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRequestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewWithWriter(&buf, config.LogConfig{Level: "debug", Format: "text"})

	handler := RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			writeError(w, http.StatusNotFound, "nope")
		case "/boom":
			writeError(w, http.StatusInternalServerError, "boom")
		default:
			_, _ = w.Write([]byte("fine"))
		}
	}))

	for _, path := range []string{"/", "/missing", "/boom"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	out := buf.String()
	assert.Contains(t, out, "level=INFO msg=request http.method=GET http.uri=/ http.status=200")
	assert.Contains(t, out, "level=WARN msg=request http.method=GET http.uri=/missing http.status=404")
	assert.Contains(t, out, "level=ERROR msg=request http.method=GET http.uri=/boom http.status=500")
}
