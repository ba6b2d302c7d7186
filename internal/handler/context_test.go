package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/samims/ctxrelay/internal/config"
	"github.com/samims/ctxrelay/internal/dispatcher"
	appErr "github.com/samims/ctxrelay/internal/errors"
	"github.com/samims/ctxrelay/internal/model"
	"github.com/samims/ctxrelay/internal/registry"
	"github.com/samims/ctxrelay/internal/service"
	"github.com/samims/ctxrelay/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newContextRouter(h *ContextHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/context", h.Publish)
	r.Get("/context/{id}", h.Get)
	r.Post("/subscribe", h.Subscribe)
	return r
}

type relay struct {
	server *httptest.Server
	svc    service.ContextService
}

func newRelay(t *testing.T, store storage.ContextStore) *relay {
	t.Helper()
	reg := registry.New()
	notifier := dispatcher.New(reg, testLogger(), dispatcher.WithTimeout(2*time.Second))

	rl := &relay{}
	mux := http.NewServeMux()
	rl.server = httptest.NewServer(mux)
	t.Cleanup(rl.server.Close)

	rl.svc = service.NewContextService(store, reg, notifier, rl.server.URL, config.DispatchSync, testLogger())
	mux.Handle("/", newContextRouter(NewContextHandler(rl.svc, testLogger())))
	return rl
}

func (rl *relay) post(t *testing.T, path, body string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Post(rl.server.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func (rl *relay) get(t *testing.T, rawURL string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(rawURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func TestPublishNotifyFetch(t *testing.T) {
	rl := newRelay(t, storage.NewMemoryStore(0))

	var mu sync.Mutex
	var received []model.Notification
	subscriber := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var n model.Notification
		if err := json.NewDecoder(r.Body).Decode(&n); err == nil {
			mu.Lock()
			received = append(received, n)
			mu.Unlock()
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer subscriber.Close()

	resp, _ := rl.post(t, "/subscribe", `"`+subscriber.URL+`/webhook"`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, contextURL := rl.post(t, "/context", `{"payload":"hello"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(contextURL, rl.server.URL+"/context/"))

	mu.Lock()
	require.Len(t, received, 1)
	n := received[0]
	mu.Unlock()
	assert.Equal(t, contextURL, n.ContextURL)
	assert.Equal(t, strings.TrimPrefix(contextURL, rl.server.URL+"/context/"), n.ContextID)
	assert.WithinDuration(t, time.Now(), n.Timestamp, time.Minute)

	resp, payload := rl.get(t, n.ContextURL)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello", payload)
}

func TestPublish_BadRequests(t *testing.T) {
	rl := newRelay(t, storage.NewMemoryStore(0))

	for name, body := range map[string]string{
		"invalid json":    `{"payload":`,
		"missing payload": `{}`,
		"blank payload":   `{"payload":"   "}`,
		"wrong type":      `{"payload":42}`,
	} {
		t.Run(name, func(t *testing.T) {
			resp, _ := rl.post(t, "/context", body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestPublish_PayloadIsOpaque(t *testing.T) {
	rl := newRelay(t, storage.NewMemoryStore(0))
	payload := `{"nested":"json"}` + "\n<b>markup</b>\tüñí"

	body, err := json.Marshal(model.PublishRequest{Payload: &payload})
	require.NoError(t, err)

	resp, contextURL := rl.post(t, "/context", string(body))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, got := rl.get(t, contextURL)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, payload, got)
}

func TestGet_UnknownID(t *testing.T) {
	rl := newRelay(t, storage.NewMemoryStore(0))

	resp, body := rl.get(t, rl.server.URL+"/context/doesnotexist")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not found", strings.TrimSpace(body))
}

func TestPublish_StoreFull(t *testing.T) {
	rl := newRelay(t, storage.NewMemoryStore(1))

	resp, _ := rl.post(t, "/context", `{"payload":"first"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = rl.post(t, "/context", `{"payload":"second"}`)
	assert.Equal(t, http.StatusInsufficientStorage, resp.StatusCode)
}

func TestPublish_StoreFailure(t *testing.T) {
	store := storage.NewMockContextStore(t)
	store.On("Put", mock.Anything, "hello").Return("", appErr.NewStorage("connection refused")).Once()
	store.On("Get", mock.Anything, "abc").Return("", appErr.NewStorage("connection refused")).Once()
	rl := newRelay(t, store)

	resp, _ := rl.post(t, "/context", `{"payload":"hello"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	resp, _ = rl.get(t, rl.server.URL+"/context/abc")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestSubscribe_Rejects(t *testing.T) {
	rl := newRelay(t, storage.NewMemoryStore(0))

	for name, body := range map[string]string{
		"not json":     `http://agent:8090/webhook`,
		"not a string": `{"url":"http://agent:8090/webhook"}`,
		"relative":     `"/webhook"`,
		"bad scheme":   `"ftp://agent/webhook"`,
		"empty":        `""`,
	} {
		t.Run(name, func(t *testing.T) {
			resp, _ := rl.post(t, "/subscribe", body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}
