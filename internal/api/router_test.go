package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/vitotech/website-api/internal/app"
	iauth "github.com/vitotech/website-api/internal/auth"
	"github.com/vitotech/website-api/internal/database/testutil"
	"github.com/vitotech/website-api/internal/services"
	"github.com/vitotech/website-api/internal/storage"
	"github.com/vitotech/website-api/pkg/response"
)

type routerFixture struct {
	router *gin.Engine
	store  *storage.Store
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t)
	store, err := storage.New(t.TempDir(), storage.DefaultMaxUploadSize)
	require.NoError(t, err)

	jwt, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "router-secret", AccessTokenTTL: time.Minute})
	require.NoError(t, err)

	users, err := services.NewUserService(db)
	require.NoError(t, err)
	_, err = users.CreateAdmin(context.Background(), services.CreateAdminInput{
		Username: "admin",
		Email:    "admin@example.com",
		Password: "secret-pass",
	})
	require.NoError(t, err)

	cfg := &app.Config{}
	cfg.Monitoring.Prometheus.Enabled = true
	cfg.Monitoring.Prometheus.Endpoint = "/metrics"

	router, err := NewRouter(db, jwt, store, nil, cfg)
	require.NoError(t, err)
	return &routerFixture{router: router, store: store}
}

func (f *routerFixture) do(t *testing.T, method, target, token string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *routerFixture) login(t *testing.T) string {
	t.Helper()

	body := []byte(`{"username":"admin","password":"secret-pass"}`)
	w := f.do(t, http.MethodPost, "/api/auth/login", "", body, "application/json")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var payload response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	data := payload.Data.(map[string]any)
	token, _ := data["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func (f *routerFixture) submit(t *testing.T) string {
	t.Helper()

	form := url.Values{
		"name":    {"Ada"},
		"email":   {"ada@example.com"},
		"message": {"hello"},
	}
	w := f.do(t, http.MethodPost, "/api/notifications", "", []byte(form.Encode()), "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var payload response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	data := payload.Data.(map[string]any)
	id, _ := data["id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestAnonymousCanSubmitButNotModerate(t *testing.T) {
	f := newRouterFixture(t)

	id := f.submit(t)

	w := f.do(t, http.MethodGet, "/api/notifications", "", nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodGet, "/api/notifications/"+id, "", nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodPost, "/api/notifications/"+id+"/mark_read", "", nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodDelete, "/api/notifications/"+id, "", nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminModerationFlow(t *testing.T) {
	f := newRouterFixture(t)

	id := f.submit(t)
	token := f.login(t)

	w := f.do(t, http.MethodGet, "/api/notifications", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/notifications/stats", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"total":1`)

	w = f.do(t, http.MethodPost, "/api/notifications/"+id+"/mark_read", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"is_read":true`)

	w = f.do(t, http.MethodDelete, "/api/notifications/"+id, token, nil, "")
	require.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodGet, "/api/notifications/"+id, token, nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestMediaRequiresAdmin(t *testing.T) {
	f := newRouterFixture(t)

	// Seed a stored file directly.
	path, err := f.store.Validate(storage.Upload{Filename: "doc.pdf", Size: 4})
	require.NoError(t, err)
	require.NoError(t, f.store.Save(path, strings.NewReader("%PDF")))
	name := strings.TrimPrefix(path, storage.AttachmentPrefix+"/")

	w := f.do(t, http.MethodGet, "/media/attachments/"+name, "", nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	token := f.login(t)
	w = f.do(t, http.MethodGet, "/media/attachments/"+name, token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "%PDF", w.Body.String())

	w = f.do(t, http.MethodGet, "/media/attachments/missing.pdf", token, nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	f := newRouterFixture(t)

	w := f.do(t, http.MethodGet, "/health", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"ok"`)

	w = f.do(t, http.MethodGet, "/metrics", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/nowhere", "", nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)
}
