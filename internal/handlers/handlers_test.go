package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memory-map-backend/internal/handlers"
	"memory-map-backend/internal/middleware"
	"memory-map-backend/internal/models"
	"memory-map-backend/internal/services"
	"memory-map-backend/internal/services/servicetest"
)

type testServer struct {
	*httptest.Server
	memories *servicetest.Memories
	wishlist *servicetest.Wishlist
	objects  *servicetest.Objects
	users    *services.UserService
	healthy  error
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		memories: servicetest.NewMemories(),
		wishlist: servicetest.NewWishlist(),
		objects:  servicetest.NewObjects(),
	}
	hub := services.NewEventsHub()
	ts.users = services.NewUserService(servicetest.NewUsers(), "test-secret", time.Hour)

	router := handlers.NewRouter(handlers.RouterDeps{
		UserService:     ts.users,
		MemoryService:   services.NewMemoryService(ts.memories, ts.objects, &servicetest.Enricher{}, hub),
		WishlistService: services.NewWishlistService(ts.wishlist, nil, hub),
		UploadService:   services.NewUploadService(ts.objects, 64<<10),
		Hub:             hub,
		UploadLimiter:   middleware.NewUserRateLimiter(3),
		HealthChecks: map[string]handlers.HealthPinger{
			"database": handlers.PingFunc(func(context.Context) error { return ts.healthy }),
		},
		AllowedOrigin: "*",
	})
	ts.Server = httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

// login registers a user and returns its session token
func (ts *testServer) login(t *testing.T, email string) string {
	t.Helper()
	resp, _ := ts.do(t, http.MethodPost, "/api/register", "", map[string]string{
		"name": "Test", "email": email, "password": "secret1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := ts.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"email": email, "password": "secret1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out handlers.LoginResponse
	require.NoError(t, json.Unmarshal(body, &out))
	return out.Token
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v))
	return v
}

func TestAccountEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/api/register", "", map[string]string{
		"name": "Aoi", "email": "aoi@example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := decode[models.UserSummary](t, body)
	assert.Equal(t, "aoi@example.com", summary.Email)
	assert.NotContains(t, string(body), "password")

	resp, body = ts.do(t, http.MethodPost, "/api/register", "", map[string]string{
		"name": "Aoi", "email": "aoi@example.com", "password": "secret1",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "email already registered")

	resp, body = ts.do(t, http.MethodPost, "/api/register", "", map[string]string{
		"name": "Ren", "email": "ren@example.com", "password": "123",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "password", decode[handlers.ErrorResponse](t, body).Field)

	resp, body = ts.do(t, http.MethodPost, "/api/user", "", map[string]string{"name": "Ren", "email": "ren@example.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := decode[models.UserSummary](t, body)
	resp, body = ts.do(t, http.MethodPost, "/api/user", "", map[string]string{"name": "Ren", "email": "ren@example.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, first.ID, decode[models.UserSummary](t, body).ID)

	resp, _ = ts.do(t, http.MethodPost, "/api/login", "", map[string]string{"email": "aoi@example.com", "password": "nope123"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/api/login", "", map[string]string{"email": "aoi@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var session *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == middleware.SessionCookie {
			session = c
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)
}

func TestSessionCookieAuthenticates(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t, "cookie@example.com")

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/memories", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: token})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProtectedRoutesRequireLogin(t *testing.T) {
	ts := newTestServer(t)

	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/memories"},
		{http.MethodPost, "/api/memories"},
		{http.MethodGet, "/api/memories/x"},
		{http.MethodPut, "/api/memories/x"},
		{http.MethodDelete, "/api/memories/x"},
		{http.MethodGet, "/api/wishlist"},
		{http.MethodPost, "/api/wishlist"},
		{http.MethodPatch, "/api/wishlist/x"},
		{http.MethodDelete, "/api/wishlist/x"},
		{http.MethodPost, "/api/upload"},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			resp, body := ts.do(t, rt.method, rt.path, "", nil)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.JSONEq(t, `{"error":"login required"}`, string(body))
		})
	}

	resp, _ := ts.do(t, http.MethodGet, "/api/memories", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMemoryEndpoints(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.login(t, "owner@example.com")
	intruder := ts.login(t, "intruder@example.com")

	resp, body := ts.do(t, http.MethodPost, "/api/memories", owner, map[string]interface{}{"latitude": 1, "longitude": 2})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "title", decode[handlers.ErrorResponse](t, body).Field)
	assert.Zero(t, ts.memories.Len())

	resp, _ = ts.do(t, http.MethodPost, "/api/memories", owner, `{"title": "x", "latitude": "north"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = multipartUpload(t, ts, owner, "image/png", smallPNG(t))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	uploaded := decode[services.UploadResponse](t, body)
	require.NotEmpty(t, uploaded.ThumbnailURL)
	attachment := map[string]string{
		"url": uploaded.URL, "filename": uploaded.Filename, "type": uploaded.Type, "thumbnailUrl": uploaded.ThumbnailURL,
	}

	resp, body = ts.do(t, http.MethodPost, "/api/memories", intruder, map[string]interface{}{
		"title": "Not mine", "latitude": 1, "longitude": 2, "images": []map[string]string{attachment},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "url", decode[handlers.ErrorResponse](t, body).Field)
	assert.Zero(t, ts.memories.Len())

	resp, body = ts.do(t, http.MethodPost, "/api/memories", owner, map[string]interface{}{
		"title":          "Picnic",
		"latitude":       35.7,
		"longitude":      139.7,
		"address":        "client supplied",
		"uploadedImages": []map[string]string{attachment},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	created := decode[models.Memory](t, body)
	assert.Equal(t, "Picnic", created.Title)
	assert.Empty(t, created.Address)
	require.Len(t, created.Images, 1)
	require.NotNil(t, created.Images[0].ThumbnailURL)
	assert.Equal(t, uploaded.ThumbnailURL, *created.Images[0].ThumbnailURL)
	assert.Contains(t, string(body), `"memoryImages"`)

	path := "/api/memories/" + created.ID
	update := map[string]interface{}{"title": "Picnic 2", "latitude": 35.7, "longitude": 139.7, "images": []interface{}{}}

	resp, _ = ts.do(t, http.MethodGet, path, intruder, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodPut, path, intruder, update)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodDelete, path, intruder, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodPut, "/api/memories/missing", owner, update)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = ts.do(t, http.MethodPut, path, owner, update)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[models.Memory](t, body)
	assert.Equal(t, "Picnic 2", updated.Title)
	assert.Empty(t, updated.Images)
	assert.Empty(t, ts.objects.Keys())

	resp, body = ts.do(t, http.MethodGet, "/api/memories", owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Memory](t, body), 1)

	resp, body = ts.do(t, http.MethodGet, "/api/memories", intruder, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))

	resp, body = ts.do(t, http.MethodDelete, path, owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"success":true}`, string(body))

	resp, _ = ts.do(t, http.MethodGet, path, owner, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWishlistEndpoints(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.login(t, "owner@example.com")
	intruder := ts.login(t, "intruder@example.com")

	for _, p := range []int{0, 6} {
		resp, body := ts.do(t, http.MethodPost, "/api/wishlist", owner, map[string]interface{}{
			"title": "Nara", "latitude": 34.68, "longitude": 135.8, "priority": p,
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "priority", decode[handlers.ErrorResponse](t, body).Field)
	}
	assert.Zero(t, ts.wishlist.Len())

	resp, body := ts.do(t, http.MethodPost, "/api/wishlist", owner, map[string]interface{}{
		"title": "Nara", "latitude": 34.68, "longitude": 135.8,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	place := decode[models.WishlistPlace](t, body)
	assert.Equal(t, models.DefaultPriority, place.Priority)

	path := "/api/wishlist/" + place.ID
	resp, _ = ts.do(t, http.MethodPatch, path, intruder, map[string]interface{}{"priority": 5})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = ts.do(t, http.MethodPatch, path, owner, map[string]interface{}{"priority": 5, "isVisited": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	patched := decode[models.WishlistPlace](t, body)
	assert.Equal(t, 5, patched.Priority)
	assert.True(t, patched.IsVisited)

	resp, _ = ts.do(t, http.MethodDelete, path, intruder, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodDelete, "/api/wishlist/missing", owner, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, body = ts.do(t, http.MethodDelete, path, owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"success":true}`, string(body))
}

func multipartUpload(t *testing.T, ts *testServer, token, contentType string, data []byte) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="file"; filename="photo.png"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/upload", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func smallPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8))))
	return buf.Bytes()
}

func TestUploadEndpoint(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t, "uploader@example.com")

	resp, body := multipartUpload(t, ts, token, "application/zip", []byte("PK\x03\x04"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))
	assert.Empty(t, ts.objects.Keys())

	resp, body = multipartUpload(t, ts, token, "image/png", bytes.Repeat([]byte{0x89}, 80<<10))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))
	assert.Empty(t, ts.objects.Keys())

	resp, body = multipartUpload(t, ts, token, "image/png", smallPNG(t))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	out := decode[services.UploadResponse](t, body)
	assert.Equal(t, models.MediaTypeImage, out.Type)
	assert.Equal(t, "photo.png", out.Filename)
	assert.True(t, strings.HasPrefix(out.URL, ts.objects.BaseURL+"/images/"))

	// the limiter allows three uploads per minute
	resp, body = multipartUpload(t, ts, token, "image/png", smallPNG(t))
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, string(body))
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	ts.healthy = errors.New("connection refused")
	resp, _ = ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodGet, "/healthz", "", nil)

	resp, body := ts.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "memorymap_http_requests_total")
}

func TestWebSocketReceivesEvents(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t, "ws@example.com")

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	var pong services.Event
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, services.EventPong, pong.Type)

	resp, body := ts.do(t, http.MethodPost, "/api/wishlist", token, map[string]interface{}{
		"title": "Osaka", "latitude": 34.69, "longitude": 135.5, "priority": 4,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	place := decode[models.WishlistPlace](t, body)

	var ev services.Event
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, services.EventWishlistCreated, ev.Type)
	assert.Equal(t, place.ID, ev.ID)

	_, resp2, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws?token=bad", nil)
	require.Error(t, err)
	require.NotNil(t, resp2)
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
}
