package routes

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/hexfeed/config"
	"github.com/cppla/hexfeed/gateway"
	"github.com/cppla/hexfeed/identity"
	"github.com/cppla/hexfeed/models"
	"github.com/cppla/hexfeed/notifications"
	"github.com/cppla/hexfeed/repository"
	"github.com/cppla/hexfeed/storage"
	"github.com/cppla/hexfeed/utils"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	router http.Handler
	repo   *repository.PostRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	utils.SetRedis(nil)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, config.Migrate(db, &models.Account{}, &models.UploadedFile{}))

	cfg := config.AppConfig{
		GinMode:            "test",
		JWTSecret:          "router-test-secret",
		RateLimitPerMinute: 10000,
		AllowedOrigins:     []string{"*"},
		UploadDir:          t.TempDir(),
		UploadBaseURL:      "/static/uploads",
		NotificationTopic:  "campaigns",
	}

	base, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	repo := repository.NewPostRepository(gateway.NewMemoryGateway(nil), nil)
	provider := identity.NewLocalProvider(db, identity.LocalOptions{JWTSecret: cfg.JWTSecret})
	r := SetupRouter(cfg, Dependencies{
		Base:     base,
		Store:    repo,
		Uploader: storage.NewDiskUploader(cfg.UploadDir, cfg.UploadBaseURL, 1, db, nil),
		Provider: provider,
		Topics:   notifications.NewTopics(nil, gofakeit.UUID(), nil),
		Clock:    utils.NewStubClock(time.UnixMilli(1_700_000_000_000)),
	})
	return &testServer{router: r, repo: repo}
}

func (s *testServer) do(t *testing.T, req *http.Request, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func (s *testServer) doJSON(t *testing.T, method, path string, body any, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return s.do(t, req, token)
}

func (s *testServer) signUp(t *testing.T) string {
	t.Helper()
	w, env := s.doJSON(t, http.MethodPost, "/api/v1/auth/signup", map[string]string{
		"email":    gofakeit.Email(),
		"password": "secret-password",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.Token
}

func multipartPost(t *testing.T, title, description string, photo []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", title))
	require.NoError(t, mw.WriteField("description", description))
	if photo != nil {
		part, err := mw.CreateFormFile("photo", "photo.png")
		require.NoError(t, err)
		_, err = part.Write(photo)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/posts", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (s *testServer) createPost(t *testing.T, token, title string, photo []byte) string {
	t.Helper()
	w, env := s.do(t, multipartPost(t, title, "", photo), token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var data struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.ID)
	return data.ID
}

func (s *testServer) getPost(t *testing.T, id string) (int, models.Post) {
	t.Helper()
	w, env := s.doJSON(t, http.MethodGet, "/api/v1/posts/"+id, nil, "")
	var data struct {
		Post models.Post `json:"post"`
	}
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(env.Data, &data))
	}
	return w.Code, data.Post
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t)
	w, env := s.doJSON(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, env.Code)
}

func TestRouter_PostLifecycle(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp(t)

	id := s.createPost(t, token, "Hello", []byte("png bytes"))

	w, env := s.doJSON(t, http.MethodGet, "/api/v1/feed", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var feed struct {
		Items []models.Post `json:"items"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &feed))
	require.Len(t, feed.Items, 1)
	post := feed.Items[0]
	assert.Equal(t, id, post.ID)
	assert.Equal(t, "Hello", post.Title)
	assert.Nil(t, post.Description)
	assert.Equal(t, int64(1_700_000_000_000), post.Timestamp)
	require.NotNil(t, post.PhotoURL)
	assert.True(t, strings.HasPrefix(*post.PhotoURL, "/static/uploads/posts/"+id+"/"), *post.PhotoURL)

	photo, _ := s.do(t, httptest.NewRequest(http.MethodGet, *post.PhotoURL, nil), "")
	assert.Equal(t, http.StatusOK, photo.Code)
	assert.Equal(t, "png bytes", photo.Body.String())

	w, _ = s.doJSON(t, http.MethodPost, "/api/v1/posts/"+id+"/comments", map[string]string{"text": "  Nice  "}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	code, got := s.getPost(t, id)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, "Nice", got.Comments[0].Text)
	assert.Equal(t, post.Author.ID, got.Comments[0].Author.ID)

	w, _ = s.doJSON(t, http.MethodDelete, "/api/v1/posts/"+id+"/comments/"+got.Comments[0].ID, nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w, _ = s.doJSON(t, http.MethodDelete, "/api/v1/posts/"+id, nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// the shared post stream settles on the deletion asynchronously
	assert.Eventually(t, func() bool {
		code, _ := s.getPost(t, id)
		return code == http.StatusNotFound
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRouter_WritesNeedSignIn(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(t, multipartPost(t, "Hello", "", nil), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "User not authenticated", env.Message)

	token := s.signUp(t)
	w, _ = s.do(t, multipartPost(t, "   ", "body", nil), token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = s.doJSON(t, http.MethodPost, "/api/v1/posts/missing/comments", map[string]string{"text": "hi"}, token)
	assert.Equal(t, http.StatusNotFound, w.Code, env.Message)

	w, env = s.doJSON(t, http.MethodPost, "/api/v1/posts/missing/comments", map[string]string{"text": "   "}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Comment cannot be empty", env.Message)
}

func TestRouter_OnlyTheAuthorDeletes(t *testing.T) {
	s := newTestServer(t)
	alice := s.signUp(t)
	id := s.createPost(t, alice, "Alice's post", nil)

	bob := s.signUp(t)
	w, env := s.doJSON(t, http.MethodDelete, "/api/v1/posts/"+id, nil, bob)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Only the author can delete this post", env.Message)

	code, _ := s.getPost(t, id)
	assert.Equal(t, http.StatusOK, code)
}

func TestRouter_SignOutRevokesToken(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp(t)

	w, _ := s.doJSON(t, http.MethodGet, "/api/v1/auth/me", nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = s.doJSON(t, http.MethodPost, "/api/v1/auth/signout", nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	w, env := s.doJSON(t, http.MethodGet, "/api/v1/auth/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "token revoked", env.Message)

	w, _ = s.doJSON(t, http.MethodGet, "/api/v1/auth/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_SignInFailure(t *testing.T) {
	s := newTestServer(t)
	w, env := s.doJSON(t, http.MethodPost, "/api/v1/auth/signin", map[string]string{
		"email": "nobody@example.com", "password": "whatever",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid email or password", env.Message)

	w, env = s.doJSON(t, http.MethodPost, "/api/v1/auth/signin", map[string]string{"email": "a@b.c"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Email and password are required", env.Message)
}

func TestRouter_NotificationSettings(t *testing.T) {
	s := newTestServer(t)

	var data struct {
		Enabled bool `json:"enabled"`
	}
	w, env := s.doJSON(t, http.MethodGet, "/api/v1/settings/notifications", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.False(t, data.Enabled)

	w, _ = s.doJSON(t, http.MethodPut, "/api/v1/settings/notifications", map[string]bool{"enabled": true}, "")
	require.Equal(t, http.StatusOK, w.Code)

	w, env = s.doJSON(t, http.MethodGet, "/api/v1/settings/notifications", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.True(t, data.Enabled)

	w, _ = s.doJSON(t, http.MethodPut, "/api/v1/settings/notifications", map[string]any{}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_FeedStream(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp(t)
	srv := httptest.NewServer(s.router)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/feed/stream", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	readData := func() string {
		for lines.Scan() {
			if data, ok := strings.CutPrefix(lines.Text(), "data:"); ok {
				return data
			}
		}
		t.Fatalf("stream ended: %v", lines.Err())
		return ""
	}

	assert.Equal(t, "[]", strings.TrimSpace(readData()))

	s.createPost(t, token, "Streamed", nil)
	for {
		data := readData()
		if strings.Contains(data, "Streamed") {
			break
		}
	}
}

func TestRouter_TextWithMarkupRoundTrips(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp(t)

	id := s.createPost(t, token, "<Announcement> & more", nil)
	w, env := s.doJSON(t, http.MethodPost, "/api/v1/posts/"+id+"/comments", map[string]string{"text": "use Map<K, V> or <T>"}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var echoed struct {
		Text string `json:"text"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &echoed))
	assert.Equal(t, "use Map<K, V> or <T>", echoed.Text)

	code, got := s.getPost(t, id)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "<Announcement> & more", got.Title)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, "use Map<K, V> or <T>", got.Comments[0].Text)
}
