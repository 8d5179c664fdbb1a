// internal/api/handler_test.go
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"opensen/internal/auth"
	"opensen/internal/model"
	"opensen/internal/store"
)

// MockQuerier is a mock of the store.Querier interface.
type MockQuerier struct {
	mock.Mock
}

func (m *MockQuerier) CreateProject(ctx context.Context, arg store.CreateProjectParams) (model.Project, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(model.Project), args.Error(1)
}
func (m *MockQuerier) GetProject(ctx context.Context, id string) (model.Project, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Project), args.Error(1)
}
func (m *MockQuerier) ListProjects(ctx context.Context) ([]model.Project, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Project), args.Error(1)
}
func (m *MockQuerier) ListVisibleProjects(ctx context.Context, viewerID string) ([]model.Project, error) {
	args := m.Called(ctx, viewerID)
	return args.Get(0).([]model.Project), args.Error(1)
}
func (m *MockQuerier) UpdateProject(ctx context.Context, arg store.UpdateProjectParams) (model.Project, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(model.Project), args.Error(1)
}
func (m *MockQuerier) DeleteProject(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}
func (m *MockQuerier) CreatePost(ctx context.Context, arg store.CreatePostParams) (model.Post, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(model.Post), args.Error(1)
}
func (m *MockQuerier) GetPost(ctx context.Context, id string) (model.Post, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Post), args.Error(1)
}
func (m *MockQuerier) ListPostsByProject(ctx context.Context, projectID string) ([]model.Post, error) {
	args := m.Called(ctx, projectID)
	return args.Get(0).([]model.Post), args.Error(1)
}
func (m *MockQuerier) DeletePost(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}
func (m *MockQuerier) UpsertRepoStats(ctx context.Context, projectID, date string, stats model.RepoStats) error {
	return m.Called(ctx, projectID, date, stats).Error(0)
}
func (m *MockQuerier) UpsertEngagement(ctx context.Context, postID, date string, eng model.Engagement) error {
	return m.Called(ctx, postID, date, eng).Error(0)
}
func (m *MockQuerier) ListRepoStats(ctx context.Context, projectID string) ([]model.RepoStatsSnapshot, error) {
	args := m.Called(ctx, projectID)
	return args.Get(0).([]model.RepoStatsSnapshot), args.Error(1)
}
func (m *MockQuerier) ListEngagementsByProject(ctx context.Context, projectID string) ([]store.EngagementPoint, error) {
	args := m.Called(ctx, projectID)
	return args.Get(0).([]store.EngagementPoint), args.Error(1)
}

// MockCollector is a mock of the CollectorService interface.
type MockCollector struct {
	mock.Mock
}

func (m *MockCollector) CollectProject(ctx context.Context, project model.Project) (*model.RepoStats, error) {
	args := m.Called(ctx, project)
	stats, _ := args.Get(0).(*model.RepoStats)
	return stats, args.Error(1)
}
func (m *MockCollector) CollectPost(ctx context.Context, post model.Post) (*model.Engagement, error) {
	args := m.Called(ctx, post)
	eng, _ := args.Get(0).(*model.Engagement)
	return eng, args.Error(1)
}
func (m *MockCollector) Run(ctx context.Context) {
	m.Called(ctx)
}

const testSecret = "0123456789abcdef0123456789abcdef"

func setupHandler(t *testing.T) (*MockQuerier, *MockCollector, http.Handler, *auth.TokenService) {
	t.Helper()
	mockDB := new(MockQuerier)
	mockCollector := new(MockCollector)
	tokens, err := auth.NewTokenService(testSecret)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	router := NewRouter(mockDB, mockCollector, tokens, logger)
	return mockDB, mockCollector, router, tokens
}

func bearer(t *testing.T, tokens *auth.TokenService, userID string) string {
	t.Helper()
	signed, err := tokens.Generate(userID, time.Hour)
	require.NoError(t, err)
	return "Bearer " + signed
}

func TestHealthCheck(t *testing.T) {
	_, _, router, _ := setupHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCreateProject(t *testing.T) {
	t.Run("creates and returns the initial stats snapshot", func(t *testing.T) {
		mockDB, mockCollector, router, tokens := setupHandler(t)

		created := model.Project{ID: "p1", OwnerID: "user-1", Name: "widget"}
		mockDB.On("CreateProject", mock.Anything, mock.MatchedBy(func(arg store.CreateProjectParams) bool {
			return arg.OwnerID == "user-1" && arg.Name == "widget"
		})).Return(created, nil).Once()
		mockCollector.On("CollectProject", mock.Anything, created).
			Return(&model.RepoStats{Stars: 42, Forks: 7, Issues: 3}, nil).Once()

		body := `{"name": "widget", "repo_url": "https://github.com/acme/widget", "is_public": true}`
		req := httptest.NewRequest(http.MethodPost, "/v1/projects", strings.NewReader(body))
		req.Header.Set("Authorization", bearer(t, tokens, "user-1"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Contains(t, rec.Body.String(), `"stars":42`)
		mockDB.AssertExpectations(t)
		mockCollector.AssertExpectations(t)
	})

	t.Run("creation succeeds even when initial collection fails", func(t *testing.T) {
		mockDB, mockCollector, router, tokens := setupHandler(t)

		created := model.Project{ID: "p1", OwnerID: "user-1", Name: "widget"}
		mockDB.On("CreateProject", mock.Anything, mock.Anything).Return(created, nil).Once()
		mockCollector.On("CollectProject", mock.Anything, created).
			Return(nil, errors.New("snapshot write failed")).Once()

		req := httptest.NewRequest(http.MethodPost, "/v1/projects", strings.NewReader(`{"name": "widget"}`))
		req.Header.Set("Authorization", bearer(t, tokens, "user-1"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Contains(t, rec.Body.String(), `"stats":null`)
	})

	t.Run("requires authentication", func(t *testing.T) {
		_, _, router, _ := setupHandler(t)

		req := httptest.NewRequest(http.MethodPost, "/v1/projects", strings.NewReader(`{"name": "widget"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects a missing name", func(t *testing.T) {
		_, _, router, tokens := setupHandler(t)

		req := httptest.NewRequest(http.MethodPost, "/v1/projects", strings.NewReader(`{}`))
		req.Header.Set("Authorization", bearer(t, tokens, "user-1"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCreatePost(t *testing.T) {
	project := model.Project{ID: "p1", OwnerID: "user-1", Name: "widget"}

	t.Run("creates and returns the initial engagement snapshot", func(t *testing.T) {
		mockDB, mockCollector, router, tokens := setupHandler(t)

		created := model.Post{ID: "post1", ProjectID: "p1", Platform: model.PlatformQiita, URL: "https://qiita.com/a/items/1"}
		mockDB.On("GetProject", mock.Anything, "p1").Return(project, nil).Once()
		mockDB.On("CreatePost", mock.Anything, mock.MatchedBy(func(arg store.CreatePostParams) bool {
			return arg.ProjectID == "p1" && arg.Platform == model.PlatformQiita
		})).Return(created, nil).Once()
		mockCollector.On("CollectPost", mock.Anything, created).
			Return(&model.Engagement{Likes: 10, Comments: 2, Shares: 5}, nil).Once()

		body := `{"project_id": "p1", "platform": "qiita", "url": "https://qiita.com/a/items/1"}`
		req := httptest.NewRequest(http.MethodPost, "/v1/posts", strings.NewReader(body))
		req.Header.Set("Authorization", bearer(t, tokens, "user-1"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Contains(t, rec.Body.String(), `"shares":5`)
		mockDB.AssertExpectations(t)
		mockCollector.AssertExpectations(t)
	})

	t.Run("accepts the unsupported x tag but returns no engagement", func(t *testing.T) {
		mockDB, mockCollector, router, tokens := setupHandler(t)

		created := model.Post{ID: "post1", ProjectID: "p1", Platform: model.PlatformX, URL: "https://x.com/a/status/1"}
		mockDB.On("GetProject", mock.Anything, "p1").Return(project, nil).Once()
		mockDB.On("CreatePost", mock.Anything, mock.Anything).Return(created, nil).Once()
		mockCollector.On("CollectPost", mock.Anything, created).Return(nil, nil).Once()

		body := `{"project_id": "p1", "platform": "x", "url": "https://x.com/a/status/1"}`
		req := httptest.NewRequest(http.MethodPost, "/v1/posts", strings.NewReader(body))
		req.Header.Set("Authorization", bearer(t, tokens, "user-1"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Contains(t, rec.Body.String(), `"engagement":null`)
	})

	t.Run("rejects an unknown platform tag", func(t *testing.T) {
		_, _, router, tokens := setupHandler(t)

		body := `{"project_id": "p1", "platform": "myspace", "url": "https://myspace.com/x"}`
		req := httptest.NewRequest(http.MethodPost, "/v1/posts", strings.NewReader(body))
		req.Header.Set("Authorization", bearer(t, tokens, "user-1"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects posts on projects the caller does not own", func(t *testing.T) {
		mockDB, _, router, tokens := setupHandler(t)

		mockDB.On("GetProject", mock.Anything, "p1").Return(project, nil).Once()

		body := `{"project_id": "p1", "platform": "qiita", "url": "https://qiita.com/a/items/1"}`
		req := httptest.NewRequest(http.MethodPost, "/v1/posts", strings.NewReader(body))
		req.Header.Set("Authorization", bearer(t, tokens, "somebody-else"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestGetProject(t *testing.T) {
	t.Run("private projects are hidden from strangers", func(t *testing.T) {
		mockDB, _, router, _ := setupHandler(t)

		private := model.Project{ID: "p1", OwnerID: "user-1", Name: "secret", IsPublic: false}
		mockDB.On("GetProject", mock.Anything, "p1").Return(private, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/v1/projects/p1", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("owners see their private projects", func(t *testing.T) {
		mockDB, _, router, tokens := setupHandler(t)

		private := model.Project{ID: "p1", OwnerID: "user-1", Name: "secret", IsPublic: false}
		mockDB.On("GetProject", mock.Anything, "p1").Return(private, nil).Once()
		mockDB.On("ListPostsByProject", mock.Anything, "p1").Return([]model.Post{}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/v1/projects/p1", nil)
		req.Header.Set("Authorization", bearer(t, tokens, "user-1"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"secret"`)
	})

	t.Run("missing project is a 404", func(t *testing.T) {
		mockDB, _, router, _ := setupHandler(t)

		mockDB.On("GetProject", mock.Anything, "nope").Return(model.Project{}, pgx.ErrNoRows).Once()

		req := httptest.NewRequest(http.MethodGet, "/v1/projects/nope", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestGetProjectEngagements(t *testing.T) {
	mockDB, _, router, _ := setupHandler(t)

	public := model.Project{ID: "p1", OwnerID: "user-1", Name: "widget", IsPublic: true}
	mockDB.On("GetProject", mock.Anything, "p1").Return(public, nil).Once()
	mockDB.On("ListRepoStats", mock.Anything, "p1").Return([]model.RepoStatsSnapshot{
		{ProjectID: "p1", Date: "2025-03-01", RepoStats: model.RepoStats{Stars: 42, Forks: 7, Issues: 3}},
	}, nil).Once()
	mockDB.On("ListEngagementsByProject", mock.Anything, "p1").Return([]store.EngagementPoint{
		{Platform: model.PlatformQiita, URL: "https://qiita.com/a/items/1", Date: "2025-03-01", Likes: 10, Comments: 2, Shares: 5},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/v1/projects/p1/engagements", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"github"`)
	assert.Contains(t, rec.Body.String(), `"stars":42`)
	assert.Contains(t, rec.Body.String(), `"shares":5`)
	mockDB.AssertExpectations(t)
}

func TestRunCollection(t *testing.T) {
	_, mockCollector, router, tokens := setupHandler(t)

	done := make(chan struct{})
	mockCollector.On("Run", mock.Anything).Run(func(args mock.Arguments) {
		close(done)
	}).Once()

	req := httptest.NewRequest(http.MethodPost, "/v1/collect", nil)
	req.Header.Set("Authorization", bearer(t, tokens, "user-1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("collection run was not triggered")
	}
	mockCollector.AssertExpectations(t)
}
