// internal/api/handler.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5"

	"opensen/internal/auth"
	apperrors "opensen/internal/errors"
	"opensen/internal/model"
	"opensen/internal/store"
)

// CollectorService is the slice of the collector the API invokes: the
// immediate on-create hooks and the manual full-run trigger.
type CollectorService interface {
	CollectProject(ctx context.Context, project model.Project) (*model.RepoStats, error)
	CollectPost(ctx context.Context, post model.Post) (*model.Engagement, error)
	Run(ctx context.Context)
}

// Handler is the container for API dependencies.
type Handler struct {
	db        store.Querier
	collector CollectorService
	logger    *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(db store.Querier, collector CollectorService, tokens *auth.TokenService, logger *slog.Logger) http.Handler {
	h := &Handler{
		db:        db,
		collector: collector,
		logger:    logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// API Routes
	r.Get("/health", h.healthCheck)
	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuth(tokens))
			r.Get("/projects", h.listProjects)
			r.Get("/projects/{id}", h.getProject)
			r.Get("/projects/{id}/engagements", h.getProjectEngagements)
		})
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Post("/projects", h.createProject)
			r.Patch("/projects/{id}", h.updateProject)
			r.Delete("/projects/{id}", h.deleteProject)
			r.Post("/posts", h.createPost)
			r.Delete("/posts/{id}", h.deletePost)
			r.Post("/collect", h.runCollection)
		})
	})

	return r
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// listProjects returns public projects, plus the caller's own when
// authenticated.
// GET /v1/projects
func (h *Handler) listProjects(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := auth.UserIDFromContext(r.Context())

	projects, err := h.db.ListVisibleProjects(r.Context(), viewerID)
	if err != nil {
		h.logger.Error("Failed to list projects", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if projects == nil {
		projects = []model.Project{}
	}
	respondWithJSON(w, http.StatusOK, projects)
}

// visibleProject loads a project and checks the caller may see it.
// Private projects are indistinguishable from missing ones to strangers.
func (h *Handler) visibleProject(r *http.Request, id string) (model.Project, int, bool) {
	project, err := h.db.GetProject(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Project{}, http.StatusNotFound, false
		}
		h.logger.Error("Failed to get project", "project_id", id, "error", err)
		return model.Project{}, http.StatusInternalServerError, false
	}
	viewerID, _ := auth.UserIDFromContext(r.Context())
	if !project.IsPublic && project.OwnerID != viewerID {
		return model.Project{}, http.StatusNotFound, false
	}
	return project, http.StatusOK, true
}

// getProject returns one project with its posts.
// GET /v1/projects/{id}
func (h *Handler) getProject(w http.ResponseWriter, r *http.Request) {
	project, status, ok := h.visibleProject(r, chi.URLParam(r, "id"))
	if !ok {
		respondWithError(w, status, ownershipMessage(status))
		return
	}

	posts, err := h.db.ListPostsByProject(r.Context(), project.ID)
	if err != nil {
		h.logger.Error("Failed to list posts", "project_id", project.ID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if posts == nil {
		posts = []model.Post{}
	}

	respondWithJSON(w, http.StatusOK, struct {
		model.Project
		Posts []model.Post `json:"posts"`
	}{Project: project, Posts: posts})
}

// getProjectEngagements returns the project's snapshot time series.
// GET /v1/projects/{id}/engagements
func (h *Handler) getProjectEngagements(w http.ResponseWriter, r *http.Request) {
	project, status, ok := h.visibleProject(r, chi.URLParam(r, "id"))
	if !ok {
		respondWithError(w, status, ownershipMessage(status))
		return
	}

	repoStats, err := h.db.ListRepoStats(r.Context(), project.ID)
	if err != nil {
		h.logger.Error("Failed to list repository stats", "project_id", project.ID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	points, err := h.db.ListEngagementsByProject(r.Context(), project.ID)
	if err != nil {
		h.logger.Error("Failed to list engagements", "project_id", project.ID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if repoStats == nil {
		repoStats = []model.RepoStatsSnapshot{}
	}
	if points == nil {
		points = []store.EngagementPoint{}
	}
	respondWithJSON(w, http.StatusOK, struct {
		GitHub []model.RepoStatsSnapshot `json:"github"`
		Posts  []store.EngagementPoint   `json:"posts"`
	}{GitHub: repoStats, Posts: points})
}

type createProjectRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	URL         *string `json:"url"`
	RepoURL     *string `json:"repo_url"`
	IsPublic    bool    `json:"is_public"`
}

type projectWithStats struct {
	model.Project
	Stats *model.RepoStats `json:"stats"`
}

// createProject creates a project and immediately collects an initial
// repository stats snapshot. Collection is best-effort: the project is
// created even when the fetch or write fails.
// POST /v1/projects
func (h *Handler) createProject(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		respondWithError(w, http.StatusBadRequest, "'name' is required")
		return
	}

	project, err := h.db.CreateProject(r.Context(), store.CreateProjectParams{
		OwnerID:     userID,
		Name:        req.Name,
		Description: req.Description,
		URL:         req.URL,
		RepoURL:     req.RepoURL,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		h.logger.Error("Failed to create project", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	stats, err := h.collector.CollectProject(r.Context(), project)
	if err != nil {
		h.logger.Error("Initial stats collection failed", "project_id", project.ID, "error", err)
	}

	respondWithJSON(w, http.StatusCreated, projectWithStats{Project: project, Stats: stats})
}

type updateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	URL         *string `json:"url"`
	RepoURL     *string `json:"repo_url"`
	IsPublic    *bool   `json:"is_public"`
}

// updateProject applies a partial update to a project owned by the caller.
// PATCH /v1/projects/{id}
func (h *Handler) updateProject(w http.ResponseWriter, r *http.Request) {
	project, status, ok := h.ownedProject(r, chi.URLParam(r, "id"))
	if !ok {
		respondWithError(w, status, ownershipMessage(status))
		return
	}

	var req updateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, err := h.db.UpdateProject(r.Context(), store.UpdateProjectParams{
		ID:          project.ID,
		Name:        req.Name,
		Description: req.Description,
		URL:         req.URL,
		RepoURL:     req.RepoURL,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		h.logger.Error("Failed to update project", "project_id", project.ID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}

// deleteProject removes a project owned by the caller; its posts and
// snapshots cascade.
// DELETE /v1/projects/{id}
func (h *Handler) deleteProject(w http.ResponseWriter, r *http.Request) {
	project, status, ok := h.ownedProject(r, chi.URLParam(r, "id"))
	if !ok {
		respondWithError(w, status, ownershipMessage(status))
		return
	}

	if err := h.db.DeleteProject(r.Context(), project.ID); err != nil {
		h.logger.Error("Failed to delete project", "project_id", project.ID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type createPostRequest struct {
	ProjectID string     `json:"project_id"`
	Platform  string     `json:"platform"`
	URL       string     `json:"url"`
	PostedAt  *time.Time `json:"posted_at"`
}

type postWithEngagement struct {
	model.Post
	Engagement *model.Engagement `json:"engagement"`
}

// createPost attaches a post to a project owned by the caller and
// immediately collects an initial engagement snapshot, best-effort.
// POST /v1/posts
func (h *Handler) createPost(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ProjectID == "" || req.URL == "" {
		respondWithError(w, http.StatusBadRequest, "'project_id' and 'url' are required")
		return
	}
	platform := model.Platform(req.Platform)
	if !platform.Valid() {
		respondWithError(w, http.StatusBadRequest, (&apperrors.ErrUnknownPlatform{Platform: req.Platform}).Error())
		return
	}

	if _, status, ok := h.ownedProject(r, req.ProjectID); !ok {
		respondWithError(w, status, ownershipMessage(status))
		return
	}

	postedAt := time.Now().UTC()
	if req.PostedAt != nil {
		postedAt = *req.PostedAt
	}

	post, err := h.db.CreatePost(r.Context(), store.CreatePostParams{
		ProjectID: req.ProjectID,
		Platform:  platform,
		URL:       req.URL,
		PostedAt:  postedAt,
	})
	if err != nil {
		h.logger.Error("Failed to create post", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	eng, err := h.collector.CollectPost(r.Context(), post)
	if err != nil {
		h.logger.Error("Initial engagement collection failed", "post_id", post.ID, "error", err)
	}

	respondWithJSON(w, http.StatusCreated, postWithEngagement{Post: post, Engagement: eng})
}

// deletePost removes a post from a project owned by the caller.
// DELETE /v1/posts/{id}
func (h *Handler) deletePost(w http.ResponseWriter, r *http.Request) {
	post, err := h.db.GetPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondWithError(w, http.StatusNotFound, "Post not found")
			return
		}
		h.logger.Error("Failed to get post", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if _, status, ok := h.ownedProject(r, post.ProjectID); !ok {
		respondWithError(w, status, ownershipMessage(status))
		return
	}

	if err := h.db.DeletePost(r.Context(), post.ID); err != nil {
		h.logger.Error("Failed to delete post", "post_id", post.ID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// runCollection triggers a full collection pass in the background.
// Upserts are idempotent per (entity, day), so overlapping or repeated
// triggers are harmless.
// POST /v1/collect
func (h *Handler) runCollection(w http.ResponseWriter, r *http.Request) {
	go h.collector.Run(context.WithoutCancel(r.Context()))
	respondWithJSON(w, http.StatusAccepted, map[string]string{"status": "collection started"})
}

// ownedProject loads a project and verifies the caller owns it. On
// failure the returned status is 404 (missing), 403 (not owner) or 500.
func (h *Handler) ownedProject(r *http.Request, id string) (model.Project, int, bool) {
	project, err := h.db.GetProject(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Project{}, http.StatusNotFound, false
		}
		h.logger.Error("Failed to get project", "project_id", id, "error", err)
		return model.Project{}, http.StatusInternalServerError, false
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	if project.OwnerID != userID {
		return model.Project{}, http.StatusForbidden, false
	}
	return project, http.StatusOK, true
}

func ownershipMessage(status int) string {
	switch status {
	case http.StatusNotFound:
		return "Project not found"
	case http.StatusForbidden:
		return "You do not own this project"
	default:
		return "Internal server error"
	}
}
