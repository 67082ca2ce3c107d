package v1

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/storyreel/backend/dto"
	"github.com/storyreel/backend/repositories"
	"github.com/storyreel/backend/services"
	"github.com/storyreel/backend/storage"
	"github.com/storyreel/backend/transform"
)

// ProjectHandler exposes the project workspace and pipeline endpoints.
type ProjectHandler struct {
	projects *services.ProjectService
	shares   *services.ShareLinkService
}

// NewProjectHandler creates a project handler.
func NewProjectHandler(projects *services.ProjectService, shares *services.ShareLinkService) *ProjectHandler {
	return &ProjectHandler{projects: projects, shares: shares}
}

// actorFrom builds the acting identity from context values set by
// AuthMiddleware. The bool reports whether the request is authenticated.
func actorFrom(c *gin.Context) (storage.Actor, bool) {
	userID, exists := c.Get("userId")
	if !exists {
		return storage.Actor{}, false
	}
	role, _ := c.Get("role")
	roleStr, _ := role.(string)
	return storage.Actor{ID: userID.(string), Role: roleStr}, true
}

// fail maps domain errors to HTTP statuses. Raw store errors never leak:
// everything unrecognized collapses to a generic 500 result, and every
// failure body carries the same OperationResult shape.
func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "Operation failed"

	var vErr *transform.ValidationError
	switch {
	case errors.Is(err, repositories.ErrProjectNotFound), errors.Is(err, storage.ErrNotFound):
		status, message = http.StatusNotFound, "Project not found"
	case errors.Is(err, repositories.ErrDuplicateProjectTitle):
		status, message = http.StatusConflict, err.Error()
	case errors.Is(err, repositories.ErrInvalidRole), errors.Is(err, repositories.ErrInvalidStatusTransition):
		status, message = http.StatusBadRequest, err.Error()
	case errors.As(err, &vErr):
		status, message = http.StatusBadRequest, err.Error()
	case strings.HasPrefix(err.Error(), "unauthorized"):
		status, message = http.StatusForbidden, err.Error()
	}

	c.JSON(status, gin.H{"status": "error", "message": message, "data": dto.OperationResult{Success: false, Error: message}})
}

// unauthenticated is the shared 401 response.
func unauthenticated(c *gin.Context) {
	message := "User not authenticated"
	c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": message, "data": dto.OperationResult{Success: false, Error: message}})
}

// ListProjects returns the caller's projects, paginated and filtered.
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		unauthenticated(c)
		return
	}

	var opts dto.ProjectListOptions
	if err := c.ShouldBindQuery(&opts); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid query parameters: " + err.Error()})
		return
	}

	result, err := h.projects.ListProjects(c.Request.Context(), actor, opts)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": result})
}

// CreateProject creates a project owned by the caller.
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		unauthenticated(c)
		return
	}

	var req dto.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid request data: " + err.Error()})
		return
	}

	project, err := h.projects.CreateProject(c.Request.Context(), req, actor)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success", "data": project})
}

// GetProject returns the full project workspace.
func (h *ProjectHandler) GetProject(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		unauthenticated(c)
		return
	}

	project, err := h.projects.GetWorkspace(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": project})
}

// UpdateProject patches the project workspace.
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		unauthenticated(c)
		return
	}

	var patch dto.UpdateProjectRequest
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid request data: " + err.Error()})
		return
	}

	project, err := h.projects.UpdateWorkspace(c.Request.Context(), c.Param("id"), patch, actor)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": project})
}

// DeleteProject removes a project and its pipeline entities.
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		unauthenticated(c)
		return
	}

	if err := h.projects.DeleteProject(c.Request.Context(), c.Param("id"), actor); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Project deleted successfully"})
}

// SaveStory persists the story stage of the pipeline.
func (h *ProjectHandler) SaveStory(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		unauthenticated(c)
		return
	}

	var req dto.SaveStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid request data: " + err.Error()})
		return
	}

	ack, err := h.projects.SaveStory(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": ack})
}

// SaveScenario persists the scenario stage of the pipeline.
func (h *ProjectHandler) SaveScenario(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		unauthenticated(c)
		return
	}

	var req dto.SaveScenarioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid request data: " + err.Error()})
		return
	}

	ack, err := h.projects.SaveScenario(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": ack})
}

// SavePrompt persists the prompt stage of the pipeline.
func (h *ProjectHandler) SavePrompt(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		unauthenticated(c)
		return
	}

	var req dto.SavePromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid request data: " + err.Error()})
		return
	}

	ack, err := h.projects.SavePrompt(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": ack})
}

// SaveVideo queues a video generation for the project.
func (h *ProjectHandler) SaveVideo(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		unauthenticated(c)
		return
	}

	var req dto.SaveVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid request data: " + err.Error()})
		return
	}

	ack, err := h.projects.SaveVideo(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "success", "data": ack})
}

// SavePipeline writes several pipeline stages as one logical transaction.
// A partial failure returns 200 with rolledBack details rather than an
// opaque 500, so clients can distinguish "rejected" from "reverted".
func (h *ProjectHandler) SavePipeline(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		unauthenticated(c)
		return
	}

	var bundle dto.PipelineBundle
	if err := c.ShouldBindJSON(&bundle); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid request data: " + err.Error()})
		return
	}

	result, err := h.projects.SavePipeline(c.Request.Context(), c.Param("id"), bundle, actor)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": result})
}

// RecoverTransaction reports what survived a partial pipeline transaction.
func (h *ProjectHandler) RecoverTransaction(c *gin.Context) {
	if _, ok := actorFrom(c); !ok {
		unauthenticated(c)
		return
	}

	result := h.projects.RecoverPipeline(c.Request.Context(), c.Param("txId"))
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": result})
}

// UpdateVideoStatus transitions a video generation job.
func (h *ProjectHandler) UpdateVideoStatus(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		unauthenticated(c)
		return
	}

	var update dto.VideoStatusUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid request data: " + err.Error()})
		return
	}

	ack, err := h.projects.UpdateVideoStatus(c.Request.Context(), c.Param("id"), update, actor)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": ack})
}

// AddCollaborator adds a collaborator to the project.
func (h *ProjectHandler) AddCollaborator(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		unauthenticated(c)
		return
	}

	var req dto.AddCollaboratorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid request data: " + err.Error()})
		return
	}

	collab, err := h.projects.AddCollaborator(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success", "data": collab})
}

// CreateVersion snapshots a new project version.
func (h *ProjectHandler) CreateVersion(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		unauthenticated(c)
		return
	}

	var req dto.CreateVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid request data: " + err.Error()})
		return
	}

	version, err := h.projects.CreateVersion(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success", "data": version})
}

// CreateShareLink issues a signed share token for the project.
func (h *ProjectHandler) CreateShareLink(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		unauthenticated(c)
		return
	}

	var req dto.CreateShareLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid request data: " + err.Error()})
		return
	}

	// Only a writer may share; the service re-checks on creation.
	if _, err := h.projects.GetWorkspace(c.Request.Context(), c.Param("id"), actor); err != nil {
		fail(c, err)
		return
	}

	link, err := h.shares.CreateShareLink(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success", "data": link})
}

// CheckConsistency audits primary vs secondary state for the project.
func (h *ProjectHandler) CheckConsistency(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		unauthenticated(c)
		return
	}

	report, err := h.projects.CheckConsistency(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": report})
}

// RepairConsistency rewrites the secondary documents from primary state.
func (h *ProjectHandler) RepairConsistency(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		unauthenticated(c)
		return
	}

	report, err := h.projects.RepairConsistency(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": report})
}
