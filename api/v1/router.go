package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/storyreel/backend/middleware"
	"github.com/storyreel/backend/services"
)

// Handlers bundles the API handlers registered under /api/v1.
type Handlers struct {
	Auth     *AuthHandler
	Projects *ProjectHandler
}

// NewHandlers wires handlers from the service layer.
func NewHandlers(auth *services.AuthService, projects *services.ProjectService, shares *services.ShareLinkService) *Handlers {
	return &Handlers{
		Auth:     NewAuthHandler(auth),
		Projects: NewProjectHandler(projects, shares),
	}
}

// RegisterRoutes registers all v1 API routes
func (h *Handlers) RegisterRoutes(router *gin.RouterGroup, auth *services.AuthService) {
	// Health check endpoint
	router.GET("/health", HealthCheck)

	// Auth endpoints
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/logout", h.Auth.Logout)
		// Use auth middleware here only for the /me endpoint
		authGroup.GET("/me", middleware.AuthMiddleware(auth), h.Auth.GetCurrentUser)
	}

	// Project endpoints - protected by AuthMiddleware
	projectGroup := router.Group("/projects")
	projectGroup.Use(middleware.AuthMiddleware(auth))
	{
		projectGroup.GET("", h.Projects.ListProjects)
		projectGroup.POST("", h.Projects.CreateProject)
		projectGroup.GET("/:id", h.Projects.GetProject)
		projectGroup.PUT("/:id", h.Projects.UpdateProject)
		projectGroup.DELETE("/:id", h.Projects.DeleteProject)

		// Pipeline stages
		projectGroup.POST("/:id/story", h.Projects.SaveStory)
		projectGroup.POST("/:id/scenario", h.Projects.SaveScenario)
		projectGroup.POST("/:id/prompt", h.Projects.SavePrompt)
		projectGroup.POST("/:id/video", h.Projects.SaveVideo)
		projectGroup.POST("/:id/pipeline", h.Projects.SavePipeline)

		// Collaboration
		projectGroup.POST("/:id/collaborators", h.Projects.AddCollaborator)
		projectGroup.POST("/:id/versions", h.Projects.CreateVersion)
		projectGroup.POST("/:id/share", h.Projects.CreateShareLink)

		// Consistency tooling
		projectGroup.GET("/:id/consistency", h.Projects.CheckConsistency)
		projectGroup.POST("/:id/consistency/repair", h.Projects.RepairConsistency)
	}

	// Video generation callbacks and transaction recovery
	authRouter := router.Group("")
	authRouter.Use(middleware.AuthMiddleware(auth))
	{
		authRouter.PATCH("/videos/:id/status", h.Projects.UpdateVideoStatus)
		authRouter.GET("/transactions/:txId/recovery", middleware.AdminMiddleware(), h.Projects.RecoverTransaction)
	}
}
