package rest

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler) {
	// Health check endpoint (no version prefix)
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Public aggregate (anonymous, cacheable)
		v1.GET("/fixtures/:id/votes", handler.GetVotes)

		// The caller's own ballot (cookie identity, never cached)
		v1.GET("/fixtures/:id/votes/me", handler.GetOwnVote)

		// Cast or change a vote
		v1.POST("/fixtures/:id/votes", handler.CastVote)
	}
}
