// Package httpapi exposes the JSON API over gin.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Skufu/thyrocheck/internal/auth"
	"github.com/Skufu/thyrocheck/internal/chatbot"
	"github.com/Skufu/thyrocheck/internal/hospitals"
	"github.com/Skufu/thyrocheck/internal/prediction"
	"github.com/Skufu/thyrocheck/internal/reference"
	"github.com/Skufu/thyrocheck/internal/store"
)

const sessionCookie = "session"

// HospitalFinder is satisfied by *hospitals.Finder.
type HospitalFinder interface {
	Near(ctx context.Context, location string) (*hospitals.Result, error)
}

// Deps are the services behind the API.
type Deps struct {
	Auth        *auth.Service
	Users       store.UserStore
	Predictions *prediction.Service
	Tables      *reference.Tables
	Bot         *chatbot.Bot
	Hospitals   HospitalFinder
	Logger      *slog.Logger

	SessionTTL   time.Duration
	SecureCookie bool
}

type Handler struct {
	Deps
}

func NewHandler(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	useJSONFieldNames()
	return &Handler{Deps: d}
}

// RegisterRoutes mounts every API route under r.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	api := r.Group("/api", requestID())

	api.POST("/auth/register", h.register)
	api.POST("/auth/login", h.login)
	api.GET("/hormones", h.hormones)
	api.GET("/diet", h.dietByCondition)
	api.POST("/chat", h.chat)

	user := api.Group("", h.requireUser())
	user.POST("/auth/logout", h.logout)
	user.GET("/me/profile", h.profile)
	user.PUT("/me/profile", h.updateProfile)
	user.GET("/me/dashboard", h.dashboard)
	user.GET("/me/diet", h.myDiet)
	user.POST("/predictions", h.createPrediction)
	user.GET("/predictions", h.listPredictions)
	user.POST("/health-records", h.createHealthRecord)
	user.POST("/hospitals/search", h.searchHospitals)

	admin := user.Group("/admin", requireAdmin())
	admin.GET("/stats", h.adminStats)
}

func abortWithError(c *gin.Context, status int, code string) {
	c.AbortWithStatusJSON(status, gin.H{"error": code})
}

// internalError logs err and answers 500 without leaking it.
func (h *Handler) internalError(c *gin.Context, msg string, err error) {
	h.Logger.ErrorContext(c.Request.Context(), msg, "error", err, "request_id", c.GetString(requestIDKey))
	abortWithError(c, http.StatusInternalServerError, "internal_error")
}
