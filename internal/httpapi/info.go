package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Skufu/thyrocheck/internal/hospitals"
)

func (h *Handler) hormones(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"hormones": h.Tables.Hormones()})
}

func (h *Handler) chat(c *gin.Context) {
	var req chatRequest
	if !bindJSON(c, &req) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": h.Bot.Reply(req.Message)})
}

func (h *Handler) searchHospitals(c *gin.Context) {
	var req hospitalSearchRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.Hospitals.Near(c.Request.Context(), req.Location)
	switch {
	case errors.Is(err, hospitals.ErrLocationNotFound):
		abortWithError(c, http.StatusNotFound, "location_not_found")
		return
	case errors.Is(err, hospitals.ErrUpstream):
		abortWithError(c, http.StatusBadGateway, "upstream_unavailable")
		return
	case err != nil:
		h.internalError(c, "hospital search", err)
		return
	}
	c.JSON(http.StatusOK, result)
}
