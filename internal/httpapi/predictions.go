package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Skufu/thyrocheck/internal/prediction"
	"github.com/Skufu/thyrocheck/internal/reference"
)

func (h *Handler) createPrediction(c *gin.Context) {
	var req predictionRequest
	if !bindJSON(c, &req) {
		return
	}
	rec, problems := req.record()
	if len(problems) > 0 {
		validationFailed(c, problems)
		return
	}

	out, err := h.Predictions.Predict(c.Request.Context(), currentUser(c).ID, rec)
	if err != nil {
		h.internalError(c, "predict", err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *Handler) listPredictions(c *gin.Context) {
	limit := prediction.DefaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			validationFailed(c, []string{"limit must be a positive integer"})
			return
		}
		limit = n
	}

	list, err := h.Predictions.History(c.Request.Context(), currentUser(c).ID, limit)
	if err != nil {
		h.internalError(c, "list predictions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"predictions": list})
}

func (h *Handler) dashboard(c *gin.Context) {
	d, err := h.Predictions.Dashboard(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.internalError(c, "dashboard", err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) myDiet(c *gin.Context) {
	advice, err := h.Predictions.Diet(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.internalError(c, "diet", err)
		return
	}
	c.JSON(http.StatusOK, advice)
}

func (h *Handler) dietByCondition(c *gin.Context) {
	condition, err := reference.ParseCondition(c.Query("condition"))
	if err != nil {
		validationFailed(c, []string{"condition must be one of normal, hypothyroid, hyperthyroid"})
		return
	}
	pregnant := false
	if raw := c.Query("pregnant"); raw != "" {
		pregnant, err = strconv.ParseBool(raw)
		if err != nil {
			validationFailed(c, []string{"pregnant must be true or false"})
			return
		}
	}
	c.JSON(http.StatusOK, h.Tables.Diet(condition, pregnant))
}

func (h *Handler) createHealthRecord(c *gin.Context) {
	var req healthRecordRequest
	if !bindJSON(c, &req) {
		return
	}

	r, err := h.Predictions.AddHealthRecord(c.Request.Context(), currentUser(c).ID, req.RecordType, req.Title, req.Description)
	if errors.Is(err, prediction.ErrInvalidRecordType) {
		validationFailed(c, []string{"recordType must be one of lab_result, medication, symptom"})
		return
	}
	if err != nil {
		h.internalError(c, "save health record", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"healthRecord": r})
}

func (h *Handler) adminStats(c *gin.Context) {
	stats, err := h.Predictions.AdminStats(c.Request.Context())
	if err != nil {
		h.internalError(c, "admin stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
