package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Skufu/thyrocheck/internal/auth"
	"github.com/Skufu/thyrocheck/internal/store"
	"github.com/Skufu/thyrocheck/internal/thyroid"
)

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}

	u, err := h.Auth.Register(c.Request.Context(), strings.TrimSpace(req.Username), strings.TrimSpace(req.Email), req.Password)
	switch {
	case errors.Is(err, store.ErrUsernameTaken):
		abortWithError(c, http.StatusConflict, "username_taken")
		return
	case errors.Is(err, store.ErrEmailTaken):
		abortWithError(c, http.StatusConflict, "email_taken")
		return
	case err != nil:
		h.internalError(c, "register user", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": u})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.Auth.Login(c.Request.Context(), req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		abortWithError(c, http.StatusUnauthorized, "invalid_credentials")
		return
	}
	if err != nil {
		h.internalError(c, "login", err)
		return
	}

	h.setSessionCookie(c, session.Token, int(h.SessionTTL.Seconds()))
	c.JSON(http.StatusOK, gin.H{
		"token":     session.Token,
		"expiresAt": session.ExpiresAt,
		"user":      session.User,
	})
}

func (h *Handler) logout(c *gin.Context) {
	h.setSessionCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

func (h *Handler) setSessionCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, value, maxAge, "/", "", h.SecureCookie, true)
}

func (h *Handler) profile(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": currentUser(c)})
}

func (h *Handler) updateProfile(c *gin.Context) {
	var req profileRequest
	if !bindJSON(c, &req) {
		return
	}

	p := store.Profile{Age: req.Age, Location: strings.TrimSpace(req.Location)}
	if req.Sex != "" {
		sex, err := thyroid.ParseSex(req.Sex)
		if err != nil {
			validationFailed(c, []string{"sex must be one of M, male, F, female"})
			return
		}
		p.Sex = string(sex)
	}

	u := currentUser(c)
	if err := h.Users.UpdateProfile(c.Request.Context(), u.ID, p); err != nil {
		h.internalError(c, "update profile", err)
		return
	}

	updated, err := h.Users.FindUserByID(c.Request.Context(), u.ID)
	if err != nil {
		h.internalError(c, "reload profile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": updated})
}
