package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lifeos/memoryd/internal/auth"
	"github.com/lifeos/memoryd/internal/http/response"
	"github.com/lifeos/memoryd/internal/pkg/ctxutil"
	pkgerrors "github.com/lifeos/memoryd/internal/pkg/errors"
	"github.com/lifeos/memoryd/internal/pkg/logger"
)

type AuthHandler struct {
	log     *logger.Logger
	service auth.Service
}

func NewAuthHandler(log *logger.Logger, service auth.Service) *AuthHandler {
	return &AuthHandler{log: log.With("handler", "AuthHandler"), service: service}
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	token, user, err := h.service.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if stderrors.Is(err, auth.ErrUsernameTaken) {
			response.RespondError(c, http.StatusBadRequest, "username_taken", err)
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "register_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"token": token, "user": user})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	token, user, err := h.service.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if stderrors.Is(err, auth.ErrInvalidCredentials) {
			response.RespondError(c, http.StatusUnauthorized, "invalid_credentials", err)
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "login_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"token": token, "user": user})
}

func (h *AuthHandler) Me(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", pkgerrors.ErrUnauthorized)
		return
	}
	user, err := h.service.Me(c.Request.Context(), rd.UserID.String())
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "lookup_failed", err)
		return
	}
	if user == nil {
		response.RespondError(c, http.StatusNotFound, "not_found", pkgerrors.ErrNotFound)
		return
	}
	response.RespondOK(c, user)
}
