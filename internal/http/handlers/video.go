package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lifeos/memoryd/internal/domain"
	"github.com/lifeos/memoryd/internal/http/response"
	"github.com/lifeos/memoryd/internal/pkg/ctxutil"
	pkgerrors "github.com/lifeos/memoryd/internal/pkg/errors"
	"github.com/lifeos/memoryd/internal/pkg/logger"
	"github.com/lifeos/memoryd/internal/query"
)

type VideoHandler struct {
	log     *logger.Logger
	service *query.Service
}

func NewVideoHandler(log *logger.Logger, service *query.Service) *VideoHandler {
	return &VideoHandler{log: log.With("handler", "VideoHandler"), service: service}
}

func (h *VideoHandler) List(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", pkgerrors.ErrUnauthorized)
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit <= 0 {
		limit = 50
	}
	offset, _ := strconv.Atoi(c.Query("offset"))

	videos, err := h.service.ListVideos(c.Request.Context(), rd.UserID.String(), limit, offset)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	if videos == nil {
		videos = []*domain.Video{}
	}
	response.RespondOK(c, videos)
}

func (h *VideoHandler) Get(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", pkgerrors.ErrUnauthorized)
		return
	}

	video, err := h.service.GetVideo(c.Request.Context(), rd.UserID.String(), c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "get_failed", err)
		return
	}
	if video == nil {
		response.RespondError(c, http.StatusNotFound, "not_found", pkgerrors.ErrNotFound)
		return
	}
	response.RespondOK(c, video)
}

func (h *VideoHandler) Delete(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", pkgerrors.ErrUnauthorized)
		return
	}

	found, err := h.service.DeleteVideo(c.Request.Context(), rd.UserID.String(), c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "delete_failed", err)
		return
	}
	if !found {
		response.RespondError(c, http.StatusNotFound, "not_found", pkgerrors.ErrNotFound)
		return
	}
	response.RespondOK(c, gin.H{"message": "Video deleted successfully"})
}
