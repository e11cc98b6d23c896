package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lifeos/memoryd/internal/domain"
	"github.com/lifeos/memoryd/internal/http/response"
	"github.com/lifeos/memoryd/internal/pkg/ctxutil"
	pkgerrors "github.com/lifeos/memoryd/internal/pkg/errors"
	"github.com/lifeos/memoryd/internal/pkg/logger"
	"github.com/lifeos/memoryd/internal/query"
)

// MemoryHandler is the memory create/search/chatbot/delete surface.
type MemoryHandler struct {
	log     *logger.Logger
	service *query.Service
}

func NewMemoryHandler(log *logger.Logger, service *query.Service) *MemoryHandler {
	return &MemoryHandler{log: log.With("handler", "MemoryHandler"), service: service}
}

// Create stores a memory directly from caller-supplied content, bypassing
// the capture pipeline. Only the vector point is written.
func (h *MemoryHandler) Create(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", pkgerrors.ErrUnauthorized)
		return
	}

	var req domain.CreateMemoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	memory, err := h.service.CreateMemory(c.Request.Context(), rd.UserID.String(), req)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "create_failed", err)
		return
	}
	response.RespondOK(c, memory)
}

func (h *MemoryHandler) Search(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", pkgerrors.ErrUnauthorized)
		return
	}

	var req domain.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	// user_id is always the authenticated caller, never a value from the
	// request body.
	resp, err := h.service.Search(c.Request.Context(), rd.UserID.String(), req)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "search_failed", err)
		return
	}
	response.RespondOK(c, resp)
}

func (h *MemoryHandler) Chatbot(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", pkgerrors.ErrUnauthorized)
		return
	}

	var req domain.ChatbotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	resp, err := h.service.Chatbot(c.Request.Context(), rd.UserID.String(), req)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "chatbot_failed", err)
		return
	}
	response.RespondOK(c, resp)
}

type memoryDeleteRequest struct {
	MemoryIDs []string `json:"memory_ids" binding:"required"`
}

// Delete removes a batch of memories (relational row + vector point) owned
// by the caller. Each id is independent: a not-found or not-owned id counts
// as a failure without aborting the rest of the batch.
func (h *MemoryHandler) Delete(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", pkgerrors.ErrUnauthorized)
		return
	}

	var req memoryDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	deletedCount, failedCount := 0, 0
	errs := make([]string, 0)
	for _, id := range req.MemoryIDs {
		found, err := h.service.DeleteVideo(c.Request.Context(), rd.UserID.String(), id)
		switch {
		case err != nil:
			failedCount++
			errs = append(errs, id+": "+err.Error())
		case !found:
			failedCount++
			errs = append(errs, id+": not found")
		default:
			deletedCount++
		}
	}

	response.RespondOK(c, gin.H{
		"deleted_count": deletedCount,
		"failed_count":  failedCount,
		"errors":        errs,
	})
}
