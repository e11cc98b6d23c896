package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lifeos/memoryd/internal/http/response"
	"github.com/lifeos/memoryd/internal/pkg/ctxutil"
	"github.com/lifeos/memoryd/internal/pkg/dbctx"
	pkgerrors "github.com/lifeos/memoryd/internal/pkg/errors"
	"github.com/lifeos/memoryd/internal/pkg/logger"
	"github.com/lifeos/memoryd/internal/query"
	"github.com/lifeos/memoryd/internal/repos"
)

type HighlightHandler struct {
	log           *logger.Logger
	highlightRepo repos.HighlightRepo
	query         *query.Service
}

func NewHighlightHandler(log *logger.Logger, highlightRepo repos.HighlightRepo, querySvc *query.Service) *HighlightHandler {
	return &HighlightHandler{log: log.With("handler", "HighlightHandler"), highlightRepo: highlightRepo, query: querySvc}
}

// List returns every highlighted video for the caller, full video data
// joined in and the s3 link presigned, newest first.
func (h *HighlightHandler) List(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", pkgerrors.ErrUnauthorized)
		return
	}

	highlights, err := h.highlightRepo.ListByUser(dbctx.Context{Ctx: c.Request.Context()}, rd.UserID.String(), 0, 0)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}

	type highlightEntry struct {
		HighlightID string `json:"highlight_id"`
		CreatedAt   string `json:"created_at"`
		Video       any    `json:"videos"`
	}

	out := make([]highlightEntry, 0, len(highlights))
	for _, highlight := range highlights {
		video, err := h.query.GetVideo(c.Request.Context(), rd.UserID.String(), highlight.VideoID)
		if err != nil {
			h.log.Warn("failed to enrich highlight with video data", "video_id", highlight.VideoID, "error", err)
			continue
		}
		if video == nil {
			h.log.Warn("highlighted video no longer exists", "video_id", highlight.VideoID)
			continue
		}
		out = append(out, highlightEntry{
			HighlightID: highlight.HighlightID,
			CreatedAt:   highlight.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			Video:       video,
		})
	}

	response.RespondOK(c, gin.H{"highlights": out, "total": len(out)})
}
