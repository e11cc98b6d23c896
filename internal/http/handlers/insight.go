package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lifeos/memoryd/internal/domain"
	"github.com/lifeos/memoryd/internal/http/response"
	"github.com/lifeos/memoryd/internal/pkg/ctxutil"
	pkgerrors "github.com/lifeos/memoryd/internal/pkg/errors"
	"github.com/lifeos/memoryd/internal/pkg/logger"
	"github.com/lifeos/memoryd/internal/query"
)

const recentEventsLimit = 5

type InsightHandler struct {
	log     *logger.Logger
	service *query.Service
}

func NewInsightHandler(log *logger.Logger, service *query.Service) *InsightHandler {
	return &InsightHandler{log: log.With("handler", "InsightHandler"), service: service}
}

// Recent returns the 5 most recent videos plus a short text summary.
func (h *InsightHandler) Recent(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", pkgerrors.ErrUnauthorized)
		return
	}

	videos, err := h.service.ListVideos(c.Request.Context(), rd.UserID.String(), recentEventsLimit, 0)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	if len(videos) == 0 {
		response.RespondOK(c, gin.H{
			"message":       "No recent events found",
			"recent_events": []any{},
			"summary":       "No activities recorded recently.",
		})
		return
	}

	var lines []string
	for i, v := range videos {
		snippet := v.DetailedSummary
		if len(snippet) > 100 {
			snippet = snippet[:100]
		}
		lines = append(lines, fmt.Sprintf("%d. %s: %s...", i+1, v.Timestamp.Format(time.RFC3339), snippet))
	}
	summary := fmt.Sprintf("Recent activity summary (%d events):\n%s", len(videos), strings.Join(lines, "\n"))

	response.RespondOK(c, gin.H{
		"message":       fmt.Sprintf("Found %d recent events", len(videos)),
		"recent_events": videos,
		"summary":       summary,
	})
}

// Summary returns every video captured today plus a generated daily recap.
func (h *InsightHandler) Summary(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", pkgerrors.ErrUnauthorized)
		return
	}

	videos, err := h.service.ListVideos(c.Request.Context(), rd.UserID.String(), 1000, 0)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}

	today := time.Now().Format("2006-01-02")
	var todayVideos []*domain.Video
	for _, v := range videos {
		ts := v.Timestamp
		if ts.IsZero() {
			ts = v.Datetime
		}
		if ts.Format("2006-01-02") == today {
			todayVideos = append(todayVideos, v)
		}
	}

	if len(todayVideos) == 0 {
		response.RespondOK(c, gin.H{
			"date":        today,
			"message":     "No events recorded today",
			"events_count": 0,
			"events":      []any{},
			"daily_recap": fmt.Sprintf("No activities were recorded for %s. It was a quiet day!", today),
		})
		return
	}

	lines := []string{
		fmt.Sprintf("Daily Recap for %s:", today),
		fmt.Sprintf("Total events recorded: %d", len(todayVideos)),
		"",
		"Event Timeline:",
	}
	for _, v := range todayVideos {
		ts := v.Timestamp
		if ts.IsZero() {
			ts = v.Datetime
		}
		lines = append(lines, fmt.Sprintf("%s: %s", ts.Format("3:04 PM"), v.DetailedSummary))
	}
	lines = append(lines, "", "Day Summary:", fmt.Sprintf("You had %d recorded activities today.", len(todayVideos)))
	switch {
	case len(todayVideos) >= 10:
		lines = append(lines, "It was quite a busy day with lots of activities!")
	case len(todayVideos) >= 5:
		lines = append(lines, "You had a moderately active day.")
	default:
		lines = append(lines, "It was a relatively quiet day.")
	}

	response.RespondOK(c, gin.H{
		"date":         today,
		"message":      fmt.Sprintf("Found %d events for today", len(todayVideos)),
		"events_count": len(todayVideos),
		"events":       todayVideos,
		"daily_recap":  strings.Join(lines, "\n"),
	})
}
