package automation

import (
	"github.com/lifeos/memoryd/internal/domain"
	"github.com/lifeos/memoryd/internal/pkg/dbctx"
	"github.com/lifeos/memoryd/internal/pkg/logger"
	"github.com/lifeos/memoryd/internal/repos"
)

// HighlightResult is what the automation controller records for the
// "highlights" automation.
type HighlightResult struct {
	Triggered   bool   `json:"triggered"`
	Reason      string `json:"reason,omitempty"`
	HighlightID string `json:"highlight_id,omitempty"`
}

// HighlightsSink records a video as a highlight. Duplicates are
// tolerated by design -- no dedupe check is performed.
type HighlightsSink struct {
	log  *logger.Logger
	repo repos.HighlightRepo
}

func NewHighlightsSink(log *logger.Logger, repo repos.HighlightRepo) *HighlightsSink {
	return &HighlightsSink{log: log.With("component", "HighlightsSink"), repo: repo}
}

func (s *HighlightsSink) Record(dbc dbctx.Context, userID, videoID string) HighlightResult {
	if userID == "" {
		return HighlightResult{Triggered: false, Reason: "No user_id provided"}
	}

	highlight := &domain.Highlight{UserID: userID, VideoID: videoID}
	if err := s.repo.Create(dbc, highlight); err != nil {
		s.log.Error("failed to record highlight", "user_id", userID, "video_id", videoID, "error", err)
		return HighlightResult{Triggered: false, Reason: "failed to persist highlight"}
	}
	return HighlightResult{Triggered: true, HighlightID: highlight.HighlightID}
}
