package automation

import (
	"testing"

	"github.com/lifeos/memoryd/internal/domain"
	"github.com/lifeos/memoryd/internal/pkg/dbctx"
)

type fakeHighlightRepo struct {
	created []*domain.Highlight
	err     error
}

func (f *fakeHighlightRepo) Create(dbc dbctx.Context, highlight *domain.Highlight) error {
	if f.err != nil {
		return f.err
	}
	highlight.HighlightID = "highlight-1"
	f.created = append(f.created, highlight)
	return nil
}

func (f *fakeHighlightRepo) ListByUser(dbc dbctx.Context, userID string, limit, offset int) ([]*domain.Highlight, error) {
	return f.created, nil
}

func TestHighlightsSink_MissingUserIDShortCircuits(t *testing.T) {
	repo := &fakeHighlightRepo{}
	sink := NewHighlightsSink(testLogger(t), repo)

	result := sink.Record(dbctx.Context{}, "", "video-1")
	if result.Triggered {
		t.Fatalf("expected not triggered when user_id is missing")
	}
	if result.Reason != "No user_id provided" {
		t.Fatalf("unexpected reason: %q", result.Reason)
	}
	if len(repo.created) != 0 {
		t.Fatalf("expected no highlight to be created")
	}
}

func TestHighlightsSink_RecordsHighlight(t *testing.T) {
	repo := &fakeHighlightRepo{}
	sink := NewHighlightsSink(testLogger(t), repo)

	result := sink.Record(dbctx.Context{}, "user-1", "video-1")
	if !result.Triggered {
		t.Fatalf("expected triggered highlight")
	}
	if len(repo.created) != 1 || repo.created[0].UserID != "user-1" || repo.created[0].VideoID != "video-1" {
		t.Fatalf("unexpected created highlights: %+v", repo.created)
	}
}
