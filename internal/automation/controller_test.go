package automation

import (
	"context"
	"testing"
)

func TestController_DispatchFansOutCalendarAndHighlights(t *testing.T) {
	fakeChat := &fakeChatClient{
		jsonResponse: map[string]any{
			"has_event":        true,
			"title":            "Standup",
			"description":      "Daily sync",
			"date_phrase":      "tomorrow",
			"time_phrase":      "morning",
			"duration_minutes": float64(30),
			"location":         "",
		},
	}
	repo := &fakeHighlightRepo{}
	c := NewController(testLogger(t), fakeChat, nil, repo)
	// Classify() with a real chat client isn't exercised here since fakeChat
	// always returns the same JSON regardless of prompt; force both labels
	// through the keyword fallback path instead by using a summary that
	// trips both classifiers' keyword lists.
	c.classifier.chat = nil

	result := c.Dispatch(context.Background(), "user-1", "video-1", "Important meeting scheduled for tomorrow, what a significant achievement.")

	if !result.Classification.Has(LabelCalendar) || !result.Classification.Has(LabelHighlights) {
		t.Fatalf("expected both labels triggered, got %+v", result.Classification.TriggeredAutomations)
	}
	calendarOutcome, ok := result.Outcomes[LabelCalendar]
	if !ok || calendarOutcome.Status != "triggered" {
		t.Fatalf("expected triggered calendar outcome, got %+v", calendarOutcome)
	}
	highlightOutcome, ok := result.Outcomes[LabelHighlights]
	if !ok || highlightOutcome.Status != "triggered" {
		t.Fatalf("expected triggered highlight outcome, got %+v", highlightOutcome)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one highlight to be recorded, got %d", len(repo.created))
	}
}

func TestController_DispatchSkipsUntriggeredLabels(t *testing.T) {
	repo := &fakeHighlightRepo{}
	c := NewController(testLogger(t), nil, nil, repo)

	result := c.Dispatch(context.Background(), "user-1", "video-1", "Just sat on the couch watching the rain.")

	if len(result.Classification.TriggeredAutomations) != 0 {
		t.Fatalf("expected no automations triggered, got %+v", result.Classification.TriggeredAutomations)
	}
	if len(result.Outcomes) != 0 {
		t.Fatalf("expected no outcomes recorded, got %+v", result.Outcomes)
	}
	if len(repo.created) != 0 {
		t.Fatalf("expected no highlight recorded")
	}
}
