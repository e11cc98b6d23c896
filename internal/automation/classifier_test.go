package automation

import (
	"context"
	"testing"

	"github.com/lifeos/memoryd/internal/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func TestClassifier_NoChatClientFallsBackToKeywords(t *testing.T) {
	c := NewClassifier(testLogger(t), nil)

	result := c.Classify(context.Background(), "Reminder: team meeting with the conference room booked for tomorrow.")
	if !result.Has(LabelCalendar) {
		t.Fatalf("expected calendar label from keyword fallback, got %+v", result.TriggeredAutomations)
	}
	if result.Has(LabelHighlights) {
		t.Fatalf("did not expect highlights label, got %+v", result.TriggeredAutomations)
	}
}

func TestClassifier_KeywordFallbackDetectsHighlights(t *testing.T) {
	c := NewClassifier(testLogger(t), nil)

	result := c.Classify(context.Background(), "What a significant breakthrough and memorable achievement today!")
	if !result.Has(LabelHighlights) {
		t.Fatalf("expected highlights label, got %+v", result.TriggeredAutomations)
	}
	if result.Has(LabelCalendar) {
		t.Fatalf("did not expect calendar label, got %+v", result.TriggeredAutomations)
	}
}

func TestClassifier_KeywordFallbackNoMatch(t *testing.T) {
	c := NewClassifier(testLogger(t), nil)

	result := c.Classify(context.Background(), "Just sat on the couch watching the rain.")
	if len(result.TriggeredAutomations) != 0 {
		t.Fatalf("expected no automations triggered, got %+v", result.TriggeredAutomations)
	}
}
