package automation

import (
	"context"
	"testing"
	"time"
)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCalendarExtractor_ResolveDateTime_NamedPartsOfDay(t *testing.T) {
	e := &CalendarExtractor{now: fixedNow(time.Date(2026, 7, 29, 8, 0, 0, 0, newYorkLocation))}

	got := e.resolveDateTime("tomorrow", "morning")
	want := time.Date(2026, 7, 30, 9, 0, 0, 0, newYorkLocation)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestCalendarExtractor_ResolveDateTime_Weekday(t *testing.T) {
	// 2026-07-29 is a Wednesday.
	e := &CalendarExtractor{now: fixedNow(time.Date(2026, 7, 29, 8, 0, 0, 0, newYorkLocation))}

	got := e.resolveDateTime("wednesday", "2pm")
	want := time.Date(2026, 8, 5, 14, 0, 0, 0, newYorkLocation)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestCalendarExtractor_ResolveDateTime_ISODateReHomedToCurrentYear(t *testing.T) {
	e := &CalendarExtractor{now: fixedNow(time.Date(2026, 7, 29, 8, 0, 0, 0, newYorkLocation))}

	got := e.resolveDateTime("2024-03-15", "9:30am")
	want := time.Date(2026, 3, 15, 9, 30, 0, 0, newYorkLocation)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestCalendarExtractor_ResolveDateTime_DefaultHourWhenTimeUnparseable(t *testing.T) {
	e := &CalendarExtractor{now: fixedNow(time.Date(2026, 7, 29, 8, 0, 0, 0, newYorkLocation))}

	got := e.resolveDateTime("next week", "sometime")
	want := time.Date(2026, 8, 5, 10, 0, 0, 0, newYorkLocation)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestCalendarExtractor_Extract_SimulatesEventWithoutPoster(t *testing.T) {
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
	e := NewCalendarExtractor(testLogger(t), fakeChat, nil)
	e.now = fixedNow(time.Date(2026, 7, 29, 8, 0, 0, 0, newYorkLocation))

	result := e.Extract(context.Background(), "We have a standup tomorrow morning")
	if !result.Triggered || !result.Simulated {
		t.Fatalf("expected simulated triggered event, got %+v", result)
	}
	if result.EventID == "" {
		t.Fatalf("expected a simulated event id")
	}
}

func TestCalendarExtractor_Extract_EmptySummarySkipsLLM(t *testing.T) {
	fakeChat := &fakeChatClient{}
	e := NewCalendarExtractor(testLogger(t), fakeChat, nil)

	result := e.Extract(context.Background(), "   ")
	if result.Triggered {
		t.Fatalf("expected no event for an empty summary, got %+v", result)
	}
	if fakeChat.jsonCalls != 0 {
		t.Fatalf("expected no LLM call for an empty summary, got %d", fakeChat.jsonCalls)
	}
}

type fakeChatClient struct {
	jsonResponse map[string]any
	jsonErr      error
	jsonCalls    int
	text         string
	textErr      error
}

func (f *fakeChatClient) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	return nil, nil
}

func (f *fakeChatClient) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	f.jsonCalls++
	return f.jsonResponse, f.jsonErr
}

func (f *fakeChatClient) GenerateText(ctx context.Context, system, user string) (string, error) {
	return f.text, f.textErr
}
