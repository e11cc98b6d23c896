package automation

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lifeos/memoryd/internal/clients/openai"
	"github.com/lifeos/memoryd/internal/pkg/logger"
)

// CalendarEvent is the structured result of extracting a schedulable event
// out of a video summary.
type CalendarEvent struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Location    string    `json:"location,omitempty"`
}

// CalendarResult is what the automation controller records for the
// "calendar" automation.
type CalendarResult struct {
	Triggered bool           `json:"triggered"`
	Reason    string         `json:"reason,omitempty"`
	EventID   string         `json:"event_id,omitempty"`
	Event     *CalendarEvent `json:"event,omitempty"`
	Simulated bool           `json:"simulated"`
}

// CalendarPoster posts an extracted event to an external calendar. Absence
// of a real collaborator (no credentials configured) degrades to a
// simulated event id rather than failing the automation.
type CalendarPoster interface {
	CreateEvent(ctx context.Context, event CalendarEvent) (eventID string, err error)
}

var newYorkLocation = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.UTC
	}
	return loc
}()

const extractorSystemPrompt = `You extract a single schedulable event from a video summary. Identify the event title, a short description, the date phrase, the time phrase, an optional duration in minutes, and an optional location. If no schedulable event is present, set "has_event" to false.`

var extractorSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"has_event":   map[string]any{"type": "boolean"},
		"title":       map[string]any{"type": "string"},
		"description": map[string]any{"type": "string"},
		"date_phrase": map[string]any{"type": "string"},
		"time_phrase": map[string]any{"type": "string"},
		"duration_minutes": map[string]any{"type": "number"},
		"location":    map[string]any{"type": "string"},
	},
	"required":             []string{"has_event", "title", "description", "date_phrase", "time_phrase", "duration_minutes", "location"},
	"additionalProperties": false,
}

// CalendarExtractor turns a summary into a CalendarEvent, then either
// posts it through a real collaborator or simulates a local event id.
type CalendarExtractor struct {
	log    *logger.Logger
	chat   openai.Client
	poster CalendarPoster
	now    func() time.Time
}

func NewCalendarExtractor(log *logger.Logger, chat openai.Client, poster CalendarPoster) *CalendarExtractor {
	return &CalendarExtractor{
		log:    log.With("component", "CalendarExtractor"),
		chat:   chat,
		poster: poster,
		now:    time.Now,
	}
}

func (e *CalendarExtractor) Extract(ctx context.Context, summary string) CalendarResult {
	if strings.TrimSpace(summary) == "" {
		return CalendarResult{Triggered: false, Reason: "empty summary"}
	}
	if e.chat == nil {
		return CalendarResult{Triggered: false, Reason: "no chat client configured"}
	}

	obj, err := e.chat.GenerateJSON(ctx, extractorSystemPrompt, summary, "calendar_event", extractorSchema)
	if err != nil {
		e.log.Warn("calendar extraction call failed", "error", err)
		return CalendarResult{Triggered: false, Reason: "extraction call failed"}
	}
	hasEvent, _ := obj["has_event"].(bool)
	if !hasEvent {
		return CalendarResult{Triggered: false, Reason: "no schedulable event found in summary"}
	}

	title, _ := obj["title"].(string)
	description, _ := obj["description"].(string)
	datePhrase, _ := obj["date_phrase"].(string)
	timePhrase, _ := obj["time_phrase"].(string)
	location, _ := obj["location"].(string)
	durationMinutes := 60.0
	if v, ok := obj["duration_minutes"].(float64); ok && v > 0 {
		durationMinutes = v
	}

	start := e.resolveDateTime(datePhrase, timePhrase)
	end := start.Add(time.Duration(durationMinutes) * time.Minute)

	event := CalendarEvent{
		Title:       title,
		Description: description,
		StartTime:   start,
		EndTime:     end,
		Location:    location,
	}

	if e.poster != nil {
		eventID, err := e.poster.CreateEvent(ctx, event)
		if err == nil {
			return CalendarResult{Triggered: true, EventID: eventID, Event: &event, Simulated: false}
		}
		e.log.Warn("calendar poster failed, falling back to simulated event", "error", err)
	}

	eventID := fmt.Sprintf("lifeos_event_%d", e.now().UnixMilli())
	return CalendarResult{Triggered: true, EventID: eventID, Event: &event, Simulated: true}
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

var isoDateRe = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
var clockTimeRe = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*(am|pm)?$`)

// resolveDateTime implements the date/time parsing rules: today, tomorrow,
// next week, next month, weekday names, and ISO dates for the date phrase;
// named parts of day, 12h, and 24h clock times for the time phrase. All
// results are produced in America/New_York.
func (e *CalendarExtractor) resolveDateTime(datePhrase, timePhrase string) time.Time {
	now := e.now().In(newYorkLocation)
	date := e.resolveDate(now, strings.ToLower(strings.TrimSpace(datePhrase)))
	hour, minute := resolveTime(strings.ToLower(strings.TrimSpace(timePhrase)))
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, newYorkLocation)
}

func (e *CalendarExtractor) resolveDate(now time.Time, phrase string) time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, newYorkLocation)

	switch phrase {
	case "", "today":
		return today
	case "tomorrow":
		return today.AddDate(0, 0, 1)
	case "next week":
		return today.AddDate(0, 0, 7)
	case "next month":
		return today.AddDate(0, 1, 0)
	}

	if wd, ok := weekdayNames[phrase]; ok {
		delta := int(wd) - int(today.Weekday())
		if delta <= 0 {
			delta += 7
		}
		return today.AddDate(0, 0, delta)
	}

	if m := isoDateRe.FindStringSubmatch(phrase); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if year < now.Year() {
			year = now.Year()
		}
		return time.Date(year, time.Month(month), day, 0, 0, 0, 0, newYorkLocation)
	}

	return today
}

// resolveTime returns the hour/minute for a time phrase. A phrase that names
// a time-of-day but whose clock portion fails to parse still defaults the
// hour to 10.
func resolveTime(phrase string) (int, int) {
	switch phrase {
	case "morning":
		return 9, 0
	case "afternoon":
		return 14, 0
	case "evening":
		return 18, 0
	case "night":
		return 20, 0
	case "":
		return 10, 0
	}

	m := clockTimeRe.FindStringSubmatch(phrase)
	if m == nil {
		return 10, 0
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil {
		return 10, 0
	}
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	switch m[3] {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	if hour < 0 || hour > 23 {
		return 10, 0
	}
	return hour, minute
}
