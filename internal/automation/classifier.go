// Package automation classifies video summaries and dispatches the
// downstream automations: calendar extraction and highlight recording.
package automation

import (
	"context"
	"strings"

	"github.com/lifeos/memoryd/internal/clients/openai"
	"github.com/lifeos/memoryd/internal/pkg/logger"
)

// Label is one of the two automations the classifier may elect.
type Label string

const (
	LabelCalendar   Label = "calendar"
	LabelHighlights Label = "highlights"
)

// Classification is the classifier's verdict on a summary: which automations
// to dispatch, how confident it is, and why.
type Classification struct {
	TriggeredAutomations []Label            `json:"triggered_automations"`
	ConfidenceScores      map[Label]float64  `json:"confidence_scores"`
	Reasoning             string             `json:"reasoning"`
	SummaryClassification string            `json:"summary_classification"`
}

func (c Classification) Has(label Label) bool {
	for _, l := range c.TriggeredAutomations {
		if l == label {
			return true
		}
	}
	return false
}

// classifierSystemPrompt enumerates the two automation labels and their
// trigger rules.
const classifierSystemPrompt = `You are an AI assistant that analyzes video summaries to determine which automations should be triggered. There are exactly two automations available: "calendar" and "highlights".

Trigger "calendar" when the summary describes meetings, appointments, deadlines, scheduled events, calls, conferences, or reminders.

Trigger "highlights" when the summary describes memorable, fun, interesting, or achievement-worthy moments: celebrations, milestones, discoveries, or anything worth remembering as a personal highlight.

Always respond with valid JSON matching the requested schema.`

var classifierSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"triggered_automations": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string", "enum": []string{"calendar", "highlights"}},
		},
		"confidence_scores": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"calendar":   map[string]any{"type": "number"},
				"highlights": map[string]any{"type": "number"},
			},
			"required":             []string{"calendar", "highlights"},
			"additionalProperties": false,
		},
		"reasoning":              map[string]any{"type": "string"},
		"summary_classification": map[string]any{"type": "string"},
	},
	"required":             []string{"triggered_automations", "confidence_scores", "reasoning", "summary_classification"},
	"additionalProperties": false,
}

// calendarKeywords and highlightKeywords back the deterministic fallback
// classification.
var calendarKeywords = []string{
	"meeting", "appointment", "schedule", "call", "conference",
	"deadline", "due date", "reminder", "event", "presentation",
}

var highlightKeywords = []string{
	"important", "significant", "breakthrough", "achievement",
	"milestone", "success", "discovery", "insight", "memorable",
}

// Classifier calls the chat LLM to classify a summary, falling back to a
// deterministic keyword heuristic on JSON parse failure. A malformed LLM
// response must never abort the pipeline.
type Classifier struct {
	log  *logger.Logger
	chat openai.Client
}

func NewClassifier(log *logger.Logger, chat openai.Client) *Classifier {
	return &Classifier{log: log.With("component", "Classifier"), chat: chat}
}

func (c *Classifier) Classify(ctx context.Context, summary string) Classification {
	if c.chat != nil {
		obj, err := c.chat.GenerateJSON(ctx, classifierSystemPrompt, summary, "summary_classification", classifierSchema)
		if err == nil {
			if cls, ok := decodeClassification(obj); ok {
				return cls
			}
		}
		c.log.Warn("classifier LLM call failed or returned unparseable JSON, falling back to keyword heuristic", "error", err)
	}
	return keywordFallback(summary)
}

func decodeClassification(obj map[string]any) (Classification, bool) {
	rawLabels, ok := obj["triggered_automations"].([]any)
	if !ok {
		return Classification{}, false
	}
	var labels []Label
	for _, v := range rawLabels {
		s, ok := v.(string)
		if !ok {
			continue
		}
		switch Label(s) {
		case LabelCalendar, LabelHighlights:
			labels = append(labels, Label(s))
		}
	}
	scores := map[Label]float64{LabelCalendar: 0, LabelHighlights: 0}
	if rawScores, ok := obj["confidence_scores"].(map[string]any); ok {
		if v, ok := rawScores["calendar"].(float64); ok {
			scores[LabelCalendar] = v
		}
		if v, ok := rawScores["highlights"].(float64); ok {
			scores[LabelHighlights] = v
		}
	}
	reasoning, _ := obj["reasoning"].(string)
	classification, _ := obj["summary_classification"].(string)
	return Classification{
		TriggeredAutomations:   labels,
		ConfidenceScores:       scores,
		Reasoning:              reasoning,
		SummaryClassification: classification,
	}, true
}

// keywordFallback is the deterministic classification used when the LLM
// call fails entirely or returns unparseable JSON.
func keywordFallback(summary string) Classification {
	lower := strings.ToLower(summary)
	var labels []Label
	if containsAny(lower, calendarKeywords) {
		labels = append(labels, LabelCalendar)
	}
	if containsAny(lower, highlightKeywords) {
		labels = append(labels, LabelHighlights)
	}
	return Classification{
		TriggeredAutomations:   labels,
		ConfidenceScores:       map[Label]float64{LabelCalendar: 0, LabelHighlights: 0},
		Reasoning:              "keyword fallback used, LLM classification unavailable",
		SummaryClassification: "general",
	}
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
