package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/jsonc"

	"github.com/sjawhar/roomline/internal/catalog"
	"github.com/sjawhar/roomline/internal/llm"
)

var errNoRequests = errors.New("response holds no request list")

const extractionPrompt = `Extract every distinct service request from the hotel call summary below.

Respond with JSON only, no prose, in this shape:
{"requests": [{"category": "<category>", "request": "<what the guest asked for>", "details": {"date": "YYYY-MM-DD", "time": "HH:MM", "party_size": 1, "location": "", "amount": 0, "room_number": "", "notes": ""}}]}

category must be one of: %s.
Fill every details field. When a value is only implied or partly given, infer the most likely value:
today is %s, so a date given only as month and day takes the year that puts it on or after today,
"tonight" means today, and the room number comes from the summary header.
Use "Not specified" for a text field and 0 for a number only when nothing supports an inference.
Return {"requests": []} when there are none.

Summary:
%s`

// Extractor turns summary text into structured service requests.
type Extractor struct {
	client  llm.Client
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewExtractor returns an extractor; with a nil client every extraction
// yields an empty list.
func NewExtractor(client llm.Client, timeout time.Duration, logger *slog.Logger) *Extractor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{client: client, timeout: timeout, logger: logger, now: time.Now}
}

// Extract never fails; any problem yields an empty, non-nil list.
func (e *Extractor) Extract(ctx context.Context, summaryText string) []ServiceRequest {
	if e == nil || e.client == nil || strings.TrimSpace(summaryText) == "" {
		return []ServiceRequest{}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	categories := make([]string, 0, len(catalog.All()))
	for _, c := range catalog.All() {
		categories = append(categories, string(c))
	}

	raw, err := e.client.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "user", Content: fmt.Sprintf(extractionPrompt, strings.Join(categories, ", "), e.now().Format("2006-01-02"), summaryText)},
		},
		MaxTokens:   summaryMaxTokens,
		Temperature: 0,
		JSON:        true,
	})
	if err != nil {
		e.logger.Warn("extract: generator failed", "error", err)
		return []ServiceRequest{}
	}

	requests, err := ParseRequests(raw)
	if err != nil {
		e.logger.Warn("extract: unparseable response", "error", err)
		return []ServiceRequest{}
	}
	return requests
}

// ParseRequests reads a generator response that is either a bare JSON array
// or an object with a "requests" array. Code fences, comments and trailing
// commas are tolerated.
func ParseRequests(raw string) ([]ServiceRequest, error) {
	cleaned := jsonc.ToJSON([]byte(stripFences(raw)))
	if !gjson.ValidBytes(cleaned) {
		return nil, fmt.Errorf("parse requests: invalid JSON")
	}

	root := gjson.ParseBytes(cleaned)
	list := root
	if root.IsObject() {
		list = root.Get("requests")
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("parse requests: %w", errNoRequests)
	}

	requests := []ServiceRequest{}
	for _, item := range list.Array() {
		if !item.IsObject() {
			continue
		}
		details := item.Get("details")
		req := ServiceRequest{
			Category: catalog.ParseOr(item.Get("category").String(), catalog.Other),
			FreeText: strings.TrimSpace(first(item, "request", "free_text", "freeText", "description").String()),
			Details: Details{
				Date:       strings.TrimSpace(details.Get("date").String()),
				Time:       strings.TrimSpace(details.Get("time").String()),
				Location:   strings.TrimSpace(details.Get("location").String()),
				RoomNumber: strings.TrimSpace(first(details, "room_number", "roomNumber").String()),
				Notes:      strings.TrimSpace(details.Get("notes").String()),
			},
		}
		if v := first(details, "party_size", "partySize"); v.Type == gjson.Number && v.Int() > 0 {
			n := int(v.Int())
			req.Details.PartySize = &n
		}
		if v := details.Get("amount"); v.Type == gjson.Number && v.Float() > 0 {
			f := v.Float()
			req.Details.Amount = &f
		}
		requests = append(requests, req)
	}
	return requests, nil
}

func first(r gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if v := r.Get(k); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
