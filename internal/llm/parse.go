package llm

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/xaenox/voicememo/internal/errs"
	"github.com/xaenox/voicememo/internal/models"
)

// ExtractJSON returns the JSON object or array embedded in a model reply:
// the text between the first '{' or '[' and the matching last '}' or ']'.
// Code fences and surrounding prose are dropped.
func ExtractJSON(s string) (string, bool) {
	raw := strings.TrimSpace(s)
	if strings.HasPrefix(raw, "```") {
		rest := strings.TrimPrefix(raw, "```")
		if i := strings.Index(rest, "\n"); i >= 0 {
			rest = rest[i+1:]
		}
		if j := strings.LastIndex(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		raw = strings.TrimSpace(rest)
	}

	start := strings.IndexAny(raw, "{[")
	if start < 0 {
		return "", false
	}
	closer := "}"
	if raw[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(raw, closer)
	if end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

func decodeObject(reply string, out any) error {
	body, ok := ExtractJSON(reply)
	if !ok || !strings.HasPrefix(body, "{") {
		return fmt.Errorf("%w: no JSON object in reply", errs.ErrDecodeFailure)
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrDecodeFailure, err)
	}
	return nil
}

func decodeStringArray(reply string) ([]string, error) {
	body, ok := ExtractJSON(reply)
	if !ok || !gjson.Valid(body) {
		return nil, fmt.Errorf("%w: no JSON array in reply", errs.ErrDecodeFailure)
	}
	list := gjson.Parse(body)
	if list.IsObject() {
		// some models wrap the list: {"items": [...]}
		var found gjson.Result
		list.ForEach(func(_, v gjson.Result) bool {
			if v.IsArray() {
				found = v
				return false
			}
			return true
		})
		list = found
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("%w: reply is not a list", errs.ErrDecodeFailure)
	}

	var items []string
	for _, item := range list.Array() {
		if item.IsObject() {
			for _, field := range []string{"text", "task", "item", "description", "title"} {
				if v := item.Get(field); v.Exists() {
					items = append(items, v.String())
					break
				}
			}
			continue
		}
		items = append(items, item.String())
	}
	return cleanList(items), nil
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if t := strings.TrimSpace(it); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// ParseIntent decodes an intent classification reply. Anything that is not
// a JSON object with a known action yields the unknown intent; it never fails.
func ParseIntent(reply string, now time.Time) models.DetectedIntent {
	body, ok := ExtractJSON(reply)
	if !ok || !gjson.Valid(body) {
		return models.UnknownIntent()
	}
	root := gjson.Parse(body)
	if !root.IsObject() {
		return models.UnknownIntent()
	}

	intent := models.DetectedIntent{
		Action:     models.ParseAction(strings.ToLower(strings.TrimSpace(root.Get("action").String()))),
		EntityType: nullableString(root.Get("entity_type")),
		EntityID:   nullableString(root.Get("entity_id")),
		EntityName: nullableString(root.Get("entity_name")),
	}
	if intent.Action == models.ActionUnknown {
		return intent
	}
	if ref, ok := parseTimeReference(root.Get("time_reference"), now); ok {
		intent.Time = &ref
	}
	return intent
}

func nullableString(r gjson.Result) string {
	if !r.Exists() || r.Type == gjson.Null {
		return ""
	}
	s := strings.TrimSpace(r.String())
	if strings.EqualFold(s, "null") || strings.EqualFold(s, "none") {
		return ""
	}
	return s
}

// parseTimeReference accepts either {"type": "...", "date": ...} or a bare
// kind string. A specific or range reference missing its dates is dropped.
func parseTimeReference(r gjson.Result, now time.Time) (models.TimeReference, bool) {
	if !r.Exists() || r.Type == gjson.Null {
		return models.TimeReference{}, false
	}
	kind := r.String()
	if r.IsObject() {
		kind = r.Get("type").String()
	}
	kind = strings.ToLower(strings.TrimSpace(kind))
	kind = strings.NewReplacer(" ", "_", "-", "_").Replace(kind)

	switch models.TimeKind(kind) {
	case models.TimeSpecificDate:
		d, ok := parseDate(r.Get("date").String(), now)
		if !ok {
			return models.TimeReference{}, false
		}
		return models.SpecificDate(d), true
	case models.TimeDateRange:
		start, okStart := parseDate(r.Get("start").String(), now)
		end, okEnd := parseDate(r.Get("end").String(), now)
		if !okStart || !okEnd {
			return models.TimeReference{}, false
		}
		return models.DateRange(start, end), true
	case models.TimeRelative:
		if off := r.Get("offset_days"); off.Exists() {
			return models.RelativeDays(int(off.Int())), true
		}
		if d, ok := parseDate(r.Get("date").String(), now); ok {
			days := int(math.Round(models.StartOfDay(d).Sub(models.StartOfDay(now)).Hours() / 24))
			return models.RelativeDays(days), true
		}
		return models.TimeReference{}, false
	}

	ref, err := models.NewTimeReference(models.TimeKind(kind))
	if err != nil {
		return models.TimeReference{}, false
	}
	return ref, true
}

func parseDate(s string, now time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(now.Location()), true
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, now.Location()); err == nil {
		return t, true
	}
	return time.Time{}, false
}
