package wav

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// FieldKind is the JSON type a schema field expects.
type FieldKind int

const (
	KindString FieldKind = iota
	KindStringList
	KindInt
	KindBool
)

// Field describes one field of the event record: its JSON name, type,
// whether the generator must produce it, and its length constraints.
type Field struct {
	Name       string
	Kind       FieldKind
	Required   bool
	MaxLen     int // max characters for a string field
	MinItems   int
	MaxItems   int
	ItemMaxLen int // max characters per list item
}

// EventFields is the authoritative field set for the event record. Validation
// walks this list explicitly instead of relying on struct tags, so failures
// come back as an enumerable issue list.
var EventFields = []Field{
	{Name: "brand", Kind: KindString, Required: true, MaxLen: 50},
	{Name: "title", Kind: KindString, Required: true, MaxLen: 60},
	{Name: "slug", Kind: KindString, Required: true, MaxLen: 80},
	{Name: "category", Kind: KindString, Required: true},
	{Name: "summary", Kind: KindString, Required: true, MaxLen: 160},
	{Name: "description", Kind: KindString, Required: true, MaxLen: 800},
	{Name: "highlights", Kind: KindStringList, Required: true, MinItems: 3, MaxItems: 5, ItemMaxLen: 100},
	{Name: "keywords", Kind: KindStringList, Required: true, MinItems: 5, MaxItems: 10, ItemMaxLen: 80},
	{Name: "year", Kind: KindInt},
	{Name: "hashtags", Kind: KindStringList, MinItems: 5, MaxItems: 15, ItemMaxLen: 80},
	{Name: "instagram_hook", Kind: KindString, MaxLen: 100},
	{Name: "instagram_body", Kind: KindString, MaxLen: 1000},
	{Name: "instagram_closing", Kind: KindString, MaxLen: 200},
	{Name: "instagram_hashtags", Kind: KindString, MaxLen: 400},
	{Name: "alt_instagram", Kind: KindString, MaxLen: 1000},
	{Name: "linkedin_post", Kind: KindString, MaxLen: 1300},
	{Name: "linkedin_article", Kind: KindString, MaxLen: 3000},
	{Name: "alt_title_1", Kind: KindString, MaxLen: 60},
	{Name: "alt_title_2", Kind: KindString, MaxLen: 60},
	{Name: "needs_review", Kind: KindBool},
}

// Issue is one validation failure for a single field.
type Issue struct {
	Field  string
	Reason string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Field, i.Reason)
}

// ValidationResult is the outcome of checking raw model output against
// EventFields. Errors is non-empty when a required field is missing or has
// the wrong type; Filled and Truncated list the adjustments made to optional
// or over-length fields, and Dropped the unknown fields that were discarded.
type ValidationResult struct {
	Event     *Event
	Errors    []Issue
	Filled    []string
	Truncated []string
	Dropped   []string
}

// OK reports whether the raw output passed validation.
func (r *ValidationResult) OK() bool {
	return len(r.Errors) == 0
}

// Adjusted reports whether validation had to fill or truncate any field.
// Any adjustment must flip the record's needs_review flag.
func (r *ValidationResult) Adjusted() bool {
	return len(r.Filled) > 0 || len(r.Truncated) > 0
}

// ValidateEvent checks raw model output against EventFields and, when the
// required fields are intact, assembles the event record. Unknown fields are
// dropped, missing optional fields filled with an empty sentinel, over-length
// values truncated to the field cap. The raw input is preserved verbatim on
// the resulting event.
func ValidateEvent(raw json.RawMessage) (*ValidationResult, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("model output is not a JSON object: %w", err)
	}

	result := &ValidationResult{}
	cleaned := make(map[string]any, len(EventFields))

	for _, spec := range EventFields {
		value, present := fields[spec.Name]
		delete(fields, spec.Name)

		if !present || string(value) == "null" {
			if spec.Required {
				result.Errors = append(result.Errors, Issue{Field: spec.Name, Reason: "required field missing"})
				continue
			}
			cleaned[spec.Name] = sentinelFor(spec.Kind)
			if spec.Kind != KindBool {
				result.Filled = append(result.Filled, spec.Name)
			}
			continue
		}

		switch spec.Kind {
		case KindString:
			var s string
			if err := json.Unmarshal(value, &s); err != nil {
				result.addTypeIssue(spec, "string")
				continue
			}
			if spec.MaxLen > 0 && len([]rune(s)) > spec.MaxLen {
				s = string([]rune(s)[:spec.MaxLen])
				result.Truncated = append(result.Truncated, spec.Name)
			}
			if spec.Name == "category" && !ValidCategory(s) {
				// Unknown category falls back to the catch-all bucket.
				s = CategoryActivations
				result.Truncated = append(result.Truncated, spec.Name)
			}
			cleaned[spec.Name] = s

		case KindStringList:
			var items []string
			if err := json.Unmarshal(value, &items); err != nil {
				result.addTypeIssue(spec, "array of strings")
				continue
			}
			if spec.MaxItems > 0 && len(items) > spec.MaxItems {
				items = items[:spec.MaxItems]
				result.Truncated = append(result.Truncated, spec.Name)
			}
			if spec.MinItems > 0 && len(items) < spec.MinItems {
				if spec.Required {
					result.Errors = append(result.Errors, Issue{
						Field:  spec.Name,
						Reason: fmt.Sprintf("expected at least %d items, got %d", spec.MinItems, len(items)),
					})
					continue
				}
				result.Filled = append(result.Filled, spec.Name)
			}
			if spec.ItemMaxLen > 0 {
				for i, item := range items {
					if len([]rune(item)) > spec.ItemMaxLen {
						items[i] = string([]rune(item)[:spec.ItemMaxLen])
						result.Truncated = append(result.Truncated, spec.Name)
					}
				}
			}
			cleaned[spec.Name] = items

		case KindInt:
			var n int
			if err := json.Unmarshal(value, &n); err != nil {
				result.addTypeIssue(spec, "integer")
				continue
			}
			cleaned[spec.Name] = n

		case KindBool:
			var b bool
			if err := json.Unmarshal(value, &b); err != nil {
				result.addTypeIssue(spec, "boolean")
				continue
			}
			cleaned[spec.Name] = b
		}
	}

	// Whatever remains in the map was not in the schema.
	for name := range fields {
		result.Dropped = append(result.Dropped, name)
	}

	if !result.OK() {
		return result, nil
	}

	buf, err := json.Marshal(cleaned)
	if err != nil {
		return nil, fmt.Errorf("reassembling validated event: %w", err)
	}
	var event Event
	if err := json.Unmarshal(buf, &event); err != nil {
		return nil, fmt.Errorf("decoding validated event: %w", err)
	}
	event.RawModelOutput = append(json.RawMessage(nil), raw...)
	if result.Adjusted() {
		event.NeedsReview = true
	}
	result.Event = &event

	return result, nil
}

func (r *ValidationResult) addTypeIssue(spec Field, want string) {
	issue := Issue{Field: spec.Name, Reason: "expected " + want}
	if spec.Required {
		r.Errors = append(r.Errors, issue)
		return
	}
	// A malformed optional field is treated like a missing one.
	r.Filled = append(r.Filled, spec.Name)
}

func sentinelFor(kind FieldKind) any {
	switch kind {
	case KindStringList:
		return []string{}
	case KindInt:
		return 0
	case KindBool:
		return false
	default:
		return ""
	}
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// URLSafeSlug reports whether s is a valid slug: lowercase alphanumerics
// separated by single hyphens.
func URLSafeSlug(s string) bool {
	return slugPattern.MatchString(s)
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify converts free text into a URL-safe slug.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugStrip.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
