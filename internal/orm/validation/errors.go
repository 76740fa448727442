package validation

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Errors collects validation failures for a single record.
// Fields keep insertion order so that full messages come out in the
// order the checks were run.
type Errors struct {
	Fields map[string][]string `json:"fields"`
	order  []string
}

// NewErrors creates an empty error set
func NewErrors() *Errors {
	return &Errors{
		Fields: make(map[string][]string),
	}
}

// Add records a message for a field
func (ve *Errors) Add(field, message string) {
	if ve.Fields == nil {
		ve.Fields = make(map[string][]string)
	}
	if _, ok := ve.Fields[field]; !ok {
		ve.order = append(ve.order, field)
	}
	ve.Fields[field] = append(ve.Fields[field], message)
}

// AddBase records a message that is not tied to a single field.
// Base messages are rendered without a field prefix.
func (ve *Errors) AddBase(message string) {
	ve.Add(BaseField, message)
}

// Merge appends every message of other to ve
func (ve *Errors) Merge(other *Errors) {
	if other == nil {
		return
	}
	for _, field := range other.fieldOrder() {
		for _, msg := range other.Fields[field] {
			ve.Add(field, msg)
		}
	}
}

// HasErrors returns true if there are any validation errors
func (ve *Errors) HasErrors() bool {
	return ve != nil && len(ve.Fields) > 0
}

// Count returns the total number of messages across all fields
func (ve *Errors) Count() int {
	count := 0
	for _, messages := range ve.Fields {
		count += len(messages)
	}
	return count
}

// On returns the messages recorded for a field
func (ve *Errors) On(field string) []string {
	return ve.Fields[field]
}

// FullMessages returns human readable messages such as "Title can't be blank"
func (ve *Errors) FullMessages() []string {
	messages := make([]string, 0, ve.Count())
	for _, field := range ve.fieldOrder() {
		for _, msg := range ve.Fields[field] {
			if field == BaseField {
				messages = append(messages, msg)
				continue
			}
			messages = append(messages, HumanizeField(field)+" "+msg)
		}
	}
	return messages
}

// Error implements the error interface
func (ve *Errors) Error() string {
	if !ve.HasErrors() {
		return "validation failed"
	}
	messages := ve.FullMessages()
	if len(messages) == 1 {
		return fmt.Sprintf("validation failed: %s", messages[0])
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, ", "))
}

// MarshalJSON implements json.Marshaler
func (ve *Errors) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Errors []string            `json:"errors"`
		Fields map[string][]string `json:"fields"`
	}{
		Errors: ve.FullMessages(),
		Fields: ve.Fields,
	})
}

// ErrOrNil returns ve when it holds messages and nil otherwise,
// so callers can write `return errs.ErrOrNil()`.
func (ve *Errors) ErrOrNil() error {
	if ve.HasErrors() {
		return ve
	}
	return nil
}

// fieldOrder returns fields in insertion order, falling back to map order
// for values built by hand or decoded from JSON.
func (ve *Errors) fieldOrder() []string {
	if len(ve.order) == len(ve.Fields) {
		return ve.order
	}
	fields := make([]string, 0, len(ve.Fields))
	seen := make(map[string]bool, len(ve.Fields))
	for _, f := range ve.order {
		if _, ok := ve.Fields[f]; ok && !seen[f] {
			fields = append(fields, f)
			seen[f] = true
		}
	}
	for f := range ve.Fields {
		if !seen[f] {
			fields = append(fields, f)
		}
	}
	return fields
}

// BaseField is the pseudo-field for record-level messages
const BaseField = "base"

// HumanizeField turns "design_score" into "Design score"
func HumanizeField(field string) string {
	field = strings.TrimSuffix(field, "_id")
	words := strings.ReplaceAll(field, "_", " ")
	if words == "" {
		return words
	}
	return strings.ToUpper(words[:1]) + words[1:]
}
