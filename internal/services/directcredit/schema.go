package directcredit

import (
	"fmt"
	"strings"
)

// Field justification within a fixed-width slot.
const (
	JustifyLeft  = "left"
	JustifyRight = "right"
)

// FieldSpec describes one slot of a fixed-width record: name, byte width,
// padding character and justification. A record layout is a list of these,
// so a new bank format is a new table, not new code.
type FieldSpec struct {
	Name    string
	Width   int
	Pad     byte
	Justify string
}

// RecordSchema is an ordered field table rendering to a fixed total width.
type RecordSchema struct {
	Name   string
	Fields []FieldSpec
}

// TotalWidth is the byte length every rendered record of this schema has.
func (r RecordSchema) TotalWidth() int {
	width := 0
	for _, f := range r.Fields {
		width += f.Width
	}
	return width
}

// Render lays the given values out into one fixed-width line. Values longer
// than their slot are truncated and reported back by field name; missing
// values render as pure padding.
func (r RecordSchema) Render(values map[string]string) (string, []string) {
	var sb strings.Builder
	sb.Grow(r.TotalWidth())

	var truncated []string
	for _, f := range r.Fields {
		value := values[f.Name]
		if len(value) > f.Width {
			value = value[:f.Width]
			truncated = append(truncated, f.Name)
		}
		padding := strings.Repeat(string(f.Pad), f.Width-len(value))
		if f.Justify == JustifyRight {
			sb.WriteString(padding)
			sb.WriteString(value)
		} else {
			sb.WriteString(value)
			sb.WriteString(padding)
		}
	}
	return sb.String(), truncated
}

// validate catches malformed field tables at registration time.
func (r RecordSchema) validate(expectedWidth int) error {
	if got := r.TotalWidth(); got != expectedWidth {
		return fmt.Errorf("record schema %s renders %d bytes, want %d", r.Name, got, expectedWidth)
	}
	for _, f := range r.Fields {
		if f.Width <= 0 {
			return fmt.Errorf("record schema %s: field %s has width %d", r.Name, f.Name, f.Width)
		}
	}
	return nil
}
