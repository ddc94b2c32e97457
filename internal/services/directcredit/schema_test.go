package directcredit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSchema = RecordSchema{
	Name: "test",
	Fields: []FieldSpec{
		{Name: "kind", Width: 1, Pad: ' ', Justify: JustifyLeft},
		{Name: "name", Width: 8, Pad: ' ', Justify: JustifyLeft},
		{Name: "amount", Width: 6, Pad: '0', Justify: JustifyRight},
	},
}

func TestRenderPadsAndJustifies(t *testing.T) {
	line, truncated := testSchema.Render(map[string]string{
		"kind":   "1",
		"name":   "ACME",
		"amount": "450",
	})
	assert.Equal(t, "1ACME    000450", line)
	assert.Empty(t, truncated)
	assert.Len(t, line, testSchema.TotalWidth())
}

func TestRenderTruncatesLongValues(t *testing.T) {
	line, truncated := testSchema.Render(map[string]string{
		"kind":   "1",
		"name":   "VERY LONG SUPPLIER NAME",
		"amount": "450",
	})
	assert.Len(t, line, testSchema.TotalWidth())
	assert.Equal(t, "VERY LON", line[1:9])
	assert.Equal(t, []string{"name"}, truncated)
}

func TestRenderMissingValueIsPadding(t *testing.T) {
	line, truncated := testSchema.Render(map[string]string{"kind": "1"})
	assert.Equal(t, "1        000000", line)
	assert.Empty(t, truncated)
}

func TestValidateRejectsWidthMismatch(t *testing.T) {
	require.NoError(t, testSchema.validate(15))
	assert.Error(t, testSchema.validate(16))
}

func TestABASchemasAreFullWidth(t *testing.T) {
	for _, schema := range []RecordSchema{abaHeader, abaDetail, abaTrailer} {
		assert.Equal(t, abaRecordWidth, schema.TotalWidth(), schema.Name)
	}
}
