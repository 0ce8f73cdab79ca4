package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONArrayFromCodeBlock(t *testing.T) {
	content := "Here is the result:\n```json\n[{\"index\": 0, \"classification\": \"SAFE\"}]\n```"

	extracted := ExtractJSONArray(content)
	require.NotEmpty(t, extracted)

	var items []map[string]any
	require.NoError(t, json.Unmarshal([]byte(extracted), &items))
	assert.Len(t, items, 1)
	assert.Equal(t, "SAFE", items[0]["classification"])
}

func TestExtractJSONArrayBare(t *testing.T) {
	extracted := ExtractJSONArray(`["a", "b", "c"]`)

	var items []string
	require.NoError(t, json.Unmarshal([]byte(extracted), &items))
	assert.Equal(t, []string{"a", "b", "c"}, items)
}

func TestExtractJSONArrayCleansTrailingCommas(t *testing.T) {
	extracted := ExtractJSONArray("[1, 2, 3,]")

	var items []int
	require.NoError(t, json.Unmarshal([]byte(extracted), &items))
	assert.Equal(t, []int{1, 2, 3}, items)
}

func TestExtractJSONArrayStripsComments(t *testing.T) {
	content := "[\n  \"https://example.com\", // keeps URL intact\n  \"b\"\n]"

	extracted := ExtractJSONArray(content)

	var items []string
	require.NoError(t, json.Unmarshal([]byte(extracted), &items))
	assert.Equal(t, []string{"https://example.com", "b"}, items)
}

func TestExtractJSONArrayNoArray(t *testing.T) {
	assert.Empty(t, ExtractJSONArray("just prose, no array here"))
}

func TestStripCodeFences(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello", "hello"},
		{"fence with language", "```markdown\nhello\n```", "hello"},
		{"fence without language", "```\nhello\n```", "hello"},
		{"surrounding whitespace", "  ```\nhello\n```  ", "hello"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StripCodeFences(tc.in))
		})
	}
}
