package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleResponse struct {
	Theme   string   `json:"theme"`
	ItemIDs []string `json:"item_ids"`
}

func TestParseDirectJSON(t *testing.T) {
	result := Parse[sampleResponse](`{"theme": "crashes", "item_ids": ["a", "b"]}`, "test")
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "crashes", result.Data.Theme)
	assert.Equal(t, []string{"a", "b"}, result.Data.ItemIDs)
}

func TestParseCodeFences(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{
			name: "json fence with newlines",
			text: "```json\n{\"theme\": \"crashes\", \"item_ids\": [\"a\"]}\n```",
		},
		{
			name: "bare fence",
			text: "```\n{\"theme\": \"crashes\", \"item_ids\": [\"a\"]}\n```",
		},
		{
			name: "fence without newlines",
			text: "```json{\"theme\": \"crashes\", \"item_ids\": [\"a\"]}```",
		},
		{
			name: "single backticks",
			text: "`{\"theme\": \"crashes\", \"item_ids\": [\"a\"]}`",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Parse[sampleResponse](tt.text, "test")
			require.True(t, result.Success, result.Error)
			assert.Equal(t, "crashes", result.Data.Theme)
		})
	}
}

func TestParseCleanup(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{
			name: "trailing comma",
			text: `{"theme": "crashes", "item_ids": ["a", "b",],}`,
		},
		{
			name: "unquoted keys",
			text: `{theme: "crashes", item_ids: ["a"]}`,
		},
		{
			name: "comments",
			text: "{\"theme\": \"crashes\", // the big cluster\n\"item_ids\": [\"a\"]}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Parse[sampleResponse](tt.text, "test")
			require.True(t, result.Success, result.Error)
			assert.Equal(t, "crashes", result.Data.Theme)
		})
	}
}

func TestParseMixedContent(t *testing.T) {
	text := `Here is the grouping you asked for:

{"theme": "crashes", "item_ids": ["a"]}

Let me know if you need anything else.`

	result := Parse[sampleResponse](text, "test")
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "crashes", result.Data.Theme)
}

func TestParseArrayNotInnerObject(t *testing.T) {
	// The first-character check must keep an array response an array
	// instead of extracting the first inner object.
	text := `[{"theme": "a", "item_ids": []}, {"theme": "b", "item_ids": []}]`
	result := Parse[[]sampleResponse](text, "test")
	require.True(t, result.Success, result.Error)
	assert.Len(t, result.Data, 2)
}

func TestParseFailures(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "whitespace", text: "   \n  "},
		{name: "no json at all", text: "I could not produce any groups."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Parse[sampleResponse](tt.text, "grouping response")
			assert.False(t, result.Success)
			assert.Contains(t, result.Error, "grouping response")
		})
	}
}

func TestParseSizeLimit(t *testing.T) {
	huge := `{"theme": "` + strings.Repeat("x", maxParseInput) + `"}`
	result := Parse[sampleResponse](huge, "test")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "size limit")
}

func TestParseApostrophesSurvive(t *testing.T) {
	result := Parse[sampleResponse](`{"theme": "it's broken", "item_ids": []}`, "test")
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "it's broken", result.Data.Theme)
}
