package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/grumblehq/syncd/internal/types"
)

func TestBuildClassifyPromptIncludesEveryItem(t *testing.T) {
	items := []*types.FeedbackItem{
		{ID: "github-issue-1", SourceType: types.SourceGitHubIssue, Content: "crash on boot"},
		{ID: "twitter-9", SourceType: types.SourceTwitter, Content: "love it"},
	}

	prompt := buildClassifyPrompt(items)
	assert.Contains(t, prompt, "github-issue-1")
	assert.Contains(t, prompt, "twitter-9")
	assert.Contains(t, prompt, "ONLY raw JSON")
}

func TestBuildClassifyPromptTruncatesLongContent(t *testing.T) {
	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'x'
	}
	items := []*types.FeedbackItem{
		{ID: "a", SourceType: types.SourceDiscourse, Content: string(long)},
	}

	prompt := buildClassifyPrompt(items)
	assert.Less(t, len(prompt), 1600, "content should be truncated in the prompt")
}

func TestBuildConsolidatePromptIncludesGroupIDs(t *testing.T) {
	groups := []*types.FeedbackGroup{
		{ID: "group-aaa", Theme: "Crashes", ItemIDs: []string{"a", "b"}},
		{ID: "group-bbb", Theme: "Crashes on startup", ItemIDs: []string{"c"}},
	}

	prompt := buildConsolidatePrompt(groups)
	assert.Contains(t, prompt, "group-aaa")
	assert.Contains(t, prompt, "group-bbb")
	assert.Contains(t, prompt, "source_group_ids")
}

func TestBuildTranslatePromptListsTargets(t *testing.T) {
	items := []*types.FeedbackItem{
		{ID: "a", SourceType: types.SourceDiscourse, Content: "ola", Language: "pt", Title: "saudacao"},
	}

	prompt := buildTranslatePrompt(items, []string{"en", "pt", "es"})
	assert.Contains(t, prompt, "en, pt, es")
	assert.Contains(t, prompt, "Detected language: pt")
	assert.Contains(t, prompt, "Title: saudacao")
}
