package suggest

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubCompletion(content string, err error) func(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return func(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
		if err != nil {
			return openai.ChatCompletionResponse{}, err
		}
		return openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: content}},
			},
		}, nil
	}
}

func TestSamplePostsFromModel(t *testing.T) {
	t.Parallel()

	g := NewOpenAIGenerator("test-key", "")
	g.complete = stubCompletion("```json\n[{\"username\":\"Gopher\",\"avatarUrl\":\"https://picsum.photos/seed/go/48\",\"content\":\"Shipping today\"}]\n```", nil)

	posts, err := g.SamplePosts(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "Gopher", posts[0].Username)
	assert.Equal(t, "Shipping today", posts[0].Content)
}

func TestSamplePostsFallsBackOnError(t *testing.T) {
	t.Parallel()

	g := NewOpenAIGenerator("test-key", "")
	g.complete = stubCompletion("", errors.New("rate limited"))

	posts, err := g.SamplePosts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FallbackPosts, posts)
}

func TestSamplePostsFallsBackOnGarbage(t *testing.T) {
	t.Parallel()

	g := NewOpenAIGenerator("test-key", "")
	g.complete = stubCompletion("I cannot help with that.", nil)

	posts, err := g.SamplePosts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FallbackPosts, posts)
}

func TestGeneratePostFromModel(t *testing.T) {
	t.Parallel()

	g := NewOpenAIGenerator("test-key", "")
	g.complete = stubCompletion(`"Coffee first, commits second."`, nil)

	content, err := g.GeneratePost(context.Background(), "coffee")
	require.NoError(t, err)
	assert.Equal(t, "Coffee first, commits second.", content)
}

func TestGeneratePostFallsBackOnError(t *testing.T) {
	t.Parallel()

	g := NewOpenAIGenerator("test-key", "")
	g.complete = stubCompletion("", errors.New("timeout"))

	content, err := g.GeneratePost(context.Background(), "hiking trails")
	require.NoError(t, err)
	assert.Equal(t, FallbackPostContent("hiking trails"), content)
	assert.Contains(t, content, "hiking trails")
	assert.Contains(t, content, "#hikingtrails")
}

func TestParseSamplePostsSkipsEmptyContent(t *testing.T) {
	t.Parallel()

	posts, err := parseSamplePosts(`[{"username":"A","content":"hi"},{"username":"B","content":""}]`)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "A", posts[0].Username)
}
