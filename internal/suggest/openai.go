package suggest

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"agora/internal/observability"
)

const samplePrompt = `Generate 5 sample social media posts. Topics can include technology, art, daily life, and nature. For each post provide a creative username, a placeholder avatar URL of the form https://picsum.photos/seed/{word}/48, and the post content. Respond with a JSON array of objects with keys "username", "avatarUrl", and "content" and nothing else.`

// OpenAIGenerator asks a chat model for sample posts. Any failure, from
// transport to unparseable output, falls back to the static batch.
type OpenAIGenerator struct {
	model  string
	logger *slog.Logger

	// complete is swapped out in tests.
	complete func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewOpenAIGenerator builds a generator over the given API key and model.
func NewOpenAIGenerator(apiKey, model string) *OpenAIGenerator {
	if model == "" {
		model = openai.GPT4oMini
	}
	client := openai.NewClient(apiKey)
	return &OpenAIGenerator{
		model:    model,
		logger:   observability.Logger,
		complete: client.CreateChatCompletion,
	}
}

func (g *OpenAIGenerator) SamplePosts(ctx context.Context) ([]SamplePost, error) {
	resp, err := g.complete(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: samplePrompt},
		},
	})
	if err != nil {
		g.logger.WarnContext(ctx, "sample post generation failed, serving fallback",
			slog.String("error", err.Error()))
		return FallbackPosts, nil
	}
	if len(resp.Choices) == 0 {
		return FallbackPosts, nil
	}

	posts, err := parseSamplePosts(resp.Choices[0].Message.Content)
	if err != nil {
		g.logger.WarnContext(ctx, "sample post response unparseable, serving fallback",
			slog.String("error", err.Error()))
		return FallbackPosts, nil
	}
	return posts, nil
}

// GeneratePost drafts one post about the given topic. Failures return the
// static fallback draft, never an error the caller has to branch on.
func (g *OpenAIGenerator) GeneratePost(ctx context.Context, topic string) (string, error) {
	prompt := "Write a short, engaging social media post"
	if strings.TrimSpace(topic) != "" {
		prompt += " about " + strings.TrimSpace(topic)
	}
	prompt += ". Plain text only, at most 280 characters, no surrounding quotes."

	resp, err := g.complete(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		g.logger.WarnContext(ctx, "post draft generation failed, serving fallback",
			slog.String("error", err.Error()))
		return FallbackPostContent(topic), nil
	}
	if len(resp.Choices) == 0 {
		return FallbackPostContent(topic), nil
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	content = strings.Trim(content, `"`)
	if content == "" {
		return FallbackPostContent(topic), nil
	}
	return content, nil
}

// parseSamplePosts tolerates the model wrapping its JSON in a code fence.
func parseSamplePosts(raw string) ([]SamplePost, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var posts []SamplePost
	if err := json.Unmarshal([]byte(cleaned), &posts); err != nil {
		return nil, err
	}
	out := posts[:0]
	for _, p := range posts {
		if p.Content == "" {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
