// Package suggest produces sample feed content from a language model, with
// a static fallback so the feature degrades instead of failing.
package suggest

import (
	"context"
	"fmt"
	"strings"
)

// SamplePost is one generated feed item: a synthetic author plus content.
type SamplePost struct {
	Username  string `json:"username"`
	AvatarURL string `json:"avatarUrl"`
	Content   string `json:"content"`
}

// Generator produces a batch of sample posts for seeding a quiet feed and
// single post drafts on a topic.
type Generator interface {
	SamplePosts(ctx context.Context) ([]SamplePost, error)
	GeneratePost(ctx context.Context, topic string) (string, error)
}

// FallbackPostContent is the draft served when the model is unreachable.
func FallbackPostContent(topic string) string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "Sharing a thought with the feed today. What is on your mind?"
	}
	return fmt.Sprintf("Thinking about %s today. What is your take? #%s",
		topic, strings.ReplaceAll(strings.ToLower(topic), " ", ""))
}

// FallbackPosts is served whenever the model call fails.
var FallbackPosts = []SamplePost{
	{Username: "Digital Artist", AvatarURL: "https://picsum.photos/seed/art/48", Content: "Art is how we say what cannot be said. Every canvas is a story waiting for a reader. #art #creativity"},
	{Username: "Nature Explorer", AvatarURL: "https://picsum.photos/seed/nature/48", Content: "No wifi in the forest, but you will find a better connection. Spent the whole day outdoors and the calm is indescribable. #nature #quiet"},
	{Username: "Tech Enthusiast", AvatarURL: "https://picsum.photos/seed/tech/48", Content: "AI is moving astonishingly fast! What is the most impressive AI application you have seen lately? Share your thoughts. #tech #future"},
	{Username: "Coffee Taster", AvatarURL: "https://picsum.photos/seed/coffee/48", Content: "The smell of morning coffee is the perfect start to a productive day. How do you take yours? #coffee #goodmorning"},
	{Username: "Travel Lover", AvatarURL: "https://picsum.photos/seed/travel/48", Content: "Travel opens the mind and renews the spirit. Planning the next destination... any suggestions? #travel #adventure"},
}
