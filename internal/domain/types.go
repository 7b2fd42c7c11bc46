package domain

import "time"

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ImageSize is one of the fixed DALL-E output sizes.
type ImageSize string

const (
	SizeSquare    ImageSize = "1024x1024"
	SizeLandscape ImageSize = "1792x1024"
	SizePortrait  ImageSize = "1024x1792"
)

// ImageQuality selects the DALL-E rendering quality tier.
type ImageQuality string

const (
	QualityStandard ImageQuality = "standard"
	QualityHD       ImageQuality = "hd"
)

// Message represents a single chat message. Messages are immutable once
// created and only ever appended to a session in insertion order.
type Message struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ImageResult represents one completed image generation.
type ImageResult struct {
	Prompt       string       `json:"prompt"`
	URL          string       `json:"url"`
	Size         ImageSize    `json:"size"`
	Quality      ImageQuality `json:"quality"`
	GlobalNumber int64        `json:"global_number"`
	Timestamp    time.Time    `json:"timestamp"`
}

// VideoResult represents one completed video generation.
type VideoResult struct {
	Prompt     string    `json:"prompt"`
	URL        string    `json:"url"`
	Duration   int       `json:"duration_seconds"`
	Resolution int       `json:"resolution"`
	Timestamp  time.Time `json:"timestamp"`
}

// Usage carries token accounting reported by the text-generation service.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
