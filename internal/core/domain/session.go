package domain

import "time"

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

type ChatMessage struct {
	Role           MessageRole       `json:"role"`
	Content        string            `json:"content"`
	Sources        []SourceReference `json:"sources,omitempty"`
	Confidence     float64           `json:"confidence,omitempty"`
	EnrichmentUsed bool              `json:"enrichment_used,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

type Session struct {
	ID        string        `json:"session_id"`
	Name      string        `json:"name"`
	Messages  []ChatMessage `json:"messages"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type SessionSummary struct {
	ID           string    `json:"session_id"`
	Name         string    `json:"name"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Rating struct {
	ID        string    `json:"rating_id"`
	Query     string    `json:"query"`
	Answer    string    `json:"answer"`
	Rating    int       `json:"rating"`
	Feedback  string    `json:"feedback,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type RatingStatistics struct {
	TotalRatings       int         `json:"total_ratings"`
	AverageRating      float64     `json:"average_rating"`
	RatingDistribution map[int]int `json:"rating_distribution"`
}
