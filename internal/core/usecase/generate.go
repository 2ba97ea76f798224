package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vmelnikov/ragbase/internal/core/domain"
	"github.com/vmelnikov/ragbase/internal/core/ports"
)

const answerSystemPrompt = `You are an AI assistant that answers questions based on provided documents.

Your task is to:
1. Answer the user's question using ONLY the information from the provided context documents
2. Assess the completeness and confidence of your answer
3. Identify any missing information that would improve the answer

IMPORTANT: You must respond with a valid JSON object with the following structure:
{
    "answer": "Your detailed answer here",
    "confidence": 0.85,
    "is_complete": true,
    "missing_info": ["List of missing information"],
    "reasoning": "Explanation of your confidence and completeness assessment",
    "relevant_sources": [0, 1, 2]
}

Guidelines:
- confidence: 0.0 to 1.0, where 1.0 is completely confident
- is_complete: true if you have all information needed, false if information is missing or uncertain
- missing_info: list specific pieces of information that are missing or would improve the answer
- relevant_sources: list indices of the source documents you used (0-indexed)
- If the context doesn't contain relevant information, say so clearly and set confidence low
- Be honest about uncertainty: admitting gaps is better than making up information`

const (
	sourceContentLimit   = 500
	fallbackConfidence   = 0.5
	fallbackSourceCount  = 3
	fallbackMissingLabel = "Unable to assess completeness"
)

// AnswerGenerator turns a query plus retrieved passages into one structured
// AnswerCandidate via a single model call.
type AnswerGenerator struct {
	llm ports.CompletionClient
}

func NewAnswerGenerator(llm ports.CompletionClient) *AnswerGenerator {
	return &AnswerGenerator{llm: llm}
}

// modelAnswer is the strict JSON contract the model is instructed to return.
// Reasoning is parsed but not surfaced.
type modelAnswer struct {
	Answer          string   `json:"answer"`
	Confidence      float64  `json:"confidence"`
	IsComplete      bool     `json:"is_complete"`
	MissingInfo     []string `json:"missing_info"`
	Reasoning       string   `json:"reasoning"`
	RelevantSources []int    `json:"relevant_sources"`
}

// Generate performs the model exchange and enforces the output contract.
// A model call failure propagates to the caller; a contract violation
// (non-JSON output) degrades to a fallback candidate instead.
func (g *AnswerGenerator) Generate(ctx context.Context, query string, passages []domain.RetrievedPassage) (*domain.AnswerCandidate, error) {
	userPrompt := buildUserPrompt(query, passages)

	raw, err := g.llm.Complete(ctx, answerSystemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("model completion: %w", err)
	}

	payload, err := stripCodeFence(raw)
	var parsed modelAnswer
	if err == nil {
		err = json.Unmarshal([]byte(payload), &parsed)
	}
	if err != nil {
		return g.fallbackCandidate(raw, passages), nil
	}

	if parsed.MissingInfo == nil {
		parsed.MissingInfo = []string{}
	}

	sources, used := materializeSources(passages, parsed.RelevantSources)
	return &domain.AnswerCandidate{
		Answer:             parsed.Answer,
		Confidence:         domain.ClampScore(parsed.Confidence),
		IsComplete:         parsed.IsComplete,
		MissingInfo:        parsed.MissingInfo,
		Sources:            sources,
		UsedPassageIndices: used,
	}, nil
}

func buildUserPrompt(query string, passages []domain.RetrievedPassage) string {
	var b strings.Builder
	for i, p := range passages {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		fmt.Fprintf(&b, "[Source %d] (Relevance: %.2f)\n", i, domain.ClampScore(p.Score))
		fmt.Fprintf(&b, "Document: %s\n", p.Metadata.Filename)
		fmt.Fprintf(&b, "Content: %s\n", p.Text)
	}

	return fmt.Sprintf(`Context Documents:
%s

User Question: %s

Please provide your response as a JSON object following the specified format.`, b.String(), query)
}

// stripCodeFence removes exactly one level of markdown code fencing around
// the payload. A fenced input missing its closing fence, or one whose body
// opens another fence, is reported as a parse failure.
func stripCodeFence(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed, nil
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return "", fmt.Errorf("code fence without body")
	}
	if strings.TrimSpace(lines[len(lines)-1]) != "```" {
		return "", fmt.Errorf("code fence without closing delimiter")
	}

	body := strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
	if strings.HasPrefix(body, "```") {
		return "", fmt.Errorf("nested code fences are not supported")
	}
	return body, nil
}

// fallbackCandidate keeps the request moving when the model violates the
// output contract: the raw text becomes the answer and the top passages
// become the sources.
func (g *AnswerGenerator) fallbackCandidate(raw string, passages []domain.RetrievedPassage) *domain.AnswerCandidate {
	indices := make([]int, 0, fallbackSourceCount)
	for i := 0; i < len(passages) && i < fallbackSourceCount; i++ {
		indices = append(indices, i)
	}
	sources, used := materializeSources(passages, indices)

	return &domain.AnswerCandidate{
		Answer:             strings.TrimSpace(raw),
		Confidence:         fallbackConfidence,
		IsComplete:         false,
		MissingInfo:        []string{fallbackMissingLabel},
		Sources:            sources,
		UsedPassageIndices: used,
	}
}

// materializeSources resolves model-reported indices against the passage
// list. Out-of-range indices are dropped silently; the result is simply a
// shorter source list.
func materializeSources(passages []domain.RetrievedPassage, indices []int) ([]domain.SourceReference, []int) {
	sources := make([]domain.SourceReference, 0, len(indices))
	used := make([]int, 0, len(indices))

	for _, idx := range indices {
		if idx < 0 || idx >= len(passages) {
			continue
		}
		p := passages[idx]

		content := p.Text
		if runes := []rune(content); len(runes) > sourceContentLimit {
			content = string(runes[:sourceContentLimit])
		}

		sources = append(sources, domain.SourceReference{
			DocumentID:     p.Metadata.DocumentID,
			DocumentName:   p.Metadata.Filename,
			ChunkID:        p.Metadata.ChunkID,
			Content:        content,
			RelevanceScore: domain.ClampScore(p.Score),
			Enriched:       p.Metadata.Enriched,
			URL:            p.Metadata.URL,
		})
		used = append(used, idx)
	}
	return sources, used
}
