package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "gymstack_go_backend/internal/errors"
	"gymstack_go_backend/internal/models"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
)

// ContentGenerator is the slice of the genai model the reranker needs.
// *genai.GenerativeModel satisfies it.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiRerankerService sends one bounded request to the generative service
// and re-scores the rule-ranked candidates. The model output is an untrusted
// boundary: shape is validated, unknown ids are discarded, scores are clamped
// and reasons are truncated before anything is returned.
type GeminiRerankerService struct {
	model           ContentGenerator
	timeout         time.Duration
	maxReasonLength int
}

func NewGeminiRerankerService(model ContentGenerator, timeout time.Duration, maxReasonLength int) *GeminiRerankerService {
	return &GeminiRerankerService{
		model:           model,
		timeout:         timeout,
		maxReasonLength: maxReasonLength,
	}
}

type rerankResponse struct {
	Rankings []rerankedItem `json:"rankings"`
}

type rerankedItem struct {
	ID     string `json:"id"`
	Score  int    `json:"score"`
	Reason string `json:"reason"`
}

func (r *GeminiRerankerService) Rerank(ctx context.Context, source *models.Exercise, candidates []AlternativeCandidate, availableEquipment []string) ([]AlternativeCandidate, int64, error) {
	if len(candidates) == 0 {
		return candidates, 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	prompt := r.buildPrompt(source, candidates, availableEquipment)
	resp, err := r.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, 0, apperrors.NewUpstreamError(fmt.Errorf("generate content: %w", err))
	}

	var tokensUsed int64
	if resp.UsageMetadata != nil {
		tokensUsed = int64(resp.UsageMetadata.TotalTokenCount)
	}

	raw, err := responseText(resp)
	if err != nil {
		return nil, tokensUsed, apperrors.NewUpstreamError(err)
	}

	reranked, err := r.parseRankings(raw, candidates)
	if err != nil {
		return nil, tokensUsed, apperrors.NewUpstreamError(err)
	}

	return reranked, tokensUsed, nil
}

func (r *GeminiRerankerService) buildPrompt(source *models.Exercise, candidates []AlternativeCandidate, availableEquipment []string) string {
	var b strings.Builder
	b.WriteString("You are ranking substitute exercises for a gym member.\n")
	fmt.Fprintf(&b, "Source exercise: %s (pattern: %s, muscle groups: %s, difficulty: %s).\n",
		source.Name, source.MovementPattern, strings.Join(source.MuscleGroups, ", "), source.Difficulty)
	fmt.Fprintf(&b, "Available equipment: %s.\n", strings.Join(availableEquipment, ", "))
	b.WriteString("Candidates with their current rule-based scores:\n")
	for _, c := range candidates {
		fmt.Fprintf(&b, "- id=%s name=%q muscle_groups=%s score=%d\n",
			c.ExerciseID, c.Name, strings.Join(c.MuscleGroups, ","), c.Score)
	}
	b.WriteString("Re-rank the candidates by how well they substitute the source exercise ")
	b.WriteString("for someone with only the listed equipment. Respond with JSON only, shaped as ")
	b.WriteString(`{"rankings":[{"id":"<candidate id>","score":<0-100>,"reason":"<one short sentence>"}]}. `)
	b.WriteString("Include every candidate id exactly once and no other ids.")
	return b.String()
}

// parseRankings builds the enhanced list from the model output. Recognized
// candidates take the model's score and reason; candidates the model dropped
// keep their rule-based entry so the response stays complete.
func (r *GeminiRerankerService) parseRankings(raw string, candidates []AlternativeCandidate) ([]AlternativeCandidate, error) {
	var parsed rerankResponse
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("malformed rerank response: %w", err)
	}
	if len(parsed.Rankings) == 0 {
		return nil, fmt.Errorf("rerank response contained no rankings")
	}

	byID := make(map[uuid.UUID]AlternativeCandidate, len(candidates))
	for _, c := range candidates {
		byID[c.ExerciseID] = c
	}

	reranked := make([]AlternativeCandidate, 0, len(candidates))
	ranked := make(map[uuid.UUID]bool, len(parsed.Rankings))
	for _, item := range parsed.Rankings {
		id, err := uuid.Parse(item.ID)
		if err != nil {
			continue
		}
		candidate, known := byID[id]
		if !known || ranked[id] {
			// Never trust ids the model invented, and ignore duplicates.
			continue
		}
		ranked[id] = true

		candidate.Score = clampScore(item.Score)
		if reason := strings.TrimSpace(item.Reason); reason != "" {
			candidate.Reason = truncate(reason, r.maxReasonLength)
		}
		reranked = append(reranked, candidate)
	}

	if len(reranked) == 0 {
		return nil, fmt.Errorf("rerank response contained no recognized candidates")
	}

	// Candidates the model omitted keep their rule-based score and reason.
	for _, c := range candidates {
		if !ranked[c.ExerciseID] {
			reranked = append(reranked, c)
		}
	}

	sortCandidatesByScore(reranked)
	return reranked, nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty rerank response")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("rerank response contained no text parts")
	}
	return b.String(), nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// truncate cuts at a rune boundary so a multibyte character at the cap is
// dropped whole instead of leaving an invalid UTF-8 tail.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
