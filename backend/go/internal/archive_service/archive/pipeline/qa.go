package pipeline

import (
	"AskArchive/backend/go/internal/archive_service/archive/interfaces"
	"AskArchive/backend/go/internal/archive_service/archive/schema"
	"AskArchive/backend/go/internal/models"
	"AskArchive/backend/go/pkg/logger"
	"context"
	"fmt"
	"strings"
)

// QAPipeline is responsible for generating an answer from retrieved chunks and session history.
type QAPipeline struct {
	generator interfaces.AnswerGenerator
	log       *logger.Logger
}

// NewQAPipeline creates a new QAPipeline.
func NewQAPipeline(generator interfaces.AnswerGenerator, log *logger.Logger) *QAPipeline {
	return &QAPipeline{
		generator: generator,
		log:       log,
	}
}

// Run builds the prompt and asks the generator for an answer.
func (p *QAPipeline) Run(ctx context.Context, question string, chunks []schema.RetrievedChunk, history []models.ChatMessage) (string, error) {
	p.log.Info(fmt.Sprintf("Building prompt with %d chunks and %d history messages", len(chunks), len(history)))

	// 1. Build the prompt
	prompt := BuildPrompt(question, chunks, history)

	// 2. Call the generator
	answer, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		p.log.Error(fmt.Sprintf("Answer generation failed: %v", err))
		return "", schema.E(schema.KindGeneration, "answer", "answer generation failed", err)
	}

	p.log.Info("Successfully generated answer.")
	return answer, nil
}

// BuildPrompt renders history, cited context and instructions into a single prompt.
func BuildPrompt(question string, chunks []schema.RetrievedChunk, history []models.ChatMessage) string {
	var sb strings.Builder

	sb.WriteString("You are an assistant that helps users analyze the videos and PDFs they archived.\n\n")

	sb.WriteString("CONVERSATION HISTORY:\n")
	if len(history) == 0 {
		sb.WriteString("No previous history.\n")
	}
	for _, msg := range history {
		sb.WriteString(fmt.Sprintf("%s: %s\n", capitalize(msg.Role), msg.Content))
	}

	sb.WriteString("\nPRIMARY SOURCE (video transcript or PDF):\n")
	if len(chunks) == 0 {
		sb.WriteString("No matching content was found in the archive.\n")
	}
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, fmt.Sprintf("%s\n%s", citation(c.Metadata), c.Text))
	}
	sb.WriteString(strings.Join(parts, "\n\n"))

	sb.WriteString("\n\nSECONDARY SOURCE (your knowledge):\n")
	sb.WriteString("Use general knowledge only when the primary source does not contain the answer.\n\n")

	sb.WriteString("INSTRUCTIONS:\n")
	sb.WriteString("1. Prefer the primary source. When the answer is there, say whether it comes from the video or the PDF, using each chunk's source type.\n")
	sb.WriteString("2. When the primary source does not contain the answer, answer from general knowledge and say that it was not found in the archived files.\n")
	sb.WriteString("3. Cite every factual claim in brackets as [Source Name, Timestamp/Page], for example [Biology Lecture, 12:45].\n\n")

	sb.WriteString(fmt.Sprintf("USER QUESTION:\n%s\n", question))
	return sb.String()
}

// citation renders the bracketed label placed above each context chunk.
// The display name is preferred; records written without one fall back to the source id.
func citation(meta map[string]any) string {
	name, _ := meta[schema.MetaDisplayName].(string)
	if name == "" {
		name, _ = meta[schema.MetaSource].(string)
	}
	sourceType, _ := meta[schema.MetaSourceType].(string)
	label := fmt.Sprintf("[%s, %s", name, sourceType)

	start, okStart := toFloat(meta[schema.MetaStart])
	end, okEnd := toFloat(meta[schema.MetaEnd])
	if sourceType == string(models.SourceTypeVideo) && okStart && okEnd {
		label += fmt.Sprintf(", %s-%s", Timestamp(start), Timestamp(end))
	}
	return label + "]"
}

// Timestamp formats seconds as m:ss, or h:mm:ss past an hour.
func Timestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
