// Package insights answers natural-language questions about an owner's
// spending by grounding a model prompt in their recent activity.
package insights

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"google.golang.org/genai"

	"moneta/internal/domain/transaction"
)

const (
	defaultModel  = "gemini-2.0-flash"
	promptWindow  = 30 // days of activity folded into the prompt
	maxQuestion   = 2000
	systemPreface = `You are a personal finance assistant. Answer using only the
spending summary provided. Amounts are signed: negative is spending,
positive is income. Be concise and do not invent transactions.`
)

// ErrNotConfigured means no model backend is wired in; callers should
// surface it as a service-unavailable condition rather than a failure.
var ErrNotConfigured = errors.New("insights generator is not configured")

// Generator produces one completion for one prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeminiGenerator calls the Gemini API for completions.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator dials the Gemini API. model may be empty to use
// the default.
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	if model == "" {
		model = defaultModel
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("model returned an empty response")
	}
	return text, nil
}

// Service builds grounded prompts from the owner's transaction history
// and relays them to the generator.
type Service struct {
	gen          Generator
	transactions *transaction.Service
	now          func() time.Time
}

// NewService creates a new insights service. gen may be nil, in which
// case Chat reports ErrNotConfigured.
func NewService(gen Generator, transactions *transaction.Service) *Service {
	return &Service{gen: gen, transactions: transactions, now: time.Now}
}

// Chat answers one question about the owner's recent spending.
func (s *Service) Chat(ctx context.Context, ownerID, question string) (string, error) {
	if s.gen == nil {
		return "", ErrNotConfigured
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return "", errors.New("question is required")
	}
	if len(question) > maxQuestion {
		return "", fmt.Errorf("question exceeds %d characters", maxQuestion)
	}

	to := s.now()
	from := to.AddDate(0, 0, -promptWindow)
	summary, err := s.transactions.GetSummary(ctx, ownerID, from, to)
	if err != nil {
		return "", fmt.Errorf("failed to build spending context: %w", err)
	}

	prompt := s.buildPrompt(summary, question)
	answer, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}

	log.Printf("Insights chat for owner %s: %d categories in context", ownerID, len(summary.Categories))
	return answer, nil
}

func (s *Service) buildPrompt(summary *transaction.Summary, question string) string {
	var b strings.Builder
	b.WriteString(systemPreface)
	b.WriteString("\n\nSpending summary for ")
	b.WriteString(summary.From.Format("2006-01-02"))
	b.WriteString(" to ")
	b.WriteString(summary.To.Format("2006-01-02"))
	b.WriteString(":\n")
	fmt.Fprintf(&b, "Income: %s\nSpending: %s\nNet: %s\n",
		summary.Display.Income, summary.Display.Spending, summary.Display.Net)

	if len(summary.Categories) > 0 {
		b.WriteString("By category:\n")
		for _, c := range summary.Categories {
			fmt.Fprintf(&b, "- %s: %s (%d transactions)\n", c.Category, c.Total.StringFixed(2), c.Count)
		}
	} else {
		b.WriteString("No categorized activity in this window.\n")
	}

	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	return b.String()
}
