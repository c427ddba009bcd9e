package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/yukikurage/edu-project-api/internal/constants"
)

var (
	ErrAIServiceNotConfigured = errors.New("AI service is not configured")
	ErrAITopicRequired        = invalid("topic is required")
	ErrAIInvalidCount         = invalid(fmt.Sprintf("question count must be between 1 and %d", constants.MaxAIGeneratedQuestions))
	ErrAINoValidQuestions     = errors.New("AI did not generate any valid questions")
)

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type AIService struct {
	client chatCompleter
}

// GeneratedQuestion is a multiple choice exam question drafted by the model
type GeneratedQuestion struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
}

func NewAIService(apiKey string) *AIService {
	if apiKey == "" {
		return &AIService{}
	}
	return &AIService{
		client: openai.NewClient(apiKey),
	}
}

// GenerateExamQuestionsInput represents input for drafting exam questions
type GenerateExamQuestionsInput struct {
	Topic string
	Count int
}

// GenerateExamQuestions asks the model for multiple choice questions and keeps
// the ones whose answer is among the options.
func (s *AIService) GenerateExamQuestions(ctx context.Context, input GenerateExamQuestionsInput) ([]GeneratedQuestion, error) {
	if s == nil || s.client == nil {
		return nil, ErrAIServiceNotConfigured
	}
	topic := strings.TrimSpace(input.Topic)
	if topic == "" {
		return nil, ErrAITopicRequired
	}
	if input.Count < 1 || input.Count > constants.MaxAIGeneratedQuestions {
		return nil, ErrAIInvalidCount
	}

	prompt := fmt.Sprintf(`Write %d multiple choice exam questions about the topic below.
Return only a JSON array of objects with the fields "question", "options" (4 strings) and "answer" (one of the options).

Topic:
%s`, input.Count, topic)

	resp, err := s.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: openai.GPT4o,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			Temperature: 0.3,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimSuffix(strings.TrimPrefix(content, "```"), "```")

	var questions []GeneratedQuestion
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &questions); err != nil {
		return nil, fmt.Errorf("failed to parse AI response: %w", err)
	}

	valid := make([]GeneratedQuestion, 0, len(questions))
	for _, q := range questions {
		if strings.TrimSpace(q.Question) == "" || len(q.Options) < 2 || !containsString(q.Options, q.Answer) {
			continue
		}
		valid = append(valid, q)
		if len(valid) == input.Count {
			break
		}
	}

	if len(valid) == 0 {
		return nil, ErrAINoValidQuestions
	}

	return valid, nil
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
