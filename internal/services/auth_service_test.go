package services

import (
	"context"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/edu-project-api/internal/models"
	"github.com/yukikurage/edu-project-api/internal/repository"
)

func TestAuthService_SignupAndLogin(t *testing.T) {
	db := setupTestDB(t)
	service := NewAuthService(repository.NewUserRepository(db))
	ctx := context.Background()

	_, err := service.Signup(ctx, SignupInput{Username: "kim", Password: "short"})
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	_, err = service.Signup(ctx, SignupInput{Username: "kim", Password: "password123", Role: "janitor"})
	assert.ErrorIs(t, err, ErrInvalidRole)

	user, err := service.Signup(ctx, SignupInput{Username: " kim ", Password: "password123", DisplayName: "Kim"})
	require.NoError(t, err)
	assert.Equal(t, "kim", user.Username)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.NotEqual(t, "password123", user.PasswordHash)

	_, err = service.Signup(ctx, SignupInput{Username: "kim", Password: "password123"})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	tutor, err := service.Signup(ctx, SignupInput{Username: "lee", Password: "password123", Role: models.RoleTutor})
	require.NoError(t, err)
	assert.Equal(t, models.RoleTutor, tutor.Role)

	loggedIn, err := service.Login(ctx, LoginInput{Username: "kim", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)

	_, err = service.Login(ctx, LoginInput{Username: "kim", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = service.Login(ctx, LoginInput{Username: "nobody", Password: "password123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	found, err := service.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kim", found.Name())

	_, err = service.GetUser(ctx, 9999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

type fakeCompleter struct {
	content string
	err     error
	request openai.ChatCompletionRequest
}

func (f *fakeCompleter) CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.request = request
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: f.content}}},
	}, nil
}

func TestAIService_GenerateExamQuestions(t *testing.T) {
	ctx := context.Background()

	_, err := NewAIService("").GenerateExamQuestions(ctx, GenerateExamQuestionsInput{Topic: "x", Count: 1})
	assert.ErrorIs(t, err, ErrAIServiceNotConfigured)

	completer := &fakeCompleter{content: "```json\n" + `[
		{"question": "2+2?", "options": ["3", "4"], "answer": "4"},
		{"question": "Bad answer", "options": ["a", "b"], "answer": "c"},
		{"question": "", "options": ["a", "b"], "answer": "a"},
		{"question": "Capital of France?", "options": ["Paris", "Rome"], "answer": "Paris"}
	]` + "\n```"}
	service := &AIService{client: completer}

	_, err = service.GenerateExamQuestions(ctx, GenerateExamQuestionsInput{Topic: " ", Count: 2})
	assert.ErrorIs(t, err, ErrAITopicRequired)
	_, err = service.GenerateExamQuestions(ctx, GenerateExamQuestionsInput{Topic: "math", Count: 0})
	assert.ErrorIs(t, err, ErrValidation)

	questions, err := service.GenerateExamQuestions(ctx, GenerateExamQuestionsInput{Topic: "general", Count: 5})
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, "2+2?", questions[0].Question)
	assert.Equal(t, "Paris", questions[1].Answer)
	assert.Contains(t, completer.request.Messages[0].Content, "general")

	completer.content = `[{"question": "q", "options": ["a"], "answer": "a"}]`
	_, err = service.GenerateExamQuestions(ctx, GenerateExamQuestionsInput{Topic: "general", Count: 1})
	assert.ErrorIs(t, err, ErrAINoValidQuestions)

	completer.err = errors.New("rate limited")
	_, err = service.GenerateExamQuestions(ctx, GenerateExamQuestionsInput{Topic: "general", Count: 1})
	assert.Error(t, err)
}
