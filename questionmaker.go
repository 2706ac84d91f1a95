package englishquest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// QuestionMaker fetches a day's worth of English-practice questions from the
// OpenAI chat completion API.
type QuestionMaker struct {
	client *openai.Client
	apiKey string
	model  string
	logDir string
	logger *zap.Logger
}

// NewQuestionMaker creates a question maker. An empty apiKey is allowed so
// the rest of the app still runs; fetching then fails with
// ErrMissingCredential. logDir, when non-empty, receives one plain-text log
// per fetch with the full request and response.
func NewQuestionMaker(apiKey, model, logDir string, logger *zap.Logger) *QuestionMaker {
	if model == "" {
		model = openai.GPT4o
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	qm := &QuestionMaker{
		apiKey: apiKey,
		model:  model,
		logDir: logDir,
		logger: logger,
	}
	if apiKey != "" {
		qm.client = openai.NewClient(apiKey)
	}
	return qm
}

// FetchQuestions requests a fresh set of questions for the given difficulty.
// The returned slice holds only structurally valid questions; it errors with
// ErrMalformedResponse when no valid question survives parsing.
func (qm *QuestionMaker) FetchQuestions(ctx context.Context, difficulty Difficulty) ([]Question, error) {
	if qm.apiKey == "" {
		return nil, ErrMissingCredential
	}

	prompt := qm.buildPrompt(difficulty, QuestionsPerQuiz)

	flog, err := NewFetchLog(qm.logDir, difficulty)
	if err != nil {
		qm.logger.Warn("failed to create fetch log, continuing without it", zap.Error(err))
	} else {
		defer flog.Close()
	}
	flog.LogRequest(qm.model, prompt)

	resp, err := qm.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: qm.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: "You are an English teacher writing daily practice quizzes. You respond with strict JSON only, never prose.",
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
		},
	)
	if err != nil {
		flog.LogError(err)
		return nil, classifyTransportError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty completion: %w", ErrMalformedResponse)
	}

	content := resp.Choices[0].Message.Content
	flog.LogResponse(content)

	questions, err := parseSourcePayload(content)
	if err != nil {
		return nil, err
	}

	// Models tend to put the right answer in the same slot; reshuffle so its
	// position is never predictable.
	questions = ShuffleOptions(questions)

	qm.logger.Info("fetched questions",
		zap.String("difficulty", string(difficulty)),
		zap.Int("count", len(questions)),
	)
	return questions, nil
}

func (qm *QuestionMaker) buildPrompt(difficulty Difficulty, count int) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Generate %d multiple choice questions for daily English practice at the %s level.\n\n", count, difficulty))
	sb.WriteString(fmt.Sprintf("Target proficiency: %s\n\n", proficiencyBand(difficulty)))

	sb.WriteString("Topic mix:\n")
	sb.WriteString("- 2 grammar questions (fill the blank, marked with ___)\n")
	sb.WriteString("- 2 vocabulary questions (closest meaning or best word for the blank)\n")
	sb.WriteString("- 2 idiom or common-expression questions\n\n")

	sb.WriteString("Requirements:\n")
	sb.WriteString("- Each question must have exactly 4 answer options\n")
	sb.WriteString("- correctAnswer must be exactly equal to one of the options\n")
	sb.WriteString("- All 4 options must be distinct\n")
	sb.WriteString("- Incorrect options should be plausible but clearly wrong\n\n")

	sb.WriteString("Respond with ONLY a JSON array, no markdown and no extra text, in this shape:\n")
	sb.WriteString(`[{"question": "...", "options": ["...", "...", "...", "..."], "correctAnswer": "..."}]`)
	sb.WriteString("\n")

	return sb.String()
}

func proficiencyBand(difficulty Difficulty) string {
	switch difficulty {
	case DifficultyBeginner:
		return "CEFR A1-A2, everyday situations, simple tenses"
	case DifficultyIntermediate:
		return "CEFR B1-B2, conditionals, phrasal verbs, workplace vocabulary"
	case DifficultyAdvanced:
		return "CEFR C1-C2, nuanced register, subtle collocations, literary idioms"
	default:
		return "general English"
	}
}

// parseSourcePayload turns the model's raw reply into validated questions.
// Decorative code fences around the JSON are tolerated and stripped.
// Individually invalid records are dropped; an unparseable payload or a
// payload with zero valid questions fails with ErrMalformedResponse.
func parseSourcePayload(content string) ([]Question, error) {
	payload := stripCodeFence(content)

	var raw []Question
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("parsing question payload: %v: %w", err, ErrMalformedResponse)
	}

	questions := make([]Question, 0, len(raw))
	for _, q := range raw {
		if err := q.Validate(); err != nil {
			continue
		}
		questions = append(questions, q)
	}

	if len(questions) == 0 {
		return nil, fmt.Errorf("no valid questions in payload: %w", ErrMalformedResponse)
	}
	return questions, nil
}

// stripCodeFence removes a wrapping markdown code fence (``` or ```json)
// if the payload arrives decorated with one.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	// Drop the opening fence line, including any language tag.
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[idx+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}

	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// classifyTransportError maps an OpenAI client error onto the failure
// taxonomy: 401/403 become ErrCredentialBlocked, everything else is wrapped
// as an unknown transport failure.
func classifyTransportError(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return fmt.Errorf("%v: %w", err, ErrCredentialBlocked)
	}
	return fmt.Errorf("question source request failed: %w", err)
}
