package englishquest

import (
	"fmt"
	"math/rand"
	"time"
)

// QuestionsPerQuiz is the number of questions in one daily quiz.
const QuestionsPerQuiz = 6

// OptionsPerQuestion is the number of answer choices every question carries.
const OptionsPerQuestion = 4

// Difficulty selects the target proficiency band for generated questions.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "Beginner"
	DifficultyIntermediate Difficulty = "Intermediate"
	DifficultyAdvanced     Difficulty = "Advanced"
)

// Difficulties lists every supported difficulty band.
var Difficulties = []Difficulty{DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced}

// ParseDifficulty matches a user-supplied label against the known bands.
func ParseDifficulty(s string) (Difficulty, error) {
	for _, d := range Difficulties {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown difficulty %q (expected one of Beginner, Intermediate, Advanced)", s)
}

// Question represents a single multiple choice question. The text may embed
// a blank marker ("___") when the question asks the learner to fill a gap.
type Question struct {
	Text          string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
}

// Validate checks the structural contract: exactly 4 unique options and a
// correct answer that is one of them.
func (q Question) Validate() error {
	if q.Text == "" {
		return fmt.Errorf("question text is empty")
	}
	if len(q.Options) != OptionsPerQuestion {
		return fmt.Errorf("question has %d options, want %d", len(q.Options), OptionsPerQuestion)
	}
	seen := make(map[string]bool, len(q.Options))
	for _, opt := range q.Options {
		if opt == "" {
			return fmt.Errorf("question has an empty option")
		}
		if seen[opt] {
			return fmt.Errorf("question has duplicate option %q", opt)
		}
		seen[opt] = true
	}
	if !seen[q.CorrectAnswer] {
		return fmt.Errorf("correct answer %q is not one of the options", q.CorrectAnswer)
	}
	return nil
}

// PublicQuestion is the view of a question safe to show before the user has
// answered it: the correct answer is withheld.
type PublicQuestion struct {
	Text    string   `json:"question"`
	Options []string `json:"options"`
}

// Public returns the answer-free view of the question.
func (q Question) Public() PublicQuestion {
	options := make([]string, len(q.Options))
	copy(options, q.Options)
	return PublicQuestion{Text: q.Text, Options: options}
}

// ShuffleOptions returns a copy of the questions with each question's options
// in random order. Correctness is defined by value equality, so shuffling
// never changes which answer is correct.
func ShuffleOptions(questions []Question) []Question {
	shuffled := make([]Question, len(questions))
	for i, q := range questions {
		options := make([]string, len(q.Options))
		copy(options, q.Options)
		rand.Shuffle(len(options), func(a, b int) {
			options[a], options[b] = options[b], options[a]
		})
		shuffled[i] = Question{Text: q.Text, Options: options, CorrectAnswer: q.CorrectAnswer}
	}
	return shuffled
}

// AnswerRecord captures one submitted answer. Records are immutable once
// appended to a session.
type AnswerRecord struct {
	QuestionText  string `json:"question"`
	Selected      string `json:"selectedAnswer"`
	CorrectAnswer string `json:"correctAnswer"`
	IsCorrect     bool   `json:"isCorrect"`
}

// HistoryEntry is one persisted record of a completed session's outcome.
type HistoryEntry struct {
	Timestamp      time.Time  `json:"timestamp"`
	Score          int        `json:"score"`
	TotalQuestions int        `json:"totalQuestions"`
	Difficulty     Difficulty `json:"difficulty"`
}

// HistorySummary aggregates history entries over a trailing window.
type HistorySummary struct {
	TotalScore int `json:"totalScore"`
	Count      int `json:"count"`
}
