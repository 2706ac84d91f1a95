package englishquest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Phase is the screen-level state of a quiz session.
type Phase string

const (
	PhaseStart    Phase = "start"
	PhasePlaying  Phase = "playing"
	PhaseFinished Phase = "finished"
)

// Feedback is the per-question result shown after a submit.
type Feedback string

const (
	FeedbackNone      Feedback = "none"
	FeedbackCorrect   Feedback = "correct"
	FeedbackIncorrect Feedback = "incorrect"
)

// QuestionSource supplies a day's questions for a difficulty band.
type QuestionSource interface {
	FetchQuestions(ctx context.Context, difficulty Difficulty) ([]Question, error)
}

// ScoreRecorder persists a completed session's outcome.
type ScoreRecorder interface {
	Record(ctx context.Context, entry HistoryEntry) error
}

// Session is the quiz session state machine. It owns the question set, the
// current index, the accumulated answers, and the phase, and advances
// through Start -> Playing -> Finished in response to events. Dependencies
// are injected so the machine can be driven without any UI or network.
//
// Mutating events that arrive in an impossible state are no-ops: the
// presentation layer is expected to disable them, but the machine does not
// rely on that.
type Session struct {
	source   QuestionSource
	cache    DailyCache
	recorder ScoreRecorder
	logger   *zap.Logger

	mu         sync.Mutex
	phase      Phase
	difficulty Difficulty
	questions  []Question
	index      int
	answers    []AnswerRecord
	selection  string
	feedback   Feedback
	beginning  bool
	persist    sync.WaitGroup
}

// NewSession creates a session in the Start phase.
func NewSession(source QuestionSource, cache DailyCache, recorder ScoreRecorder, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		source:   source,
		cache:    cache,
		recorder: recorder,
		logger:   logger,
		phase:    PhaseStart,
		feedback: FeedbackNone,
	}
}

// Begin starts a quiz for the difficulty. The daily cache is consulted
// first; on a miss the question source is called and its result cached. The
// question set is truncated to the first QuestionsPerQuiz questions. On any
// failure the session stays in Start and the error carries the failure
// category (see errors.go). A Begin while another Begin is in flight fails
// immediately.
func (s *Session) Begin(ctx context.Context, difficulty Difficulty) error {
	s.mu.Lock()
	if s.phase != PhaseStart {
		s.mu.Unlock()
		return fmt.Errorf("cannot begin: session is %s", s.phase)
	}
	if s.beginning {
		s.mu.Unlock()
		return fmt.Errorf("a quiz is already being prepared")
	}
	s.beginning = true
	s.mu.Unlock()

	questions, err := s.loadQuestions(ctx, difficulty)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.beginning = false
	if err != nil {
		s.logger.Warn("begin quiz failed",
			zap.String("difficulty", string(difficulty)),
			zap.Error(err),
		)
		return err
	}

	s.phase = PhasePlaying
	s.difficulty = difficulty
	s.questions = questions
	s.index = 0
	s.answers = nil
	s.selection = ""
	s.feedback = FeedbackNone

	s.logger.Info("quiz started",
		zap.String("difficulty", string(difficulty)),
		zap.Int("questions", len(questions)),
	)
	return nil
}

func (s *Session) loadQuestions(ctx context.Context, difficulty Difficulty) ([]Question, error) {
	if cached, ok := s.cache.Lookup(difficulty); ok {
		// A foreign or hand-edited cache entry may be oversized.
		if len(cached) > QuestionsPerQuiz {
			cached = cached[:QuestionsPerQuiz]
		}
		return cached, nil
	}

	fetched, err := s.source.FetchQuestions(ctx, difficulty)
	if err != nil {
		return nil, err
	}
	if len(fetched) == 0 {
		return nil, fmt.Errorf("source returned no questions: %w", ErrMalformedResponse)
	}
	if len(fetched) > QuestionsPerQuiz {
		fetched = fetched[:QuestionsPerQuiz]
	}

	if err := s.cache.Store(difficulty, fetched); err != nil {
		// A cache write failure only costs a refetch tomorrow.
		s.logger.Warn("failed to cache questions", zap.Error(err))
	}
	return fetched, nil
}

// Select records the pending choice for the current question. Reselecting
// simply overwrites the pending selection. Ignored outside Playing or once
// feedback is showing.
func (s *Session) Select(option string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhasePlaying || s.feedback != FeedbackNone {
		return
	}
	s.selection = option
}

// Submit grades the pending selection against the current question by exact
// string equality, appends the answer record, and sets feedback. A submit
// with no selection pending, or a second submit before Advance, is a no-op.
func (s *Session) Submit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhasePlaying || s.feedback != FeedbackNone || s.selection == "" {
		return
	}

	question := s.questions[s.index]
	correct := s.selection == question.CorrectAnswer
	s.answers = append(s.answers, AnswerRecord{
		QuestionText:  question.Text,
		Selected:      s.selection,
		CorrectAnswer: question.CorrectAnswer,
		IsCorrect:     correct,
	})
	if correct {
		s.feedback = FeedbackCorrect
	} else {
		s.feedback = FeedbackIncorrect
	}
}

// Advance moves to the next question, or to Finished after the last one.
// Finishing records the session outcome fire-and-forget: the transition
// never waits on persistence, and a failed write is logged and swallowed.
// Ignored until feedback is showing.
func (s *Session) Advance(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhasePlaying || s.feedback == FeedbackNone {
		return
	}

	if s.index < len(s.questions)-1 {
		s.index++
		s.selection = ""
		s.feedback = FeedbackNone
		return
	}

	s.phase = PhaseFinished
	entry := HistoryEntry{
		Timestamp:      time.Now(),
		Score:          s.scoreLocked(),
		TotalQuestions: len(s.questions),
		Difficulty:     s.difficulty,
	}
	s.logger.Info("quiz finished",
		zap.String("difficulty", string(entry.Difficulty)),
		zap.Int("score", entry.Score),
		zap.Int("total", entry.TotalQuestions),
	)

	s.persist.Add(1)
	go func(ctx context.Context) {
		defer s.persist.Done()
		if err := s.recorder.Record(ctx, entry); err != nil {
			s.logger.Warn("failed to record history entry", zap.Error(err))
		}
	}(context.WithoutCancel(ctx))
}

// Flush blocks until pending history writes have completed. The Finished
// transition itself never waits; callers that immediately read aggregates
// (the CLI summary) use this to avoid racing the write.
func (s *Session) Flush() {
	s.persist.Wait()
}

// Reset discards the session's questions, index, and answers and returns to
// Start.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = PhaseStart
	s.difficulty = ""
	s.questions = nil
	s.index = 0
	s.answers = nil
	s.selection = ""
	s.feedback = FeedbackNone
}

func (s *Session) scoreLocked() int {
	score := 0
	for _, answer := range s.answers {
		if answer.IsCorrect {
			score++
		}
	}
	return score
}

// Score returns the count of correct answers so far.
func (s *Session) Score() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scoreLocked()
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Snapshot is a read-only view of the session for rendering. The current
// question is exposed without its correct answer; once feedback is showing
// the latest answer record reveals it.
type Snapshot struct {
	Phase      Phase           `json:"phase"`
	Difficulty Difficulty      `json:"difficulty,omitempty"`
	Index      int             `json:"index"`
	Total      int             `json:"total"`
	Question   *PublicQuestion `json:"question,omitempty"`
	Selection  string          `json:"selection,omitempty"`
	Feedback   Feedback        `json:"feedback"`
	Answers    []AnswerRecord  `json:"answers,omitempty"`
	Score      int             `json:"score"`
}

// Snapshot returns the current state for rendering.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Phase:      s.phase,
		Difficulty: s.difficulty,
		Index:      s.index,
		Total:      len(s.questions),
		Selection:  s.selection,
		Feedback:   s.feedback,
		Score:      s.scoreLocked(),
	}
	if s.phase == PhasePlaying {
		public := s.questions[s.index].Public()
		snap.Question = &public
	}
	if len(s.answers) > 0 {
		snap.Answers = make([]AnswerRecord, len(s.answers))
		copy(snap.Answers, s.answers)
	}
	return snap
}
