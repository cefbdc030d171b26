// Package session drives a tutoring session through its phases:
// diagnostics, timed teaching, reflection, quiz, and the final score.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Phase is the session lifecycle stage.
type Phase string

const (
	PhasePre      Phase = "pre"
	PhaseTeaching Phase = "teaching"
	PhasePost     Phase = "post"
	PhaseQuiz     Phase = "quiz"
	PhaseComplete Phase = "complete"
)

// DefaultDuration is the teaching-phase countdown length.
const DefaultDuration = 40 * time.Minute

// Chatter is the conversational surface the controller drives.
// *chat.Client satisfies it.
type Chatter interface {
	Send(ctx context.Context, text string)
	StartSession(ctx context.Context)
	Cancel()
	ClearMessages()
}

// Speaker is the speech surface the controller drives.
// *voice.Pipeline satisfies it.
type Speaker interface {
	Speak(ctx context.Context, text string)
	Stop()
	IsSpeaking() bool
}

// Snapshot is the controller's observable state at one instant.
type Snapshot struct {
	Phase            Phase
	Topic            string
	RemainingSeconds int
	Paused           bool
	Muted            bool
	ConfidenceLevel  int
	DiagnosticsDone  int
	DiagnosticsTotal int
	QuizIndex        int
	QuizTotal        int
	Satisfaction     int
}

// Summary is the outcome of a completed session.
type Summary struct {
	Topic        string
	Score        int
	Total        int
	Percentage   float64
	Confidence   int
	Satisfaction int
}

// Controller owns the session state machine. All methods are safe for
// concurrent use.
type Controller struct {
	bank     *Bank
	chat     Chatter
	speech   Speaker
	logger   *slog.Logger
	duration time.Duration

	mu           sync.Mutex
	phase        Phase
	remaining    int
	paused       bool
	muted        bool
	confidence   int
	diagAnswers  []string
	satisfaction int
	quizIndex    int
	quizAnswers  []int
}

// Option configures a Controller.
type Option func(*Controller)

// WithChat sets the chat client driven by the session.
func WithChat(c Chatter) Option {
	return func(ctrl *Controller) { ctrl.chat = c }
}

// WithSpeech sets the speech pipeline driven by the session.
func WithSpeech(s Speaker) Option {
	return func(ctrl *Controller) { ctrl.speech = s }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(ctrl *Controller) {
		if logger != nil {
			ctrl.logger = logger
		}
	}
}

// WithDuration overrides the teaching countdown length.
func WithDuration(d time.Duration) Option {
	return func(ctrl *Controller) {
		if d > 0 {
			ctrl.duration = d
		}
	}
}

// NewController creates a session over the given question bank.
func NewController(bank *Bank, opts ...Option) *Controller {
	if bank == nil {
		bank = DefaultBank()
	}
	ctrl := &Controller{
		bank:     bank,
		logger:   slog.Default(),
		duration: DefaultDuration,
	}
	for _, opt := range opts {
		opt(ctrl)
	}
	ctrl.resetLocked()
	return ctrl
}

func (c *Controller) resetLocked() {
	c.phase = PhasePre
	c.remaining = int(c.duration / time.Second)
	c.paused = true
	c.confidence = 0
	c.diagAnswers = nil
	c.satisfaction = 0
	c.quizIndex = 0
	c.quizAnswers = nil
}

// Run drives the teaching countdown at one tick per second until ctx
// is cancelled.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Tick()
		}
	}
}

// Tick advances the teaching countdown by one second. Outside the
// teaching phase, or while paused, it does nothing. Reaching zero
// ends teaching.
func (c *Controller) Tick() {
	c.mu.Lock()
	if c.phase != PhaseTeaching || c.paused || c.remaining <= 0 {
		c.mu.Unlock()
		return
	}
	c.remaining--
	expired := c.remaining == 0
	if expired {
		c.phase = PhasePost
	}
	c.mu.Unlock()

	if expired {
		c.logger.Info("teaching time is up", "topic", c.bank.Topic)
		c.stopSpeech()
	}
}

// SetConfidence records the student's self-reported confidence, 1-5.
func (c *Controller) SetConfidence(level int) {
	if level < 1 || level > 5 {
		panic(fmt.Sprintf("session: confidence level %d out of range 1-5", level))
	}
	c.mu.Lock()
	c.confidence = level
	c.mu.Unlock()
}

// DiagnosticQuestion returns the i-th diagnostic question.
func (c *Controller) DiagnosticQuestion(i int) string {
	if i < 0 || i >= len(c.bank.Diagnostics) {
		panic(fmt.Sprintf("session: diagnostic index %d out of range", i))
	}
	return c.bank.Diagnostics[i]
}

// AnswerDiagnostic records one diagnostic answer. Answering the last
// question starts the teaching phase: the countdown unpauses and the
// session greeting goes to the tutor.
func (c *Controller) AnswerDiagnostic(ctx context.Context, answer string) {
	c.mu.Lock()
	if c.phase != PhasePre {
		c.mu.Unlock()
		return
	}
	c.diagAnswers = append(c.diagAnswers, answer)
	started := len(c.diagAnswers) >= len(c.bank.Diagnostics)
	if started {
		c.phase = PhaseTeaching
		c.paused = false
	}
	c.mu.Unlock()

	if started {
		c.logger.Info("teaching phase started", "topic", c.bank.Topic)
		if c.chat != nil {
			c.chat.StartSession(ctx)
		}
	}
}

// DiagnosticAnswers returns the recorded diagnostic answers.
func (c *Controller) DiagnosticAnswers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.diagAnswers))
	copy(out, c.diagAnswers)
	return out
}

// SendMessage forwards a student message to the tutor. Only valid
// while teaching.
func (c *Controller) SendMessage(ctx context.Context, text string) {
	c.mu.Lock()
	teaching := c.phase == PhaseTeaching
	c.mu.Unlock()
	if !teaching || c.chat == nil {
		return
	}
	c.chat.Send(ctx, text)
}

// HandleAssistantMessage speaks a completed tutor reply aloud. Wire it
// as the chat client's OnMessageComplete callback. Muted sessions and
// non-teaching phases stay silent.
func (c *Controller) HandleAssistantMessage(text string) {
	c.mu.Lock()
	speak := c.phase == PhaseTeaching && !c.muted
	c.mu.Unlock()
	if speak && c.speech != nil {
		c.speech.Speak(context.Background(), text)
	}
}

// Pause halts the countdown.
func (c *Controller) Pause() {
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
}

// Resume restarts the countdown.
func (c *Controller) Resume() {
	c.mu.Lock()
	if c.phase == PhaseTeaching {
		c.paused = false
	}
	c.mu.Unlock()
}

// SetMuted toggles speech output for tutor replies. Muting does not
// interrupt a reply already playing.
func (c *Controller) SetMuted(muted bool) {
	c.mu.Lock()
	c.muted = muted
	c.mu.Unlock()
}

// EndTeaching moves to the reflection phase and silences the tutor.
func (c *Controller) EndTeaching() {
	c.mu.Lock()
	if c.phase != PhaseTeaching {
		c.mu.Unlock()
		return
	}
	c.phase = PhasePost
	c.mu.Unlock()

	c.stopSpeech()
	if c.chat != nil {
		c.chat.Cancel()
	}
}

// SetSatisfaction records the post-session rating, 1-5. Optional.
func (c *Controller) SetSatisfaction(rating int) {
	if rating < 1 || rating > 5 {
		panic(fmt.Sprintf("session: satisfaction rating %d out of range 1-5", rating))
	}
	c.mu.Lock()
	if c.phase == PhasePost {
		c.satisfaction = rating
	}
	c.mu.Unlock()
}

// StartQuiz moves from reflection to the quiz.
func (c *Controller) StartQuiz() {
	c.mu.Lock()
	if c.phase == PhasePost {
		c.phase = PhaseQuiz
		c.quizIndex = 0
		c.quizAnswers = nil
	}
	c.mu.Unlock()
}

// CurrentQuestion returns the quiz question awaiting an answer.
func (c *Controller) CurrentQuestion() QuizQuestion {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseQuiz {
		panic("session: CurrentQuestion outside the quiz phase")
	}
	return c.bank.Quiz[c.quizIndex]
}

// AnswerQuiz records the chosen option for the current question and
// advances. Answering the last question completes the session.
func (c *Controller) AnswerQuiz(optionIndex int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseQuiz {
		return
	}
	q := c.bank.Quiz[c.quizIndex]
	if optionIndex < 0 || optionIndex >= len(q.Options) {
		panic(fmt.Sprintf("session: option index %d out of range for question %d", optionIndex, q.ID))
	}
	c.quizAnswers = append(c.quizAnswers, optionIndex)
	if c.quizIndex < len(c.bank.Quiz)-1 {
		c.quizIndex++
		return
	}
	c.phase = PhaseComplete
}

// Score counts the quiz answers matching the answer key.
func (c *Controller) Score() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scoreLocked()
}

func (c *Controller) scoreLocked() int {
	correct := 0
	for i, answer := range c.quizAnswers {
		if answer == c.bank.Quiz[i].Correct {
			correct++
		}
	}
	return correct
}

// Summary returns the session outcome.
func (c *Controller) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	score := c.scoreLocked()
	total := len(c.bank.Quiz)
	return Summary{
		Topic:        c.bank.Topic,
		Score:        score,
		Total:        total,
		Percentage:   float64(score) / float64(total) * 100,
		Confidence:   c.confidence,
		Satisfaction: c.satisfaction,
	}
}

// Reset returns the session to its initial state for a fresh run.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.resetLocked()
	c.mu.Unlock()

	c.stopSpeech()
	if c.chat != nil {
		c.chat.Cancel()
		c.chat.ClearMessages()
	}
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Snapshot returns the observable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Phase:            c.phase,
		Topic:            c.bank.Topic,
		RemainingSeconds: c.remaining,
		Paused:           c.paused,
		Muted:            c.muted,
		ConfidenceLevel:  c.confidence,
		DiagnosticsDone:  len(c.diagAnswers),
		DiagnosticsTotal: len(c.bank.Diagnostics),
		QuizIndex:        c.quizIndex,
		QuizTotal:        len(c.bank.Quiz),
		Satisfaction:     c.satisfaction,
	}
}

// FormatRemaining renders the countdown as MM:SS.
func (c *Controller) FormatRemaining() string {
	c.mu.Lock()
	remaining := c.remaining
	c.mu.Unlock()
	return fmt.Sprintf("%02d:%02d", remaining/60, remaining%60)
}

func (c *Controller) stopSpeech() {
	if c.speech != nil {
		c.speech.Stop()
	}
}
