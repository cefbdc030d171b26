package session

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeChat struct {
	mu      sync.Mutex
	sent    []string
	started int
	cancels int
	clears  int
}

func (f *fakeChat) Send(ctx context.Context, text string) {
	f.mu.Lock()
	f.sent = append(f.sent, text)
	f.mu.Unlock()
}

func (f *fakeChat) StartSession(ctx context.Context) {
	f.mu.Lock()
	f.started++
	f.mu.Unlock()
}

func (f *fakeChat) Cancel() {
	f.mu.Lock()
	f.cancels++
	f.mu.Unlock()
}

func (f *fakeChat) ClearMessages() {
	f.mu.Lock()
	f.clears++
	f.mu.Unlock()
}

type fakeSpeech struct {
	mu     sync.Mutex
	spoken []string
	stops  int
}

func (f *fakeSpeech) Speak(ctx context.Context, text string) {
	f.mu.Lock()
	f.spoken = append(f.spoken, text)
	f.mu.Unlock()
}

func (f *fakeSpeech) Stop() {
	f.mu.Lock()
	f.stops++
	f.mu.Unlock()
}

func (f *fakeSpeech) IsSpeaking() bool { return false }

func answerAllDiagnostics(t *testing.T, ctrl *Controller) {
	t.Helper()
	ctx := context.Background()
	total := ctrl.Snapshot().DiagnosticsTotal
	for i := 0; i < total; i++ {
		ctrl.AnswerDiagnostic(ctx, "answer")
	}
}

func TestController_DiagnosticsStartTeaching(t *testing.T) {
	chat := &fakeChat{}
	ctrl := NewController(nil, WithChat(chat))

	if got := ctrl.Phase(); got != PhasePre {
		t.Fatalf("initial phase = %q, want %q", got, PhasePre)
	}
	snap := ctrl.Snapshot()
	if snap.DiagnosticsTotal != 3 {
		t.Fatalf("diagnostics total = %d, want 3", snap.DiagnosticsTotal)
	}
	if !snap.Paused {
		t.Fatal("countdown running before teaching started")
	}

	ctrl.SetConfidence(3)
	ctx := context.Background()
	ctrl.AnswerDiagnostic(ctx, "not much")
	ctrl.AnswerDiagnostic(ctx, "factoring trips me up")
	if ctrl.Phase() != PhasePre {
		t.Fatal("teaching started before the last diagnostic answer")
	}
	if chat.started != 0 {
		t.Fatal("greeting sent before teaching started")
	}

	ctrl.AnswerDiagnostic(ctx, "pass the exam")
	if got := ctrl.Phase(); got != PhaseTeaching {
		t.Fatalf("phase = %q, want %q", got, PhaseTeaching)
	}
	if chat.started != 1 {
		t.Fatalf("StartSession called %d times, want 1", chat.started)
	}
	snap = ctrl.Snapshot()
	if snap.Paused {
		t.Fatal("countdown still paused after teaching started")
	}
	if snap.RemainingSeconds != 40*60 {
		t.Fatalf("remaining = %d, want %d", snap.RemainingSeconds, 40*60)
	}
	if got := ctrl.DiagnosticAnswers(); len(got) != 3 || got[1] != "factoring trips me up" {
		t.Fatalf("diagnostic answers = %v", got)
	}
}

func TestController_Tick(t *testing.T) {
	ctrl := NewController(nil)
	answerAllDiagnostics(t, ctrl)

	ctrl.Tick()
	ctrl.Tick()
	if got := ctrl.Snapshot().RemainingSeconds; got != 40*60-2 {
		t.Fatalf("remaining = %d, want %d", got, 40*60-2)
	}

	ctrl.Pause()
	ctrl.Tick()
	if got := ctrl.Snapshot().RemainingSeconds; got != 40*60-2 {
		t.Fatalf("remaining advanced while paused: %d", got)
	}

	ctrl.Resume()
	ctrl.Tick()
	if got := ctrl.Snapshot().RemainingSeconds; got != 40*60-3 {
		t.Fatalf("remaining = %d after resume, want %d", got, 40*60-3)
	}
}

func TestController_TickIgnoredOutsideTeaching(t *testing.T) {
	ctrl := NewController(nil)
	ctrl.Tick()
	if got := ctrl.Snapshot().RemainingSeconds; got != 40*60 {
		t.Fatalf("remaining = %d in pre phase, want %d", got, 40*60)
	}
}

func TestController_TimerExpiryEndsTeaching(t *testing.T) {
	speech := &fakeSpeech{}
	ctrl := NewController(nil, WithSpeech(speech), WithDuration(3*time.Second))
	answerAllDiagnostics(t, ctrl)

	ctrl.Tick()
	ctrl.Tick()
	if ctrl.Phase() != PhaseTeaching {
		t.Fatal("teaching ended early")
	}
	ctrl.Tick()
	if got := ctrl.Phase(); got != PhasePost {
		t.Fatalf("phase = %q after expiry, want %q", got, PhasePost)
	}
	if speech.stops == 0 {
		t.Fatal("speech not stopped when teaching ended")
	}

	// Extra ticks past zero change nothing.
	ctrl.Tick()
	if got := ctrl.Snapshot().RemainingSeconds; got != 0 {
		t.Fatalf("remaining = %d, want 0", got)
	}
}

func TestController_EndTeachingStopsSpeech(t *testing.T) {
	chat := &fakeChat{}
	speech := &fakeSpeech{}
	ctrl := NewController(nil, WithChat(chat), WithSpeech(speech))
	answerAllDiagnostics(t, ctrl)

	ctrl.EndTeaching()
	if got := ctrl.Phase(); got != PhasePost {
		t.Fatalf("phase = %q, want %q", got, PhasePost)
	}
	if speech.stops == 0 {
		t.Fatal("speech not stopped")
	}
	if chat.cancels == 0 {
		t.Fatal("in-flight chat not cancelled")
	}

	// Idempotent outside teaching.
	ctrl.EndTeaching()
	if got := ctrl.Phase(); got != PhasePost {
		t.Fatalf("phase = %q after second EndTeaching, want %q", got, PhasePost)
	}
}

func TestController_AssistantMessagesAreSpoken(t *testing.T) {
	speech := &fakeSpeech{}
	ctrl := NewController(nil, WithSpeech(speech))
	answerAllDiagnostics(t, ctrl)

	ctrl.HandleAssistantMessage("the discriminant tells you how many real roots exist")
	if len(speech.spoken) != 1 {
		t.Fatalf("spoken %d times, want 1", len(speech.spoken))
	}

	ctrl.SetMuted(true)
	ctrl.HandleAssistantMessage("this one stays silent")
	if len(speech.spoken) != 1 {
		t.Fatal("muted reply was spoken")
	}

	ctrl.SetMuted(false)
	ctrl.EndTeaching()
	ctrl.HandleAssistantMessage("too late, teaching is over")
	if len(speech.spoken) != 1 {
		t.Fatal("reply spoken outside teaching")
	}
}

func TestController_SendMessageOnlyWhileTeaching(t *testing.T) {
	chat := &fakeChat{}
	ctrl := NewController(nil, WithChat(chat))

	ctrl.SendMessage(context.Background(), "too early")
	if len(chat.sent) != 0 {
		t.Fatal("message sent in pre phase")
	}

	answerAllDiagnostics(t, ctrl)
	ctrl.SendMessage(context.Background(), "what is a discriminant?")
	if len(chat.sent) != 1 || chat.sent[0] != "what is a discriminant?" {
		t.Fatalf("sent = %v", chat.sent)
	}
}

func TestController_QuizFlow(t *testing.T) {
	ctrl := NewController(nil)
	answerAllDiagnostics(t, ctrl)
	ctrl.EndTeaching()
	ctrl.SetSatisfaction(4)
	ctrl.StartQuiz()

	if got := ctrl.Phase(); got != PhaseQuiz {
		t.Fatalf("phase = %q, want %q", got, PhaseQuiz)
	}

	// Answer the key for the first five, then always option 0.
	key := []int{1, 2, 1, 2, 2, 2, 1, 1, 0, 0}
	answers := []int{1, 2, 1, 2, 2, 0, 0, 0, 0, 0}
	for i, a := range answers {
		q := ctrl.CurrentQuestion()
		if q.ID != i+1 {
			t.Fatalf("question id = %d at index %d, want %d", q.ID, i, i+1)
		}
		ctrl.AnswerQuiz(a)
	}

	if got := ctrl.Phase(); got != PhaseComplete {
		t.Fatalf("phase = %q after last answer, want %q", got, PhaseComplete)
	}

	wantScore := 0
	for i := range answers {
		if answers[i] == key[i] {
			wantScore++
		}
	}
	if got := ctrl.Score(); got != wantScore {
		t.Fatalf("score = %d, want %d", got, wantScore)
	}

	sum := ctrl.Summary()
	if sum.Score != wantScore || sum.Total != 10 {
		t.Fatalf("summary = %+v", sum)
	}
	if sum.Percentage != float64(wantScore)*10 {
		t.Fatalf("percentage = %v, want %v", sum.Percentage, float64(wantScore)*10)
	}
	if sum.Satisfaction != 4 {
		t.Fatalf("satisfaction = %d, want 4", sum.Satisfaction)
	}
	if sum.Topic != "Quadratic Equations" {
		t.Fatalf("topic = %q", sum.Topic)
	}
}

func TestController_PerfectScore(t *testing.T) {
	ctrl := NewController(nil)
	answerAllDiagnostics(t, ctrl)
	ctrl.EndTeaching()
	ctrl.StartQuiz()

	for ctrl.Phase() == PhaseQuiz {
		ctrl.AnswerQuiz(ctrl.CurrentQuestion().Correct)
	}
	if got := ctrl.Score(); got != 10 {
		t.Fatalf("score = %d, want 10", got)
	}
	if got := ctrl.Summary().Percentage; got != 100 {
		t.Fatalf("percentage = %v, want 100", got)
	}
}

func TestController_AnswerQuiz_OutOfRangePanics(t *testing.T) {
	ctrl := NewController(nil)
	answerAllDiagnostics(t, ctrl)
	ctrl.EndTeaching()
	ctrl.StartQuiz()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-range option index")
		}
	}()
	ctrl.AnswerQuiz(7)
}

func TestController_DiagnosticQuestion_OutOfRangePanics(t *testing.T) {
	ctrl := NewController(nil)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-range diagnostic index")
		}
	}()
	ctrl.DiagnosticQuestion(3)
}

func TestController_Reset(t *testing.T) {
	chat := &fakeChat{}
	speech := &fakeSpeech{}
	ctrl := NewController(nil, WithChat(chat), WithSpeech(speech))
	answerAllDiagnostics(t, ctrl)
	ctrl.Tick()
	ctrl.EndTeaching()
	ctrl.StartQuiz()
	ctrl.AnswerQuiz(1)

	ctrl.Reset()

	snap := ctrl.Snapshot()
	if snap.Phase != PhasePre {
		t.Fatalf("phase = %q after reset, want %q", snap.Phase, PhasePre)
	}
	if snap.RemainingSeconds != 40*60 {
		t.Fatalf("remaining = %d after reset, want %d", snap.RemainingSeconds, 40*60)
	}
	if snap.DiagnosticsDone != 0 || snap.QuizIndex != 0 {
		t.Fatalf("snapshot after reset = %+v", snap)
	}
	if chat.clears == 0 {
		t.Fatal("chat history not cleared on reset")
	}
	if speech.stops == 0 {
		t.Fatal("speech not stopped on reset")
	}
	if got := ctrl.Score(); got != 0 {
		t.Fatalf("score = %d after reset, want 0", got)
	}
}

func TestController_FormatRemaining(t *testing.T) {
	ctrl := NewController(nil, WithDuration(61*time.Second))
	if got := ctrl.FormatRemaining(); got != "01:01" {
		t.Fatalf("FormatRemaining() = %q, want 01:01", got)
	}
}
