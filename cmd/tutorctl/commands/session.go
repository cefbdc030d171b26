package commands

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/priyalabs/tutor-lite/pkg/core/chat"
	"github.com/priyalabs/tutor-lite/pkg/core/voice"
	"github.com/priyalabs/tutor-lite/pkg/core/voice/tts"
	"github.com/priyalabs/tutor-lite/pkg/session"
)

var (
	sessionGatewayURL string
	sessionName       string
	sessionBankFile   string
	sessionMuted      bool
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f")).Padding(0, 1)
	tutorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#a855f7"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681"))
	errStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff5f5f"))
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Run an interactive tutoring session",
	Long: `Drives a full tutoring session in the terminal: diagnostic questions,
a timed teaching conversation with the tutor, a reflection step, the
quiz, and the final score. Tutor replies are spoken aloud unless the
session is muted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bank := session.DefaultBank()
		if sessionBankFile != "" {
			loaded, err := session.LoadBankFile(sessionBankFile)
			if err != nil {
				return err
			}
			bank = loaded
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		in := bufio.NewScanner(os.Stdin)
		base := strings.TrimSuffix(sessionGatewayURL, "/")

		fmt.Println(titleStyle.Render("Tutor Session — " + bank.Topic))
		fmt.Println(dimStyle.Render("gateway: " + base))
		fmt.Println()

		confidence := askConfidence(in)

		printer := &deltaPrinter{}
		remote := tts.NewRemote(base + "/v1/tts")
		pipeline := voice.NewPipeline(remote, voice.NewFFPlayPlayer(),
			voice.WithLocalFallback(tts.NewExecSynthesizer()),
			voice.WithPipelineLogger(slog.Default()),
			voice.WithPipelineCallbacks(voice.Callbacks{
				OnFallbackNotice: func() {
					fmt.Println(dimStyle.Render("(voice degraded: using the local speech engine)"))
				},
				OnError: func(err error) {
					fmt.Println(dimStyle.Render("(voice unavailable: " + err.Error() + ")"))
				},
			}),
		)

		// The controller and chat client reference each other: the client
		// is an option to the controller, and the client's callbacks call
		// back into the controller. Callbacks only fire after Send, by
		// which point ctrl is set.
		var ctrl *session.Controller
		client := chat.NewClient(base+"/v1/chat",
			chat.WithStudent(sessionName, bank.Topic, confidence),
			chat.WithLogger(slog.Default()),
			chat.WithCallbacks(chat.Callbacks{
				OnDelta: printer.print,
				OnMessageComplete: func(text string) {
					printer.finish()
					ctrl.HandleAssistantMessage(text)
				},
				OnError: func(err error) {
					printer.reset()
					fmt.Println(errStyle.Render("tutor error: " + err.Error()))
				},
			}),
		)
		ctrl = session.NewController(bank,
			session.WithChat(client),
			session.WithSpeech(pipeline),
			session.WithLogger(slog.Default()),
		)
		ctrl.SetConfidence(confidence)
		ctrl.SetMuted(sessionMuted)

		runDiagnostics(ctx, in, ctrl)
		if ctx.Err() != nil {
			return nil
		}

		go ctrl.Run(ctx)
		runTeaching(ctx, in, ctrl)
		pipeline.Stop()
		if ctx.Err() != nil {
			return nil
		}

		runPost(in, ctrl)
		runQuiz(in, ctrl)
		printSummary(ctrl)
		return nil
	},
}

func init() {
	sessionCmd.Flags().StringVar(&sessionGatewayURL, "gateway", "http://localhost:8080", "tutor gateway base URL")
	sessionCmd.Flags().StringVar(&sessionName, "name", "", "student name")
	sessionCmd.Flags().StringVar(&sessionBankFile, "bank", "", "question bank YAML (default: built-in quadratic equations)")
	sessionCmd.Flags().BoolVar(&sessionMuted, "mute", false, "start with speech muted")
}

// deltaPrinter renders a growing assistant message incrementally: it
// receives the full accumulated text on every delta and prints only
// the new suffix.
type deltaPrinter struct {
	mu      sync.Mutex
	printed int
	open    bool
}

func (p *deltaPrinter) print(fullText string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		fmt.Print(tutorStyle.Render("tutor> "))
		p.open = true
		p.printed = 0
	}
	if len(fullText) > p.printed {
		fmt.Print(tutorStyle.Render(fullText[p.printed:]))
		p.printed = len(fullText)
	}
}

func (p *deltaPrinter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.open {
		fmt.Println()
	}
	p.open = false
	p.printed = 0
}

func (p *deltaPrinter) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = false
	p.printed = 0
}

func askConfidence(in *bufio.Scanner) int {
	for {
		fmt.Print("How confident do you feel about this topic, 1-5? ")
		if !in.Scan() {
			return 3
		}
		n, err := strconv.Atoi(strings.TrimSpace(in.Text()))
		if err == nil && n >= 1 && n <= 5 {
			return n
		}
		fmt.Println(dimStyle.Render("please enter a number from 1 to 5"))
	}
}

func runDiagnostics(ctx context.Context, in *bufio.Scanner, ctrl *session.Controller) {
	fmt.Println()
	fmt.Println(titleStyle.Render("Before We Begin"))
	total := ctrl.Snapshot().DiagnosticsTotal
	for i := 0; i < total && ctx.Err() == nil; i++ {
		fmt.Printf("%d. %s\n", i+1, ctrl.DiagnosticQuestion(i))
		fmt.Print("> ")
		if !in.Scan() {
			return
		}
		ctrl.AnswerDiagnostic(ctx, strings.TrimSpace(in.Text()))
	}
}

func runTeaching(ctx context.Context, in *bufio.Scanner, ctrl *session.Controller) {
	fmt.Println()
	fmt.Println(titleStyle.Render("Teaching — " + ctrl.FormatRemaining() + " on the clock"))
	fmt.Println(dimStyle.Render("commands: /pause /resume /mute /unmute /time /end"))

	for ctx.Err() == nil && ctrl.Phase() == session.PhaseTeaching {
		fmt.Print("you> ")
		if !in.Scan() {
			ctrl.EndTeaching()
			return
		}
		line := strings.TrimSpace(in.Text())
		switch line {
		case "":
		case "/pause":
			ctrl.Pause()
			fmt.Println(dimStyle.Render("paused at " + ctrl.FormatRemaining()))
		case "/resume":
			ctrl.Resume()
			fmt.Println(dimStyle.Render("resumed"))
		case "/mute":
			ctrl.SetMuted(true)
		case "/unmute":
			ctrl.SetMuted(false)
		case "/time":
			fmt.Println(dimStyle.Render(ctrl.FormatRemaining() + " remaining"))
		case "/end":
			ctrl.EndTeaching()
		default:
			ctrl.SendMessage(ctx, line)
		}
	}
}

func runPost(in *bufio.Scanner, ctrl *session.Controller) {
	fmt.Println()
	fmt.Println(titleStyle.Render("Session Complete — How was it?"))
	fmt.Print("Rate the session 1-5 (enter to skip): ")
	if in.Scan() {
		if n, err := strconv.Atoi(strings.TrimSpace(in.Text())); err == nil && n >= 1 && n <= 5 {
			ctrl.SetSatisfaction(n)
		}
	}
	ctrl.StartQuiz()
}

func runQuiz(in *bufio.Scanner, ctrl *session.Controller) {
	fmt.Println()
	fmt.Println(titleStyle.Render("Quiz"))
	for ctrl.Phase() == session.PhaseQuiz {
		snap := ctrl.Snapshot()
		q := ctrl.CurrentQuestion()
		fmt.Printf("\nQuestion %d of %d: %s\n", snap.QuizIndex+1, snap.QuizTotal, q.Question)
		for i, opt := range q.Options {
			fmt.Printf("  %c) %s\n", 'A'+i, opt)
		}
		fmt.Print("answer> ")
		if !in.Scan() {
			return
		}
		idx, ok := parseQuizAnswer(in.Text(), len(q.Options))
		if !ok {
			fmt.Println(dimStyle.Render("please answer with a letter or option number"))
			continue
		}
		ctrl.AnswerQuiz(idx)
	}
}

func parseQuizAnswer(raw string, numOptions int) (int, bool) {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if raw == "" {
		return 0, false
	}
	if len(raw) == 1 && raw[0] >= 'A' && raw[0] < byte('A'+numOptions) {
		return int(raw[0] - 'A'), true
	}
	if n, err := strconv.Atoi(raw); err == nil && n >= 1 && n <= numOptions {
		return n - 1, true
	}
	return 0, false
}

func printSummary(ctrl *session.Controller) {
	sum := ctrl.Summary()
	fmt.Println()
	fmt.Println(titleStyle.Render("Results — " + sum.Topic))
	fmt.Printf("Score:    %d/%d\n", sum.Score, sum.Total)
	fmt.Printf("Accuracy: %.0f%%\n", sum.Percentage)
	if sum.Satisfaction > 0 {
		fmt.Printf("Rating:   %d/5\n", sum.Satisfaction)
	}
}
