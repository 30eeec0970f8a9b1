// Command examcli runs a complete exam attempt from the terminal: login,
// instructions, declaration, the timed exam loop and the post-submit summary.
// It is a development harness for the session engine, not a product surface.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/catrixlabs/catrix-client/internal/apiclient"
	"github.com/catrixlabs/catrix-client/internal/config"
	"github.com/catrixlabs/catrix-client/internal/logger"
	"github.com/catrixlabs/catrix-client/internal/model"
	"github.com/catrixlabs/catrix-client/internal/proctor"
	"github.com/catrixlabs/catrix-client/internal/session"
)

// instructionPages is the instructional content shown before the declaration.
// Each page counts as one viewport of scrolling for the scroll-to-bottom gate.
var instructionPages = []string{
	`GENERAL INSTRUCTIONS

1. The clock is set on the server. The countdown timer at the top of the
   screen shows the time remaining to complete the exam.
2. When the timer reaches zero, the exam ends by itself and your answers
   are submitted automatically.`,
	`NAVIGATION

3. Use Save & Next to record an answer and move on, Previous to go back.
4. The question palette shows the status of every question:
   answered (green), marked (purple), visited (orange), not visited (gray).
5. Clear Response removes your answer without changing your visit state.`,
	`MARKING AND SUBMISSION

6. Mark for Review flags a question to revisit; a marked question with an
   answer still counts as answered.
7. Once you submit, answers can no longer be changed.
8. Window focus changes are tracked for the duration of the exam.`,
}

func main() {
	var (
		testID  = flag.String("test", "", "test id to attempt (empty lists the catalog)")
		baseURL = flag.String("base-url", "", "API base URL override")
		email   = flag.String("email", "", "account email")
	)
	flag.Parse()

	cfg := config.Load()
	if *baseURL != "" {
		cfg.APIBaseURL = *baseURL
	}
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	client := apiclient.New(cfg.APIBaseURL,
		apiclient.WithLogger(log),
		apiclient.WithUnauthorizedHook(func() {
			log.Error().Msg("credential invalidated, log in again")
		}),
	)

	in := bufio.NewReader(os.Stdin)
	ctx := context.Background()

	user, err := login(ctx, client, in, *email)
	if err != nil {
		log.Fatal().Err(err).Msg("login failed")
	}
	fmt.Printf("Signed in as %s\n\n", user.Email)

	if *testID == "" {
		listCatalog(ctx, client)
		return
	}

	test := loadTest(ctx, client, in, *testID)
	if test == nil {
		return
	}

	gates := session.NewGates()
	runInstructions(in, gates.Instructions)
	if !runDeclaration(in, gates.Declaration) {
		fmt.Println("Declaration incomplete; exam not started.")
		return
	}

	sess, err := session.New(test, client, gates, session.Options{
		Logger:           log,
		AutosaveInterval: cfg.AutosaveInterval,
		SyncTimeout:      cfg.SyncTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("cannot open session")
	}
	if err := sess.Begin(ctx); err != nil {
		log.Fatal().Err(err).Msg("cannot begin session")
	}
	defer sess.Close()

	reporter := dialProctor(ctx, cfg, client, sess, log)
	if reporter != nil {
		defer reporter.Close()
		go reporter.StartHeartbeat(30 * time.Second)
	}

	runExam(in, sess)
	printSummary(sess)
}

func login(ctx context.Context, client *apiclient.Client, in *bufio.Reader, email string) (*model.User, error) {
	if email == "" {
		fmt.Print("Email: ")
		line, err := in.ReadString('\n')
		if err != nil {
			return nil, err
		}
		email = strings.TrimSpace(line)
	}

	fmt.Print("Password: ")
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return nil, err
	}

	user, err := client.Login(ctx, email, string(pw))
	if err != nil {
		return nil, err
	}
	if apiclient.TokenExpired(client.Token(), time.Now()) {
		return nil, fmt.Errorf("server issued an already-expired token")
	}
	return user, nil
}

func listCatalog(ctx context.Context, client *apiclient.Client) {
	tests, err := client.ListTests(ctx)
	if err != nil {
		fmt.Printf("Could not load the catalog: %v\n", err)
		return
	}
	fmt.Println("Available tests:")
	for _, t := range tests {
		fmt.Printf("  %-16s %s (%d min, %d marks)\n", t.ID, t.Title, t.Duration, t.TotalMarks)
	}
	fmt.Println("\nRun again with -test <id> to attempt one.")
}

// loadTest fetches the paper, offering a retry on failure. A test that cannot
// be loaded is fatal to the session; nothing starts without it.
func loadTest(ctx context.Context, client *apiclient.Client, in *bufio.Reader, testID string) *model.Test {
	for {
		test, err := client.GetTest(ctx, testID)
		if err == nil {
			return test
		}
		fmt.Printf("Error loading exam: %v\n", err)
		if !confirm(in, "Retry?") {
			return nil
		}
	}
}

// runInstructions pages through the instructions, feeding the scroll gate one
// viewport per keypress.
func runInstructions(in *bufio.Reader, gate *session.InstructionsGate) {
	// Each page is one notional viewport; the gate only opens once the last
	// page has been shown.
	const pageHeight = 100.0
	contentHeight := pageHeight * float64(len(instructionPages))
	for i, page := range instructionPages {
		fmt.Println(page)
		gate.Update(pageHeight*float64(i), pageHeight, contentHeight)
		if i < len(instructionPages)-1 {
			fmt.Print("\n-- press Enter to continue --")
			_, _ = in.ReadString('\n')
			fmt.Println()
		}
	}
	fmt.Println()
}

func runDeclaration(in *bufio.Reader, decl *session.Declaration) bool {
	prompts := map[string]string{
		session.GateReadInstructions:     "I have read and understood the instructions",
		session.GateUnderstandTiming:     "I understand the exam is timed and the clock cannot be paused",
		session.GateUnderstandAutoSubmit: "I understand my answers are auto-submitted when time expires",
		session.GateUnderstandTracking:   "I consent to activity tracking during the exam",
		session.GateReadyToBegin:         "I am ready to begin",
	}
	fmt.Println("DECLARATION — answer y to each statement:")
	for _, gate := range decl.Gates() {
		if confirm(in, "  "+prompts[gate]) {
			_ = decl.Set(gate, true)
		}
	}
	return decl.AllPassed()
}

// dialProctor opens the activity channel. Failure is logged and ignored; the
// exam never depends on the proctor link.
func dialProctor(ctx context.Context, cfg *config.Config, client *apiclient.Client, sess *session.Session, log zerolog.Logger) *proctor.Reporter {
	wsBase := strings.TrimSuffix(cfg.APIBaseURL, "/api")
	wsBase = strings.Replace(wsBase, "https://", "wss://", 1)
	wsBase = strings.Replace(wsBase, "http://", "ws://", 1)

	reporter, err := proctor.Dial(ctx, wsBase+"/ws/proctor", client.Token(), sess.AttemptID(), log)
	if err != nil {
		log.Warn().Err(err).Msg("proctor channel unavailable")
		return nil
	}
	return reporter
}

func runExam(in *bufio.Reader, sess *session.Session) {
	test := sess.Test()
	current := 0
	_ = sess.Visit(test.Questions[current].ID)

	for {
		if sess.State() == session.StateSubmitted {
			return
		}

		showQuestion(sess, current)
		fmt.Print("> ")
		line, err := in.ReadString('\n')
		if err != nil {
			sess.Close()
			return
		}

		if sess.State() == session.StateSubmitted {
			return
		}

		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "n":
			current = move(sess, test, current, 1)
		case "p":
			current = move(sess, test, current, -1)
		case "g":
			if len(fields) > 1 {
				if n, err := strconv.Atoi(fields[1]); err == nil && n >= 1 && n <= len(test.Questions) {
					current = n - 1
					_ = sess.Visit(test.Questions[current].ID)
				}
			}
		case "a":
			if len(fields) > 1 {
				if err := sess.SetAnswer(test.Questions[current].ID, strings.Join(fields[1:], " ")); err != nil {
					fmt.Println(err)
				}
			}
		case "c":
			_ = sess.ClearAnswer(test.Questions[current].ID)
		case "f":
			_ = sess.ToggleFlag(test.Questions[current].ID)
		case "pal":
			showPalette(sess)
		case "s":
			if confirm(in, "Submit? You will not be able to change your answers") {
				_ = sess.Submit()
				return
			}
		case "q":
			sess.Close()
			return
		default:
			fmt.Println("commands: n p g <num> a <answer> c f pal s q")
		}
	}
}

func move(sess *session.Session, test *model.Test, current, delta int) int {
	next := current + delta
	if next < 0 || next >= len(test.Questions) {
		return current
	}
	_ = sess.Visit(test.Questions[next].ID)
	return next
}

func showQuestion(sess *session.Session, index int) {
	test := sess.Test()
	q := test.Questions[index]

	clock := sess.FormatRemaining()
	if sess.Critical() {
		clock += "  [TIME RUNNING OUT]"
	}
	fmt.Printf("\n[%s]  Question %d of %d  (%d marks)\n", clock, index+1, len(test.Questions), q.Marks)
	fmt.Println(q.QuestionText)
	for _, opt := range q.Options {
		fmt.Printf("  (%s) %s\n", opt.Label, opt.Text)
	}
	if q.FreeText() {
		fmt.Println("  [type-in question: answer with `a <value>`]")
	}
	if a, ok := sess.Answer(q.ID); ok {
		if a.Answered() {
			fmt.Printf("  your answer: %s", a.Value)
		}
		if a.Flagged {
			fmt.Print("  [marked for review]")
		}
		if a.Answered() || a.Flagged {
			fmt.Println()
		}
	}
}

func showPalette(sess *session.Session) {
	for i, entry := range sess.Palette() {
		fmt.Printf("  %2d %-16s %s\n", i+1, entry.Status, entry.Color)
	}
}

func printSummary(sess *session.Session) {
	s := sess.Summary()
	fmt.Println("\n✓ Test Submitted")
	if sess.Degraded() {
		fmt.Println("(recorded locally; the attempt could not be registered with the server)")
	}
	fmt.Printf("  Answered:          %d\n", s.Answered)
	fmt.Printf("  Marked for Review: %d\n", s.Flagged)
	fmt.Printf("  Not Attempted:     %d\n", s.NotAttempted)
}

func confirm(in *bufio.Reader, prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	line, err := in.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
