package cli

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/askrichie/internal/adapters/driven/apiclient"
	"github.com/custodia-labs/askrichie/internal/adapters/driven/audio"
	"github.com/custodia-labs/askrichie/internal/core/domain"
	"github.com/custodia-labs/askrichie/internal/core/ports/driven"
	"github.com/custodia-labs/askrichie/internal/core/services"
)

var (
	chatVoice   bool
	chatNoMic   bool
	chatURL     string
	chatToken   string
	chatHistory int
)

const chatHelp = `Start an interactive chat session against an Ask Richie server.

Type a question and press Enter. Voice input is captured with ffmpeg and
answers can be read aloud through ffplay.

Commands:
  /record     Start recording a spoken question
  /stop       Stop recording and show the transcript for review
  /cancel     Discard the current recording
  /send       Send the reviewed transcript (or press Enter on an empty line)
  /voice      Toggle reading answers aloud
  /speak [n]  Read answer n aloud (default: the last one)
  /mute       Stop speaking
  /history    Show recent questions
  /usage      Show today's question quota
  /quit       Leave the chat`

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat with Richie",
	Long:  chatHelp,
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().BoolVar(&chatVoice, "voice", false, "read answers aloud")
	chatCmd.Flags().BoolVar(&chatNoMic, "no-mic", false, "disable voice input")
	chatCmd.Flags().StringVar(&chatURL, "url", "", "API base URL (default $ASKRICHIE_URL or http://localhost:8080)")
	chatCmd.Flags().StringVar(&chatToken, "token", "", "bearer token (default $ASKRICHIE_TOKEN)")
	chatCmd.Flags().IntVar(&chatHistory, "history", 10, "entries shown by /history")
	rootCmd.AddCommand(chatCmd)
}

// chatAPI is the part of the API client a chat session calls directly
type chatAPI interface {
	Usage(ctx context.Context) (*domain.UsageStatus, error)
	History(ctx context.Context, limit int) ([]*domain.Interaction, error)
}

func newAPIClient(url, token string) (*apiclient.Client, error) {
	if url == "" {
		url = getEnv("ASKRICHIE_URL", "http://localhost:8080")
	}
	if token == "" {
		token = getEnv("ASKRICHIE_TOKEN", "")
	}
	return apiclient.New(apiclient.Config{
		BaseURL: url,
		Token:   token,
		Timeout: getEnvDuration("ASKRICHIE_TIMEOUT", 90*time.Second),
	})
}

func runChat(cmd *cobra.Command, args []string) error {
	client, err := newAPIClient(chatURL, chatToken)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	out := &lockedWriter{w: cmd.OutOrStdout()}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))

	playback := services.NewPlaybackController(services.PlaybackConfig{
		Synthesizer: client,
		Speaker:     audio.NewSpeaker(audio.SpeakerConfig{Logger: logger}),
		OnError: func(messageID string, err error) {
			printError(out, err)
		},
		Logger: logger,
	})

	var recorder *services.Recorder
	if !chatNoMic {
		recorder = services.NewRecorder(services.RecorderConfig{
			Microphone:  audio.NewMicrophone(audio.MicrophoneConfig{Logger: logger}),
			Transcriber: client,
			Playback:    playback,
			Logger:      logger,
		})
	}

	session := newChatSession(client, client, recorder, playback, chatVoice, out, logger)
	defer playback.Stop()
	if recorder != nil {
		defer recorder.Cancel()
	}
	return session.run(ctx, cmd.InOrStdin())
}

// chatSession drives the orchestrator from lines of terminal input
type chatSession struct {
	orch    *services.Orchestrator
	api     chatAPI
	out     io.Writer
	history int

	draft string // reviewed transcript waiting to be sent

	busy    atomic.Bool
	pending sync.WaitGroup
}

func newChatSession(
	answerer driven.Answerer,
	api chatAPI,
	recorder *services.Recorder,
	playback *services.PlaybackController,
	voice bool,
	out io.Writer,
	logger *slog.Logger,
) *chatSession {
	return &chatSession{
		orch: services.NewOrchestrator(services.OrchestratorConfig{
			Answerer:    answerer,
			Recorder:    recorder,
			Playback:    playback,
			VoiceOutput: voice && playback != nil,
			Logger:      logger,
		}),
		api:     api,
		out:     out,
		history: chatHistory,
	}
}

func (s *chatSession) run(ctx context.Context, in io.Reader) error {
	bold := color.New(color.FgGreen, color.Bold).SprintFunc()
	fmt.Fprintln(s.out, bold("Ask Richie"))
	fmt.Fprintln(s.out, "Type a question and press Enter. /help lists commands, /quit leaves.")
	fmt.Fprintln(s.out)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	defer s.wait()
	for {
		fmt.Fprint(s.out, bold("You: "))
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out)
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := s.handle(ctx, line); quit {
				return nil
			}
		}
	}
}

// wait blocks until the question in flight, if any, has been answered
func (s *chatSession) wait() {
	s.pending.Wait()
}

// handle processes one input line and reports whether the session should end
func (s *chatSession) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		if s.draft != "" && s.submit(ctx, s.draft) {
			s.draft = ""
		}
		return false
	}
	if !strings.HasPrefix(line, "/") {
		if s.submit(ctx, line) {
			s.draft = ""
		}
		return false
	}

	command, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(command) {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(s.out, chatHelp)
	case "/record":
		if err := s.orch.StartRecording(ctx); err != nil {
			printError(s.out, err)
			return false
		}
		fmt.Fprintln(s.out, "Recording... type /stop when you are done.")
	case "/stop":
		s.stopRecording(ctx)
	case "/cancel":
		s.orch.CancelRecording()
		s.draft = ""
		fmt.Fprintln(s.out, "Recording discarded.")
	case "/send":
		if s.draft == "" {
			fmt.Fprintln(s.out, "Nothing to send.")
			return false
		}
		if s.submit(ctx, s.draft) {
			s.draft = ""
		}
	case "/voice":
		enabled := !s.orch.VoiceOutput()
		s.orch.SetVoiceOutput(enabled)
		if enabled {
			fmt.Fprintln(s.out, "Answers will be read aloud.")
		} else {
			s.orch.StopSpeaking()
			fmt.Fprintln(s.out, "Voice output off.")
		}
	case "/speak":
		s.speak(ctx, arg)
	case "/mute":
		s.orch.StopSpeaking()
	case "/history":
		s.showHistory(ctx)
	case "/usage":
		s.showUsage(ctx)
	default:
		fmt.Fprintf(s.out, "Unknown command %s. Type /help for the list.\n", command)
	}
	return false
}

// submit sends question in the background so the input loop keeps reading
// while Richie answers. It reports false when a question is already in flight.
func (s *chatSession) submit(ctx context.Context, question string) bool {
	if !s.busy.CompareAndSwap(false, true) {
		printError(s.out, domain.ErrSubmissionInFlight)
		return false
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer s.busy.Store(false)
		turn, err := s.orch.Submit(ctx, question)
		if err != nil {
			printError(s.out, err)
			return
		}
		// one write so the answer is not split by a prompt
		var buf bytes.Buffer
		printTurn(&buf, len(s.orch.Transcript()), turn)
		_, _ = s.out.Write(buf.Bytes())
	}()
	return true
}

func (s *chatSession) stopRecording(ctx context.Context) {
	text, err := s.orch.StopRecording(ctx)
	if err != nil {
		printError(s.out, err)
		return
	}
	if text == "" {
		fmt.Fprintln(s.out, "Not recording.")
		return
	}
	s.draft = text
	fmt.Fprintf(s.out, "Transcript: %s\n", text)
	fmt.Fprintln(s.out, "Press Enter to send it, or type a replacement.")
}

func (s *chatSession) speak(ctx context.Context, arg string) {
	transcript := s.orch.Transcript()
	if len(transcript) == 0 {
		fmt.Fprintln(s.out, "No answers yet.")
		return
	}
	n := len(transcript)
	if arg != "" {
		v, err := strconv.Atoi(arg)
		if err != nil || v < 1 || v > len(transcript) {
			fmt.Fprintf(s.out, "Pick an answer between 1 and %d.\n", len(transcript))
			return
		}
		n = v
	}
	if err := s.orch.Speak(ctx, transcript[n-1].ID); err != nil {
		printError(s.out, err)
	}
}

func (s *chatSession) showHistory(ctx context.Context) {
	items, err := s.api.History(ctx, s.history)
	if err != nil {
		printError(s.out, err)
		return
	}
	if len(items) == 0 {
		fmt.Fprintln(s.out, "No questions yet.")
		return
	}
	for _, it := range items {
		fmt.Fprintf(s.out, "%s  %s\n", it.CreatedAt.Local().Format("2006-01-02 15:04"), it.Question)
	}
}

func (s *chatSession) showUsage(ctx context.Context) {
	status, err := s.api.Usage(ctx)
	if err != nil {
		printError(s.out, err)
		return
	}
	printUsage(s.out, status)
}

func printTurn(out io.Writer, n int, turn *domain.Turn) {
	label := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintf(out, "%s %s\n", label(fmt.Sprintf("Richie [%d]:", n)), turn.Answer)
	printSources(out, turn.Sources)
	fmt.Fprintln(out)
}

func printSources(out io.Writer, sources []domain.Citation) {
	if len(sources) == 0 {
		return
	}
	faint := color.New(color.Faint).SprintFunc()
	fmt.Fprintln(out, faint("Sources:"))
	for _, c := range sources {
		line := fmt.Sprintf("  %s %s (%s)", c.Reference, c.Title, c.DocType)
		if c.URL != "" {
			line += " " + c.URL
		}
		fmt.Fprintln(out, faint(line))
	}
}

func printUsage(out io.Writer, status *domain.UsageStatus) {
	if status.Unlimited {
		fmt.Fprintf(out, "Tier %s: unlimited questions.\n", status.Tier)
		return
	}
	fmt.Fprintf(out, "Tier %s: %d of %d questions used today, %d left. Resets %s.\n",
		status.Tier, status.Used, status.Limit, status.Remaining,
		status.ResetAt.Local().Format("Jan 2 15:04"))
}

func printError(out io.Writer, err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintln(out, red(domain.UserMessage(err)))
}

// lockedWriter serializes writes from the input loop, answers arriving in the
// background and playback callbacks
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
