package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"workshop-matchmaker/agent"
	"workshop-matchmaker/grouping"
	"workshop-matchmaker/prompt"
	"workshop-matchmaker/roster"
	"workshop-matchmaker/router"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	charmlog "github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

const (
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvGeminiAPIKey = "GEMINI_API_KEY"
	EnvADKBaseURL   = "ADK_BASE_URL"

	defaultUserRequest = "Please group the workshop attendees."
)

type options struct {
	csvPath   string
	backend   string
	model     string
	adkURL    string
	appName   string
	userID    string
	sessionID string
	repair    bool
	validate  bool
}

type stepStatus struct {
	name      string
	status    string // "waiting", "started", "completed", "error"
	message   string
	spinner   spinner.Model
	startTime time.Time
	endTime   time.Time
}

type stepUpdate struct {
	step    int
	status  string
	message string
}

type pipelineDoneMsg struct {
	report string
	err    error
}

type stepUpdateMsg struct {
	update stepUpdate
}

type matchModel struct {
	opts         options
	steps        []stepStatus
	status       string
	isProcessing bool
	report       string
	err          error
	progressChan chan stepUpdate
}

var stepNames = []string{
	"Load roster",
	"Build instruction",
	"Prepare backend",
	"Run matchmaker",
	"Decode groups",
	"Validate grouping",
}

func initialModel(opts options) matchModel {
	steps := make([]stepStatus, len(stepNames))
	for i, name := range stepNames {
		s := spinner.New()
		s.Spinner = spinner.Dot
		s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))
		steps[i] = stepStatus{
			name:    name,
			status:  "waiting",
			message: "Waiting to start...",
			spinner: s,
		}
	}

	return matchModel{
		opts:         opts,
		steps:        steps,
		status:       "Matching workshop attendees...",
		isProcessing: true,
		progressChan: make(chan stepUpdate, 16),
	}
}

func (m matchModel) Init() tea.Cmd {
	cmds := []tea.Cmd{
		func() tea.Msg {
			report, err := runPipeline(context.Background(), m.opts, m.progressChan)
			return pipelineDoneMsg{report: report, err: err}
		},
		m.listenForProgress(),
	}
	for i := range m.steps {
		cmds = append(cmds, m.steps[i].spinner.Tick)
	}
	return tea.Batch(cmds...)
}

func (m matchModel) listenForProgress() tea.Cmd {
	return func() tea.Msg {
		select {
		case update := <-m.progressChan:
			return stepUpdateMsg{update: update}
		case <-time.After(50 * time.Millisecond):
			return stepUpdateMsg{update: stepUpdate{step: -1}}
		}
	}
}

func (m matchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		default:
			if !m.isProcessing {
				return m, tea.Quit
			}
		}

	case stepUpdateMsg:
		if msg.update.step >= 0 && msg.update.step < len(m.steps) {
			step := &m.steps[msg.update.step]
			step.status = msg.update.status
			step.message = msg.update.message
			switch msg.update.status {
			case "started":
				step.startTime = time.Now()
				cmds = append(cmds, step.spinner.Tick)
			case "completed", "error":
				step.endTime = time.Now()
			}
		}
		if m.isProcessing {
			cmds = append(cmds, m.listenForProgress())
		}

	case spinner.TickMsg:
		if m.isProcessing {
			for i := range m.steps {
				if m.steps[i].status == "started" {
					var cmd tea.Cmd
					m.steps[i].spinner, cmd = m.steps[i].spinner.Update(msg)
					if cmd != nil {
						cmds = append(cmds, cmd)
					}
				}
			}
		}

	case pipelineDoneMsg:
		m.isProcessing = false
		if msg.err != nil {
			m.err = msg.err
			m.status = fmt.Sprintf("Error: %v", msg.err)
		} else {
			m.report = msg.report
			m.status = "Groups ready. Press any key to exit."
		}
	}

	return m, tea.Batch(cmds...)
}

func (m matchModel) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7D56F4")).
		MarginBottom(1)

	statusStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#626262")).
		MarginTop(1)

	if m.isProcessing {
		statusStyle = statusStyle.Foreground(lipgloss.Color("#04B575"))
	}
	if m.err != nil {
		statusStyle = statusStyle.Foreground(lipgloss.Color("#FF5F87"))
	}

	var s string
	s += titleStyle.Render("🤝 Workshop Matchmaker")
	s += "\n\n"

	for _, step := range m.steps {
		var statusIcon string
		var statusColor lipgloss.Color

		switch step.status {
		case "started":
			statusIcon = step.spinner.View()
			statusColor = lipgloss.Color("#7D56F4")
		case "completed":
			statusIcon = "✅"
			statusColor = lipgloss.Color("#04B575")
		case "error":
			statusIcon = "❌"
			statusColor = lipgloss.Color("#FF5F87")
		default:
			statusIcon = "⏳"
			statusColor = lipgloss.Color("#626262")
		}

		stepStyle := lipgloss.NewStyle().Foreground(statusColor)
		s += fmt.Sprintf("%s %s - %s\n", statusIcon, stepStyle.Render(step.name), stepStyle.Render(step.message))
	}

	s += "\n"
	s += statusStyle.Render(m.status)

	if m.report != "" {
		s += "\n\n"
		s += m.report
	}

	return s
}

// runPipeline drives the whole flow: load the roster, build the instruction,
// invoke the matchmaker backend and decode the structured answer into a
// rendered report. Step updates stream to the TUI over progress.
func runPipeline(ctx context.Context, opts options, progress chan<- stepUpdate) (string, error) {
	step := func(i int, status, message string) {
		progress <- stepUpdate{step: i, status: status, message: message}
	}
	fail := func(i int, err error) (string, error) {
		step(i, "error", err.Error())
		return "", err
	}

	step(0, "started", "Reading "+opts.csvPath)
	records, err := roster.Load(opts.csvPath)
	if err != nil {
		return fail(0, err)
	}
	step(0, "completed", fmt.Sprintf("%d attendees loaded", len(records)))

	step(1, "started", "Formatting attendee corpus")
	corpus := prompt.Corpus(records)
	instruction := prompt.Instruction(corpus)
	msg := "Instruction ready"
	if tokens, err := prompt.EstimateTokens(instruction, opts.model); err == nil {
		msg = fmt.Sprintf("Instruction ready (~%d tokens)", tokens)
	}
	step(1, "completed", msg)

	logger := charmlog.New(os.Stderr)
	logger.SetLevel(charmlog.WarnLevel)

	usage := agent.NewUsageTracker()
	step(2, "started", "Preparing "+opts.backend+" backend")
	invoker, adk, err := buildInvoker(ctx, opts, usage, logger)
	if err != nil {
		return fail(2, err)
	}

	if adk != nil {
		step(2, "started", "Creating agent session")
		if err := adk.CreateSession(ctx); err != nil {
			return fail(2, err)
		}
		step(2, "completed", "Session "+opts.sessionID)
	} else {
		step(2, "completed", "No session needed for "+opts.backend)
	}

	limited := agent.NewLimited(invoker, agent.LimitedConfig{Logger: logger})
	defer limited.Close()

	step(3, "started", "Waiting for the model")
	events, err := limited.Invoke(ctx, instruction, defaultUserRequest)
	if err != nil {
		return fail(3, err)
	}
	step(3, "completed", fmt.Sprintf("%d events received", len(events)))

	step(4, "started", "Decoding structured answer")
	var decodeOpts []grouping.Option
	if opts.repair {
		decodeOpts = append(decodeOpts, grouping.WithRepair())
	}
	result, err := grouping.Decode(events, decodeOpts...)
	if err != nil {
		return fail(4, err)
	}
	step(4, "completed", fmt.Sprintf("%d groups decoded", len(result.Groups)))

	if opts.validate {
		step(5, "started", "Checking coverage and group sizes")
		if err := grouping.ValidateAssignment(records, result, grouping.DefaultMaxGroupSize); err != nil {
			return fail(5, err)
		}
		step(5, "completed", "Every attendee placed exactly once")
	} else {
		step(5, "completed", "Skipped (run with -validate)")
	}

	return renderReport(result, usage)
}

// buildInvoker assembles the backend selected by -backend. It returns the
// ADK client separately when one is in play, since only that backend needs an
// explicit session.
func buildInvoker(ctx context.Context, opts options, usage *agent.UsageTracker, logger *charmlog.Logger) (agent.Invoker, *agent.ADKClient, error) {
	newADK := func() *agent.ADKClient {
		return agent.NewADKClient(opts.adkURL, opts.appName, opts.userID, opts.sessionID)
	}
	newOpenAI := func() (agent.Invoker, error) {
		apiKey := os.Getenv(EnvOpenAIAPIKey)
		if apiKey == "" {
			return nil, fmt.Errorf("%s environment variable not set", EnvOpenAIAPIKey)
		}
		return agent.NewOpenAIInvoker(agent.Config{Name: "openai", Model: opts.model, APIKey: apiKey}, usage), nil
	}
	newGemini := func() (agent.Invoker, error) {
		apiKey := os.Getenv(EnvGeminiAPIKey)
		if apiKey == "" {
			return nil, fmt.Errorf("%s environment variable not set", EnvGeminiAPIKey)
		}
		return agent.NewGeminiInvoker(ctx, agent.Config{Name: "gemini", APIKey: apiKey}, usage)
	}

	switch opts.backend {
	case "adk":
		adk := newADK()
		return adk, adk, nil
	case "openai":
		inv, err := newOpenAI()
		return inv, nil, err
	case "gemini":
		inv, err := newGemini()
		return inv, nil, err
	case "all":
		var backends []router.Backend
		adk := newADK()
		backends = append(backends, router.Backend{Name: "adk", Invoker: adk})
		if inv, err := newOpenAI(); err == nil {
			backends = append(backends, router.Backend{Name: "openai", Invoker: inv})
		}
		if inv, err := newGemini(); err == nil {
			backends = append(backends, router.Backend{Name: "gemini", Invoker: inv})
		}
		return router.NewRouter(backends, logger), adk, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q (want adk, openai, gemini or all)", opts.backend)
	}
}

// renderReport turns the grouping into a glamour-rendered markdown report.
func renderReport(result *grouping.GroupingResult, usage *agent.UsageTracker) (string, error) {
	var md strings.Builder
	md.WriteString("# Matchmaking Result\n\n")
	for i, g := range result.Groups {
		fmt.Fprintf(&md, "## Group %d\n\n", i+1)
		for _, member := range g.Group {
			fmt.Fprintf(&md, "- %s\n", member)
		}
		fmt.Fprintf(&md, "\n%s\n\n", g.Description)
	}
	total := usage.Total()
	if total.TotalTokens > 0 {
		fmt.Fprintf(&md, "---\n\n*%d tokens, $%.4f*\n", total.TotalTokens, total.Cost)
	}

	rendered, err := glamour.Render(md.String(), "dark")
	if err != nil {
		// Fall back to the raw markdown rather than dropping the result.
		return md.String(), nil
	}
	return rendered, nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	var opts options
	flag.StringVar(&opts.csvPath, "csv", "students.csv", "path to the attendee roster CSV")
	flag.StringVar(&opts.backend, "backend", "adk", "matchmaker backend: adk, openai, gemini or all")
	flag.StringVar(&opts.model, "model", "gpt-4o", "model for the openai backend and token estimates")
	flag.StringVar(&opts.adkURL, "adk-url", os.Getenv(EnvADKBaseURL), "base URL of the agent api_server")
	flag.StringVar(&opts.appName, "app", "workshop_matchmaker", "application name on the agent service")
	flag.StringVar(&opts.userID, "user", "user_1", "user identifier for the agent session")
	flag.StringVar(&opts.sessionID, "session", "session_1", "session identifier on the agent service")
	flag.BoolVar(&opts.repair, "repair", false, "repair malformed JSON in the model answer before decoding")
	flag.BoolVar(&opts.validate, "validate", false, "reject groupings that violate coverage or size rules")
	flag.Parse()

	program := tea.NewProgram(initialModel(opts))
	if _, err := program.Run(); err != nil {
		log.Fatal(err)
	}
}
