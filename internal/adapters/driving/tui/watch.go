package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/pda/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/pda/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/pda/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/pda/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/pda/internal/core/domain"
)

// DefaultPollInterval is how often the job is re-read.
const DefaultPollInterval = time.Second

// Watch follows one generation job until it finishes or the user quits.
// It implements tea.Model for use with Bubbletea.
type Watch struct {
	ports    *Ports
	ctx      context.Context
	jobID    string
	interval time.Duration

	styles  *styles.Styles
	keymap  *keymap.KeyMap
	bar     *status.Bar
	spinner spinner.Model
	meter   progress.Model

	job         *domain.GenerationJob
	err         error
	showDetails bool
	showHelp    bool
	quitting    bool
}

// Ensure Watch implements tea.Model.
var _ tea.Model = (*Watch)(nil)

// NewWatch creates a watcher for jobID.
func NewWatch(ports *Ports, jobID string) (*Watch, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating watch: %w", err)
	}
	if strings.TrimSpace(jobID) == "" {
		return nil, ErrMissingJobID
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()
	bar := status.NewBar(s, km)
	bar.SetJobID(jobID)
	from, to := s.ProgressGradient()

	return &Watch{
		ports:    ports,
		ctx:      context.Background(),
		jobID:    jobID,
		interval: DefaultPollInterval,
		styles:   s,
		keymap:   km,
		bar:      bar,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(s.Active)),
		meter:    progress.New(progress.WithGradient(from, to)),
	}, nil
}

// WithContext sets the context used for polling.
func (w *Watch) WithContext(ctx context.Context) *Watch {
	w.ctx = ctx
	return w
}

// WithInterval sets the poll interval.
func (w *Watch) WithInterval(d time.Duration) *Watch {
	if d > 0 {
		w.interval = d
	}
	return w
}

// Job returns the last job record read.
func (w *Watch) Job() *domain.GenerationJob {
	return w.job
}

// Err returns the last polling error.
func (w *Watch) Err() error {
	return w.err
}

// Init implements tea.Model.
func (w *Watch) Init() tea.Cmd {
	return tea.Batch(w.poll, w.spinner.Tick)
}

// Update implements tea.Model.
func (w *Watch) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return w.handleKey(msg)

	case tea.WindowSizeMsg:
		w.bar.SetWidth(msg.Width)
		w.meter.Width = min(max(msg.Width-4, 10), 80)
		return w, nil

	case messages.PollRequested, messages.Tick:
		return w, w.poll

	case messages.JobPolled:
		return w.handlePoll(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		w.spinner, cmd = w.spinner.Update(msg)
		return w, cmd

	case progress.FrameMsg:
		m, cmd := w.meter.Update(msg)
		if p, ok := m.(progress.Model); ok {
			w.meter = p
		}
		return w, cmd
	}
	return w, nil
}

func (w *Watch) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := msg.String()
	switch {
	case keymap.Matches(k, w.keymap.Quit):
		w.quitting = true
		return w, tea.Quit
	case keymap.Matches(k, w.keymap.Help):
		w.showHelp = !w.showHelp
		w.syncBar()
	case keymap.Matches(k, w.keymap.Details):
		w.showDetails = !w.showDetails
	case keymap.Matches(k, w.keymap.Refresh):
		return w, w.poll
	}
	return w, nil
}

func (w *Watch) handlePoll(msg messages.JobPolled) (tea.Model, tea.Cmd) {
	w.bar.RecordPoll()
	w.err = msg.Err
	if msg.Err == nil {
		w.job = msg.Job
	}
	w.syncBar()

	if msg.Terminal() {
		w.quitting = true
		return w, tea.Sequence(w.meter.SetPercent(1), tea.Quit)
	}

	cmds := []tea.Cmd{w.tick()}
	if w.job != nil {
		cmds = append(cmds, w.meter.SetPercent(float64(w.job.Progress)/100))
	}
	return w, tea.Batch(cmds...)
}

func (w *Watch) syncBar() {
	switch {
	case w.showHelp:
		w.bar.SetState(status.StateHelp)
	case w.err != nil:
		w.bar.SetState(status.StateError)
		w.bar.SetMessage(w.err.Error())
	case w.job != nil && w.job.Status == domain.JobSucceeded:
		w.bar.SetState(status.StateDone)
	case w.job != nil && w.job.Status == domain.JobFailed:
		w.bar.SetState(status.StateFailed)
	default:
		w.bar.SetState(status.StateWatching)
	}
}

// poll reads the job once.
func (w *Watch) poll() tea.Msg {
	job, err := w.ports.Generation.Get(w.ctx, w.jobID)
	return messages.JobPolled{Job: job, Err: err}
}

func (w *Watch) tick() tea.Cmd {
	return tea.Tick(w.interval, func(t time.Time) tea.Msg {
		return messages.Tick{At: t}
	})
}

// View implements tea.Model.
func (w *Watch) View() string {
	var b strings.Builder

	b.WriteString(w.styles.Title.Render("Generation job " + w.jobID))
	b.WriteString("\n")
	if w.job != nil {
		fmt.Fprintf(&b, "%s  %s  %s\n", w.styles.Muted.Render("product"),
			w.job.ProductID, w.styles.JobStatus(w.job.Status))
	}
	b.WriteString("\n")

	b.WriteString(w.meter.View())
	b.WriteString("\n\n")

	for _, st := range messages.Stages() {
		b.WriteString(w.renderStage(st))
		b.WriteString("\n")
	}

	if w.job != nil && w.job.Metadata.StageDetail != "" {
		b.WriteString("\n")
		b.WriteString(w.styles.Normal.Render(w.job.Metadata.StageDetail))
		b.WriteString("\n")
	}
	if w.job != nil && w.job.Status == domain.JobFailed {
		b.WriteString("\n")
		b.WriteString(w.styles.Error.Render(w.job.ErrorMessage))
		b.WriteString("\n")
	}
	if w.showDetails && w.job != nil {
		b.WriteString("\n")
		b.WriteString(w.styles.Panel.Render(w.renderDetails()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(w.bar.View())
	if !w.quitting {
		b.WriteString("\n")
	}
	return b.String()
}

func (w *Watch) renderStage(st messages.Stage) string {
	switch messages.StateOf(w.job, st.Name) {
	case messages.StageDone:
		return w.styles.Success.Render("✓ ") + w.styles.Normal.Render(st.Label)
	case messages.StageActive:
		return w.spinner.View() + " " + w.styles.Active.Render(st.Label)
	case messages.StageFailed:
		return w.styles.Error.Render("✗ " + st.Label)
	default:
		return w.styles.Muted.Render("· " + st.Label)
	}
}

func (w *Watch) renderDetails() string {
	m := w.job.Metadata
	lines := []string{
		fmt.Sprintf("fact sheet: %t  audit: %t  content: %t", m.HasFactSheet, m.HasAudit, m.HasContent),
	}
	if m.VerifierReport != nil {
		lines = append(lines, fmt.Sprintf("verifier: %d blocking, %d warnings",
			len(m.VerifierReport.BlockedIssues), len(m.VerifierReport.Warnings)))
	}
	if m.VerifierBlocked {
		lines = append(lines, w.styles.Warning.Render("verifier blocked report assembly"))
	}
	if cm := m.ContentMetadata; cm != nil {
		lines = append(lines,
			fmt.Sprintf("model: %s/%s  tokens: %d  %.1fs", cm.Provider, cm.Model,
				cm.TokenUsage.TotalTokens, cm.DurationSeconds),
			fmt.Sprintf("guardrail warnings: %d", len(cm.GuardrailWarnings)),
		)
	}
	return strings.Join(lines, "\n")
}
