package tui

import (
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bamsammich/ferry/internal/event"
	"github.com/bamsammich/ferry/internal/job"
	"github.com/bamsammich/ferry/internal/stats"
	"github.com/bamsammich/ferry/internal/ui"
)

type viewMode int

const (
	viewFeed viewMode = iota
	viewRate
)

// Controller is the part of the engine handle the TUI drives.
type Controller interface {
	TogglePause() job.State
	Cancel()
	Resolve(requestID string, d job.Decision) bool
}

// Bubble Tea messages.
type engineEventMsg event.Event
type channelDoneMsg struct{}
type tickMsg time.Time
type saveResultMsg struct{ err error }

// readNextEvent returns a tea.Cmd that blocks on the event channel.
func readNextEvent(ch <-chan event.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return channelDoneMsg{}
		}
		return engineEventMsg(ev)
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// saveModal manages the text input overlay for saving the report.
type saveModal struct {
	input  string
	cursor int
	active bool
}

func (s *saveModal) insertRune(r rune) {
	s.input = s.input[:s.cursor] + string(r) + s.input[s.cursor:]
	s.cursor++
}

func (s *saveModal) backspace() {
	if s.cursor > 0 {
		s.input = s.input[:s.cursor-1] + s.input[s.cursor:]
		s.cursor--
	}
}

func (s *saveModal) deleteChar() {
	if s.cursor < len(s.input) {
		s.input = s.input[:s.cursor] + s.input[s.cursor+1:]
	}
}

func (s *saveModal) moveLeft() {
	if s.cursor > 0 {
		s.cursor--
	}
}

func (s *saveModal) moveRight() {
	if s.cursor < len(s.input) {
		s.cursor++
	}
}

func (s *saveModal) render() string {
	prompt := styleSavePrompt.Render("Save to: ")
	before := s.input[:s.cursor]
	after := s.input[s.cursor:]
	cursor := styleSaveInput.Render("█")
	return "  " + prompt + styleSaveInput.Render(before) + cursor + styleSaveInput.Render(after)
}

// Model is the root Bubble Tea model.
type Model struct {
	events <-chan event.Event
	stats  stats.ReadTicker
	ctl    Controller
	title  string
	root   string

	feed      feedView
	rate      rateView
	pending   []job.Request // open decisions, oldest first
	statusMsg string        // transient notification
	lastSnap  stats.Snapshot
	lastSpeed float64
	lastETA   time.Duration
	save      saveModal
	mode      viewMode
	width     int
	height    int
	state     job.State
	outcome   job.Outcome
	done      bool // event stream closed
	stopping  bool // quit once the stream closes
	quitting  bool
}

// NewModel creates a TUI model. title names the operation ("copy", ...);
// root is stripped from displayed paths.
func NewModel(events <-chan event.Event, collector stats.ReadTicker, ctl Controller, title, root string) Model {
	return Model{
		events: events,
		stats:  collector,
		ctl:    ctl,
		title:  title,
		root:   root,
		feed:   newFeedView(root),
		width:  80,
		height: 24,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		readNextEvent(m.events),
		tickCmd(),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case engineEventMsg:
		return m.handleEngineEvent(event.Event(msg))

	case channelDoneMsg:
		m.done = true
		m.pending = nil
		m.lastSnap = m.stats.Snapshot()
		m.lastSpeed = m.stats.RollingSpeed(10)
		m.lastETA = 0
		if m.stopping {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case tickMsg:
		if m.done {
			return m, nil
		}
		m.stats.Tick()
		m.lastSnap = m.stats.Snapshot()
		m.lastSpeed = m.stats.RollingSpeed(10)
		m.lastETA = m.stats.ETA()
		return m, tickCmd()

	case saveResultMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("save failed: %v", msg.err)
		} else {
			m.statusMsg = "saved to " + m.save.input
		}
		m.save.active = false
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.save.active {
		return m.handleSaveKey(msg)
	}
	if msg.String() == "ctrl+c" {
		return m.quit()
	}
	if len(m.pending) > 0 {
		return m.answer(msg.String())
	}

	switch msg.String() {
	case "q", "esc":
		return m.quit()

	case "p", " ":
		if m.done {
			return m, nil
		}
		switch m.ctl.TogglePause() {
		case job.Paused:
			m.statusMsg = "paused"
		case job.Running:
			m.statusMsg = "resumed"
		}
		return m, nil

	case "r":
		m.mode = viewRate
		m.statusMsg = ""
		return m, nil

	case "f", "e":
		m.mode = viewFeed
		m.statusMsg = ""
		return m, nil

	// Scroll keys for feed view.
	case "j", "down":
		if m.mode == viewFeed {
			m.feed.scrollDown()
		}
		return m, nil

	case "k", "up":
		if m.mode == viewFeed {
			m.feed.scrollUp()
		}
		return m, nil

	case "G":
		if m.mode == viewFeed {
			m.feed.scrollToBottom()
		}
		return m, nil

	case "g":
		if m.mode == viewFeed {
			m.feed.scrollToTop()
		}
		return m, nil

	case "s":
		if m.done {
			m.save.active = true
			m.save.input = fmt.Sprintf("ferry-%s.log", time.Now().Format("2006-01-02-150405"))
			m.save.cursor = len(m.save.input)
			m.statusMsg = ""
		}
		return m, nil
	}

	return m, nil
}

// quit leaves at once after the run ended; otherwise it cancels the run and
// leaves when the last event arrived.
func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.done {
		m.quitting = true
		return m, tea.Quit
	}
	if !m.stopping {
		m.stopping = true
		m.statusMsg = "cancelling..."
		m.ctl.Cancel()
	}
	return m, nil
}

// answer resolves the oldest open decision with the pressed key. The request
// leaves the queue when its DecisionResolved event arrives.
func (m Model) answer(key string) (tea.Model, tea.Cmd) {
	req := m.pending[0]
	d, ok := ui.DecisionForKey(key, req)
	if !ok {
		return m, nil
	}
	if !m.ctl.Resolve(req.ID, d) {
		m.statusMsg = "answer not accepted"
		m.pending = m.pending[1:]
		return m, nil
	}
	m.statusMsg = ""
	return m, nil
}

func (m Model) handleSaveKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEscape:
		m.save.active = false
		m.statusMsg = ""
		return m, nil

	case tea.KeyEnter:
		return m, m.writeReport(m.save.input)

	case tea.KeyBackspace:
		m.save.backspace()
		return m, nil

	case tea.KeyDelete:
		m.save.deleteChar()
		return m, nil

	case tea.KeyLeft:
		m.save.moveLeft()
		return m, nil

	case tea.KeyRight:
		m.save.moveRight()
		return m, nil

	case tea.KeyRunes:
		for _, r := range msg.Runes {
			m.save.insertRune(r)
		}
		return m, nil
	}

	return m, nil
}

func (m Model) writeReport(path string) tea.Cmd {
	// Capture data needed by the goroutine.
	snap := m.lastSnap
	title := m.title
	root := m.root
	outcome := m.outcome
	completed := make([]completedEntry, len(m.feed.completed))
	copy(completed, m.feed.completed)

	return func() tea.Msg {
		var b strings.Builder

		fmt.Fprintf(&b, "ferry %s report\n", title)
		b.WriteString("====================\n")
		fmt.Fprintf(&b, "target:      %s\n", root)
		fmt.Fprintf(&b, "outcome:     %s\n", outcome)
		fmt.Fprintf(&b, "finished:    %s\n", time.Now().Format("2006-01-02 15:04:05"))
		fmt.Fprintf(&b, "duration:    %s\n", ui.FormatDuration(snap.Elapsed))
		fmt.Fprintf(&b, "entries:     %s\n", ui.FormatCount(snap.EntriesDone))
		fmt.Fprintf(&b, "size:        %s\n", ui.FormatBytes(snap.BytesWritten))
		avgSpeed := 0.0
		if snap.Elapsed.Seconds() > 0 {
			avgSpeed = float64(snap.BytesWritten) / snap.Elapsed.Seconds()
		}
		fmt.Fprintf(&b, "avg speed:   %s\n", ui.FormatRate(avgSpeed))
		fmt.Fprintf(&b, "skipped:     %d\n", snap.EntriesSkipped)
		fmt.Fprintf(&b, "errors:      %d\n", snap.EntriesFailed)
		b.WriteString("\n--- entries ---\n")

		for _, e := range completed {
			relPath := ui.StripRoot(root, e.path)
			switch {
			case e.failed:
				fmt.Fprintf(&b, "x  %-50s  %s\n", relPath, e.errMsg)
			case e.skipped:
				fmt.Fprintf(&b, "-  %-50s  skipped\n", relPath)
			default:
				fmt.Fprintf(&b, "v  %-50s  %s\n", relPath, ui.FormatBytes(e.size))
			}
		}

		err := os.WriteFile(path, []byte(b.String()), 0o644) //nolint:gosec // user-chosen report path
		return saveResultMsg{err: err}
	}
}

func (m Model) handleEngineEvent(ev event.Event) (tea.Model, tea.Cmd) {
	switch ev.Type {
	case event.DecisionRequested:
		if ev.Request != nil {
			m.pending = append(m.pending, *ev.Request)
		}
	case event.DecisionResolved:
		if ev.Request != nil {
			m.pending = dropRequest(m.pending, ev.Request.ID)
		}
	case event.StateChanged:
		m.state, m.outcome = ev.State, ev.Outcome
	}
	m.feed.handleEvent(ev)
	return m, readNextEvent(m.events)
}

func dropRequest(reqs []job.Request, id string) []job.Request {
	out := reqs[:0:0]
	for _, r := range reqs {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	// Header (1 line).
	b.WriteString(m.renderHeader())
	b.WriteByte('\n')

	if len(m.pending) > 0 {
		b.WriteString(m.renderDecision(m.pending[0]))
		b.WriteByte('\n')
	}

	// header + footer + status line, plus the decision box when shown.
	contentHeight := m.height - 3
	if len(m.pending) > 0 {
		contentHeight -= 5
	}
	contentHeight = max(contentHeight, 3)

	switch m.mode {
	case viewFeed:
		b.WriteString(m.feed.view(contentHeight, m.lastSpeed))
	case viewRate:
		b.WriteString(m.rate.view(m.width, m.lastSnap, m.stats))
	}

	switch {
	case m.save.active:
		b.WriteString(m.save.render())
	case m.statusMsg != "":
		b.WriteString(styleStatus.Render("  " + m.statusMsg))
	}
	b.WriteByte('\n')

	b.WriteString(m.renderFooter())

	return b.String()
}

func (m Model) renderDecision(req job.Request) string {
	body := styleDecisionTitle.Render(ui.Describe(req)) + "\n" + styleKeybindLabel.Render(ui.ChoiceHint(req))
	if n := len(m.pending) - 1; n > 0 {
		body += "\n" + styleKeybindLabel.Render(fmt.Sprintf("%d more waiting", n))
	}
	return styleDecisionBox.Render(body)
}

func (m Model) renderHeader() string {
	snap := m.lastSnap
	pct := ui.Percent(snap.ProgressDone, snap.ProgressTotal)
	label := styleHeaderLabel.Render("ferry " + m.title)

	if m.done {
		status := styleIconDone.Render("done")
		if m.outcome != job.Completed {
			status = styleIconFailed.Render(m.outcome.String())
		}
		return styleHeader.Render(fmt.Sprintf("  %s  %s  %s  %s entries  %s",
			label, status,
			ui.FormatBytes(snap.BytesWritten),
			ui.FormatCount(snap.EntriesDone),
			ui.FormatDuration(snap.Elapsed),
		))
	}

	tail := "eta " + ui.FormatETA(m.lastETA)
	if m.state == job.Paused {
		tail = stylePaused.Render("paused")
	}
	return styleHeader.Render(fmt.Sprintf("  %s  %3.0f%%  %s  %s  %s / %s entries  %s",
		label,
		pct*100,
		styleProgressFilled.Render(ui.ProgressBar(pct, 10)),
		ui.FormatBytes(snap.BytesWritten),
		ui.FormatCount(snap.EntriesDone),
		ui.FormatCount(snap.FilesTotal+snap.DirsTotal),
		tail,
	))
}

func (m Model) renderFooter() string {
	type keybind struct {
		key   string
		label string
	}

	var binds []keybind
	switch {
	case len(m.pending) > 0:
		binds = []keybind{{"ctrl+c", "cancel run"}}
	case m.done:
		binds = []keybind{
			{"s", "save"},
			{"j/k", "scroll"},
			{"r", "rate"},
			{"f", "feed"},
			{"q", "quit"},
		}
	default:
		binds = []keybind{
			{"q", "cancel"},
			{"p", "pause"},
			{"r", "rate"},
			{"f", "feed"},
			{"j/k", "scroll"},
		}
	}

	parts := make([]string, 0, len(binds))
	for _, kb := range binds {
		parts = append(parts,
			styleKeybindKey.Render(kb.key)+" "+styleKeybindLabel.Render(kb.label))
	}

	return "  " + strings.Join(parts, "   ")
}
