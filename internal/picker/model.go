// Package picker is the interactive search UI: a query line, the ranked
// matches below it and a status line. Searches run through a debouncer so
// typing never queues more than one pipeline run.
package picker

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/runger/fuzz/internal/debounce"
	"github.com/runger/fuzz/internal/search"
)

// pickerState represents the current state of the picker's state machine.
type pickerState int

const (
	stateIdle      pickerState = iota // Empty query, nothing searched
	stateLoading                      // Search pending or running
	stateLoaded                       // Results shown (len > 0)
	stateEmpty                        // Search succeeded with no matches
	stateError                        // Search failed
	stateCancelled                    // User cancelled (Esc / Ctrl+C)
)

// Runner is what the picker needs from a debouncer.
type Runner interface {
	QueryChanged(q string)
	Now(q string)
	Results() <-chan debounce.Result
}

// resultMsg carries one debounced search result.
type resultMsg debounce.Result

// resultsClosedMsg is sent once the runner has shut down.
type resultsClosedMsg struct{}

// initMsg triggers the search for an initial query through Update.
type initMsg struct{}

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Cancel key.Binding
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Select, k.Cancel}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var defaultKeys = keyMap{
	Up:     key.NewBinding(key.WithKeys("up", "ctrl+p"), key.WithHelp("↑", "up")),
	Down:   key.NewBinding(key.WithKeys("down", "ctrl+n"), key.WithHelp("↓", "down")),
	Select: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
	Cancel: key.NewBinding(key.WithKeys("esc", "ctrl+c"), key.WithHelp("esc", "quit")),
}

// Model is the Bubble Tea model for the search picker.
type Model struct {
	state     pickerState
	input     textinput.Model
	help      help.Model
	keys      keyMap
	items     []search.Item
	selection int // Index into items; -1 when empty
	err       error

	seq       uint64 // Latest result accepted; older ones are stale
	runner    Runner
	formatter search.Formatter

	width  int
	height int

	result   search.Record
	selected bool
}

// NewModel creates a picker that searches through runner and formats
// results relative to root.
func NewModel(runner Runner, root string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "search"
	ti.Focus()

	return Model{
		state:     stateIdle,
		input:     ti,
		help:      help.New(),
		keys:      defaultKeys,
		selection: -1,
		runner:    runner,
		formatter: search.Formatter{Root: root},
	}
}

// WithQuery pre-fills the query; it is searched as soon as the picker starts.
func (m Model) WithQuery(q string) Model {
	m.input.SetValue(q)
	m.input.CursorEnd()
	return m
}

// Result returns the selected record. ok is false if nothing was chosen.
func (m Model) Result() (rec search.Record, ok bool) {
	return m.result, m.selected
}

// IsCancelled reports whether the user quit without choosing.
func (m Model) IsCancelled() bool {
	return m.state == stateCancelled
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		func() tea.Msg { return initMsg{} },
		m.waitForResult(),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.items = m.reformat()
		return m, nil

	case resultMsg:
		return m.handleResult(msg)

	case resultsClosedMsg:
		return m, nil

	case initMsg:
		if q := m.input.Value(); strings.TrimSpace(q) != "" {
			m.state = stateLoading
			m.runner.Now(q)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.state = stateCancelled
		return m, tea.Quit

	case key.Matches(msg, m.keys.Select):
		if m.selection >= 0 && m.selection < len(m.items) {
			m.result = m.items[m.selection].Record
			m.selected = true
			return m, tea.Quit
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.selection > 0 {
			m.selection--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.selection < len(m.items)-1 {
			m.selection++
		}
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if q := m.input.Value(); q != before {
		m.queryChanged(q)
	}
	return m, cmd
}

func (m *Model) queryChanged(q string) {
	m.runner.QueryChanged(q)
	if strings.TrimSpace(q) == "" {
		m.state = stateIdle
		m.items = nil
		m.selection = -1
		m.err = nil
		return
	}
	m.state = stateLoading
}

// handleResult applies a search result and waits for the next one.
func (m Model) handleResult(msg resultMsg) (tea.Model, tea.Cmd) {
	next := m.waitForResult()
	if msg.Seq <= m.seq {
		return m, next // Stale; ignore.
	}
	m.seq = msg.Seq

	if strings.TrimSpace(m.input.Value()) == "" {
		// Finished after the query was cleared.
		return m, next
	}

	if msg.Err != nil {
		m.state = stateError
		m.err = msg.Err
		m.items = nil
		m.selection = -1
		return m, next
	}

	m.err = nil
	m.items = m.formatter.FormatAll(msg.Records)
	m.items = m.reformat()
	if len(m.items) == 0 {
		m.state = stateEmpty
		m.selection = -1
	} else {
		m.state = stateLoaded
		m.selection = 0
	}
	return m, next
}

// waitForResult blocks on the runner's next result.
func (m Model) waitForResult() tea.Cmd {
	results := m.runner.Results()
	return func() tea.Msg {
		res, ok := <-results
		if !ok {
			return resultsClosedMsg{}
		}
		return resultMsg(res)
	}
}

// reformat re-renders labels for the current width.
func (m Model) reformat() []search.Item {
	if len(m.items) == 0 {
		return m.items
	}
	f := m.formatter
	f.MaxWidth = m.labelWidth()
	items := make([]search.Item, len(m.items))
	for i, it := range m.items {
		items[i] = f.Format(it.Record)
	}
	return items
}

// labelWidth leaves room for the marker and the widest detail column.
func (m Model) labelWidth() int {
	if m.width <= 0 {
		return 0
	}
	widest := 0
	for _, it := range m.items {
		widest = max(widest, lipgloss.Width(it.Detail))
	}
	return max(m.width-4-widest, 10)
}

// listHeight returns the number of visible list rows.
func (m Model) listHeight() int {
	// query line, status line, help line
	const chrome = 3
	h := m.height - chrome
	if h < 1 {
		h = 20 // Sensible default before first WindowSizeMsg
	}
	return h
}

// --- View rendering ---

var (
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	normalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	detailStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.input.View())
	b.WriteRune('\n')
	b.WriteString(m.viewContent())
	b.WriteRune('\n')
	b.WriteString(m.viewStatus())
	b.WriteRune('\n')
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// viewContent renders the item list or a status message.
func (m Model) viewContent() string {
	switch m.state {
	case stateIdle:
		return dimStyle.Render("Type to search")
	case stateLoading:
		if len(m.items) > 0 {
			return m.viewList()
		}
		return dimStyle.Render("Searching...")
	case stateEmpty:
		return dimStyle.Render("No matches")
	case stateError:
		msg := "Error"
		if m.err != nil {
			msg = fmt.Sprintf("Error: %s", m.err)
		}
		return errorStyle.Render(msg)
	case stateCancelled:
		return dimStyle.Render("Cancelled")
	case stateLoaded:
		return m.viewList()
	default:
		return ""
	}
}

// viewList renders the visible items with a selection marker.
func (m Model) viewList() string {
	rows := m.listHeight()
	start := 0
	if m.selection >= rows {
		start = m.selection - rows + 1
	}

	var lines []string
	for i := start; i < len(m.items) && i < start+rows; i++ {
		it := m.items[i]
		if i == m.selection {
			lines = append(lines, selectedStyle.Render("> "+it.Label)+"  "+detailStyle.Render(it.Detail))
		} else {
			lines = append(lines, normalStyle.Render("  "+it.Label)+"  "+detailStyle.Render(it.Detail))
		}
	}
	return strings.Join(lines, "\n")
}

// viewStatus renders the match count line.
func (m Model) viewStatus() string {
	switch m.state {
	case stateLoaded:
		return dimStyle.Render(fmt.Sprintf("%d/%d", m.selection+1, len(m.items)))
	case stateLoading:
		return dimStyle.Render("…")
	default:
		return ""
	}
}
