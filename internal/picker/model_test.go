package picker

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/fuzz/internal/debounce"
	"github.com/runger/fuzz/internal/search"
)

// --- Fake runner ---

type fakeRunner struct {
	changed []string
	now     []string
	results chan debounce.Result
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{results: make(chan debounce.Result, 4)}
}

func (r *fakeRunner) QueryChanged(q string)           { r.changed = append(r.changed, q) }
func (r *fakeRunner) Now(q string)                    { r.now = append(r.now, q) }
func (r *fakeRunner) Results() <-chan debounce.Result { return r.results }

var testRoot = filepath.FromSlash("/work")

func records(n int) []search.Record {
	recs := make([]search.Record, n)
	for i := range recs {
		recs[i] = search.Record{
			Path: filepath.Join(testRoot, fmt.Sprintf("file%d.go", i)),
			Line: i + 1,
			Text: fmt.Sprintf("match %d", i),
		}
	}
	return recs
}

func newTestModel(r *fakeRunner) Model {
	m := NewModel(r, testRoot)
	m.width = 80
	m.height = 24
	return m
}

// runCmd executes a tea.Cmd synchronously and returns the resulting message.
func runCmd(cmd tea.Cmd) tea.Msg {
	if cmd == nil {
		return nil
	}
	return cmd()
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	pm, ok := next.(Model)
	require.True(t, ok)
	return pm, cmd
}

func typeText(t *testing.T, m Model, s string) Model {
	t.Helper()
	for _, r := range s {
		m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func deliver(t *testing.T, m Model, res debounce.Result) Model {
	t.Helper()
	m, _ = update(t, m, resultMsg(res))
	return m
}

// --- Tests ---

func TestInit_BatchesBlinkAndInitialQuery(t *testing.T) {
	r := newFakeRunner()
	m := newTestModel(r).WithQuery("needle")

	r.results <- debounce.Result{Seq: 1, Query: "needle", Records: records(2)}
	msg := runCmd(m.Init())
	batch, ok := msg.(tea.BatchMsg)
	require.True(t, ok, "Init should return a batch")
	require.Len(t, batch, 3)

	for _, cmd := range batch {
		m, _ = update(t, m, runCmd(cmd))
	}
	assert.Equal(t, []string{"needle"}, r.now)
	assert.Equal(t, stateLoaded, m.state)
	assert.Len(t, m.items, 2)
}

func TestInit_EmptyQueryDoesNotSearch(t *testing.T) {
	r := newFakeRunner()
	m := newTestModel(r)

	m, _ = update(t, m, initMsg{})
	assert.Empty(t, r.now)
	assert.Equal(t, stateIdle, m.state)
}

func TestTyping_NotifiesRunner(t *testing.T) {
	r := newFakeRunner()
	m := typeText(t, newTestModel(r), "abc")

	assert.Equal(t, []string{"a", "ab", "abc"}, r.changed)
	assert.Equal(t, stateLoading, m.state)
	assert.Contains(t, m.View(), "Searching...")
}

func TestResult_ShowsItems(t *testing.T) {
	r := newFakeRunner()
	m := typeText(t, newTestModel(r), "match")
	m = deliver(t, m, debounce.Result{Seq: 1, Query: "match", Records: records(3)})

	require.Equal(t, stateLoaded, m.state)
	assert.Equal(t, 0, m.selection)
	view := m.View()
	assert.Contains(t, view, "match 0")
	assert.Contains(t, view, "file2.go:3")
	assert.Contains(t, view, "1/3")
}

func TestResult_Empty(t *testing.T) {
	r := newFakeRunner()
	m := typeText(t, newTestModel(r), "zzz")
	m = deliver(t, m, debounce.Result{Seq: 1, Query: "zzz", Records: []search.Record{}})

	assert.Equal(t, stateEmpty, m.state)
	assert.Equal(t, -1, m.selection)
	assert.Contains(t, m.View(), "No matches")
}

func TestResult_Error(t *testing.T) {
	r := newFakeRunner()
	m := typeText(t, newTestModel(r), "x")
	m = deliver(t, m, debounce.Result{Seq: 1, Query: "x", Err: search.ToolMissing("rg", errors.New("not found"))})

	assert.Equal(t, stateError, m.state)
	assert.Contains(t, m.View(), "'rg' command not found")
}

func TestResult_StaleIgnored(t *testing.T) {
	r := newFakeRunner()
	m := typeText(t, newTestModel(r), "match")
	m = deliver(t, m, debounce.Result{Seq: 2, Query: "match", Records: records(1)})
	m = deliver(t, m, debounce.Result{Seq: 1, Query: "mat", Records: records(5)})

	assert.Len(t, m.items, 1)
}

func TestResult_AfterQueryClearedIgnored(t *testing.T) {
	r := newFakeRunner()
	m := typeText(t, newTestModel(r), "a")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyBackspace})
	require.Equal(t, stateIdle, m.state)

	m = deliver(t, m, debounce.Result{Seq: 1, Query: "a", Records: records(2)})
	assert.Equal(t, stateIdle, m.state)
	assert.Empty(t, m.items)
}

func TestResult_WaitsForNext(t *testing.T) {
	r := newFakeRunner()
	m := typeText(t, newTestModel(r), "a")
	_, cmd := update(t, m, resultMsg{Seq: 1, Query: "a", Records: records(1)})
	require.NotNil(t, cmd)

	close(r.results)
	assert.IsType(t, resultsClosedMsg{}, runCmd(cmd))
}

func TestNavigation_Clamped(t *testing.T) {
	r := newFakeRunner()
	m := typeText(t, newTestModel(r), "m")
	m = deliver(t, m, debounce.Result{Seq: 1, Query: "m", Records: records(3)})

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 0, m.selection)

	for range 5 {
		m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	}
	assert.Equal(t, 2, m.selection)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 1, m.selection)
}

func TestEnter_SelectsRecord(t *testing.T) {
	r := newFakeRunner()
	m := typeText(t, newTestModel(r), "m")
	recs := records(3)
	m = deliver(t, m, debounce.Result{Seq: 1, Query: "m", Records: recs})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.IsType(t, tea.QuitMsg{}, runCmd(cmd))

	rec, ok := m.Result()
	require.True(t, ok)
	assert.Equal(t, recs[1], rec)
	assert.False(t, m.IsCancelled())
}

func TestEnter_NothingToSelect(t *testing.T) {
	r := newFakeRunner()
	m := newTestModel(r)

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	_, ok := m.Result()
	assert.False(t, ok)
}

func TestCancel(t *testing.T) {
	for _, k := range []tea.KeyType{tea.KeyEscape, tea.KeyCtrlC} {
		r := newFakeRunner()
		m, cmd := update(t, newTestModel(r), tea.KeyMsg{Type: k})

		assert.True(t, m.IsCancelled(), k.String())
		assert.IsType(t, tea.QuitMsg{}, runCmd(cmd))
		_, ok := m.Result()
		assert.False(t, ok)
	}
}

func TestWindowSize_TruncatesLabels(t *testing.T) {
	r := newFakeRunner()
	m := typeText(t, newTestModel(r), "long")
	rec := search.Record{
		Path: filepath.Join(testRoot, "a.go"),
		Line: 7,
		Text: strings.Repeat("x", 50) + "MIDDLE" + strings.Repeat("y", 50),
	}
	m = deliver(t, m, debounce.Result{Seq: 1, Query: "long", Records: []search.Record{rec}})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 40, Height: 10})

	require.Len(t, m.items, 1)
	label := m.items[0].Label
	assert.Contains(t, label, "…")
	assert.NotContains(t, label, "MIDDLE")
	assert.True(t, strings.HasPrefix(label, "xxx"))
	assert.True(t, strings.HasSuffix(label, "yyy"))
	assert.Equal(t, rec, m.items[0].Record)
}

func TestListHeight(t *testing.T) {
	m := Model{height: 10}
	assert.Equal(t, 7, m.listHeight())

	m.height = 0
	assert.Equal(t, 20, m.listHeight())
}

func TestViewList_ScrollsToSelection(t *testing.T) {
	r := newFakeRunner()
	m := typeText(t, newTestModel(r), "m")
	m.height = 5 // two rows visible
	m = deliver(t, m, debounce.Result{Seq: 1, Query: "m", Records: records(4)})
	for range 3 {
		m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	}

	view := m.viewList()
	assert.NotContains(t, view, "match 0")
	assert.Contains(t, view, "match 2")
	assert.Contains(t, view, "match 3")
}
