package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dr8co/unpyc/internal/cfa/cfg"
	"github.com/dr8co/unpyc/internal/cfa/dom"
	"github.com/dr8co/unpyc/internal/decompile"
	"github.com/dr8co/unpyc/internal/opcode"
	"github.com/dr8co/unpyc/pyc"
	"github.com/dr8co/unpyc/pyc/unparse"
)

// Styling shared across every explorer view so it
// reads as a sibling tool rather than a different application.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#767676"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87"))

	headingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF79C6")).
			Bold(true)
)

// pane selects which half of the split view has keyboard focus.
type pane int

const (
	paneList pane = iota
	paneContent
)

// contentTab selects what's rendered in the content pane for the selected
// code object: reconstructed source, or the raw block/dominator dump.
type contentTab int

const (
	tabSource contentTab = iota
	tabBlocks
)

// entry is one code object flattened out of the module's nested-function
// tree (the module itself, plus every LOAD_CONST-nested code object found
// recursively in Consts; each entry is decompiled on its own).
type entry struct {
	label  string
	depth  int
	co     *pyc.CodeObject
	source string
	blocks string
	err    error
}

type loadedMsg struct {
	entries []entry
	err     error
}

type model struct {
	path       string
	spin       spinner.Model
	loading    bool
	loadErr    error
	entries    []entry
	cursor     int
	focus      pane
	tab        contentTab
	content    viewport.Model
	width      int
	height     int
	search     textinput.Model
	searching  bool
}

// visible returns the indices into m.entries matching the current search
// text (a case-insensitive substring of the entry's label), or every index
// when the search box is empty.
func (m model) visible() []int {
	q := strings.ToLower(m.search.Value())
	if q == "" {
		idx := make([]int, len(m.entries))
		for i := range m.entries {
			idx[i] = i
		}
		return idx
	}
	var idx []int
	for i, e := range m.entries {
		if strings.Contains(strings.ToLower(e.label), q) {
			idx = append(idx, i)
		}
	}
	return idx
}

func runExplore(path string) {
	m := initialExploreModel(path)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "unpyc: explore:", err)
		os.Exit(1)
	}
}

func initialExploreModel(path string) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF79C6"))

	vp := viewport.New(80, 20)

	ti := textinput.New()
	ti.Placeholder = "filter by name"
	ti.Prompt = "/"

	return model{
		path:    path,
		spin:    s,
		loading: true,
		focus:   paneList,
		tab:     tabSource,
		content: vp,
		search:  ti,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, textinput.Blink, loadCmd(m.path))
}

// loadCmd reads the .pyc file, walks its nested code objects, and runs the
// core decompiler over each one. It runs off the UI goroutine so the
// spinner keeps animating while larger modules decompile.
func loadCmd(path string) tea.Cmd {
	return func() tea.Msg {
		//nolint:gosec // path is an explicit CLI argument
		data, err := os.ReadFile(path)
		if err != nil {
			return loadedMsg{err: err}
		}
		co, err := pyc.Load(data)
		if err != nil {
			return loadedMsg{err: err}
		}

		var entries []entry
		var walk func(co *pyc.CodeObject, label string, depth int)
		walk = func(co *pyc.CodeObject, label string, depth int) {
			e := entry{label: label, depth: depth, co: co}
			if mod, derr := decompile.Decompile(co); derr != nil {
				e.err = derr
			} else {
				e.source = unparse.Module(mod)
			}
			e.blocks = renderBlocks(co)
			entries = append(entries, e)

			for _, c := range co.Consts {
				if nested, ok := c.(*pyc.CodeObject); ok {
					walk(nested, nested.Name, depth+1)
				}
			}
		}
		walk(co, co.Name, 0)

		return loadedMsg{entries: entries}
	}
}

// renderBlocks formats a code object's CFG and dominator tree as plain
// text: block ranges, successor edges, loop-header/exception-handler
// flags, and immediate dominators.
func renderBlocks(co *pyc.CodeObject) string {
	exc := make([]cfg.ExceptionEntry, len(co.ExceptionTable))
	for i, e := range co.ExceptionTable {
		exc[i] = cfg.ExceptionEntry{Start: e.Start, End: e.End, Target: e.Target, Depth: e.Depth, Lasti: e.Lasti}
	}
	g, err := cfg.BuildWithExceptions(co.Code, exc, co.Version)
	if err != nil {
		return errorStyle.Render(fmt.Sprintf("cfg build failed: %s", err))
	}
	domTree := dom.Build(g)

	var b strings.Builder
	for _, blk := range g.Blocks {
		flags := ""
		if blk.IsLoopHeader {
			flags += " [loop-header]"
		}
		if blk.IsExceptionHandler {
			flags += " [handler]"
		}
		fmt.Fprintf(&b, "block %d [%d,%d)%s\n", blk.ID, blk.StartOffset, blk.EndOffset, flags)
		if idom, ok := domTree.ImmediateDom(blk.ID); ok {
			fmt.Fprintf(&b, "  idom: block %d\n", idom)
		}
		for _, in := range blk.Instructions {
			fmt.Fprintf(&b, "  %4d %s", in.Offset, opcode.Name(in.Op))
			if in.HasArg() {
				fmt.Fprintf(&b, " %d", in.Arg)
			}
			b.WriteString("\n")
		}
		for _, e := range blk.Successors {
			fmt.Fprintf(&b, "  -> block %d (%s)\n", e.Target, edgeKindName(e.Kind))
		}
	}
	return b.String()
}

func edgeKindName(k cfg.EdgeKind) string {
	switch k {
	case cfg.Normal:
		return "normal"
	case cfg.ConditionalTrue:
		return "true"
	case cfg.ConditionalFalse:
		return "false"
	case cfg.LoopBack:
		return "loop_back"
	case cfg.Exception:
		return "exception"
	default:
		return "?"
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.loading {
			var cmd tea.Cmd
			m.spin, cmd = m.spin.Update(msg)
			return m, cmd
		}
		return m, nil

	case loadedMsg:
		m.loading = false
		m.loadErr = msg.err
		m.entries = msg.entries
		m.syncContent()
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.content.Width = msg.Width - listWidth(m.width) - 4
		m.content.Height = msg.Height - 4
		m.syncContent()
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			switch msg.String() {
			case "esc":
				m.searching = false
				m.search.Blur()
				return m, nil
			case "enter":
				m.searching = false
				m.search.Blur()
				m.clampToVisible()
				m.syncContent()
				return m, nil
			}
			var cmd tea.Cmd
			m.search, cmd = m.search.Update(msg)
			m.clampToVisible()
			m.syncContent()
			return m, cmd
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab":
			if m.focus == paneList {
				m.focus = paneContent
			} else {
				m.focus = paneList
			}
			return m, nil
		case "s":
			m.tab = tabSource
			m.syncContent()
			return m, nil
		case "b":
			m.tab = tabBlocks
			m.syncContent()
			return m, nil
		case "/":
			if m.focus == paneList && !m.loading {
				m.searching = true
				return m, m.search.Focus()
			}
		}

		if m.focus == paneList && !m.loading {
			vis := m.visible()
			pos := indexOfInt(vis, m.cursor)
			switch msg.String() {
			case "up", "k":
				if pos > 0 {
					m.cursor = vis[pos-1]
					m.syncContent()
				}
				return m, nil
			case "down", "j":
				if pos >= 0 && pos < len(vis)-1 {
					m.cursor = vis[pos+1]
					m.syncContent()
				}
				return m, nil
			}
		}
	}

	if m.focus == paneContent {
		var cmd tea.Cmd
		m.content, cmd = m.content.Update(msg)
		return m, cmd
	}
	return m, nil
}

// syncContent refreshes the viewport with the currently selected entry's
// source or block dump, per the active tab.
func (m *model) syncContent() {
	if len(m.entries) == 0 {
		return
	}
	e := m.entries[m.cursor]
	if e.err != nil {
		m.content.SetContent(errorStyle.Render(e.err.Error()))
		return
	}
	switch m.tab {
	case tabBlocks:
		m.content.SetContent(e.blocks)
	default:
		m.content.SetContent(e.source)
	}
}

// indexOfInt returns the position of needle in haystack, or -1.
func indexOfInt(haystack []int, needle int) int {
	for i, v := range haystack {
		if v == needle {
			return i
		}
	}
	return -1
}

// clampToVisible moves the cursor onto the nearest entry still matching the
// search filter, so narrowing the filter never leaves the selection on a
// hidden entry.
func (m *model) clampToVisible() {
	vis := m.visible()
	if len(vis) == 0 {
		return
	}
	if indexOfInt(vis, m.cursor) >= 0 {
		return
	}
	m.cursor = vis[0]
}

func listWidth(total int) int {
	w := total / 3
	if w < 24 {
		w = 24
	}
	return w
}

func (m model) View() string {
	if m.loading {
		return fmt.Sprintf("%s\n\n%s decompiling %s...\n", m.applyTitle(), m.spin.View(), m.path)
	}
	if m.loadErr != nil {
		return fmt.Sprintf("%s\n\n%s\n", m.applyTitle(), errorStyle.Render(m.loadErr.Error()))
	}

	var list strings.Builder
	list.WriteString(headingStyle.Render("Code objects"))
	list.WriteString("\n")
	if m.searching || m.search.Value() != "" {
		list.WriteString(m.search.View())
		list.WriteString("\n")
	}
	for _, i := range m.visible() {
		e := m.entries[i]
		line := strings.Repeat("  ", e.depth) + e.label
		if e.err != nil {
			line += " !"
		}
		if i == m.cursor {
			list.WriteString(selectedStyle.Render("> " + line))
		} else {
			list.WriteString("  " + line)
		}
		list.WriteString("\n")
	}

	tabLine := "[s]ource"
	if m.tab == tabSource {
		tabLine = selectedStyle.Render(tabLine)
	} else {
		tabLine = dimStyle.Render(tabLine)
	}
	blocksLabel := "[b]locks"
	if m.tab == tabBlocks {
		blocksLabel = selectedStyle.Render(blocksLabel)
	} else {
		blocksLabel = dimStyle.Render(blocksLabel)
	}

	contentPane := lipgloss.JoinVertical(lipgloss.Left, tabLine+"  "+blocksLabel, m.content.View())

	row := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(listWidth(m.width)).Render(list.String()),
		contentPane,
	)

	help := dimStyle.Render("\ntab: switch focus · j/k: select · /: filter by name · s/b: source/blocks · q: quit")

	return lipgloss.JoinVertical(lipgloss.Left, m.applyTitle(), row, help)
}

func (m model) applyTitle() string {
	return titleStyle.Render(" unpyc explorer ") + "  " + dimStyle.Render(m.path)
}
