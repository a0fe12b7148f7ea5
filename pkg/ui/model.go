// Package ui hosts the interactive terminal front end: a bubbletea program
// that drives the engine frame loop from a tick message, forwards mouse and
// keyboard input to the interaction controller, and draws onto a half-block
// cell canvas.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/siteatlas/pkg/engine"
	"github.com/vanderheijden86/siteatlas/pkg/model"
	"github.com/vanderheijden86/siteatlas/pkg/render"
)

const (
	// DefaultFPS paces the frame loop when the config does not.
	DefaultFPS = 30

	// flashDuration is how long a transient status message stays up.
	flashDuration = 3 * time.Second

	// panStep is the keyboard pan distance in canvas pixels.
	panStep = 24.0

	// wheelStep is the synthetic wheel delta for one zoom keypress or
	// scroll notch.
	wheelStep = 120.0

	statusMaxLabel = 32
)

// Config assembles a terminal session.
type Config struct {
	Dataset   *model.Dataset
	Positions map[string]model.Point

	Engine engine.Config
	FPS    int
	Theme  string

	// Reload re-parses the dataset; wired together with Changes when watch
	// mode is on.
	Reload func() (*model.Dataset, error)
	// Changes delivers dataset change notifications, typically from the
	// file watcher. May be nil.
	Changes <-chan struct{}
}

type tickMsg time.Time

type datasetChangedMsg struct{}

func tickCmd(fps int) tea.Cmd {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return tea.Tick(time.Second/time.Duration(fps), func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return datasetChangedMsg{}
	}
}

// Model is the bubbletea model wrapping one engine session.
type Model struct {
	cfg    Config
	eng    *engine.Engine
	canvas *Canvas
	ds     *model.Dataset
	styles styles

	width  int
	height int

	search    textinput.Model
	searching bool

	showHelp bool
	helpView string

	flashMsg string
	flashAt  time.Time

	err      error
	quitting bool
}

// New builds the model and its engine. The canvas starts at a nominal size
// and takes the real terminal dimensions from the first WindowSizeMsg.
func New(cfg Config) Model {
	if cfg.FPS <= 0 {
		cfg.FPS = DefaultFPS
	}
	engCfg := cfg.Engine
	if cfg.Theme != "" {
		engCfg.Render.Theme = cfg.Theme
	}

	canvas := NewCanvas(80, 24)
	eng := engine.New(engCfg, canvas, engine.Events{})
	w, h := canvas.Size()
	eng.Resize(float64(w), float64(h))
	eng.SetDataset(cfg.Dataset, cfg.Positions)

	ti := textinput.New()
	ti.Placeholder = "search sites"
	ti.Prompt = "/ "
	ti.CharLimit = 80
	ti.Width = 40

	return Model{
		cfg:    cfg,
		eng:    eng,
		canvas: canvas,
		ds:     cfg.Dataset,
		search: ti,
		styles: newStyles(render.PaletteFor(engCfg.Render.Theme)),
	}
}

// Engine exposes the underlying engine, so the host can read back positions
// and the generation after the program exits.
func (m Model) Engine() *engine.Engine { return m.eng }

// Err reports the failure that ended the session, if any.
func (m Model) Err() error { return m.err }

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(m.cfg.FPS)}
	if c := waitForChange(m.cfg.Changes); c != nil {
		cmds = append(cmds, c)
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		rows := msg.Height - 1 // bottom row is the status bar
		m.canvas.Resize(msg.Width, rows)
		w, h := m.canvas.Size()
		m.eng.Resize(float64(w), float64(h))
		m.helpView = ""
		return m, nil

	case tickMsg:
		if err := m.eng.Frame(time.Time(msg)); err != nil {
			m.err = err
			m.quitting = true
			return m, tea.Quit
		}
		if m.flashMsg != "" && time.Since(m.flashAt) > flashDuration {
			m.flashMsg = ""
		}
		return m, tickCmd(m.cfg.FPS)

	case datasetChangedMsg:
		m.reload()
		return m, waitForChange(m.cfg.Changes)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.searching {
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) reload() {
	if m.cfg.Reload == nil {
		return
	}
	ds, err := m.cfg.Reload()
	if err != nil {
		m.flash(fmt.Sprintf("reload failed: %v", err))
		return
	}
	// Current positions seed the new generation, so surviving nodes keep
	// their place on screen.
	m.eng.SetDataset(ds, m.eng.Positions())
	m.ds = ds
	m.flash(fmt.Sprintf("dataset reloaded, %d nodes", len(ds.Nodes)))
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	// One cell is one pixel across and two pixels down.
	x := float64(msg.X)
	y := float64(msg.Y * 2)
	switch msg.Action {
	case tea.MouseActionMotion:
		m.eng.PointerMove(x, y)
	case tea.MouseActionPress:
		switch msg.Button {
		case tea.MouseButtonLeft:
			m.eng.PointerDown(x, y, msg.Shift)
		case tea.MouseButtonWheelUp:
			m.eng.Wheel(x, y, -wheelStep)
		case tea.MouseButtonWheelDown:
			m.eng.Wheel(x, y, wheelStep)
		}
	case tea.MouseActionRelease:
		if msg.Button == tea.MouseButtonLeft {
			m.eng.PointerUp(x, y)
		}
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		m.showHelp = false
		return m, nil
	}

	if m.searching {
		switch msg.String() {
		case "esc":
			m.searching = false
			m.search.Blur()
			m.search.SetValue("")
			return m, nil
		case "enter":
			query := m.search.Value()
			m.searching = false
			m.search.Blur()
			m.search.SetValue("")
			m.jumpTo(query)
			return m, nil
		default:
			var cmd tea.Cmd
			m.search, cmd = m.search.Update(msg)
			return m, cmd
		}
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "/":
		m.searching = true
		m.search.Focus()
		return m, textinput.Blink

	case "?":
		m.showHelp = true
		if m.helpView == "" {
			m.helpView = renderHelp(m.width)
		}
		return m, nil

	case "e":
		id := m.primarySelection()
		if id == "" {
			m.flash("select a node first")
			return m, nil
		}
		queued := m.eng.ExpandNeighbors(id)
		m.flash(fmt.Sprintf("%d neighbors queued", queued))
		return m, nil

	case "y":
		id := m.primarySelection()
		if id == "" {
			m.flash("select a node first")
			return m, nil
		}
		n := m.eng.Store().Node(id)
		if n == nil || n.URL == "" {
			m.flash("no url on " + id)
			return m, nil
		}
		if err := clipboard.WriteAll(n.URL); err != nil {
			m.flash("clipboard: " + err.Error())
			return m, nil
		}
		m.flash("copied " + n.URL)
		return m, nil

	case "p":
		on := !m.eng.PerformanceMode()
		m.eng.SetPerformanceMode(on)
		if on {
			m.flash("performance mode on")
		} else {
			m.flash("performance mode off")
		}
		return m, nil

	case "r":
		m.eng.Reheat()
		m.flash("layout reheated")
		return m, nil

	case "esc":
		m.eng.ClearSelection()
		return m, nil

	case "up":
		m.eng.PanBy(0, panStep)
	case "down":
		m.eng.PanBy(0, -panStep)
	case "left":
		m.eng.PanBy(panStep, 0)
	case "right":
		m.eng.PanBy(-panStep, 0)

	case "+", "=":
		m.zoomAtCenter(-wheelStep)
	case "-", "_":
		m.zoomAtCenter(wheelStep)
	}
	return m, nil
}

func (m Model) zoomAtCenter(deltaY float64) {
	w, h := m.canvas.Size()
	m.eng.Wheel(float64(w)/2, float64(h)/2, deltaY)
}

// jumpTo admits, selects, and centers the best match for a search query.
func (m *Model) jumpTo(query string) {
	if strings.TrimSpace(query) == "" {
		return
	}
	id, ok := BestMatch(m.ds.Nodes, query)
	if !ok {
		m.flash(fmt.Sprintf("no match for %q", query))
		return
	}
	m.eng.AdmitNode(id)
	m.eng.ExpandNeighbors(id)
	m.eng.SelectNode(id, false)
	m.eng.CenterOn(id)
	label := id
	if n := m.eng.Store().Node(id); n != nil && n.Label != "" {
		label = n.Label
	}
	m.flash("jumped to " + label)
}

func (m *Model) flash(s string) {
	m.flashMsg = s
	m.flashAt = time.Now()
}

func (m Model) primarySelection() string {
	if sel := m.eng.SelectedIDs(); len(sel) > 0 {
		return sel[0]
	}
	if hov, ok := m.eng.Hovered(); ok {
		return hov
	}
	return ""
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "loading..."
	}

	if m.showHelp {
		help := m.helpView
		if help == "" {
			help = renderHelp(m.width)
		}
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			m.styles.helpBox.Render(help))
	}

	var bottom string
	if m.searching {
		bottom = m.search.View()
	} else {
		bottom = m.statusBar()
	}
	return m.canvas.View() + "\n" + bottom
}

func (m Model) statusBar() string {
	t := m.eng.Transform()
	parts := []string{
		fmt.Sprintf("zoom %.2f", t.Scale),
		fmt.Sprintf("%d/%d loaded", m.eng.LoadedCount(), m.eng.TotalCount()),
		string(m.eng.Tier()),
		fmt.Sprintf("%.0f fps", m.eng.FPS()),
	}
	if m.eng.PerformanceMode() {
		parts = append(parts, "perf")
	}
	if hov, ok := m.eng.Hovered(); ok {
		if n := m.eng.Store().Node(hov); n != nil {
			label := n.Label
			if label == "" {
				label = n.ID
			}
			parts = append(parts, truncateCell(label, statusMaxLabel))
		}
	}
	if m.flashMsg != "" {
		parts = append(parts, m.flashMsg)
	}
	line := " " + strings.Join(parts, "  |  ")
	line = truncateCell(line, m.width)
	return m.styles.statusBar.Width(m.width).Render(line)
}

// truncateCell trims a string to a visual cell width, ellipsized.
func truncateCell(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth == 1 {
		return "…"
	}
	return runewidth.Truncate(s, maxWidth-1, "") + "…"
}
