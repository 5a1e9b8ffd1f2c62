package viz

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"math"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/deform/internal/metrics"
	"github.com/san-kum/deform/internal/sim"
)

const (
	width           = 80
	height          = 24
	historyCapacity = 600
	viewportPad     = 2
)

// Factory builds a fresh simulation. The live view calls it on start and
// on every reset.
type Factory func() (*sim.Simulation, error)

type Options struct {
	// StepsPerTick is the number of integrator steps per rendered frame.
	StepsPerTick int
	FrameRate    int
	Theme        string
	GIFPath      string
}

// Snapshot stores the body at a rendered frame for replay.
type Snapshot struct {
	Positions []float64
	Time      float64
	Energy    float64
	Kinetic   float64
}

type TickMsg time.Time

// Model steps a simulation and draws its wireframe on a braille canvas.
type Model struct {
	factory    Factory
	sim        *sim.Simulation
	kinetic    *metrics.KineticEnergy
	opts       Options
	theme      Theme
	styles     styles
	canvas     *Canvas
	viewport   Viewport
	edges      [][2]int
	frameLimit int
	tick       int
	running    bool
	err        error
	history    []Snapshot
	playHead   int
	recording  bool
	frames     []*image.Paletted
	status     string
	showHelp   bool
}

// NewModel builds the first simulation from factory.
func NewModel(factory Factory, opts Options) (Model, error) {
	if opts.StepsPerTick < 1 {
		opts.StepsPerTick = 1
	}
	if opts.FrameRate < 1 {
		opts.FrameRate = 30
	}
	if opts.GIFPath == "" {
		opts.GIFPath = "deform.gif"
	}
	theme := GetTheme(opts.Theme)
	m := Model{
		factory:  factory,
		opts:     opts,
		theme:    theme,
		styles:   newStyles(theme),
		canvas:   NewCanvas(width, height),
		playHead: -1,
	}
	if err := m.reset(); err != nil {
		return Model{}, err
	}
	return m, nil
}

// Run starts the live view on the terminal's alternate screen.
func Run(factory Factory, opts Options) error {
	m, err := NewModel(factory, opts)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func (m Model) Simulation() *sim.Simulation { return m.sim }
func (m Model) History() []Snapshot         { return m.history }
func (m Model) Running() bool               { return m.running }
func (m Model) Theme() Theme                { return m.theme }
func (m Model) Err() error                  { return m.err }

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(m.opts.FrameRate), func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return m.tickCmd()
}

// Update handles input events and steps the simulation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			if m.err == nil && !m.done() {
				m.running = !m.running
			}
		case "r":
			if err := m.reset(); err != nil {
				m.err = err
				m.running = false
			}
		case "[":
			m.scrub(-1)
		case "]":
			m.scrub(1)
		case "g":
			m.toggleRecording()
		case "?":
			m.showHelp = !m.showHelp
		case "t":
			m.theme = NextTheme(m.theme)
			m.styles = newStyles(m.theme)
		}
	case TickMsg:
		m.tick++
		if m.running {
			if m.playHead == -1 {
				m.step()
			} else {
				m.playHead++
				if m.playHead >= len(m.history) {
					m.playHead = -1
				}
			}
		}
		m.draw()
		if m.recording {
			m.captureFrame()
		}
		return m, m.tickCmd()
	}
	return m, nil
}

func (m *Model) done() bool {
	return m.frameLimit > 0 && m.sim.FrameNo() >= m.frameLimit
}

// step advances one frame of the simulation and records a snapshot.
func (m *Model) step() {
	if m.done() {
		m.running = false
		return
	}
	frame, err := m.sim.Step(context.Background(), m.opts.StepsPerTick)
	if err != nil {
		m.err = err
		m.running = false
		return
	}

	it := m.sim.Integrator()
	m.kinetic.Observe(it)
	energy, err := metrics.TotalEnergy(it)
	if err != nil {
		energy = math.NaN()
	}

	m.history = append(m.history, Snapshot{
		Positions: frame.Vertices,
		Time:      it.Time(),
		Energy:    energy,
		Kinetic:   m.kinetic.Value(),
	})
	if len(m.history) > historyCapacity {
		m.history = m.history[1:]
	}
	if m.done() {
		m.running = false
	}
}

// scrub changes the playback position in history.
func (m *Model) scrub(dir int) {
	if m.playHead == -1 {
		if len(m.history) == 0 {
			return
		}
		m.playHead = len(m.history) - 1
		m.running = false
	}
	m.playHead += dir
	if m.playHead < 0 {
		m.playHead = 0
	}
	if m.playHead >= len(m.history) {
		m.playHead = -1
	}
}

// reset rebuilds the simulation and clears the history.
func (m *Model) reset() error {
	s, err := m.factory()
	if err != nil {
		return err
	}
	m.sim = s
	m.kinetic = metrics.NewKineticEnergy()
	m.err = nil
	m.history = m.history[:0]
	m.playHead = -1
	m.running = true
	m.frameLimit = 0
	if cfg := s.Config(); cfg != nil {
		m.frameLimit = cfg.Frames.Count
	}

	msh := s.Mesh()
	m.edges = m.edges[:0]
	for _, sp := range msh.Springs() {
		m.edges = append(m.edges, [2]int{sp.A, sp.B})
	}
	rest := make([]float64, 0, msh.DOFs())
	for _, v := range msh.RestVertices() {
		rest = append(rest, v[0], v[1])
	}
	m.viewport = FitViewport(m.canvas, expandBounds(rest, 0.5), viewportPad)
	return nil
}

// expandBounds returns the corners of the bounding box of xy grown by
// frac of its extent on every side.
func expandBounds(xy []float64, frac float64) []float64 {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i := 0; i+1 < len(xy); i += 2 {
		minX, maxX = math.Min(minX, xy[i]), math.Max(maxX, xy[i])
		minY, maxY = math.Min(minY, xy[i+1]), math.Max(maxY, xy[i+1])
	}
	grow := frac * math.Max(maxX-minX, maxY-minY)
	if grow == 0 {
		grow = 1
	}
	return []float64{minX - grow, minY - grow, maxX + grow, maxY + grow}
}

func (m *Model) current() []float64 {
	if m.playHead >= 0 && m.playHead < len(m.history) {
		return m.history[m.playHead].Positions
	}
	return m.sim.Mesh().Positions()
}

func (m *Model) draw() {
	m.canvas.Clear()
	m.canvas.DrawWireframe(m.viewport, m.current(), m.edges, m.sim.Mesh().Pinned())
}

func (m *Model) toggleRecording() {
	if !m.recording {
		m.recording = true
		m.frames = make([]*image.Paletted, 0)
		m.status = ""
		return
	}
	m.recording = false
	if err := m.saveGIF(); err != nil {
		m.status = "gif: " + err.Error()
	} else if len(m.frames) > 0 {
		m.status = fmt.Sprintf("saved %d frames to %s", len(m.frames), m.opts.GIFPath)
	}
	m.frames = nil
}

func (m Model) statusLine() string {
	st := m.styles
	switch {
	case m.err != nil:
		return st.failed.Render("FAILED")
	case m.playHead != -1:
		back := m.history[len(m.history)-1].Time - m.history[m.playHead].Time
		if m.running {
			return st.paused.Render(fmt.Sprintf("REPLAYING (-%.2fs)", back))
		}
		return st.paused.Render(fmt.Sprintf("REPLAY PAUSED (-%.2fs)", back))
	case m.done():
		return st.paused.Render("DONE")
	case !m.running:
		return st.paused.Render("PAUSED")
	}
	return st.running.Render(AnimatedSpinner(m.tick) + " RUNNING")
}

// View renders the TUI interface.
func (m Model) View() string {
	st := m.styles
	m.draw()
	canvasView := st.canvas.Render(m.canvas.String())

	snap := Snapshot{Time: m.sim.Integrator().Time()}
	if n := len(m.history); n > 0 {
		snap = m.history[n-1]
		if m.playHead != -1 {
			snap = m.history[m.playHead]
		}
	}

	var s strings.Builder
	s.WriteString(st.header.Render(strings.ToUpper(m.sim.Name())) + "\n")
	s.WriteString(m.statusLine())
	if m.recording {
		s.WriteString("  " + st.recording.Render("● REC"))
	}
	s.WriteString("\n\n")

	energies := make([]float64, 0, len(m.history))
	kinetic := make([]float64, 0, len(m.history))
	for _, h := range m.history {
		if !math.IsNaN(h.Energy) {
			energies = append(energies, h.Energy)
		}
		kinetic = append(kinetic, h.Kinetic)
	}
	if len(energies) > 1 {
		chart := asciigraph.Plot(energies, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Total energy"))
		s.WriteString(st.graph.Render(chart) + "\n")
	}

	it := m.sim.Integrator()
	row := func(label, value string) {
		s.WriteString(st.label.Render(label) + st.value.Render(value) + "\n")
	}
	row("Material", it.Material().Name())
	row("Integrator", it.Name())
	row("Mesh", fmt.Sprintf("%d verts, %d tris", m.sim.Mesh().NumVertices(), m.sim.Mesh().NumTriangles()))
	row("Time", fmt.Sprintf("%.3fs", snap.Time))
	row("Steps", fmt.Sprintf("%d", it.Steps()))
	row("Energy", fmt.Sprintf("%.4g", snap.Energy))
	row("Kinetic", Sparkline(kinetic, 20))
	if m.frameLimit > 0 {
		row("Frames", fmt.Sprintf("%s %d/%d", st.progressBar(float64(m.sim.FrameNo())/float64(m.frameLimit), 12), m.sim.FrameNo(), m.frameLimit))
	}
	if m.err != nil {
		s.WriteString("\n" + st.failed.Render(m.err.Error()) + "\n")
	}
	if m.status != "" {
		s.WriteString("\n" + st.value.Render(m.status) + "\n")
	}
	s.WriteString(st.help.Render("SP:Pause R:Reset Q:Quit\nT:Theme  G:Record ?:Help\n[ ]:Time-Travel"))

	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, st.stats.Render(s.String()))
	if m.showHelp {
		return `
╔══════════════════════════════════════╗
║           KEYBOARD SHORTCUTS         ║
╠══════════════════════════════════════╣
║  Space    - Pause/Resume simulation  ║
║  R        - Rebuild from the config  ║
║  Q        - Quit                     ║
║  [        - Rewind (time travel)     ║
║  ]        - Forward (time travel)    ║
║  G        - Toggle GIF recording     ║
║  T        - Cycle themes             ║
║  ?        - Toggle this help         ║
╚══════════════════════════════════════╝
` + "\n\n" + mainView
	}
	return mainView
}

func (m *Model) captureFrame() {
	charW, charH := 8, 16
	dotW, dotH := charW/2, charH/4
	img := image.NewPaletted(image.Rect(0, 0, m.canvas.Width*charW, m.canvas.Height*charH), color.Palette{color.Black, color.White})
	for y := 0; y < m.canvas.PixelHeight(); y++ {
		for x := 0; x < m.canvas.PixelWidth(); x++ {
			if !m.canvas.IsSet(x, y) {
				continue
			}
			for py := 0; py < dotH; py++ {
				for px := 0; px < dotW; px++ {
					img.SetColorIndex(x*dotW+px, y*dotH+py, 1)
				}
			}
		}
	}
	m.frames = append(m.frames, img)
}

func (m *Model) saveGIF() error {
	if len(m.frames) == 0 {
		return nil
	}
	anim := gif.GIF{LoopCount: 0}
	for _, frame := range m.frames {
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, 100/m.opts.FrameRate)
	}
	f, err := os.Create(m.opts.GIFPath)
	if err != nil {
		return err
	}
	if err := gif.EncodeAll(f, &anim); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
