package viz

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/deform/internal/config"
	"github.com/san-kum/deform/internal/sim"
)

func TestCanvasSetAndClear(t *testing.T) {
	c := NewCanvas(4, 2)
	if c.PixelWidth() != 8 || c.PixelHeight() != 8 {
		t.Fatalf("pixel size = %dx%d, want 8x8", c.PixelWidth(), c.PixelHeight())
	}

	c.Set(0, 0)
	c.Set(1, 3)
	if got := c.Grid[0][0]; got != brailleBlank|0x1|0x80 {
		t.Errorf("cell = %U, want %U", got, brailleBlank|0x1|0x80)
	}
	if !c.IsSet(1, 3) || c.IsSet(1, 2) {
		t.Error("IsSet disagrees with Set")
	}

	c.Set(-1, 0)
	c.Set(100, 100)

	c.Clear()
	if c.IsSet(0, 0) {
		t.Error("pixel survived Clear")
	}
	if lines := strings.Count(c.String(), "\n"); lines != 2 {
		t.Errorf("String has %d lines, want 2", lines)
	}
}

func TestDrawLine(t *testing.T) {
	c := NewCanvas(10, 3)
	c.DrawLine(0, 0, 9, 9)
	for i := 0; i <= 9; i++ {
		if !c.IsSet(i, i) {
			t.Errorf("diagonal pixel %d not set", i)
		}
	}
}

func TestViewportFitsPoints(t *testing.T) {
	c := NewCanvas(40, 10)
	xy := []float64{-1, -0.5, 1, -0.5, 1, 0.5, -1, 0.5}
	v := FitViewport(c, xy, 2)

	for i := 0; i < len(xy); i += 2 {
		px, py := v.Project(xy[i], xy[i+1])
		if px < 2 || px >= c.PixelWidth()-2 || py < 2 || py >= c.PixelHeight()-2 {
			t.Errorf("point (%g, %g) projects outside the padded canvas: (%d, %d)", xy[i], xy[i+1], px, py)
		}
	}

	_, top := v.Project(0, 0.5)
	_, bottom := v.Project(0, -0.5)
	if top >= bottom {
		t.Errorf("y should point up: top=%d bottom=%d", top, bottom)
	}
}

func TestDrawWireframeMarksPins(t *testing.T) {
	c := NewCanvas(20, 10)
	xy := []float64{0, 0, 1, 0}
	v := FitViewport(c, xy, 3)
	c.DrawWireframe(v, xy, [][2]int{{0, 1}, {0, 5}}, []bool{true, false})

	x0, y0 := v.Project(0, 0)
	x1, y1 := v.Project(1, 0)
	if !c.IsSet(x1, y1) {
		t.Error("edge end not drawn")
	}
	if !c.IsSet(x0-1, y0-1) {
		t.Error("pinned vertex should be drawn as a dot")
	}
}

func TestThemes(t *testing.T) {
	if GetTheme("missing").Name != Themes[0].Name {
		t.Error("unknown theme should fall back to the first")
	}
	seen := map[string]bool{}
	th := Themes[0]
	for range Themes {
		seen[th.Name] = true
		th = NextTheme(th)
	}
	if len(seen) != len(Themes) || th.Name != Themes[0].Name {
		t.Errorf("NextTheme does not cycle through all themes: %v", seen)
	}
	if len(ThemeNames()) != len(Themes) {
		t.Error("ThemeNames length mismatch")
	}
}

func TestSparkline(t *testing.T) {
	if got := Sparkline([]float64{0, 1}, 2); got != "▁█" {
		t.Errorf("Sparkline = %q", got)
	}
	if got := Sparkline(nil, 3); got != "───" {
		t.Errorf("empty Sparkline = %q", got)
	}
}

func presetFactory(t *testing.T, body, variant string, frames int) Factory {
	t.Helper()
	return func() (*sim.Simulation, error) {
		cfg := config.GetPreset(body, variant)
		if cfg == nil {
			t.Fatalf("no preset %s/%s", body, variant)
		}
		cfg.Frames.Count = frames
		geo, err := sim.ResolveGeometry(cfg, nil)
		if err != nil {
			return nil, err
		}
		return sim.FromConfig(cfg, geo)
	}
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func key(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModelStepsAndStops(t *testing.T) {
	m, err := NewModel(presetFactory(t, "sheet", "snh", 3), Options{StepsPerTick: 2})
	if err != nil {
		t.Fatal(err)
	}
	if !m.Running() {
		t.Fatal("model should start running")
	}

	for i := 0; i < 5; i++ {
		m = update(t, m, TickMsg(time.Now()))
	}
	if got := len(m.History()); got != 3 {
		t.Fatalf("history = %d snapshots, want 3", got)
	}
	if m.Running() {
		t.Error("model should stop at the frame limit")
	}
	if got := m.Simulation().Integrator().Steps(); got != 6 {
		t.Errorf("steps = %d, want 6", got)
	}
	if !strings.Contains(m.View(), "DONE") {
		t.Error("view should report DONE")
	}
}

func TestModelPauseScrubReset(t *testing.T) {
	m, err := NewModel(presetFactory(t, "rope", "hanging", 0), Options{})
	if err != nil {
		t.Fatal(err)
	}

	m = update(t, m, TickMsg(time.Now()))
	m = update(t, m, TickMsg(time.Now()))
	m = update(t, m, key(" "))
	if m.Running() {
		t.Fatal("space should pause")
	}
	m = update(t, m, TickMsg(time.Now()))
	if len(m.History()) != 2 {
		t.Fatalf("paused model stepped: %d snapshots", len(m.History()))
	}

	m = update(t, m, key("["))
	if m.playHead != 0 {
		t.Errorf("playHead = %d, want 0", m.playHead)
	}
	if !strings.Contains(m.View(), "REPLAY") {
		t.Error("view should report replay")
	}
	m = update(t, m, key("]"))
	m = update(t, m, key("]"))
	if m.playHead != -1 {
		t.Errorf("scrubbing past the end should return to live, playHead = %d", m.playHead)
	}

	theme := m.Theme().Name
	m = update(t, m, key("t"))
	if m.Theme().Name == theme {
		t.Error("t should cycle the theme")
	}

	m = update(t, m, key("r"))
	if len(m.History()) != 0 || m.Simulation().Integrator().Steps() != 0 || !m.Running() {
		t.Error("reset should rebuild a fresh running simulation")
	}
}

func TestModelFactoryError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewModel(func() (*sim.Simulation, error) { return nil, boom }, Options{})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}

func TestModelRecordsGIF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.gif")
	m, err := NewModel(presetFactory(t, "sheet", "springs", 0), Options{GIFPath: path})
	if err != nil {
		t.Fatal(err)
	}

	m = update(t, m, key("g"))
	m = update(t, m, TickMsg(time.Now()))
	m = update(t, m, TickMsg(time.Now()))
	m = update(t, m, key("g"))

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("gif not written: %v", err)
	}
	if info.Size() == 0 {
		t.Error("gif is empty")
	}
	if !strings.Contains(m.status, "saved 2 frames") {
		t.Errorf("status = %q", m.status)
	}
}
