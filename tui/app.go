// Package tui is the terminal shell: it renders the mounted frame and maps
// keys to playback controls.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matt-g-everett/framefed/playback"
	"github.com/matt-g-everett/framefed/stream"
)

const (
	refreshInterval = time.Second / 30
	scrubStride     = 24
	volumeStep      = 0.1
	upperHalfBlock  = "▀"
)

// Player is the playback surface the shell controls.
type Player interface {
	State() playback.PlaybackState
	Play() error
	Pause()
	Step()
	Scrub(index int)
	SetVolume(volume float64)
	SetMuted(muted bool)
}

type refreshMsg time.Time

var (
	statusStyle = lipgloss.NewStyle().Faint(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#c8102e"))
	helpStyle   = lipgloss.NewStyle().Faint(true).Italic(true)
)

// App is the bubbletea model of the shell.
type App struct {
	player  Player
	surface *stream.Surface

	volume float64
	muted  bool
	width  int
	height int
	err    error
}

// NewApp creates the shell over player, drawing surface.
func NewApp(player Player, surface *stream.Surface, volume float64) *App {
	return &App{player: player, surface: surface, volume: volume}
}

func refresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

// Init starts the redraw ticker.
func (a *App) Init() tea.Cmd {
	return refresh()
}

// Update handles keys, resizes and redraw ticks.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a, a.handleKey(msg)
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
	case refreshMsg:
		return a, refresh()
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return tea.Quit
	case " ", "space":
		if a.player.State().Mode == playback.Playing {
			a.player.Pause()
		} else {
			a.err = a.player.Play()
		}
	case "right", "l":
		a.player.Step()
	case "[":
		a.player.Scrub(a.player.State().TargetIndex - scrubStride)
	case "]":
		a.player.Scrub(a.player.State().TargetIndex + scrubStride)
	case "+", "=":
		a.setVolume(a.volume + volumeStep)
	case "-":
		a.setVolume(a.volume - volumeStep)
	case "m":
		a.muted = !a.muted
		a.player.SetMuted(a.muted)
	}
	return nil
}

func (a *App) setVolume(v float64) {
	a.volume = min(max(v, 0), 1)
	a.player.SetVolume(a.volume)
}

// View draws the mounted frame and a status line.
func (a *App) View() string {
	var b strings.Builder
	b.WriteString(a.renderFrame())
	b.WriteString(statusStyle.Render(a.statusLine()))
	b.WriteByte('\n')
	if a.err != nil {
		b.WriteString(errorStyle.Render(a.err.Error()))
		b.WriteByte('\n')
	} else if err := a.player.State().LastError; err != nil {
		b.WriteString(errorStyle.Render(err.Error()))
		b.WriteByte('\n')
	}
	b.WriteString(helpStyle.Render("space play/pause  → step  [ ] scrub  +/- volume  m mute  q quit"))
	return b.String()
}

func (a *App) statusLine() string {
	st := a.player.State()
	mounted := "-"
	if st.MountedIndex != playback.NoFrame {
		mounted = fmt.Sprintf("%d", st.MountedIndex+1)
	}
	line := fmt.Sprintf("%s  frame %d/%d  mounted %s  %s  vol %d%%",
		st.Mode, st.TargetIndex+1, st.FrameCount, mounted, st.Source, int(a.volume*100+0.5))
	if st.Loading {
		line += "  loading"
	}
	if a.muted {
		line += "  muted"
	}
	return line
}

// renderFrame draws two pixel rows per text row with upper half blocks.
func (a *App) renderFrame() string {
	if a.surface == nil || a.surface.Empty() {
		return "\n"
	}
	f, _, err := a.surface.Snapshot()
	if err != nil {
		return errorStyle.Render(err.Error()) + "\n"
	}
	step := 1
	if a.width > 0 && f.Width > a.width {
		step = (f.Width + a.width - 1) / a.width
	}

	var b strings.Builder
	for y := 0; y < f.Height; y += 2 * step {
		for x := 0; x < f.Width; x += step {
			style := lipgloss.NewStyle().Foreground(lipgloss.Color(f.At(x, y).Hex()))
			if y+step < f.Height {
				style = style.Background(lipgloss.Color(f.At(x, y+step).Hex()))
			}
			b.WriteString(style.Render(upperHalfBlock))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
