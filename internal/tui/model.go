// Package tui is the terminal onboarding screen: one question at a time,
// a live waveform, and key presses in place of tap zones.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/soaringjerry/Vox/internal/onboarding"
	"github.com/soaringjerry/Vox/internal/recorder"
	"github.com/soaringjerry/Vox/internal/services"
	"github.com/soaringjerry/Vox/internal/vad"
	"github.com/soaringjerry/Vox/internal/waveform"
)

// Flow is the part of the onboarding controller the screen drives.
type Flow interface {
	Start(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	TogglePause() bool
	State() onboarding.State
	Close(ctx context.Context) error
}

// Levels exposes the live analysis of the microphone.
type Levels interface {
	TimeDomainBytes() []byte
	FrequencyBytes() []byte
}

const (
	defaultFrameInterval = 50 * time.Millisecond
	toastDuration        = 4 * time.Second
	waveRows             = 7
)

// Model is the root bubbletea model for the onboarding screen.
type Model struct {
	flow      Flow
	levels    Levels
	questions []services.Question
	vad       vad.Estimator
	renderer  waveform.Renderer
	interval  time.Duration

	state    onboarding.State
	started  bool
	busy     bool
	speaking bool
	wave     string

	toast    string
	toastErr bool
	toastSeq int

	width  int
	height int
}

// New creates a model over the given questions.
func New(flow Flow, levels Levels, questions []services.Question) Model {
	return Model{
		flow:      flow,
		levels:    levels,
		questions: questions,
		vad:       vad.New(),
		interval:  defaultFrameInterval,
		width:     80,
	}
}

// Init acquires the microphone and starts the animation loop.
func (m Model) Init() tea.Cmd {
	return tea.Batch(startCmd(m.flow), tickCmd(m.interval))
}

func startCmd(flow Flow) tea.Cmd {
	return func() tea.Msg {
		return StartedMsg{Err: flow.Start(context.Background())}
	}
}

func navigateCmd(flow Flow, step func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		err := step(context.Background())
		return NavigatedMsg{State: flow.State(), Err: err}
	}
}

// pauseCmd toggles off the event loop; the controller may be mid-transition.
func pauseCmd(flow Flow) tea.Cmd {
	return func() tea.Msg {
		flow.TogglePause()
		return NavigatedMsg{State: flow.State()}
	}
}

func closeCmd(flow Flow) tea.Cmd {
	return func() tea.Msg {
		_ = flow.Close(context.Background())
		return closedMsg{}
	}
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return TickMsg{} })
}

func clearToastCmd(seq int) tea.Cmd {
	return tea.Tick(toastDuration, func(time.Time) tea.Msg { return ClearToastMsg{seq: seq} })
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case StartedMsg:
		m.state = m.flow.State()
		if msg.Err != nil {
			if errors.Is(msg.Err, recorder.ErrPermissionDenied) {
				return m, m.notify("Could not access microphone", true)
			}
			return m, m.notify("Could not start recording: "+msg.Err.Error(), true)
		}
		m.started = true
		return m, m.notify("Recording started", false)

	case NavigatedMsg:
		m.busy = false
		m.state = msg.State
		if msg.Err != nil && !errors.Is(msg.Err, onboarding.ErrComplete) {
			return m, m.notify(msg.Err.Error(), true)
		}
		return m, nil

	case StateMsg:
		m.state = msg.State
		return m, nil

	case UploadFailedMsg:
		return m, m.notify(fmt.Sprintf("Upload failed for %s", services.QuestionLabel(msg.QuestionID)), true)

	case TickMsg:
		m.sample()
		if m.state.Complete {
			return m, nil
		}
		return m, tickCmd(m.interval)

	case ClearToastMsg:
		if msg.seq == m.toastSeq {
			m.toast = ""
			m.toastErr = false
		}
		return m, nil

	case CompleteMsg:
		return m, tea.Quit

	case closedMsg:
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) notify(text string, isErr bool) tea.Cmd {
	m.toastSeq++
	m.toast = text
	m.toastErr = isErr
	return clearToastCmd(m.toastSeq)
}

// sample reads one animation frame: the speaking flag and the waveform.
// Nothing moves while paused.
func (m *Model) sample() {
	if m.levels == nil || !m.state.Recording || m.state.Paused {
		m.speaking = false
		return
	}
	m.speaking = m.vad.Speaking(m.levels.FrequencyBytes())
	cols := m.width - 4
	if cols < 10 {
		cols = 10
	}
	surface := waveform.NewGridSurface(cols, waveRows)
	m.renderer.Draw(surface, m.levels.TimeDomainBytes())
	m.wave = surface.String()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuit, KeyCtrlC:
		return m, closeCmd(m.flow)

	case KeyNext, KeyNextAlt, KeyNextSpace:
		if m.busy || !m.state.Recording || m.state.Complete {
			return m, nil
		}
		m.busy = true
		return m, navigateCmd(m.flow, m.flow.Next)

	case KeyPrev, KeyPrevAlt:
		if m.busy || !m.state.Recording || m.state.Complete {
			return m, nil
		}
		m.busy = true
		return m, navigateCmd(m.flow, m.flow.Previous)

	case KeyPause:
		if m.busy || !m.state.Recording {
			return m, nil
		}
		m.busy = true
		return m, pauseCmd(m.flow)
	}
	return m, nil
}

// View renders the screen.
func (m Model) View() string {
	if m.state.Complete {
		return CompleteStyle.Render("Amazing!\n\nWe're assembling your profile and it will be ready really soon")
	}
	if len(m.questions) == 0 {
		return "No questions."
	}
	idx := m.state.Index
	if idx >= len(m.questions) {
		idx = len(m.questions) - 1
	}
	q := m.questions[idx]

	var sections []string
	sections = append(sections, m.renderProgress(idx))
	sections = append(sections, "")
	sections = append(sections, SubtitleStyle.Render(strings.ToUpper(q.Subtitle)))
	sections = append(sections, QuestionStyle.Width(max(20, m.width-4)).Render(q.Text))
	sections = append(sections, "")

	switch {
	case !m.started:
		sections = append(sections, HintStyle.Render("Waiting for the microphone..."))
	case m.state.Paused:
		sections = append(sections, WavePausedStyle.Render(m.wave))
		sections = append(sections, HintStyle.Render("Paused. p to resume"))
	default:
		sections = append(sections, WaveStyle.Render(m.wave))
		status := HintStyle.Render("● listening")
		if m.speaking {
			status = SpeakingStyle.Render("● speaking")
		}
		sections = append(sections, status)
		sections = append(sections, HintStyle.Render("→ next  ← previous  p pause  q quit"))
	}

	if m.toast != "" {
		style := ToastStyle
		if m.toastErr {
			style = ToastErrorStyle
		}
		sections = append(sections, "", style.Render(m.toast))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderProgress(current int) string {
	dots := make([]string, len(m.questions))
	for i := range m.questions {
		switch {
		case i == current:
			dots[i] = DotCurrentStyle.Render("━━━━")
		case i < current:
			dots[i] = DotDoneStyle.Render("━━")
		default:
			dots[i] = DotTodoStyle.Render("──")
		}
	}
	return strings.Join(dots, " ")
}
