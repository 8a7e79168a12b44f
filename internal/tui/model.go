// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package tui is the interactive terminal front end for a session controller.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ManuGH/visiontrack/internal/playback"
	"github.com/ManuGH/visiontrack/internal/selection"
	"github.com/ManuGH/visiontrack/internal/session"
	"github.com/ManuGH/visiontrack/internal/types"
)

// SeekStep is the fraction of the duration moved by one arrow key press.
const SeekStep = 0.05

// Controller is the part of session.Controller the UI drives.
type Controller interface {
	Snapshot() session.Snapshot
	Subscribe(fn func(session.Snapshot)) (unsubscribe func())
	Player() *playback.Player
	SelectFile(f selection.File) error
	Retry() error
	NewVideo() error
	Cancel() error
}

// Model renders one session and maps keys onto controller operations.
type Model struct {
	ctrl    Controller
	snaps   latest[session.Snapshot]
	states  latest[playback.State]
	unsub   func()
	player  *playback.Player
	unsubPl func()

	snap   session.Snapshot
	pstate playback.State
	notice string

	input    textinput.Model
	bar      progress.Model
	seekBar  progress.Model
	width    int
	quitting bool

	Version string
}

// New subscribes to ctrl. Call Close on the final model to unsubscribe.
func New(ctrl Controller, version string) Model {
	in := textinput.New()
	in.Placeholder = "path/to/video.mp4"
	in.Prompt = "Video file: "
	in.CharLimit = 4096
	in.Width = 60

	m := Model{
		ctrl:    ctrl,
		snaps:   newLatest[session.Snapshot](),
		states:  newLatest[playback.State](),
		snap:    ctrl.Snapshot(),
		input:   in,
		bar:     progress.New(progress.WithDefaultGradient()),
		seekBar: progress.New(progress.WithSolidFill("39")),
		Version: version,
	}
	m.unsub = ctrl.Subscribe(m.snaps.put)
	m.bindPlayer()
	m.syncFocus()
	return m
}

// Close releases the controller and player subscriptions.
func (m Model) Close() {
	if m.unsubPl != nil {
		m.unsubPl()
	}
	if m.unsub != nil {
		m.unsub()
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitFor(m.snaps, toSnapshotMsg), waitFor(m.states, toPlayerMsg))
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		w := min(max(msg.Width-12, 10), 60)
		m.bar.Width = w
		m.seekBar.Width = w
		return m, nil

	case SnapshotMsg:
		m.snap = session.Snapshot(msg)
		m.bindPlayer()
		m.syncFocus()
		return m, waitFor(m.snaps, toSnapshotMsg)

	case PlayerMsg:
		if m.player != nil && msg.Locator == m.player.Locator() {
			m.pstate = playback.State(msg)
		}
		return m, waitFor(m.states, toPlayerMsg)

	case selectedMsg:
		if msg.Err != nil {
			m.notice = msg.Err.Error()
			return m, nil
		}
		m.notice = ""
		m.input.Reset()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.input.Focused() {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.quitting = true
		return m, tea.Quit
	}

	if m.input.Focused() {
		switch msg.Type {
		case tea.KeyEnter:
			path := strings.TrimSpace(m.input.Value())
			if path == "" {
				return m, nil
			}
			return m, selectPath(m.ctrl, path)
		case tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	key := msg.String()
	if key == "q" {
		m.quitting = true
		return m, tea.Quit
	}

	switch m.snap.State {
	case types.SessionUploading, types.SessionProcessing:
		if key == "c" || key == "esc" {
			m.report(m.ctrl.Cancel())
		}
	case types.SessionError:
		if key == "r" {
			m.report(m.ctrl.Retry())
		}
	case types.SessionComplete:
		m.handlePlayerKey(key)
	}
	return m, nil
}

func (m *Model) handlePlayerKey(key string) {
	if key == "n" {
		m.report(m.ctrl.NewVideo())
		return
	}
	p := m.player
	if p == nil {
		return
	}
	switch key {
	case " ", "p":
		p.TogglePlay()
	case "m":
		p.ToggleMute()
	case "f":
		p.ToggleFullscreen()
	case "d":
		p.Download()
		m.notice = "Downloading " + playback.DownloadName + "..."
	case "left", "h":
		p.Seek(m.pstate.Progress()/100 - SeekStep)
	case "right", "l":
		p.Seek(m.pstate.Progress()/100 + SeekStep)
	case "home", "0":
		p.Seek(0)
	}
}

func (m *Model) report(err error) {
	if err != nil {
		m.notice = err.Error()
		return
	}
	m.notice = ""
}

// bindPlayer follows the controller's current player. The controller owns
// player lifetime; the model only subscribes.
func (m *Model) bindPlayer() {
	p := m.ctrl.Player()
	if p == m.player {
		return
	}
	if m.unsubPl != nil {
		m.unsubPl()
		m.unsubPl = nil
	}
	m.player = p
	m.pstate = playback.State{}
	if p != nil {
		m.pstate = p.State()
		m.unsubPl = p.Subscribe(m.states.put)
	}
}

func (m *Model) syncFocus() {
	if m.snap.State == types.SessionIdle {
		m.input.Focus()
		return
	}
	m.input.Blur()
}

// View implements tea.Model
func (m Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var b strings.Builder
	b.WriteString(HeaderStyle.Render(fmt.Sprintf("VisionTrack %s", m.Version)))
	b.WriteString("\n")

	if m.snap.FileName != "" && m.snap.State != types.SessionIdle {
		b.WriteString(InfoStyle.Render("File: " + m.snap.FileName))
		b.WriteString("\n\n")
	}

	status := m.snap.Status()
	switch m.snap.State {
	case types.SessionIdle:
		b.WriteString(m.input.View())
		b.WriteString("\n")
	case types.SessionUploading, types.SessionProcessing:
		b.WriteString(TitleStyle.Render(status.Title))
		b.WriteString("\n" + status.Description + "\n\n")
		b.WriteString(fmt.Sprintf("%s %d%%\n", m.bar.ViewAs(float64(m.snap.Progress)/100), m.snap.Progress))
	case types.SessionError:
		b.WriteString(ErrorStyle.Render(status.Title))
		b.WriteString("\n" + status.Description + "\n")
	case types.SessionComplete:
		b.WriteString(SuccessStyle.Render(status.Title))
		b.WriteString("\n" + status.Description + "\n\n")
		b.WriteString(m.playerView())
	}

	if rej := m.snap.Rejection; rej != nil && m.snap.State == types.SessionIdle {
		b.WriteString("\n" + ErrorStyle.Render(rej.Error()) + "\n")
	} else if m.notice != "" {
		b.WriteString("\n" + InfoStyle.Render(m.notice) + "\n")
	}

	b.WriteString("\n" + HelpStyle.Render(m.help()) + "\n")
	return b.String()
}

func (m Model) playerView() string {
	s := m.pstate
	icon := "▶"
	if s.Playing {
		icon = "⏸"
	}
	flags := make([]string, 0, 2)
	if s.Muted {
		flags = append(flags, "muted")
	}
	if s.Fullscreen {
		flags = append(flags, "fullscreen")
	}
	line := fmt.Sprintf("%s %s %s / %s",
		icon,
		m.seekBar.ViewAs(s.Progress()/100),
		playback.FormatTime(s.CurrentTime),
		playback.FormatTime(s.Duration))
	if len(flags) > 0 {
		line += "  [" + strings.Join(flags, ", ") + "]"
	}
	return line + "\n" + InfoStyle.Render(m.snap.ResultLocator) + "\n"
}

func (m Model) help() string {
	switch m.snap.State {
	case types.SessionIdle:
		return "Controls: [enter] Upload  [esc] Quit"
	case types.SessionUploading, types.SessionProcessing:
		return "Controls: [c] Cancel  [q] Quit"
	case types.SessionError:
		return "Controls: [r] Try Again  [q] Quit"
	case types.SessionComplete:
		return "Controls: [space] Play/Pause  [←/→] Seek  [m] Mute  [f] Fullscreen  [d] Download  [n] New Video  [q] Quit"
	}
	return ""
}

func selectPath(ctrl Controller, path string) tea.Cmd {
	return func() tea.Msg {
		f, err := selection.FromPath(path)
		if err != nil {
			return selectedMsg{Path: path, Err: err}
		}
		return selectedMsg{Path: path, Err: ctrl.SelectFile(f)}
	}
}

func toSnapshotMsg(s session.Snapshot) tea.Msg { return SnapshotMsg(s) }
func toPlayerMsg(s playback.State) tea.Msg     { return PlayerMsg(s) }

func waitFor[T any](l latest[T], wrap func(T) tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return wrap(<-l.ch)
	}
}

// latest is a one-slot mailbox that keeps only the newest value. put never
// blocks, so it is safe to call from callbacks that run under another lock.
type latest[T any] struct {
	ch chan T
}

func newLatest[T any]() latest[T] {
	return latest[T]{ch: make(chan T, 1)}
}

func (l latest[T]) put(v T) {
	for {
		select {
		case l.ch <- v:
			return
		default:
		}
		select {
		case <-l.ch:
		default:
		}
	}
}
