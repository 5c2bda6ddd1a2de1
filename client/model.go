package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wfunc/gamecenter/seat"
	"github.com/wfunc/gamecenter/selection"
)

const (
	gridColumns = 6
	// the server enforces the real limit
	localSeatLimit = 8
)

type seatsMsg struct{ inv *seat.Inventory }

type errMsg struct{ err error }

type disconnectedMsg struct{ err error }

type toggledMsg struct {
	seatID   string
	selected bool
	err      error
}

type seatActions interface {
	Select(seatID string) error
	Deselect(seatID string) error
	RequestSeats(centerID string) error
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	hintStyle   = lipgloss.NewStyle().Faint(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	cursorStyle = lipgloss.NewStyle().Reverse(true)
	cellStyles  = map[seat.DisplayStatus]lipgloss.Style{
		seat.DisplayAvailable:   lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		seat.DisplayBooked:      lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		seat.DisplayInUse:       lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		seat.DisplayMaintenance: lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		seat.DisplaySelected:    lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true),
	}
)

type seatModel struct {
	centerID string
	actions  seatActions
	inv      *seat.Inventory
	selected *selection.Set
	cursor   int
	status   string
	err      error
	closed   bool
}

func newSeatModel(centerID string, actions seatActions) seatModel {
	return seatModel{
		centerID: centerID,
		actions:  actions,
		selected: selection.New(),
		status:   "waiting for seats...",
	}
}

func (m seatModel) Init() tea.Cmd {
	return m.requestSeatsCmd()
}

func (m seatModel) requestSeatsCmd() tea.Cmd {
	actions, centerID := m.actions, m.centerID
	return func() tea.Msg {
		if err := actions.RequestSeats(centerID); err != nil {
			return errMsg{err: err}
		}
		return nil
	}
}

func (m seatModel) toggleCmd(seatID string, selected bool) tea.Cmd {
	actions := m.actions
	return func() tea.Msg {
		var err error
		if selected {
			err = actions.Deselect(seatID)
		} else {
			err = actions.Select(seatID)
		}
		return toggledMsg{seatID: seatID, selected: !selected, err: err}
	}
}

func (m seatModel) seats() []seat.Seat {
	if m.inv == nil {
		return nil
	}
	return m.inv.Seats()
}

func (m seatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case seatsMsg:
		m.inv = msg.inv
		if removed := m.selected.Reconcile(msg.inv); len(removed) > 0 {
			m.status = "no longer available: " + strings.Join(removed, ", ")
		} else {
			m.status = ""
		}
		if n := msg.inv.Len(); m.cursor >= n {
			m.cursor = max(n-1, 0)
		}
		m.err = nil
		return m, nil

	case toggledMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		if msg.selected {
			if s, ok := m.inv.Get(msg.seatID); ok {
				m.selected.Add(msg.seatID, s, localSeatLimit)
			}
		} else {
			m.selected.Remove(msg.seatID)
		}
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, nil

	case disconnectedMsg:
		m.err = msg.err
		m.closed = true
		return m, nil
	}
	return m, nil
}

func (m seatModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := len(m.seats())
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "left", "h":
		if m.cursor > 0 {
			m.cursor--
		}
	case "right", "l":
		if m.cursor < n-1 {
			m.cursor++
		}
	case "up", "k":
		if m.cursor-gridColumns >= 0 {
			m.cursor -= gridColumns
		}
	case "down", "j":
		if m.cursor+gridColumns < n {
			m.cursor += gridColumns
		}
	case "r":
		return m, m.requestSeatsCmd()
	case " ", "space", "enter":
		if n == 0 || m.closed {
			return m, nil
		}
		s := m.seats()[m.cursor]
		selected := m.selected.Contains(s.ID)
		if !selected && !seat.IsSelectable(s, m.selected) {
			m.status = fmt.Sprintf("seat %s is %s", s.Number, s.Status)
			return m, nil
		}
		return m, m.toggleCmd(s.ID, selected)
	}
	return m, nil
}

func (m seatModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Center " + m.centerID))
	b.WriteString("\n\n")

	seats := m.seats()
	if len(seats) == 0 {
		b.WriteString("No seat data.\n")
	}
	for i, s := range seats {
		display := seat.DeriveDisplayStatus(s, m.selected)
		label := fmt.Sprintf("[%3s]", s.Number)
		if s.IsPremium {
			label = fmt.Sprintf("[%3s*", s.Number)
		}
		cell := cellStyles[display].Render(label)
		if i == m.cursor {
			cell = cursorStyle.Render(label)
		}
		b.WriteString(cell)
		if (i+1)%gridColumns == 0 || i == len(seats)-1 {
			b.WriteString("\n")
		} else {
			b.WriteString(" ")
		}
	}

	if m.inv != nil {
		sum := m.inv.Summary(m.selected)
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%s %d  %s %d  %s %d  %s %d  %s %d\n",
			cellStyles[seat.DisplayAvailable].Render("available"), sum.Available,
			cellStyles[seat.DisplaySelected].Render("selected"), sum.Selected,
			cellStyles[seat.DisplayBooked].Render("booked"), sum.Booked,
			cellStyles[seat.DisplayInUse].Render("in use"), sum.InUse,
			cellStyles[seat.DisplayMaintenance].Render("maintenance"), sum.Maintenance,
		))
	}

	if m.status != "" {
		b.WriteString("\n" + m.status + "\n")
	}
	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render(m.err.Error()) + "\n")
	}
	b.WriteString("\n" + hintStyle.Render("arrows move • space toggle • r refresh • q quit"))
	return b.String()
}
