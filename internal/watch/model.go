package watch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ReaperOAK/player-auction/internal/auction"
	"github.com/ReaperOAK/player-auction/internal/store"
)

const maxLogLines = 12

type keyMap struct {
	Quit  key.Binding
	Clear key.Binding
}

var keys = keyMap{
	Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c")),
	Clear: key.NewBinding(key.WithKeys("c")),
}

// Model is the spectator TUI.
type Model struct {
	msgs   <-chan any
	teamID string

	view    auction.View
	version int64
	synced  bool
	stale   int
	log     []string

	connected bool
	err       error
	spinner   spinner.Model
	width     int
}

// NewModel creates a model reading from msgs. teamID, when set, marks
// events addressed to that team.
func NewModel(msgs <-chan any, teamID string) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = titleStyle
	return &Model{msgs: msgs, teamID: teamID, spinner: s}
}

// Init starts the spinner and the feed listener.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen())
}

func (m *Model) listen() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-m.msgs
		if !ok {
			return tea.Quit()
		}
		return msg
	}
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Clear):
			m.log = nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case ConnMsg:
		m.connected, m.err = msg.Connected, msg.Err
		return m, m.listen()

	case EnvelopeMsg:
		m.Apply(msg.Envelope)
		return m, m.listen()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// Apply folds env into the model. Envelopes older than the last one seen
// are dropped, except snapshots which always resynchronise.
func (m *Model) Apply(env Envelope) bool {
	if m.synced && env.Type != auction.EventSnapshot && env.Version < m.version {
		m.stale++
		return false
	}
	m.view, m.version, m.synced = env.State, env.Version, true
	if line := m.describe(env); line != "" {
		m.log = append([]string{line}, m.log...)
		if len(m.log) > maxLogLines {
			m.log = m.log[:maxLogLines]
		}
	}
	return true
}

// State returns the last applied view.
func (m *Model) State() auction.View { return m.view }

// Log returns the event lines, newest first.
func (m *Model) Log() []string { return m.log }

func (m *Model) describe(env Envelope) string {
	switch env.Type {
	case auction.EventLotStarted:
		if env.State.Lot == nil {
			return ""
		}
		return fmt.Sprintf("%s is up, base %s", env.State.Lot.Name, auction.FormatAmount(env.State.Lot.BasePrice))
	case auction.EventBidAccepted:
		var d auction.BidData
		if json.Unmarshal(env.Data, &d) != nil {
			return ""
		}
		return fmt.Sprintf("%s bids %s", d.TeamName, auction.FormatAmount(d.Amount))
	case auction.EventOutbid:
		var d auction.BidData
		if json.Unmarshal(env.Data, &d) != nil {
			return ""
		}
		return fmt.Sprintf("You were outbid by %s at %s", d.TeamName, auction.FormatAmount(d.Amount))
	case auction.EventPaused:
		return "Auction paused"
	case auction.EventResumed:
		return "Auction resumed"
	case auction.EventSettledSold:
		var d auction.SettledData
		if json.Unmarshal(env.Data, &d) != nil {
			return ""
		}
		return fmt.Sprintf("SOLD %s to %s for %s", d.LotName, d.TeamName, auction.FormatAmount(d.Price))
	case auction.EventSettledUnsold:
		var d auction.SettledData
		if json.Unmarshal(env.Data, &d) != nil {
			return ""
		}
		if d.Reason != "" {
			return fmt.Sprintf("UNSOLD %s (%s)", d.LotName, d.Reason)
		}
		return fmt.Sprintf("UNSOLD %s", d.LotName)
	case auction.EventLotReverted:
		var d auction.RevertData
		if json.Unmarshal(env.Data, &d) != nil {
			return ""
		}
		return fmt.Sprintf("Sale of %s to %s reverted", d.PlayerName, d.TeamName)
	case auction.EventRejected:
		var d auction.RejectedData
		if json.Unmarshal(env.Data, &d) != nil {
			return ""
		}
		return "Rejected: " + d.Message
	}
	return ""
}

// View renders the screen.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Player Auction"))
	b.WriteString("\n\n")

	if !m.synced {
		b.WriteString(m.spinner.View() + " connecting…\n")
		b.WriteString(m.statusBar())
		return b.String()
	}

	width := 48
	if m.width > 4 && m.width-4 < width {
		width = m.width - 4
	}
	b.WriteString(panelStyle.Width(width).Render(m.lotPanel()))
	b.WriteString("\n")
	b.WriteString(panelStyle.Width(width).Render(m.logPanel()))
	b.WriteString("\n")
	b.WriteString(m.statusBar())
	return b.String()
}

func (m *Model) lotPanel() string {
	v := m.view
	if v.Lot == nil {
		return mutedStyle.Render("Waiting for the next player…")
	}
	lines := []string{
		lotStyle.Render(v.Lot.Name) + mutedStyle.Render(fmt.Sprintf("  %s · year %d", v.Lot.Position, v.Lot.Year)),
	}
	if v.Bidder != nil {
		leader := v.Bidder.Name
		if v.Bidder.ID == m.teamID {
			leader += " (you)"
		}
		lines = append(lines, "Leading  "+bidStyle.Render(auction.FormatAmount(v.CurrentBid))+"  "+leader)
	} else {
		lines = append(lines, "Base     "+bidStyle.Render(auction.FormatAmount(v.CurrentBid))+mutedStyle.Render("  no bids yet"))
	}
	lines = append(lines, "Next bid "+auction.FormatAmount(v.MinimumBid()))
	lines = append(lines, m.clock())
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m *Model) clock() string {
	v := m.view
	text := fmt.Sprintf("%2ds", v.TimeRemaining)
	switch {
	case v.Status == store.StatusPaused:
		return pausedStyle.Render("⏸ " + text + " paused")
	case v.TimeRemaining <= 5:
		return urgentStyle.Render("⏱ " + text)
	}
	return "⏱ " + text
}

func (m *Model) logPanel() string {
	if len(m.log) == 0 {
		return mutedStyle.Render("No activity yet")
	}
	return strings.Join(m.log, "\n")
}

func (m *Model) statusBar() string {
	status := "connected"
	if !m.connected {
		status = "disconnected"
		if m.err != nil {
			status += ": " + m.err.Error()
		}
	}
	return statusBarStyle.Render(fmt.Sprintf("%s · v%d · q quit · c clear", status, m.version))
}
