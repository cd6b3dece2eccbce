package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Hemant07J07/mhchat/internal/chat"
	"github.com/Hemant07J07/mhchat/internal/domain"
	"github.com/Hemant07J07/mhchat/internal/gateway"
	"github.com/Hemant07J07/mhchat/internal/store"
)

const (
	opTimeout    = 10 * time.Second
	inputLimit   = 2000
	kbHitsShown  = 3
	localIDSeed  = "local"
	crisisBanner = "If you are in immediate danger, call your local emergency number."
)

var (
	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	crisisStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("1")).Bold(true).Padding(0, 1)
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
)

type appConfig struct {
	conversationID string
	historyLimit   int
	session        *chat.Session
	rest           *chat.Client
	mediator       *gateway.Client
	archive        store.Archive
	logger         *slog.Logger
}

// sessionEventMsg wraps one transport session event.
type sessionEventMsg chat.Event

// sessionDoneMsg means the session closed and no more events will come.
type sessionDoneMsg struct{}

// restSentMsg is the result of a REST fallback send plus resync.
type restSentMsg struct {
	text     string
	messages []domain.Message
	err      error
}

// predictMsg is the result of one mediation gateway call.
type predictMsg struct {
	resp *gateway.PredictResponse
	err  error
}

type model struct {
	cfg appConfig

	viewport  viewport.Model
	input     textinput.Model
	spinner   spinner.Model
	ready     bool
	width     int
	height    int
	messages  []domain.Message
	connState string
	thinking  bool
	crisis    bool
	kbHits    []string
	errText   string
	localSeq  int
}

func newApp(cfg appConfig) model {
	ti := textinput.New()
	ti.Placeholder = "Type a message and press Enter"
	ti.CharLimit = inputLimit
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = dimStyle

	return model{
		cfg:       cfg,
		input:     ti,
		spinner:   sp,
		connState: string(chat.StateConnecting),
	}
}

func (m model) Init() tea.Cmd {
	m.cfg.session.Connect(context.Background(), m.cfg.conversationID)
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.waitForEvent())
}

// waitForEvent bridges the session's event channel into the update loop, one
// event per command.
func (m model) waitForEvent() tea.Cmd {
	session := m.cfg.session
	return func() tea.Msg {
		select {
		case ev := <-session.Events():
			return sessionEventMsg(ev)
		case <-session.Done():
			return sessionDoneMsg{}
		}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		chromeHeight := 5
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-chromeHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - chromeHeight
		}
		m.refreshTranscript()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.thinking {
				break
			}
			m.input.Reset()
			m.errText = ""
			return m.sendMessage(text)
		}

	case sessionEventMsg:
		m.applyEvent(chat.Event(msg))
		cmds = append(cmds, m.waitForEvent())

	case sessionDoneMsg:
		m.connState = string(chat.StateDisconnected)

	case restSentMsg:
		if msg.err != nil {
			m.thinking = false
			m.errText = fmt.Sprintf("send failed: %v", msg.err)
			break
		}
		m.messages = msg.messages
		m.archiveReplace(msg.messages)
		m.refreshTranscript()
		return m, tea.Batch(append(cmds, m.predict(msg.text))...)

	case predictMsg:
		m.thinking = false
		if msg.err != nil {
			m.errText = msg.err.Error()
			break
		}
		m.crisis = msg.resp.Crisis
		m.kbHits = msg.resp.KBHits
		if msg.resp.Reply != "" {
			reply := m.localMessage(domain.SenderBot, msg.resp.Reply)
			m.messages = append(m.messages, reply)
			m.archiveAppend(reply)
			m.refreshTranscript()
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// sendMessage delivers text over the socket when it is open, otherwise it
// falls back to the REST path and resyncs the list afterwards.
func (m model) sendMessage(text string) (tea.Model, tea.Cmd) {
	m.thinking = m.cfg.mediator != nil

	if m.cfg.session.Send(m.cfg.conversationID, text) {
		local := m.localMessage(domain.SenderUser, text)
		m.messages = append(m.messages, local)
		m.archiveAppend(local)
		m.refreshTranscript()
		return m, m.predict(text)
	}

	cfg := m.cfg
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		if _, err := cfg.rest.SendMessage(ctx, cfg.conversationID, domain.SenderUser, text); err != nil {
			return restSentMsg{text: text, err: err}
		}
		msgs, err := cfg.rest.ListMessages(ctx, cfg.conversationID)
		return restSentMsg{text: text, messages: msgs, err: err}
	}
}

// predict asks the mediation gateway for an assistant reply, handing it the
// recent transcript window.
func (m model) predict(text string) tea.Cmd {
	if m.cfg.mediator == nil || text == "" {
		return nil
	}
	cfg := m.cfg
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		history, err := cfg.archive.RecentHistory(ctx, cfg.conversationID, cfg.historyLimit)
		if err != nil {
			cfg.logger.Warn("history lookup failed", "error", err)
		}
		resp, err := cfg.mediator.Predict(ctx, text, history)
		return predictMsg{resp: resp, err: err}
	}
}

func (m *model) applyEvent(ev chat.Event) {
	switch ev.Kind {
	case chat.EventOpened:
		m.connState = string(chat.StateOpen)
	case chat.EventClosed:
		m.connState = string(chat.StateReconnectWait)
	case chat.EventListReplaced:
		m.messages = ev.Messages
		m.archiveReplace(ev.Messages)
		m.refreshTranscript()
	case chat.EventMessageAppended:
		if ev.Message == nil {
			return
		}
		m.messages = append(m.messages, *ev.Message)
		m.archiveAppend(*ev.Message)
		m.refreshTranscript()
	case chat.EventErrorFrame:
		m.errText = ev.Detail
	}
}

func (m *model) archiveAppend(msg domain.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := m.cfg.archive.AppendMessage(ctx, m.cfg.conversationID, msg); err != nil {
		m.cfg.logger.Warn("archive append failed", "error", err)
	}
}

func (m *model) archiveReplace(msgs []domain.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := m.cfg.archive.ReplaceConversation(ctx, m.cfg.conversationID, msgs); err != nil {
		m.cfg.logger.Warn("archive replace failed", "error", err)
	}
}

// localMessage builds a message originated on this client rather than echoed
// by the backend. Ids only need to be unique within the transcript view.
func (m *model) localMessage(sender, text string) domain.Message {
	m.localSeq++
	return domain.Message{
		ID:        fmt.Sprintf("%s-%d-%d", localIDSeed, time.Now().UnixNano(), m.localSeq),
		Sender:    sender,
		Text:      text,
		CreatedAt: time.Now(),
	}
}

func (m *model) refreshTranscript() {
	if !m.ready {
		return
	}
	var b strings.Builder
	for _, msg := range m.messages {
		label := botStyle.Render("assistant")
		if msg.Sender == domain.SenderUser {
			label = userStyle.Render("you")
		}
		fmt.Fprintf(&b, "%s %s\n%s\n\n", label, dimStyle.Render(msg.CreatedAt.Format("15:04")), wrap(msg.Text, m.viewport.Width))
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m model) View() string {
	if !m.ready {
		return "loading..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("mhchat") + dimStyle.Render("  conversation "+m.cfg.conversationID+"  ["+m.connState+"]") + "\n")
	b.WriteString(m.viewport.View() + "\n")

	switch {
	case m.crisis:
		b.WriteString(crisisStyle.Render(crisisBanner) + "\n")
	case m.errText != "":
		b.WriteString(errStyle.Render(m.errText) + "\n")
	case len(m.kbHits) > 0:
		b.WriteString(dimStyle.Render("related: "+strings.Join(capHits(m.kbHits), " | ")) + "\n")
	default:
		b.WriteString("\n")
	}

	if m.thinking {
		b.WriteString(m.spinner.View() + dimStyle.Render(" thinking") + "\n")
	} else {
		b.WriteString("\n")
	}
	b.WriteString(m.input.View())
	return b.String()
}

func capHits(hits []string) []string {
	if len(hits) > kbHitsShown {
		return hits[:kbHitsShown]
	}
	return hits
}

// wrap soft-wraps text to width, preserving existing newlines.
func wrap(text string, width int) string {
	if width <= 0 {
		return text
	}
	var out []string
	for _, line := range strings.Split(text, "\n") {
		for len(line) > width {
			cut := strings.LastIndex(line[:width], " ")
			if cut <= 0 {
				cut = width
			}
			out = append(out, line[:cut])
			line = strings.TrimLeft(line[cut:], " ")
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
