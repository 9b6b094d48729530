package main

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"CircleLayer-Assistant/sdk/go/clayer"
)

type chatClient interface {
	Chat(ctx context.Context, sessionID, message string) (clayer.ChatReply, error)
}

type entry struct {
	role string
	text string
}

type (
	replyMsg clayer.ChatReply
	errMsg   struct{ err error }
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	userStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	hintStyle  = lipgloss.NewStyle().Faint(true)
)

type chatModel struct {
	client   chatClient
	timeout  time.Duration
	session  string
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	render   renderer
	history  []entry
	waiting  bool
}

func newChatModel(client chatClient, session string, r renderer, history []entry) chatModel {
	ti := textinput.New()
	ti.Placeholder = "Ask about balances, transfers, staking... (Enter to send, Esc to exit)"
	ti.Prompt = "│ "
	ti.CharLimit = 4000
	ti.Width = 80
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := chatModel{
		client:   client,
		timeout:  timeout,
		session:  session,
		input:    ti,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		render:   r,
		history:  history,
	}
	m.refresh()
	return m
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-4, 3)
		m.input.Width = max(msg.Width-4, 10)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.waiting {
				return m, nil
			}
			if text == "/quit" || text == "/exit" {
				return m, tea.Quit
			}
			m.input.Reset()
			m.history = append(m.history, entry{role: "user", text: text})
			m.waiting = true
			m.refresh()
			return m, tea.Batch(m.send(text), m.spinner.Tick)
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case replyMsg:
		m.waiting = false
		m.session = msg.SessionID
		m.history = append(m.history, entry{role: "assistant", text: msg.Message.Text})
		m.refresh()
		return m, nil

	case errMsg:
		m.waiting = false
		m.history = append(m.history, entry{role: "error", text: msg.err.Error()})
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m chatModel) send(text string) tea.Cmd {
	client, session, limit := m.client, m.session, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), limit)
		defer cancel()
		reply, err := client.Chat(ctx, session, text)
		if err != nil {
			return errMsg{err: err}
		}
		return replyMsg(reply)
	}
}

func (m *chatModel) refresh() {
	var b strings.Builder
	for _, e := range m.history {
		switch e.role {
		case "user":
			b.WriteString(userStyle.Render("you › " + e.text))
			b.WriteString("\n\n")
		case "error":
			b.WriteString(errStyle.Render("error: " + e.text))
			b.WriteString("\n\n")
		default:
			out, err := m.render.Render(e.text)
			if err != nil {
				out = e.text + "\n"
			}
			b.WriteString(out)
			b.WriteString("\n")
		}
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m chatModel) View() string {
	status := hintStyle.Render("session " + m.session)
	if m.waiting {
		status = m.spinner.View() + " thinking..."
	}
	return titleStyle.Render("Circle Layer DeFi Assistant") + "\n" +
		m.viewport.View() + "\n" +
		status + "\n" +
		m.input.View()
}

func runChat(ctx context.Context) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	var history []entry
	if sessionID == "" {
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		transcript, err := client.CreateSession(reqCtx)
		cancel()
		if err != nil {
			return err
		}
		sessionID = transcript.SessionID
		for _, msg := range transcript.Messages {
			history = append(history, entry{role: msg.Role, text: msg.Text})
		}
	}

	model := newChatModel(client, sessionID, newRenderer(plain), history)
	_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
