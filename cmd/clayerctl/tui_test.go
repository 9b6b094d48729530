package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"CircleLayer-Assistant/sdk/go/clayer"
)

type stubChat struct {
	session string
	message string
	err     error
}

func (s *stubChat) Chat(_ context.Context, sessionID, message string) (clayer.ChatReply, error) {
	s.session, s.message = sessionID, message
	if s.err != nil {
		return clayer.ChatReply{}, s.err
	}
	return clayer.ChatReply{
		SessionID: "s-new",
		Message:   clayer.Message{Role: "assistant", Text: "**Balance:** 1 CLAYER", Kind: "balance"},
	}, nil
}

func TestChatModelRoundTrip(t *testing.T) {
	stub := &stubChat{}
	m := newChatModel(stub, "s-1", plainRenderer{}, []entry{{role: "assistant", text: "Welcome"}})

	m.input.SetValue("  what's my balance  ")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	m = next.(chatModel)
	require.True(t, m.waiting)
	require.Empty(t, m.input.Value())
	require.Len(t, m.history, 2)

	// Enter is ignored while a reply is pending.
	m.input.SetValue("again")
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.Nil(t, cmd)

	msg := m.send("what's my balance")()
	require.Equal(t, "s-1", stub.session)
	require.Equal(t, "what's my balance", stub.message)

	next, _ = m.Update(msg)
	m = next.(chatModel)
	require.False(t, m.waiting)
	require.Equal(t, "s-new", m.session)
	require.Equal(t, "assistant", m.history[len(m.history)-1].role)
	require.Contains(t, m.viewport.View(), "Balance")
	require.True(t, strings.Contains(m.View(), "session s-new"))
}

func TestChatModelShowsErrors(t *testing.T) {
	stub := &stubChat{err: errors.New("connection refused")}
	m := newChatModel(stub, "", plainRenderer{}, nil)
	m.waiting = true

	next, _ := m.Update(m.send("hi")())
	m = next.(chatModel)
	require.False(t, m.waiting)
	require.Equal(t, "error", m.history[0].role)
	require.Contains(t, m.viewport.View(), "connection refused")
}

func TestChatModelQuits(t *testing.T) {
	m := newChatModel(&stubChat{}, "", plainRenderer{}, nil)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	require.IsType(t, tea.QuitMsg{}, cmd())

	m.input.SetValue("/quit")
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	require.IsType(t, tea.QuitMsg{}, cmd())
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "short", truncate("short", 10))
	require.Equal(t, "a b c", truncate("a\n b\t c", 10))
	require.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
