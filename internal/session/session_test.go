package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	xerrors "CircleLayer-Assistant/internal/errors"
)

func TestConversationAppendsInOrder(t *testing.T) {
	fixed := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	manager := NewManager(WithClock(func() time.Time { return fixed }))

	conv := manager.Create()
	user := conv.AppendUser("what's my balance?")
	reply := conv.AppendAssistant("**Balance:** 1 CLAYER", "balance", map[string]string{"balance": "1"})

	require.Equal(t, int64(1), user.ID)
	require.Equal(t, int64(2), reply.ID)
	require.Equal(t, RoleUser, user.Role)
	require.Equal(t, RoleAssistant, reply.Role)
	require.Equal(t, fixed, reply.Timestamp)

	msgs := conv.Messages()
	require.Len(t, msgs, 2)
	msgs[0].Text = "mutated"
	require.Equal(t, "what's my balance?", conv.Messages()[0].Text)
}

func TestManagerGreetingAndLookup(t *testing.T) {
	manager := NewManager(WithGreeting("hello", "help"))

	conv := manager.Create()
	require.NotEmpty(t, conv.ID())
	require.Equal(t, 1, conv.Len())
	require.Equal(t, "help", conv.Messages()[0].Kind)

	found, err := manager.Get(conv.ID())
	require.NoError(t, err)
	require.Same(t, conv, found)

	_, err = manager.Get("missing")
	require.True(t, xerrors.HasCode(err, xerrors.CodeNotFound))

	require.Same(t, conv, manager.GetOrCreate(conv.ID()))
	other := manager.GetOrCreate("missing")
	require.NotEqual(t, conv.ID(), other.ID())
	require.Equal(t, 2, manager.Count())
}

func TestConversationConcurrentAppendsKeepUniqueIDs(t *testing.T) {
	conv := NewManager().Create()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conv.AppendUser("ping")
		}()
	}
	wg.Wait()

	seen := make(map[int64]bool)
	for _, msg := range conv.Messages() {
		require.False(t, seen[msg.ID], "duplicate id %d", msg.ID)
		seen[msg.ID] = true
	}
	require.Len(t, seen, 50)
}
