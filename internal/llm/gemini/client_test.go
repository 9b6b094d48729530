package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	xerrors "CircleLayer-Assistant/internal/errors"
	"CircleLayer-Assistant/internal/llm"
)

type fakeModels struct {
	model  string
	prompt string
	system string
	reply  string
	err    error
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.prompt = contents[0].Parts[0].Text
	f.system = cfg.SystemInstruction.Parts[0].Text
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(f.reply, genai.RoleModel)}},
	}, nil
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), Config{})
	require.Error(t, err)
}

func TestComplete(t *testing.T) {
	fake := &fakeModels{reply: "Staking locks tokens to secure the network."}
	client := newWithGenerator(fake, Config{})

	reply, err := client.Complete(context.Background(), llm.Request{Message: "what is staking", Intent: "general"})
	require.NoError(t, err)
	require.Equal(t, fake.reply, reply)
	require.Equal(t, defaultModel, fake.model)
	require.Equal(t, "what is staking", fake.prompt)
	require.Contains(t, fake.system, `User context: {"intent":"general"}`)
}

func TestCompleteEmptyAndError(t *testing.T) {
	fake := &fakeModels{}
	client := newWithGenerator(fake, Config{Model: "gemini-test"})

	reply, err := client.Complete(context.Background(), llm.Request{Message: "hi"})
	require.NoError(t, err)
	require.Equal(t, llm.EmptyReply, reply)
	require.Equal(t, "gemini-test", fake.model)

	fake.err = errors.New("quota exceeded")
	_, err = client.Complete(context.Background(), llm.Request{Message: "hi"})
	require.True(t, xerrors.HasCode(err, xerrors.CodeServiceUnavailable))
}
