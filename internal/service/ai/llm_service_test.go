package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onevoice/ivr/backend/internal/model/call"
)

type fakeChatModel struct {
	reply string
	err   error
	input []*schema.Message
}

func (m *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.input = input
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *fakeChatModel) BindTools([]*schema.ToolInfo) error { return nil }

func userTurn(text string) call.Turn      { return call.Turn{Role: call.RoleUser, Text: text} }
func assistantTurn(text string) call.Turn { return call.Turn{Role: call.RoleAssistant, Text: text} }

func TestServiceGenerateBuildsPrompt(t *testing.T) {
	fake := &fakeChatModel{reply: "  Doctorul va evalua la consultație.  "}
	svc, err := NewServiceWithModel(context.Background(), fake)
	require.NoError(t, err)

	reply, err := svc.Generate(context.Background(), Request{
		SystemInstruction: "Ești OneVoice Dental",
		History: []call.Turn{
			userTurn("Bună"),
			assistantTurn("Salut, cu ce te ajut?"),
			userTurn("Mă doare un dinte"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Doctorul va evalua la consultație.", reply.Text)

	require.Len(t, fake.input, 4)
	assert.Equal(t, schema.System, fake.input[0].Role)
	assert.Equal(t, "Ești OneVoice Dental", fake.input[0].Content)
	assert.Equal(t, schema.User, fake.input[1].Role)
	assert.Equal(t, schema.Assistant, fake.input[2].Role)
	assert.Equal(t, schema.User, fake.input[3].Role)
	assert.Equal(t, "Mă doare un dinte", fake.input[3].Content)
}

func TestServiceGenerateBoundsHistory(t *testing.T) {
	fake := &fakeChatModel{reply: "ok"}
	svc, err := NewServiceWithModel(context.Background(), fake)
	require.NoError(t, err)

	var history []call.Turn
	for i := 0; i < 8; i++ {
		history = append(history, userTurn(fmt.Sprintf("q%d", i)), assistantTurn(fmt.Sprintf("a%d", i)))
	}
	history = append(history, userTurn("last"))

	_, err = svc.Generate(context.Background(), Request{SystemInstruction: "sys", History: history})
	require.NoError(t, err)

	// system + at most HistoryLimit turns
	require.Len(t, fake.input, 1+HistoryLimit)
	assert.Equal(t, "last", fake.input[len(fake.input)-1].Content)
}

func TestServiceGenerateRejectsEmptyReply(t *testing.T) {
	svc, err := NewServiceWithModel(context.Background(), &fakeChatModel{reply: "   "})
	require.NoError(t, err)

	_, err = svc.Generate(context.Background(), Request{History: []call.Turn{userTurn("salut")}})
	assert.ErrorIs(t, err, ErrEmptyReply)
}

func TestServiceGenerateWrapsModelError(t *testing.T) {
	boom := errors.New("upstream unavailable")
	svc, err := NewServiceWithModel(context.Background(), &fakeChatModel{err: boom})
	require.NoError(t, err)

	_, err = svc.Generate(context.Background(), Request{History: []call.Turn{userTurn("salut")}})
	assert.ErrorIs(t, err, boom)
}

func TestServiceGenerateRequiresUserQuery(t *testing.T) {
	svc, err := NewServiceWithModel(context.Background(), &fakeChatModel{reply: "ok"})
	require.NoError(t, err)

	_, err = svc.Generate(context.Background(), Request{History: []call.Turn{assistantTurn("hello")}})
	assert.ErrorIs(t, err, ErrNoQuery)

	_, err = svc.Generate(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNoQuery)
}

func TestBuildContentsMapsRoles(t *testing.T) {
	contents, err := buildContents([]call.Turn{userTurn("a"), assistantTurn("b"), userTurn("c")})
	require.NoError(t, err)
	require.Len(t, contents, 3)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
	assert.Equal(t, "c", contents[2].Parts[0].Text)
}
