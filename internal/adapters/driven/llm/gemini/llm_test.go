package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/custodia-labs/libris/internal/core/domain"
	"github.com/custodia-labs/libris/internal/core/ports/driven"
)

type fakeModels struct {
	contents []*genai.Content
	cfg      *genai.GenerateContentConfig
	reply    string
	err      error
}

func (f *fakeModels) GenerateContent(_ context.Context, _ string, contents []*genai.Content,
	cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.contents = contents
	f.cfg = cfg
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: genai.NewContentFromText(f.reply, genai.RoleModel),
	}}}, nil
}

func (f *fakeModels) Get(_ context.Context, model string, _ *genai.GetModelConfig) (*genai.Model, error) {
	return &genai.Model{Name: model}, f.err
}

func TestChat_MapsRoles(t *testing.T) {
	fake := &fakeModels{reply: "fine"}
	svc := newWithModels(fake, "")

	reply, err := svc.Chat(context.Background(), []driven.ChatMessage{
		{Role: "system", Content: "be kind"},
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
		{Role: "user", Content: "how are you"},
	}, driven.ChatOptions{MaxTokens: 100, Temperature: 0.5})
	require.NoError(t, err)
	assert.Equal(t, "fine", reply)
	assert.Equal(t, DefaultModel, svc.ModelName())

	require.Len(t, fake.contents, 3)
	assert.Equal(t, genai.RoleUser, fake.contents[0].Role)
	assert.Equal(t, genai.RoleModel, fake.contents[1].Role)
	require.NotNil(t, fake.cfg.SystemInstruction)
	assert.Equal(t, "be kind", fake.cfg.SystemInstruction.Parts[0].Text)
	assert.Equal(t, int32(100), fake.cfg.MaxOutputTokens)
	require.NotNil(t, fake.cfg.Temperature)
	assert.InDelta(t, 0.5, *fake.cfg.Temperature, 1e-6)
}

func TestGenerate(t *testing.T) {
	fake := &fakeModels{reply: "text"}
	svc := newWithModels(fake, "gemini-pro")

	out, err := svc.Generate(context.Background(), "prompt", driven.GenerateOptions{StopWords: []string{"x"}, Temperature: -1})
	require.NoError(t, err)
	assert.Equal(t, "text", out)
	assert.Equal(t, []string{"x"}, fake.cfg.StopSequences)
	assert.Nil(t, fake.cfg.Temperature)
	assert.NoError(t, svc.Ping(context.Background()))
}

func TestGenerate_Errors(t *testing.T) {
	svc := newWithModels(&fakeModels{err: errors.New("quota")}, "")
	_, err := svc.Generate(context.Background(), "p", driven.GenerateOptions{})
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)

	svc = newWithModels(&fakeModels{reply: ""}, "")
	_, err = svc.Generate(context.Background(), "p", driven.GenerateOptions{})
	assert.Error(t, err)

	_, err = NewLLMService(context.Background(), Config{})
	assert.Error(t, err)
}
