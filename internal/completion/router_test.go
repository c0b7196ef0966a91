package completion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockProvider struct {
	mock.Mock
	name string
}

func (m *MockProvider) Name() string {
	return m.name
}

func (m *MockProvider) ListModels(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockProvider) Stream(ctx context.Context, req *Request) (Stream, error) {
	args := m.Called(ctx, req)
	s, _ := args.Get(0).(Stream)
	return s, args.Error(1)
}

func TestRouterModelsMergesProviders(t *testing.T) {
	openai := &MockProvider{name: ProviderOpenAI}
	ollama := &MockProvider{name: ProviderOllama}
	openai.On("ListModels", mock.Anything).Return([]string{"gpt-4", "gpt-3.5-turbo"}, nil)
	ollama.On("ListModels", mock.Anything).Return([]string{"llama3:latest"}, nil)

	r := NewRouter(openai, ollama)
	models, err := r.Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt-3.5-turbo", "gpt-4", "llama3:latest"}, models)

	p, err := r.Resolve("llama3:latest")
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, p.Name())

	openai.AssertExpectations(t)
	ollama.AssertExpectations(t)
}

func TestRouterModelsSkipsFailingProvider(t *testing.T) {
	openai := &MockProvider{name: ProviderOpenAI}
	ollama := &MockProvider{name: ProviderOllama}
	openai.On("ListModels", mock.Anything).Return([]string{"gpt-4"}, nil)
	ollama.On("ListModels", mock.Anything).Return([]string(nil), errors.New("connection refused"))

	models, err := NewRouter(openai, ollama).Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt-4"}, models)
}

func TestRouterModelsAllFailing(t *testing.T) {
	ollama := &MockProvider{name: ProviderOllama}
	ollama.On("ListModels", mock.Anything).Return([]string(nil), errors.New("connection refused"))

	_, err := NewRouter(ollama).Models(context.Background())
	assert.ErrorContains(t, err, "connection refused")
}

func TestRouterResolveByPrefix(t *testing.T) {
	openai := &MockProvider{name: ProviderOpenAI}
	ollama := &MockProvider{name: ProviderOllama}
	gemini := &MockProvider{name: ProviderGemini}
	r := NewRouter(openai, ollama, gemini)

	for model, want := range map[string]string{
		"gpt-4":            ProviderOpenAI,
		"o3-mini":          ProviderOpenAI,
		"gemini-2.0-flash": ProviderGemini,
		"llama3:latest":    ProviderOllama,
	} {
		p, err := r.Resolve(model)
		require.NoError(t, err, model)
		assert.Equal(t, want, p.Name(), model)
	}
}

func TestRouterSingleProviderTakesEverything(t *testing.T) {
	ollama := &MockProvider{name: ProviderOllama}
	p, err := NewRouter(ollama).Resolve("gpt-4")
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, p.Name())
}

func TestRouterStreamWithoutProvider(t *testing.T) {
	openai := &MockProvider{name: ProviderOpenAI}
	gemini := &MockProvider{name: ProviderGemini}

	_, err := NewRouter(openai, gemini).Stream(context.Background(), &Request{Model: "llama3"})
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestRouterStreamDelegates(t *testing.T) {
	openai := &MockProvider{name: ProviderOpenAI}
	req := &Request{Model: "gpt-4"}
	openai.On("Stream", mock.Anything, req).Return(nil, errors.New("boom"))

	_, err := NewRouter(openai).Stream(context.Background(), req)
	assert.EqualError(t, err, "boom")
	openai.AssertExpectations(t)
}
