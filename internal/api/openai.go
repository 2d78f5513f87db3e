package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is used when no model or deployment is configured.
const DefaultOpenAIModel = openai.GPT4o

// OpenAIConfig contains configuration for creating an OpenAIClient.
type OpenAIConfig struct {
	// Model is the model name, or the deployment name on Azure.
	Model string
	// APIKey is the API key. If empty, uses AZURE_OPENAI_API_KEY for Azure
	// and OPENAI_API_KEY otherwise.
	APIKey string
	// BaseURL overrides the API endpoint.
	BaseURL string
	// AzureEndpoint switches the client to Azure OpenAI when set.
	AzureEndpoint string
	// AzureAPIVersion overrides the Azure API version.
	AzureAPIVersion string
	// MaxTokens caps each response. Zero leaves it to the service.
	MaxTokens int
}

// OpenAIClient wraps the go-openai client with token tracking.
type OpenAIClient struct {
	inner     *openai.Client
	model     string
	maxTokens int
	tracker   *TokenTracker
}

// NewOpenAIClient creates an OpenAI or Azure OpenAI client.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	apiKey := cfg.APIKey
	envVar := "OPENAI_API_KEY"
	if cfg.AzureEndpoint != "" {
		envVar = "AZURE_OPENAI_API_KEY"
	}
	if apiKey == "" {
		apiKey = os.Getenv(envVar)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%s environment variable is not set", envVar)
	}

	var oc openai.ClientConfig
	if cfg.AzureEndpoint != "" {
		oc = openai.DefaultAzureConfig(apiKey, cfg.AzureEndpoint)
		if cfg.AzureAPIVersion != "" {
			oc.APIVersion = cfg.AzureAPIVersion
		}
	} else {
		oc = openai.DefaultConfig(apiKey)
	}
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	return &OpenAIClient{
		inner:     openai.NewClientWithConfig(oc),
		model:     model,
		maxTokens: cfg.MaxTokens,
		tracker:   NewTokenTracker(),
	}, nil
}

// Model returns the configured model or deployment name.
func (c *OpenAIClient) Model() string {
	return c.model
}

// Tracker returns the token tracker for this client.
func (c *OpenAIClient) Tracker() *TokenTracker {
	return c.tracker
}

// CreateChat sends one chat completion request. Model and MaxTokens are
// filled from the client configuration when unset.
func (c *OpenAIClient) CreateChat(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	c.fill(&req)
	resp, err := c.inner.CreateChatCompletion(ctx, req)
	if err != nil {
		return resp, fmt.Errorf("chat completion failed: %w", err)
	}
	c.tracker.Add(int64(resp.Usage.PromptTokens), int64(resp.Usage.CompletionTokens))
	return resp, nil
}

// Complete implements Completer.
func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.CreateChat(ctx, openai.ChatCompletionRequest{Messages: chatMessages(systemPrompt, userPrompt)})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// CompleteStream implements StreamCompleter.
func (c *OpenAIClient) CompleteStream(ctx context.Context, systemPrompt, userPrompt string, emit func(string) error) error {
	req := openai.ChatCompletionRequest{Messages: chatMessages(systemPrompt, userPrompt), Stream: true}
	c.fill(&req)

	stream, err := c.inner.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return fmt.Errorf("chat completion stream failed: %w", err)
	}
	defer stream.Close()

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			c.tracker.Add(0, 0)
			return nil
		}
		if err != nil {
			return fmt.Errorf("chat completion stream failed: %w", err)
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		if err := emit(chunk.Choices[0].Delta.Content); err != nil {
			return err
		}
	}
}

func (c *OpenAIClient) fill(req *openai.ChatCompletionRequest) {
	if req.Model == "" {
		req.Model = c.model
	}
	if req.MaxTokens == 0 && c.maxTokens > 0 {
		req.MaxTokens = c.maxTokens
	}
}

func chatMessages(systemPrompt, userPrompt string) []openai.ChatCompletionMessage {
	var msgs []openai.ChatCompletionMessage
	if systemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	return append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: userPrompt})
}

var _ StreamCompleter = (*OpenAIClient)(nil)
