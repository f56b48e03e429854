package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

type geminiClient struct {
	client *genai.Client
	model  string
}

func newGeminiClient(apiKey, model string, opts *clientOptions) (*geminiClient, error) {
	ctx := context.Background()
	config := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if opts.baseURL != "" {
		config.HTTPOptions.BaseURL = opts.baseURL
	}

	client, err := genai.NewClient(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &geminiClient{client: client, model: model}, nil
}

func convertGeminiMessages(messages []Message) (*genai.Content, []*genai.Content) {
	var systemInstruction *genai.Content
	var contents []*genai.Content

	for _, m := range messages {
		switch m.Role {
		case "system":
			systemInstruction = &genai.Content{Parts: []*genai.Part{{Text: m.Content}}}
		case "user":
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: m.Content}}})
		case "assistant":
			contents = append(contents, &genai.Content{Role: "model", Parts: []*genai.Part{{Text: m.Content}}})
		}
	}

	return systemInstruction, contents
}

func geminiConfig(systemInstruction *genai.Content, req Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{SystemInstruction: systemInstruction}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	config.Temperature = genai.Ptr(float32(max(req.Temperature, 0)))
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}
	return config
}

func (c *geminiClient) Complete(ctx context.Context, req Request) (string, error) {
	systemInstruction, contents := convertGeminiMessages(req.Messages)
	if len(contents) == 0 {
		return "", &Error{Kind: ErrUnavailable, Provider: "gemini", Err: errors.New("no user message provided")}
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, geminiConfig(systemInstruction, req))
	if err != nil {
		return "", classify("gemini", geminiStatus(err), err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", badResponse("gemini", "empty response text")
	}
	return text, nil
}

func geminiStatus(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}
