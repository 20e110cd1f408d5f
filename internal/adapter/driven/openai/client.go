// Package openai implements the Reviewer port against the OpenAI
// chat-completions API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/ericfisherdev/reviewhook/internal/domain/model"
	"github.com/ericfisherdev/reviewhook/internal/domain/port/driven"
)

const (
	defaultBaseURL = "https://api.openai.com"
	defaultTimeout = 60 * time.Second
)

const systemPrompt = "You are a code review assistant. Analyze the diff and respond with JSON only, " +
	`in the form {"comments":[{"line":N,"message":"...","severity":"error|warning|suggestion"}]}. ` +
	"The line number is the position within the diff hunk. Respond with an empty comments array when the change looks fine."

// Compile-time interface satisfaction check.
var _ driven.Reviewer = (*Client)(nil)

// Client reviews file patches by calling the OpenAI chat-completions API.
// Responses that are not valid JSON degrade to an empty finding set rather
// than an error; a single file's unreviewable output must not fail the run.
type Client struct {
	apiKey     string
	modelName  string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a reviewer client for the given API key and model.
func NewClient(apiKey, modelName string) *Client {
	return &Client{
		apiKey:     apiKey,
		modelName:  modelName,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// SetBaseURL sets a custom base URL (for testing).
func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

// SetTimeout sets the HTTP timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}

// chatRequest is the subset of the chat-completions request body we send.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the subset of the chat-completions response we read.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// reviewPayload is the structured result we ask the model to produce.
type reviewPayload struct {
	Comments []struct {
		Line     int    `json:"line"`
		Message  string `json:"message"`
		Severity string `json:"severity"`
	} `json:"comments"`
}

// ReviewPatch sends one file's diff to the model and parses the structured
// findings out of its reply. Transport and API errors are returned to the
// caller; a reply that cannot be parsed yields an empty finding set.
func (c *Client) ReviewPatch(ctx context.Context, filename, patch string) ([]model.Finding, error) {
	userPrompt := fmt.Sprintf("File: %s\n\nDiff:\n%s", filename, patch)

	reqBody := chatRequest{
		Model: c.modelName,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling review request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("building review request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling review service for %s: %w", filename, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading review response for %s: %w", filename, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("review service returned HTTP %d for %s", resp.StatusCode, filename)
	}

	var chat chatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		return nil, fmt.Errorf("parsing review response for %s: %w", filename, err)
	}
	if len(chat.Choices) == 0 {
		return []model.Finding{}, nil
	}

	return parseFindings(chat.Choices[0].Message.Content), nil
}

// fencedJSON matches a JSON object inside optional markdown code fences.
var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// parseFindings extracts findings from the model's reply text. Malformed or
// unparsable output degrades to an empty finding set.
func parseFindings(text string) []model.Finding {
	jsonText := text
	if m := fencedJSON.FindStringSubmatch(text); len(m) > 1 {
		jsonText = m[1]
	}

	var payload reviewPayload
	if err := json.Unmarshal([]byte(jsonText), &payload); err != nil {
		return []model.Finding{}
	}

	findings := make([]model.Finding, 0, len(payload.Comments))
	for _, c := range payload.Comments {
		if c.Line <= 0 || c.Message == "" {
			continue
		}
		findings = append(findings, model.Finding{
			Line:     c.Line,
			Message:  c.Message,
			Severity: model.NormalizeSeverity(c.Severity),
		})
	}
	return findings
}
