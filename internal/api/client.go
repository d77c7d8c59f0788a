// Package api is the client of the REST collaborator that owns conversations
// and messages.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"skillswap/internal/models"
)

const DefaultTimeout = 10 * time.Second

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// envelope is the response wrapper used by every endpoint.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type CreateConversationRequest struct {
	RecipientEmail string `json:"recipientEmail,omitempty"`
	RecipientID    string `json:"recipientId,omitempty"`
}

type CreateMessageRequest struct {
	Text       string `json:"text"`
	ReceiverID string `json:"receiverId"`
}

func (c *Client) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	var data struct {
		Conversations []models.Conversation `json:"conversations"`
	}
	if err := c.do(ctx, "list conversations", http.MethodGet, "/chats/conversations", nil, &data); err != nil {
		return nil, err
	}
	return data.Conversations, nil
}

func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var data struct {
		Messages []models.Message `json:"messages"`
	}
	path := "/chats/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := c.do(ctx, "list messages", http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}
	return data.Messages, nil
}

// CreateConversation starts a conversation with a user given by email or id.
func (c *Client) CreateConversation(ctx context.Context, recipient string) (models.Conversation, error) {
	req := CreateConversationRequest{RecipientID: recipient}
	if strings.Contains(recipient, "@") {
		req = CreateConversationRequest{RecipientEmail: recipient}
	}

	var data struct {
		Conversation models.Conversation `json:"conversation"`
	}
	if err := c.do(ctx, "create conversation", http.MethodPost, "/chats/conversations", req, &data); err != nil {
		return models.Conversation{}, err
	}
	return data.Conversation, nil
}

func (c *Client) CreateMessage(ctx context.Context, conversationID, text, receiverID string) (models.Message, error) {
	var data struct {
		Message models.Message `json:"message"`
	}
	path := "/chats/conversations/" + url.PathEscape(conversationID) + "/messages"
	body := CreateMessageRequest{Text: text, ReceiverID: receiverID}
	if err := c.do(ctx, "create message", http.MethodPost, path, body, &data); err != nil {
		return models.Message{}, err
	}
	return data.Message, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &RequestError{Op: op, Message: fmt.Sprintf("failed to marshal request: %v", err), Err: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return newTransportError(op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return newTransportError(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newStatusError(op, resp.StatusCode, env.Message)
	}
	if decodeErr != nil {
		return &RequestError{Op: op, StatusCode: resp.StatusCode, Message: "invalid response body", Err: decodeErr}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &RequestError{Op: op, StatusCode: resp.StatusCode, Message: "invalid response data", Err: err}
	}
	return nil
}
