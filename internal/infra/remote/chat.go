package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/swaplane/offersvc/internal/core/domain"
)

// ChatClient is the raw HTTP client for the chat service.
type ChatClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewChatClient creates a chat client with a pooled transport.
func NewChatClient(baseURL string, timeout time.Duration) *ChatClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ChatClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type createRoomRequest struct {
	ParticipantA uuid.UUID `json:"participant_a"`
	ParticipantB uuid.UUID `json:"participant_b"`
	Context      string    `json:"context"`
}

type createRoomResponse struct {
	RoomID uuid.UUID `json:"room_id"`
}

// CreateRoom opens a chat room between two participants. The context string
// ties the room back to the trade offer that triggered it.
func (c *ChatClient) CreateRoom(ctx context.Context, participantA, participantB uuid.UUID, roomContext string) (uuid.UUID, error) {
	body, err := json.Marshal(createRoomRequest{
		ParticipantA: participantA,
		ParticipantB: participantB,
		Context:      roomContext,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/internal/rooms", bytes.NewReader(body))
	if err != nil {
		return uuid.Nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return uuid.Nil, &domain.TransientError{Op: "chat create room", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return uuid.Nil, &domain.TransientError{Op: "chat create room", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return uuid.Nil, fmt.Errorf("chat create room: unexpected status %d", resp.StatusCode)
	}

	var out createRoomResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return uuid.Nil, fmt.Errorf("chat create room: decode response: %w", err)
	}
	return out.RoomID, nil
}
