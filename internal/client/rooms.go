package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lox/bidroom/internal/server"
)

// CreateRoom asks the server for a new room and returns its id
func CreateRoom(ctx context.Context, httpClient *http.Client, serverURL string) (string, error) {
	var resp server.CreateRoomResponse
	if err := doJSON(ctx, httpClient, http.MethodPost, serverURL, "/api/create-room", &resp); err != nil {
		return "", err
	}
	if resp.RoomID == "" {
		return "", fmt.Errorf("server returned an empty room id")
	}
	return resp.RoomID, nil
}

// ListRooms returns the server's live rooms
func ListRooms(ctx context.Context, httpClient *http.Client, serverURL string) (server.RoomListResponse, error) {
	var resp server.RoomListResponse
	err := doJSON(ctx, httpClient, http.MethodGet, serverURL, "/api/rooms", &resp)
	return resp, err
}

func doJSON(ctx context.Context, httpClient *http.Client, method, serverURL, path string, out interface{}) error {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	endpoint := strings.TrimRight(serverURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: unexpected status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
