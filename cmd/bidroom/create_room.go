package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lox/bidroom/internal/client"
)

// CreateRoomCmd asks a running server for a new room
type CreateRoomCmd struct {
	Server  string        `default:"http://localhost:8080" help:"Server base URL"`
	Timeout time.Duration `default:"10s" help:"Request timeout"`
}

func (c *CreateRoomCmd) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	roomID, err := client.CreateRoom(ctx, &http.Client{Timeout: c.Timeout}, c.Server)
	if err != nil {
		return fmt.Errorf("create room: %w", err)
	}

	fmt.Println(roomID)
	return nil
}
