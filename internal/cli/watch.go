package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mcoot/hotpotato/internal/protocol"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <code>",
		Short: "Follow a room without joining it",
		Long: `Stream a room's events as a spectator until the room closes.

Useful on a shared screen next to the join QR code.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if cfg.Verbose {
				fmt.Fprintf(cmd.ErrOrStderr(), "streaming %s\n", RoomPath(args[0], "/events"))
			}
			return Watch(ctx, client, args[0], NewOutput(cfg.Output, cmd.OutOrStdout()))
		},
	}
}

// Watch prints every event of a room until the stream ends or ctx is done
func Watch(ctx context.Context, c *Client, code string, out *Output) error {
	body, err := c.Stream(ctx, RoomPath(code, "/events"))
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()

	err = readEvents(body, func(data string) error {
		f, err := protocol.DecodeFrame([]byte(data))
		if err != nil {
			return err
		}
		out.PrintFrame(f, "")
		return nil
	})
	if ctx.Err() != nil {
		return nil
	}
	if err == nil && !out.JSON() {
		out.PrintMessage("Room closed")
	}
	return err
}

// readEvents calls fn with the data of each event until the stream ends.
// Comment lines are keepalives.
func readEvents(r io.Reader, fn func(data string) error) error {
	scanner := bufio.NewScanner(r)
	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				if err := fn(strings.Join(data, "\n")); err != nil {
					return err
				}
				data = data[:0]
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	return scanner.Err()
}

// Stream opens a long-lived GET, returning the body on success
func (c *Client) Stream(ctx context.Context, path string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// No overall timeout; the stream lasts as long as the room
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		defer func() { _ = resp.Body.Close() }()
		body, _ := io.ReadAll(resp.Body)
		return nil, errors.New(apiErrorMessage(resp.StatusCode, body))
	}
	return resp.Body, nil
}
