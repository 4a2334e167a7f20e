package cli

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcoot/hotpotato/internal/share"
)

func newQRCmd() *cobra.Command {
	var pngPath string

	cmd := &cobra.Command{
		Use:   "qr <code>",
		Short: "Show a QR code that joins a room",
		Long: `Print a scannable QR code for a room's join link in the terminal.

With --png, the server-rendered PNG is saved to a file instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := args[0]
			out := NewOutput(cfg.Output, cmd.OutOrStdout())

			if pngPath != "" {
				png, err := client.Do(http.MethodGet, RoomPath(code, "/qr"), nil)
				if err != nil {
					return err
				}
				if err := os.WriteFile(pngPath, png, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", pngPath, err)
				}
				out.PrintMessage(fmt.Sprintf("Saved QR code for %s to %s", code, pngPath))
				return nil
			}

			var room Room
			if err := client.Get(RoomPath(code), &room); err != nil {
				return err
			}

			if out.JSON() {
				out.Print(RoomCode{Code: room.RoomID, JoinURL: room.JoinURL})
				return nil
			}

			art, err := share.Terminal(room.JoinURL)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), art)
			fmt.Fprintf(cmd.OutOrStdout(), "Join %s: %s\n", room.RoomID, room.JoinURL)
			return nil
		},
	}

	cmd.Flags().StringVar(&pngPath, "png", "", "Save the QR code as a PNG file")

	return cmd
}
