package cmd

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
)

// resetCmd fires a soft reset against a running session's control API.
func resetCmd() *cli.Command {
	return &cli.Command{
		Name:  "reset",
		Usage: "Send a soft reset to a running session",
		Description: `POSTs to /control/soft-reset on the control API. A focused home
screen scrolls its active page to top and refreshes; an unfocused one
ignores the signal.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Value:   "http://localhost:4800",
				Usage:   "Base URL of the control API",
				EnvVars: []string{"SKYPAGER_ADDR"},
			},
		},
		Action: func(ctx *cli.Context) error {
			client := &http.Client{Timeout: 5 * time.Second}
			url := strings.TrimRight(ctx.String("addr"), "/") + "/control/soft-reset"
			resp, err := client.Post(url, "application/json", nil)
			if err != nil {
				return fmt.Errorf("could not reach control API: %w", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 300 {
				return fmt.Errorf("control API returned %s", resp.Status)
			}
			fmt.Println("Soft reset sent")
			return nil
		},
	}
}
