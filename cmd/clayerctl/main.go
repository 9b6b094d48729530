package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"CircleLayer-Assistant/sdk/go/clayer"
)

var (
	serverURL string
	timeout   time.Duration
	plain     bool
	sessionID string
)

var rootCmd = &cobra.Command{
	Use:   "clayerctl",
	Short: "Command line client for the Circle Layer DeFi assistant",
	Long: `clayerctl talks to a running clayerd over its REST API.

Run without arguments to start the interactive chat.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runChat(cmd.Context())
	},
}

var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Send one message and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		reply, err := client.Chat(ctx, sessionID, strings.Join(args, " "))
		if err != nil {
			return err
		}
		out, err := newRenderer(plain).Render(reply.Message.Text)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		fmt.Fprintf(cmd.ErrOrStderr(), "session: %s\n", reply.SessionID)
		return nil
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runChat(cmd.Context())
	},
}

func newClient() (*clayer.Client, error) {
	return clayer.NewClient(serverURL, nil)
}

func defaultServer() string {
	if v := strings.TrimSpace(os.Getenv("CLAYER_SERVER")); v != "" {
		return v
	}
	return "http://localhost:8080"
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer(), "assistant API base URL (env CLAYER_SERVER)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 90*time.Second, "request timeout")
	rootCmd.PersistentFlags().BoolVar(&plain, "plain", false, "print raw markdown instead of rendering it")
	askCmd.Flags().StringVar(&sessionID, "session", "", "continue an existing session")
	chatCmd.Flags().StringVar(&sessionID, "session", "", "continue an existing session")

	rootCmd.AddCommand(askCmd, chatCmd, jobCmd, auditCmd, validateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
