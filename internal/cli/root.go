// Package cli defines the terminal chat client for the FloodGuard explorer.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"floodguard-be/internal/pkg/logger"
	"floodguard-be/pkg/clientstate"
	"floodguard-be/pkg/protocol"
	"floodguard-be/pkg/retrieval"
	"floodguard-be/pkg/session"
)

var (
	configPath   string
	serverURL    string
	apiURL       string
	sessionID    string
	anthropicKey string
	openaiKey    string
	noClear      bool
	version      = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "floodguard-chat",
	Short: "Chat with the FloodGuard project explorer from a terminal",
	Long: `Sends questions to the FloodGuard chat stream and keeps the chat log,
map summary, project details and related news in sync with the answers.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runChat(ctx, cfg, credentials(), cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", DefaultConfigFile, "Path to the client YAML config")
	rootCmd.Flags().StringVar(&serverURL, "server", "", "Chat websocket URL (overrides server_url)")
	rootCmd.Flags().StringVar(&apiURL, "api", "", "REST API base URL (overrides api_url)")
	rootCmd.Flags().StringVar(&sessionID, "session", "", "Session id to resume")
	rootCmd.Flags().StringVar(&anthropicKey, "anthropic-key", "", "Anthropic API key (default $ANTHROPIC_API_KEY)")
	rootCmd.Flags().StringVar(&openaiKey, "openai-key", "", "OpenAI API key (default $OPENAI_API_KEY)")
	rootCmd.Flags().BoolVar(&noClear, "no-clear", false, "Append frames instead of redrawing the screen")

	rootCmd.AddCommand(tracesCmd)
}

func loadConfig(cmd *cobra.Command) (*Config, error) {
	cfg, err := ReadConfig(configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return nil, err
	}
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}
	if apiURL != "" {
		cfg.APIURL = apiURL
	}
	if sessionID != "" {
		cfg.SessionID = sessionID
	}
	return cfg, nil
}

// credentials come only from flags or the environment and are never
// written to disk.
func credentials() protocol.Credentials {
	creds := protocol.Credentials{
		"anthropic_key": firstNonEmpty(anthropicKey, os.Getenv("ANTHROPIC_API_KEY")),
		"openai_key":    firstNonEmpty(openaiKey, os.Getenv("OPENAI_API_KEY")),
	}
	for k, v := range creds {
		if v == "" {
			delete(creds, k)
		}
	}
	return creds
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func runChat(ctx context.Context, cfg *Config, creds protocol.Credentials, in io.Reader, out io.Writer) error {
	log := logger.NewIsolatedLogger(cfg.LogFile)
	defer log.Sync()

	transport := session.New(cfg.ServerURL, session.Options{
		SessionID: cfg.SessionID,
		Retry:     cfg.Reconnect,
		Logger:    log,
	})
	machine := clientstate.NewMachine(transport, retrieval.NewClient(cfg.APIURL), clientstate.Config{
		Watchdog:            cfg.Watchdog,
		Credentials:         creds,
		RequiredCredentials: cfg.RequiredCredentials,
		Logger:              log,
	})
	transport.OnEvent(machine.HandleEvent)
	transport.OnStateChange(machine.HandleStateChange)

	renderer := NewRenderer(out, cfg)
	renderer.clear = !noClear
	machine.OnChange(renderer.Draw)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- machine.Run(ctx) }()

	log.Info("ChatClient", "Connecting", map[string]interface{}{
		"server":     cfg.ServerURL,
		"session_id": transport.SessionID(),
	})
	if err := transport.Open(ctx); err != nil {
		// The transport keeps retrying per the reconnect policy.
		log.Warn("ChatClient", "Initial connect failed", map[string]interface{}{"error": err.Error()})
	}
	renderer.Draw(machine.Snapshot())

	r := &repl{ctrl: machine, renderer: renderer, out: out, cellDeg: cfg.CellDeg}
	err := r.run(ctx, in)

	_ = transport.Close()
	cancel()
	<-done
	return err
}
