package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"floodguard-be/pkg/events"
	pktNats "floodguard-be/pkg/nats"
)

var (
	natsURL     string
	durableName string
)

var tracesCmd = &cobra.Command{
	Use:   "traces",
	Short: "Tail tool traces published by the server over NATS",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := ReadConfig(configPath, cmd.Flags().Changed("config"))
		if err != nil {
			return err
		}
		if natsURL != "" {
			cfg.NatsURL = natsURL
		}

		sub, err := pktNats.NewSubscriber(cfg.NatsURL)
		if err != nil {
			return fmt.Errorf("connecting to NATS: %w", err)
		}
		defer sub.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		subject := pktNats.Subject(events.TypeToolTrace)
		if err := sub.Subscribe(ctx, subject, durableName, func(_ context.Context, ev events.Event) error {
			printTrace(out, ev)
			return nil
		}); err != nil {
			return err
		}

		fmt.Fprintln(out, dim.Sprintf("Listening on %s (Ctrl+C to stop)", subject))
		<-ctx.Done()
		return nil
	},
}

func init() {
	tracesCmd.Flags().StringVar(&natsURL, "nats", "", "NATS URL (overrides nats_url)")
	tracesCmd.Flags().StringVar(&durableName, "durable", "", "Durable consumer name; empty tails new traces only")
}

func printTrace(w io.Writer, ev events.Event) {
	data := ev.Payload()
	line := fmt.Sprintf("%s %s %-16v results=%v %vms",
		ev.Timestamp().Local().Format(time.TimeOnly),
		dim.Sprintf("[%v]", data["session_id"]),
		data["tool"],
		data["results"],
		data["duration_ms"],
	)
	if q, ok := data["query"].(string); ok && q != "" {
		line += fmt.Sprintf(" query=%q", q)
	}
	if e, ok := data["error"]; ok {
		line += " " + errText.Sprintf("error=%v", e)
	}
	fmt.Fprintln(w, line)
}
