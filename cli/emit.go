package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/xiaot623/hookwatch/internal/adapter/hookclient"
	"github.com/xiaot623/hookwatch/internal/domain"
)

var (
	emitURL     string
	emitRPC     string
	emitTimeout time.Duration
	emitQuiet   bool
)

// ingester is satisfied by both the HTTP and the JSON-RPC hook clients.
type ingester interface {
	Ingest(ctx context.Context, body []byte) (*domain.IngestResponse, error)
}

var emitCmd = &cobra.Command{
	Use:   "emit",
	Short: "Read one hook payload from stdin and forward it",
	Long: "Read one raw hook payload (JSON object) from stdin and forward it to hookwatch.\n" +
		"Suitable as a hook command: failures are reported but never block the agent.",
	RunE: runEmit,
}

func init() {
	emitCmd.Flags().StringVar(&emitURL, "url", "http://localhost:8080", "hookwatch HTTP base URL")
	emitCmd.Flags().StringVar(&emitRPC, "rpc", "", "forward over JSON-RPC to this address instead of HTTP")
	emitCmd.Flags().DurationVar(&emitTimeout, "timeout", 3*time.Second, "request timeout")
	emitCmd.Flags().BoolVar(&emitQuiet, "quiet", false, "suppress output and always exit 0")
}

func runEmit(cmd *cobra.Command, args []string) error {
	body, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}

	var client ingester
	if emitRPC != "" {
		client = hookclient.NewRPCClient(emitRPC)
	} else {
		client = hookclient.NewClient(emitURL, emitTimeout)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), emitTimeout)
	defer cancel()

	resp, err := client.Ingest(ctx, body)
	if emitQuiet {
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), formatIngest(resp))
	return nil
}
