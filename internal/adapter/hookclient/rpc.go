package hookclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/rpc/jsonrpc"
	"net/url"
	"strings"
	"time"

	"github.com/xiaot623/hookwatch/internal/domain"
)

// RPCClient forwards hooks over JSON-RPC. Each call dials a fresh
// connection.
type RPCClient struct {
	addr        string
	dialTimeout time.Duration
	callTimeout time.Duration
}

func NewRPCClient(addr string) *RPCClient {
	return &RPCClient{
		addr:        resolveRPCAddr(addr),
		dialTimeout: 5 * time.Second,
		callTimeout: 5 * time.Second,
	}
}

type ingestArgs struct {
	Payload map[string]interface{} `json:"payload"`
}

type snapshotArgs struct {
	WorkspaceID       string `json:"workspace_id"`
	TerminalSessionID string `json:"terminal_session_id"`
	RunID             string `json:"run_id"`
}

// Ingest decodes body as a JSON object and calls Hookwatch.Ingest.
func (c *RPCClient) Ingest(ctx context.Context, body []byte) (*domain.IngestResponse, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("hook payload must be a JSON object: %w", err)
	}

	var resp domain.IngestResponse
	if err := c.call(ctx, "Hookwatch.Ingest", &ingestArgs{Payload: payload}, &resp); err != nil {
		return nil, fmt.Errorf("failed to ingest over rpc: %w", err)
	}
	return &resp, nil
}

// Snapshot calls Hookwatch.Snapshot for one scope.
func (c *RPCClient) Snapshot(ctx context.Context, scope domain.ScopeKey) (*domain.Snapshot, error) {
	args := &snapshotArgs{
		WorkspaceID:       scope.WorkspaceID,
		TerminalSessionID: scope.TerminalSessionID,
		RunID:             scope.RunID,
	}
	var resp domain.Snapshot
	if err := c.call(ctx, "Hookwatch.Snapshot", args, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch snapshot over rpc: %w", err)
	}
	return &resp, nil
}

func (c *RPCClient) call(ctx context.Context, method string, args, reply interface{}) error {
	if c.addr == "" {
		return fmt.Errorf("rpc address is not configured")
	}
	conn, err := net.DialTimeout("tcp", c.addr, c.dialTimeout)
	if err != nil {
		return err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else if c.callTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(c.callTimeout))
	}

	client := jsonrpc.NewClient(conn)
	call := client.Go(method, args, reply, nil)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-call.Done:
		return call.Error
	}
}

func resolveRPCAddr(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.Contains(raw, "://") {
		parsed, err := url.Parse(raw)
		if err == nil && parsed.Host != "" {
			return parsed.Host
		}
	}
	return raw
}
