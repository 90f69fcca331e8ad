// Package rpc exposes ingestion and snapshots over JSON-RPC for local hook
// forwarders that keep a TCP connection instead of posting over HTTP.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"

	"github.com/xiaot623/hookwatch/internal/domain"
	"github.com/xiaot623/hookwatch/internal/service"
)

// ServiceName is the JSON-RPC receiver name.
const ServiceName = "Hookwatch"

// Server accepts JSON-RPC connections.
type Server struct {
	listener  net.Listener
	rpcServer *rpc.Server
	done      chan struct{}
}

// NewServer creates a new RPC server bound to the service.
func NewServer(svc *service.Service) (*Server, error) {
	rpcServer := rpc.NewServer()
	handler := &Handler{service: svc}
	if err := rpcServer.RegisterName(ServiceName, handler); err != nil {
		return nil, fmt.Errorf("register rpc handler: %w", err)
	}

	return &Server{
		rpcServer: rpcServer,
		done:      make(chan struct{}),
	}, nil
}

// Listen binds addr. Call Serve afterwards.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start binds addr and serves until Shutdown.
func (s *Server) Start(addr string) error {
	if err := s.Listen(addr); err != nil {
		return err
	}
	return s.Serve()
}

// Serve accepts connections on the bound listener until Shutdown.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("rpc server is not listening")
	}
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				close(s.done)
				return nil
			}
			slog.Warn("RPC accept error", "error", err)
			continue
		}

		go s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
	}
}

// Shutdown stops accepting new RPC connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}

	if err := s.listener.Close(); err != nil {
		return err
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handler implements the RPC methods.
type Handler struct {
	service *service.Service
}

// IngestRequest carries one raw hook payload.
type IngestRequest struct {
	Payload map[string]interface{} `json:"payload"`
}

// SnapshotRequest selects the scope of a snapshot. All fields empty means
// every active scope.
type SnapshotRequest struct {
	WorkspaceID       string `json:"workspace_id"`
	TerminalSessionID string `json:"terminal_session_id"`
	RunID             string `json:"run_id"`
}

// Ingest processes a hook payload.
func (h *Handler) Ingest(req *IngestRequest, resp *domain.IngestResponse) error {
	if req == nil || req.Payload == nil {
		return errors.New("payload is required")
	}

	result, err := h.service.Ingest(context.Background(), req.Payload)
	if err != nil {
		return err
	}
	if resp != nil && result != nil {
		*resp = *result
	}
	return nil
}

// Snapshot returns the current state for a scope.
func (h *Handler) Snapshot(req *SnapshotRequest, resp *domain.Snapshot) error {
	var scopes []domain.ScopeKey
	if req != nil && (req.WorkspaceID != "" || req.TerminalSessionID != "" || req.RunID != "") {
		scopes = []domain.ScopeKey{domain.NewScopeKey(req.WorkspaceID, req.TerminalSessionID, req.RunID)}
	}

	snap, err := h.service.Snapshot(context.Background(), scopes)
	if err != nil {
		return err
	}
	if resp != nil && snap != nil {
		*resp = *snap
	}
	return nil
}
