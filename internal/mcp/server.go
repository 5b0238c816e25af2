package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/danmuck/mcp-awx/internal/tools"
	"github.com/rs/zerolog/log"
)

const maxLineBytes = 4 << 20

// Server speaks the tool protocol over any line-oriented stream.
type Server struct {
	name     string
	version  string
	registry *tools.Registry

	clients atomic.Int64
}

// NewServer creates a protocol server bound to registry.
func NewServer(name, version string, registry *tools.Registry) *Server {
	return &Server{name: name, version: version, registry: registry}
}

// Serve reads one JSON-RPC message per line from r and writes responses to w.
// Requests are dispatched concurrently; Serve returns after r is drained and
// every in-flight request has answered, or when ctx is canceled.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := &lineWriter{w: w}
	var wg sync.WaitGroup
	defer wg.Wait()

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			if len(strings.TrimSpace(string(line))) == 0 {
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				if resp, ok := s.handleLine(ctx, line); ok {
					if err := out.write(resp); err != nil {
						log.Warn().Err(err).Msg("mcp.Serve write failed")
					}
				}
			}()
		}
	}
}

// ListenAndServe accepts TCP connections and serves each one until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", strings.TrimSpace(addr))
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener is ListenAndServe on an existing listener.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	log.Info().Str("addr", ln.Addr().String()).Msg("mcp.listen")

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	active := s.clients.Add(1)
	log.Info().Str("remote", remote).Int64("active_clients", active).Msg("mcp client connected")
	defer func() {
		remaining := s.clients.Add(-1)
		log.Info().Str("remote", remote).Int64("active_clients", remaining).Msg("mcp client disconnected")
	}()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-connCtx.Done()
		_ = conn.Close()
	}()
	if err := s.Serve(connCtx, conn, conn); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Warn().Err(err).Str("remote", remote).Msg("mcp read failed")
	}
}

// handleLine decodes one message and returns the encoded response, if any.
func (s *Server) handleLine(ctx context.Context, line []byte) (response, bool) {
	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		return errorResponse(json.RawMessage("null"), CodeParseError, "parse error: "+err.Error()), true
	}
	if req.JSONRPC != jsonrpcVersion || strings.TrimSpace(req.Method) == "" {
		id := req.ID
		if len(id) == 0 {
			id = json.RawMessage("null")
		}
		return errorResponse(id, CodeInvalidRequest, "invalid request"), true
	}
	if req.isNotification() {
		log.Debug().Str("method", req.Method).Msg("mcp notification")
		return response{}, false
	}

	result, rerr := s.dispatch(ctx, req)
	if rerr != nil {
		return response{JSONRPC: jsonrpcVersion, ID: req.ID, Error: rerr}, true
	}
	return response{JSONRPC: jsonrpcVersion, ID: req.ID, Result: result}, true
}

func (s *Server) dispatch(ctx context.Context, req request) (any, *rpcError) {
	switch req.Method {
	case MethodInitialize:
		var params initializeParams
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &params); err != nil {
				return nil, &rpcError{Code: CodeInvalidParams, Message: err.Error()}
			}
		}
		version := negotiateVersion(params.ProtocolVersion)
		log.Info().Str("requested", params.ProtocolVersion).Str("negotiated", version).Msg("mcp initialize")
		return initializeResult{
			ProtocolVersion: version,
			Capabilities:    map[string]any{"tools": map[string]any{"listChanged": false}},
			ServerInfo:      serverInfo{Name: s.name, Version: s.version},
		}, nil
	case MethodPing:
		return struct{}{}, nil
	case MethodToolsList:
		list := s.registry.List()
		out := toolsListResult{Tools: make([]toolInfo, 0, len(list))}
		for _, d := range list {
			out.Tools = append(out.Tools, toolInfo{Name: d.Name, Description: d.Description, InputSchema: d.InputSchema})
		}
		return out, nil
	case MethodToolsCall:
		var params callParams
		if err := json.Unmarshal(req.Params, &params); err != nil || strings.TrimSpace(params.Name) == "" {
			return nil, &rpcError{Code: CodeInvalidParams, Message: "tools/call requires a tool name"}
		}
		return s.callTool(ctx, params)
	default:
		return nil, &rpcError{Code: CodeMethodNotFound, Message: fmt.Sprintf("method not found: %s", req.Method)}
	}
}

func (s *Server) callTool(ctx context.Context, params callParams) (any, *rpcError) {
	out, err := s.registry.Invoke(ctx, params.Name, params.Arguments)
	if errors.Is(err, tools.ErrToolNotFound) {
		return nil, &rpcError{Code: CodeInvalidParams, Message: err.Error()}
	}
	if err != nil {
		return ErrorResult(err), nil
	}
	res, err := ToolResult(out)
	if err != nil {
		return nil, &rpcError{Code: CodeInternalError, Message: err.Error()}
	}
	return res, nil
}

// ToolResult wraps a tool output as structured content plus its JSON text.
func ToolResult(out any) (CallResult, error) {
	text, err := json.Marshal(out)
	if err != nil {
		return CallResult{}, fmt.Errorf("mcp: encode tool result: %w", err)
	}
	return CallResult{
		Content:           []textContent{{Type: "text", Text: string(text)}},
		StructuredContent: out,
	}, nil
}

// ErrorResult reports a tool failure inside a successful response.
func ErrorResult(err error) CallResult {
	return CallResult{
		Content: []textContent{{Type: "text", Text: err.Error()}},
		IsError: true,
	}
}

func errorResponse(id json.RawMessage, code int, msg string) response {
	return response{JSONRPC: jsonrpcVersion, ID: id, Error: &rpcError{Code: code, Message: msg}}
}

// lineWriter serializes concurrent responses as one JSON object per line.
type lineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lineWriter) write(resp response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = l.w.Write(data)
	return err
}
