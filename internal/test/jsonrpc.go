package test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/pkg/errors"
)

// RPCError is returned by a JSONRPCHandler to answer with a JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return e.Message
}

// JSONRPCHandler answers one method call. Returning an *RPCError produces a JSON-RPC error;
// any other error makes the server reply with HTTP 503.
type JSONRPCHandler func(params json.RawMessage) (interface{}, error)

// JSONRPCServer is a JSON-RPC 2.0 fake usable for Ethereum and Solana clients.
type JSONRPCServer struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]JSONRPCHandler
	calls    map[string]int
}

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// NewJSONRPCServer starts a fake node; it is closed on test cleanup.
func NewJSONRPCServer(t *testing.T) *JSONRPCServer {
	t.Helper()

	s := &JSONRPCServer{
		handlers: make(map[string]JSONRPCHandler),
		calls:    make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)

	return s
}

// Handle registers the handler of method.
func (s *JSONRPCServer) Handle(method string, h JSONRPCHandler) *JSONRPCServer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
	return s
}

// Result registers a handler that always returns result.
func (s *JSONRPCServer) Result(method string, result interface{}) *JSONRPCServer {
	return s.Handle(method, func(json.RawMessage) (interface{}, error) {
		return result, nil
	})
}

// Calls returns how often method was invoked.
func (s *JSONRPCServer) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *JSONRPCServer) serve(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.calls[req.Method]++
	h, ok := s.handlers[req.Method]
	s.mu.Unlock()

	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
	if !ok {
		resp.Error = &RPCError{Code: -32601, Message: "method not found: " + req.Method}
		writeJSON(w, resp)
		return
	}

	result, err := h(req.Params)
	if err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			resp.Error = rpcErr
			writeJSON(w, resp)
			return
		}
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	if result == nil {
		result = json.RawMessage("null")
	}
	resp.Result = result
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
