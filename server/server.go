package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/mirrordroid/mirrordroid/commands"
	"github.com/mirrordroid/mirrordroid/config"
	"github.com/mirrordroid/mirrordroid/pairing"
	"github.com/mirrordroid/mirrordroid/utils"
)

const (
	// Parse error: Invalid JSON was received by the server
	ErrCodeParseError = -32700

	// Invalid Request: The JSON sent is not a valid Request object
	ErrCodeInvalidRequest = -32600

	// Method not found: The method does not exist / is not available
	ErrCodeMethodNotFound = -32601

	// Server error: Internal JSON-RPC error
	ErrCodeServerError = -32000

	// Invalid params: Invalid method parameters
	ErrCodeInvalidParams = -32602

	// Internal error: Internal JSON-RPC error
	ErrCodeInternalError = -32603

	// Unauthorized: missing or wrong bearer token
	ErrCodeUnauthorized = -32001
)

const (
	errTitleParseError     = "Parse error"
	errTitleInvalidReq     = "Invalid Request"
	errTitleMethodNotFound = "Method not found"
	errTitleMethodNotSupp  = "Method not supported"
	errTitleServerError    = "Server error"
	errTitleUnauthorized   = "Unauthorized"

	errMsgParseError     = "expecting jsonrpc payload"
	errMsgInvalidJSONRPC = "'jsonrpc' must be '2.0'"
	errMsgIDRequired     = "'id' field is required"
	errMsgMethodRequired = "'method' is required"
	errMsgWebSocketOnly  = "events are only delivered over WebSocket, connect to /ws"
	errMsgBadToken       = "missing or invalid bearer token"
)

// Server timeouts
const (
	ReadTimeout     = 10 * time.Second
	WriteTimeout    = 60 * time.Second
	IdleTimeout     = 120 * time.Second
	ShutdownTimeout = 5 * time.Second
)

const DefaultAddress = "localhost:12000"

// Version is reported by the banner endpoint.
var Version = "dev"

var okResponse = map[string]interface{}{"status": "ok"}

type JSONRPCRequest struct {
	// these fields are all omitempty, so we can report back to client if they are missing
	JSONRPC string          `json:"jsonrpc,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      interface{}     `json:"id,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC response
type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   interface{} `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// JSONRPCNotification is a server push without an id.
type JSONRPCNotification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type rpcError struct {
	code    int
	message string
	data    string
}

// validateJSONRPCRequest checks the envelope shared by HTTP and WebSocket requests.
func validateJSONRPCRequest(req JSONRPCRequest) *rpcError {
	if req.JSONRPC != "2.0" {
		return &rpcError{ErrCodeInvalidRequest, errTitleInvalidReq, errMsgInvalidJSONRPC}
	}
	if req.ID == nil {
		return &rpcError{ErrCodeInvalidRequest, errTitleInvalidReq, errMsgIDRequired}
	}
	if req.Method == "" {
		return &rpcError{ErrCodeInvalidRequest, errTitleInvalidReq, errMsgMethodRequired}
	}
	return nil
}

// Options configures the control server.
type Options struct {
	Addr       string
	EnableCORS bool
	// Token, when set, must be sent as "Authorization: Bearer <token>"
	// or as the "token" query parameter.
	Token string
}

// Server serves the JSON-RPC API over POST /rpc and GET /ws and pushes
// session, pairing, device and settings events to subscribed WebSocket clients.
type Server struct {
	opts Options
	hub  *hub

	stopOnce sync.Once
	stopped  chan struct{}
}

func New(opts Options) *Server {
	return &Server{
		opts:    opts,
		hub:     newHub(),
		stopped: make(chan struct{}),
	}
}

// corsMiddleware handles CORS preflight requests and adds CORS headers to responses.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Handler returns the HTTP handler with auth and CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", sendBanner)
	mux.HandleFunc("/rpc", s.handleJSONRPC)
	mux.HandleFunc("/ws", s.handleWebSocket)

	var handler http.Handler = mux
	if s.opts.Token != "" {
		handler = authMiddleware(s.opts.Token, handler)
	}
	if s.opts.EnableCORS {
		handler = corsMiddleware(handler)
	}
	return handler
}

// normalizeAddr turns a bare port into ":port".
func normalizeAddr(addr string) (string, error) {
	if addr == "" {
		return DefaultAddress, nil
	}
	return utils.NormalizeListenAddr(addr)
}

// Run serves until ctx is canceled or server.shutdown is called. On exit
// running scrcpy sessions and pairing sessions are stopped and settings saved.
func (s *Server) Run(ctx context.Context) error {
	rt := commands.GetRuntime()
	if rt == nil {
		return errors.New("runtime is not initialized")
	}

	addr, err := normalizeAddr(s.opts.Addr)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	s.startEventSources(ctx, rt, &wg)

	httpServer := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  ReadTimeout,
		WriteTimeout: WriteTimeout,
		IdleTimeout:  IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		utils.Info("Starting server on http://%s...", listener.Addr())
		serveErr <- httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
	case <-s.stopped:
	case err = <-serveErr:
	}

	utils.Info("Shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
	s.hub.closeAll()

	cancel()
	wg.Wait()

	rt.QR.CancelAll()
	if stopped := rt.Scrcpy.StopAll(); len(stopped) > 0 {
		utils.Info("Stopped scrcpy for %v", stopped)
	}
	if saveErr := rt.Store.Save(); saveErr != nil {
		utils.Warn("Failed to save settings: %v", saveErr)
	}

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop makes Run return. It is safe to call more than once.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopped)
	})
}

// StartServer runs a server until it is shut down over RPC or ctx is canceled.
func StartServer(ctx context.Context, opts Options) error {
	return New(opts).Run(ctx)
}

// startEventSources forwards scrcpy, pairing and settings events to the hub
// and starts the device auto-refresh loop.
func (s *Server) startEventSources(ctx context.Context, rt *commands.Runtime, wg *sync.WaitGroup) {
	events, unsubscribe := rt.Scrcpy.Subscribe()
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				s.hub.publish(EventSession, ev)
			}
		}
	}()

	removeQR := rt.QR.OnStatus(func(status pairing.Status) {
		s.hub.publish(EventPairing, map[string]interface{}{
			"status":  status,
			"message": rt.StatusMessage(status),
		})
	})

	removeConfig := rt.Store.OnChange(func() {
		s.hub.publish(EventConfig, rt.Store.Snapshot())
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		removeQR()
		removeConfig()
	}()

	watcher, err := config.NewWatcher(rt.Store)
	if err != nil {
		utils.Warn("Settings file watcher unavailable: %v", err)
	} else if err := watcher.Start(ctx); err != nil {
		utils.Warn("Failed to watch settings file: %v", err)
	} else {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ctx.Done()
			watcher.Stop()
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		newRefresher(rt, s.hub).run(ctx)
	}()
}

func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONRPCError(w, nil, ErrCodeParseError, errTitleParseError, errMsgParseError)
		return
	}

	if rpcErr := validateJSONRPCRequest(req); rpcErr != nil {
		sendJSONRPCError(w, req.ID, rpcErr.code, rpcErr.message, rpcErr.data)
		return
	}

	utils.Info("Request ID: %v, Method: %s, Params: %s", req.ID, req.Method, string(req.Params))

	switch req.Method {
	case methodShutdown:
		sendJSONRPCResponse(w, req.ID, okResponse)
		go s.Stop()
		return
	case methodEventsSubscribe, methodEventsUnsubscribe:
		sendJSONRPCError(w, req.ID, ErrCodeMethodNotFound, errTitleMethodNotSupp, errMsgWebSocketOnly)
		return
	}

	handler, exists := GetMethodRegistry()[req.Method]
	if !exists {
		sendJSONRPCError(w, req.ID, ErrCodeMethodNotFound, errTitleMethodNotFound, fmt.Sprintf("Method '%s' not found", req.Method))
		return
	}

	result, err := handler(r.Context(), req.Params)
	if err != nil {
		utils.Verbose("Error executing method %s: %v", req.Method, err)
		sendJSONRPCError(w, req.ID, ErrCodeServerError, errTitleServerError, err.Error())
		return
	}

	sendJSONRPCResponse(w, req.ID, result)
}

func sendJSONRPCResponse(w http.ResponseWriter, id interface{}, result interface{}) {
	response := JSONRPCResponse{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

func sendJSONRPCError(w http.ResponseWriter, id interface{}, code int, message string, data interface{}) {
	response := JSONRPCResponse{
		JSONRPC: "2.0",
		Error: map[string]interface{}{
			"code":    code,
			"message": message,
			"data":    data,
		},
		ID: id,
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

func sendBanner(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"name":    "mirrordroid",
		"version": Version,
	})
}
