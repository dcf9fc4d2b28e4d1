// Package api exposes the order and product data over HTTP, plus a chat
// endpoint that drives the dialogue orchestrator.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/outfitters-agent/agent/agents/orchestrator"
	contractx "github.com/tanpawarit/outfitters-agent/agent/contract"
	logx "github.com/tanpawarit/outfitters-agent/pkg/logger"
)

const maxChatBody = 64 << 10

// Chatter runs one dialogue turn for a session.
type Chatter interface {
	HandleMessage(ctx context.Context, sessionID, text string) (orchestrator.TurnResult, error)
}

type Server struct {
	data   contractx.DataSource
	chat   Chatter
	logger zerolog.Logger
	mux    *http.ServeMux
}

type Option func(*Server)

// WithChat enables POST /chat.
func WithChat(c Chatter) Option {
	return func(s *Server) { s.chat = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

func New(data contractx.DataSource, opts ...Option) (*Server, error) {
	if data == nil {
		return nil, errors.New("api: data source is required")
	}
	s := &Server{
		data:   data,
		logger: logx.Component(log.Logger, "api"),
		mux:    http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux.HandleFunc("GET /{$}", s.handleRoot)
	s.mux.HandleFunc("GET /orders/", s.handleOrders)
	s.mux.HandleFunc("GET /products/", s.handleProducts)
	s.mux.HandleFunc("GET /products/{sku}", s.handleProduct)
	s.mux.HandleFunc("POST /chat", s.handleChat)
	s.mux.HandleFunc("DELETE /chat/{session_id}", s.handleChatReset)
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)
	s.logger.Debug().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", rec.status).
		Dur("elapsed", time.Since(start)).
		Msg("request served")
}

// NewHTTPServer wraps the handler with the timeouts the serve command uses.
func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}

/* ---------------------------------------------------------------------------- */

type rootResponse struct {
	Message   string            `json:"message"`
	Endpoints map[string]string `json:"endpoints"`
}

type ordersResponse struct {
	Orders []contractx.Order `json:"orders"`
}

type productsResponse struct {
	Products []contractx.Product `json:"products"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
	Phase     string `json:"phase"`
	Intent    string `json:"intent"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	endpoints := map[string]string{
		"products": "/products",
		"orders":   "/orders",
	}
	if s.chat != nil {
		endpoints["chat"] = "/chat"
	}
	s.writeJSON(w, http.StatusOK, rootResponse{
		Message:   "Welcome to Sierra Outfitters API",
		Endpoints: endpoints,
	})
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	// Only the collection path; /orders/x is not a resource here.
	if r.URL.Path != "/orders/" {
		s.writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	q := r.URL.Query()
	orders, err := s.data.FindOrders(r.Context(), contractx.OrderQuery{
		Email:       q.Get("customer_email"),
		OrderNumber: q.Get("order_number"),
	})
	if err != nil {
		s.dataError(w, err)
		return
	}
	if orders == nil {
		orders = []contractx.Order{}
	}
	s.writeJSON(w, http.StatusOK, ordersResponse{Orders: orders})
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := contractx.ProductQuery{Text: q.Get("query"), Tags: q["tags"]}
	if raw := strings.TrimSpace(q.Get("min_inventory")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, http.StatusUnprocessableEntity, "min_inventory must be an integer")
			return
		}
		query.MinInventory = &n
	}

	products, err := s.data.ListProducts(r.Context(), query)
	if err != nil {
		s.dataError(w, err)
		return
	}
	if products == nil {
		products = []contractx.Product{}
	}
	s.writeJSON(w, http.StatusOK, productsResponse{Products: products})
}

func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	sku := r.PathValue("sku")
	p, err := s.data.GetProduct(r.Context(), sku)
	if errors.Is(err, contractx.ErrProductNotFound) {
		s.writeError(w, http.StatusNotFound, "Product with SKU "+sku+" not found")
		return
	}
	if err != nil {
		s.dataError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		s.writeError(w, http.StatusNotFound, "chat is not enabled")
		return
	}

	var req chatRequest
	dec := sonic.ConfigDefault.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody))
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	res, err := s.chat.HandleMessage(r.Context(), sessionID, req.Message)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("chat turn failed")
		s.writeError(w, http.StatusInternalServerError, "chat turn failed")
		return
	}
	s.writeJSON(w, http.StatusOK, chatResponse{
		SessionID: res.SessionID,
		Reply:     res.Reply,
		Phase:     res.Phase.String(),
		Intent:    res.Intent.String(),
	})
}

// sessionResetter is implemented by chatters that can forget a session.
type sessionResetter interface {
	Reset(ctx context.Context, sessionID string) error
}

func (s *Server) handleChatReset(w http.ResponseWriter, r *http.Request) {
	resetter, ok := s.chat.(sessionResetter)
	if !ok {
		s.writeError(w, http.StatusNotFound, "chat reset is not enabled")
		return
	}
	if err := resetter.Reset(r.Context(), r.PathValue("session_id")); err != nil {
		s.logger.Error().Err(err).Msg("chat reset failed")
		s.writeError(w, http.StatusInternalServerError, "chat reset failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

/* ---------------------------------------------------------------------------- */

func (s *Server) dataError(w http.ResponseWriter, err error) {
	s.logger.Warn().Err(err).Msg("data source failed")
	if errors.Is(err, context.DeadlineExceeded) {
		s.writeError(w, http.StatusGatewayTimeout, "data source timed out")
		return
	}
	s.writeError(w, http.StatusServiceUnavailable, "data source unavailable")
}

func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, errorResponse{Detail: detail})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	raw, err := sonic.Marshal(v)
	if err != nil {
		s.logger.Error().Err(err).Msg("encode response")
		http.Error(w, `{"detail":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
