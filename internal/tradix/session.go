package tradix

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Session manages the authenticated Tradix gateway session and routes
// inbound frames to per-operation handlers.
type Session struct {
	client        *Client
	logger        *zap.Logger
	auth          *AuthenticateRequest
	authMu        sync.RWMutex
	frameHandlers map[string]func(*Frame)
	handlersMu    sync.RWMutex
}

// NewSession creates a new Tradix session on top of client
func NewSession(client *Client, logger *zap.Logger) *Session {
	s := &Session{
		client:        client,
		logger:        logger,
		frameHandlers: make(map[string]func(*Frame)),
	}

	client.AddHandler(s.handleFrame)

	return s
}

// SetAuth sets the authentication credentials
func (s *Session) SetAuth(auth *AuthenticateRequest) {
	s.authMu.Lock()
	defer s.authMu.Unlock()
	s.auth = auth
}

// Login authenticates the session with the gateway
func (s *Session) Login(ctx context.Context) error {
	s.authMu.RLock()
	auth := s.auth
	s.authMu.RUnlock()

	if auth == nil {
		s.logger.Warn("tradix.no_credentials")
		return nil
	}

	s.logger.Info("tradix.authenticating")
	return s.client.Send(ctx, "authenticate", auth)
}

// RegisterHandler registers a handler for a specific operation
func (s *Session) RegisterHandler(operation string, handler func(*Frame)) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.frameHandlers[strings.ToLower(operation)] = handler
}

func (s *Session) handleFrame(frame *Frame) {
	s.handlersMu.RLock()
	handler, ok := s.frameHandlers[strings.ToLower(frame.N)]
	s.handlersMu.RUnlock()

	if ok {
		handler(frame)
	} else {
		s.logger.Debug("tradix.unhandled_frame", zap.String("operation", frame.N))
	}
}

// SendOrder submits an order to the gateway
func (s *Session) SendOrder(ctx context.Context, order *SendOrderRequest) error {
	s.logger.Info("tradix.send_order",
		zap.String("clientOrderRef", order.ClientOrderRef),
		zap.String("symbol", order.Symbol),
	)
	return s.client.Send(ctx, "sendOrder", order)
}

// CancelOrder requests cancellation of an order
func (s *Session) CancelOrder(ctx context.Context, cancel *CancelOrderRequest) error {
	s.logger.Info("tradix.cancel_order", zap.String("orderRef", cancel.OrderRef))
	return s.client.Send(ctx, "cancelOrder", cancel)
}

// SubscribeExecutions subscribes the session to execution report pushes
func (s *Session) SubscribeExecutions(ctx context.Context, account string) error {
	s.logger.Info("tradix.subscribe_executions", zap.String("account", account))
	return s.client.Send(ctx, "subscribeExecutionReports", &SubscribeExecutionsRequest{Account: account})
}

// IsConnected returns whether the underlying client is connected
func (s *Session) IsConnected() bool {
	return s.client.IsConnected()
}

// Connect connects the underlying client
func (s *Session) Connect(ctx context.Context) error {
	return s.client.Connect(ctx)
}

// Close closes the session
func (s *Session) Close() error {
	return s.client.Close()
}
