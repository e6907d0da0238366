package order

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Checker-Finance/tradix-adapter/internal/execution"
	"github.com/Checker-Finance/tradix-adapter/internal/tradix"
)

// GatewaySession is the subset of the Tradix session the order service uses.
type GatewaySession interface {
	RegisterHandler(operation string, handler func(*tradix.Frame))
	Login(ctx context.Context) error
	SendOrder(ctx context.Context, order *tradix.SendOrderRequest) error
	CancelOrder(ctx context.Context, cancel *tradix.CancelOrderRequest) error
}

// Service handles order operations and routes gateway notifications into the
// execution tracker.
type Service struct {
	session GatewaySession
	tracker *execution.Tracker
	logger  *zap.Logger
}

// NewService creates a new order service and registers its frame handlers.
func NewService(session GatewaySession, tracker *execution.Tracker, logger *zap.Logger) *Service {
	s := &Service{
		session: session,
		tracker: tracker,
		logger:  logger,
	}

	session.RegisterHandler("executionReport", s.handleExecutionReport)
	session.RegisterHandler("orderStatus", s.handleOrderStatus)

	return s
}

// SubmitOrder places an order on Tradix and registers it for fill tracking.
func (s *Service) SubmitOrder(ctx context.Context, cmd *SubmitOrderCommand) error {
	if cmd.ClientOrderRef == "" {
		return fmt.Errorf("submit order: missing clientOrderRef")
	}

	s.logger.Info("order.submit",
		zap.String("clientOrderRef", cmd.ClientOrderRef),
		zap.String("symbol", cmd.Symbol),
		zap.String("quantity", cmd.Quantity.String()))

	// Quantity registered before send: the first execution report can beat
	// the send call's return.
	s.tracker.TrackOrder(cmd.ClientOrderRef, cmd.Quantity)

	req := &tradix.SendOrderRequest{
		ClientOrderRef: cmd.ClientOrderRef,
		Symbol:         cmd.Symbol,
		Side:           cmd.Side,
		OrderType:      cmd.Type,
		Quantity:       cmd.Quantity.String(),
		TimeInForce:    cmd.TimeInForce,
	}
	if cmd.Price.IsPositive() {
		req.Price = cmd.Price.String()
	}

	if err := s.session.Login(ctx); err != nil {
		s.logger.Error("order.login_failed", zap.Error(err))
		return err
	}

	if err := s.session.SendOrder(ctx, req); err != nil {
		s.logger.Error("order.send_failed", zap.Error(err))
		return err
	}

	return s.tracker.OnStatusChange(cmd.ClientOrderRef, execution.StatusSubmitted)
}

// CancelOrder requests cancellation; the Canceled transition is emitted when
// the gateway confirms it via an orderStatus frame.
func (s *Service) CancelOrder(ctx context.Context, orderRef string) error {
	if orderRef == "" {
		return fmt.Errorf("cancel order: missing orderRef")
	}

	s.logger.Info("order.cancel", zap.String("orderRef", orderRef))

	if err := s.session.Login(ctx); err != nil {
		s.logger.Error("order.login_failed", zap.Error(err))
		return err
	}

	return s.session.CancelOrder(ctx, &tradix.CancelOrderRequest{OrderRef: orderRef})
}

func (s *Service) handleExecutionReport(frame *tradix.Frame) {
	var report tradix.ExecutionReport
	if err := frame.ParsePayload(&report); err != nil {
		s.logger.Error("order.execution_report_unparseable", zap.Error(err))
		return
	}

	exec, err := tradix.ToExecution(report)
	if err != nil {
		s.logger.Error("order.execution_report_invalid",
			zap.String("execution_id", report.ExecutionID),
			zap.Error(err))
		return
	}

	if err := s.tracker.OnFill(exec); err != nil {
		s.logger.Error("order.fill_rejected",
			zap.String("execution_id", exec.ID),
			zap.String("order_ref", exec.OrderID),
			zap.Error(err))
	}
}

func (s *Service) handleOrderStatus(frame *tradix.Frame) {
	var report tradix.StatusReport
	if err := frame.ParsePayload(&report); err != nil {
		s.logger.Error("order.status_report_unparseable", zap.Error(err))
		return
	}

	status := tradix.NormalizeStatus(report.Status)
	if status == execution.StatusNone {
		s.logger.Warn("order.unknown_status",
			zap.String("orderRef", report.OrderRef),
			zap.String("status", report.Status))
		return
	}
	if status.IsFill() {
		// Fill transitions must carry an execution id and arrive as
		// execution reports; a bare status frame cannot satisfy that.
		s.logger.Warn("order.fill_status_without_execution",
			zap.String("orderRef", report.OrderRef),
			zap.String("status", report.Status))
		return
	}

	if err := s.tracker.OnStatusChange(report.OrderRef, status); err != nil {
		s.logger.Error("order.status_rejected",
			zap.String("orderRef", report.OrderRef),
			zap.Error(err))
	}
}
