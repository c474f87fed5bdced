package rpc

import (
	"context"
	"errors"
	"log/slog"

	match "github.com/0x5487/marketsim"
	"github.com/0x5487/marketsim/protocol"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Engine is what the order entry server needs from the matching engine.
type Engine interface {
	SubmitOrder(ctx context.Context, cmd *match.PlaceOrderCommand) (*match.MatchResult, error)
	CancelOrder(ctx context.Context, id uint64) (*match.Order, error)
	Depth(ctx context.Context, limit uint32) (*match.Depth, error)
	GetStats(ctx context.Context) (*match.BookStats, error)
	MarketSnapshot(ctx context.Context) (*match.MarketSnapshot, error)
}

type Server struct {
	engine Engine
	logger *slog.Logger
}

func NewServer(engine Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine: engine,
		logger: logger.With("component", "order_entry"),
	}
}

func (s *Server) PlaceOrder(ctx context.Context, req *protocol.PlaceOrderCommand) (*protocol.PlaceOrderReply, error) {
	cmd, err := match.PlaceOrderFromProtocol(req)
	if err != nil {
		return nil, toStatus(&match.ValidationError{Reason: err})
	}

	result, err := s.engine.SubmitOrder(ctx, cmd)
	if err != nil {
		if result != nil {
			s.logger.Error("order filled on a halted book", "order_id", result.Order.ID, "error", err)
		}
		return nil, toStatus(err)
	}
	return match.MatchResultToProtocol(result), nil
}

func (s *Server) CancelOrder(ctx context.Context, req *protocol.CancelOrderCommand) (*protocol.OrderMessage, error) {
	order, err := s.engine.CancelOrder(ctx, req.OrderID)
	if err != nil {
		return nil, toStatus(err)
	}
	return match.OrderToProtocol(order), nil
}

func (s *Server) GetDepth(ctx context.Context, req *protocol.GetDepthRequest) (*protocol.GetDepthResponse, error) {
	limit := req.Limit
	if limit == 0 {
		limit = match.DefaultDepthLimit
	}

	depth, err := s.engine.Depth(ctx, limit)
	if err != nil {
		return nil, toStatus(err)
	}
	return match.DepthToProtocol(depth), nil
}

func (s *Server) GetStats(ctx context.Context, _ *protocol.GetStatsRequest) (*protocol.GetStatsResponse, error) {
	stats, err := s.engine.GetStats(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &protocol.GetStatsResponse{
		AskDepthCount: stats.AskDepthCount,
		AskOrderCount: stats.AskOrderCount,
		BidDepthCount: stats.BidDepthCount,
		BidOrderCount: stats.BidOrderCount,
	}, nil
}

func (s *Server) GetMarketSnapshot(ctx context.Context, _ *protocol.GetSnapshotRequest) (*protocol.MarketSnapshotMessage, error) {
	snap, err := s.engine.MarketSnapshot(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return match.MarketSnapshotToProtocol(snap), nil
}

// toStatus maps engine errors onto gRPC codes.
func toStatus(err error) error {
	var code codes.Code
	switch {
	case errors.Is(err, match.ErrInvalidOrder), errors.Is(err, match.ErrInvalidParam):
		code = codes.InvalidArgument
	case errors.Is(err, match.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, match.ErrHalted), errors.Is(err, match.ErrShutdown), errors.Is(err, match.ErrInvariantViolation):
		code = codes.Unavailable
	case errors.Is(err, match.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

// fromStatus turns a status error back into the engine sentinel it came from.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	var sentinel error
	switch st.Code() {
	case codes.InvalidArgument:
		sentinel = match.ErrInvalidOrder
	case codes.NotFound:
		sentinel = match.ErrNotFound
	case codes.Unavailable:
		sentinel = match.ErrHalted
	case codes.DeadlineExceeded:
		sentinel = match.ErrTimeout
	default:
		return err
	}
	return &remoteError{sentinel: sentinel, status: err}
}

type remoteError struct {
	sentinel error
	status   error
}

func (e *remoteError) Error() string {
	return e.status.Error()
}

func (e *remoteError) Unwrap() []error {
	return []error{e.sentinel, e.status}
}
