// Package grpcserver exposes a read-only gRPC view of saved movies and
// search trends.
package grpcserver

import (
	"context"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"moviedex/internal/apperr"
	"moviedex/internal/logging"
	"moviedex/internal/saved"
	"moviedex/pkg/models"
)

type SavedReader interface {
	GetStatus(ctx context.Context, userID string, movieID int64) (models.SavedStatus, error)
	ListSaved(ctx context.Context, userID string, f saved.Filter) ([]models.SavedMovieSnapshot, error)
}

type TrendReader interface {
	TopTrending(ctx context.Context, limit int) ([]models.TrendingMovie, error)
}

type Server struct {
	Saved  SavedReader
	Trends TrendReader

	log *slog.Logger
}

func NewServer(sv SavedReader, tr TrendReader, log *slog.Logger) *Server {
	return &Server{Saved: sv, Trends: tr, log: logging.Component(log, "grpc")}
}

// NewGRPCServer builds a grpc.Server with the Collection service registered.
func NewGRPCServer(svc *Server, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.ForceServerCodec(JSONCodec{})}, opts...)
	gs := grpc.NewServer(opts...)
	RegisterCollectionServer(gs, svc)
	return gs
}

func (s *Server) GetStatus(ctx context.Context, req *GetStatusRequest) (*models.SavedStatus, error) {
	if req == nil || strings.TrimSpace(req.UserID) == "" {
		return nil, status.Error(codes.InvalidArgument, "userId required")
	}
	if req.TMDBMovieID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "tmdbMovieId must be positive")
	}

	st, err := s.Saved.GetStatus(ctx, strings.TrimSpace(req.UserID), req.TMDBMovieID)
	if err != nil {
		return nil, s.toStatus("get status", err)
	}
	return &st, nil
}

func (s *Server) ListSaved(ctx context.Context, req *ListSavedRequest) (*ListSavedResponse, error) {
	if req == nil || strings.TrimSpace(req.UserID) == "" {
		return nil, status.Error(codes.InvalidArgument, "userId required")
	}
	filter, err := saved.ParseTab(req.Tab)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "tab must be one of: favorites, watched")
	}

	items, err := s.Saved.ListSaved(ctx, strings.TrimSpace(req.UserID), filter)
	if err != nil {
		return nil, s.toStatus("list saved", err)
	}
	return &ListSavedResponse{Items: items}, nil
}

func (s *Server) TopTrending(ctx context.Context, req *TopTrendingRequest) (*TopTrendingResponse, error) {
	limit := 0
	if req != nil {
		limit = req.Limit
	}

	items, err := s.Trends.TopTrending(ctx, limit)
	if err != nil {
		return nil, s.toStatus("top trending", err)
	}
	return &TopTrendingResponse{Items: items}, nil
}

func (s *Server) toStatus(op string, err error) error {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return status.Error(codes.InvalidArgument, err.Error())
	case apperr.KindUnauthorized:
		return status.Error(codes.Unauthenticated, "unauthenticated")
	case apperr.KindNotFound:
		return status.Error(codes.NotFound, err.Error())
	case apperr.KindConflict:
		return status.Error(codes.FailedPrecondition, err.Error())
	case apperr.KindUpstreamUnavailable:
		return status.Error(codes.Unavailable, "upstream unavailable")
	default:
		s.log.Error(op+" failed", "error", err)
		return status.Error(codes.Internal, op+" failed")
	}
}
