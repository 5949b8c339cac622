package relay

import (
	"context"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// RelayServiceName is the fully-qualified name of the admin RPC service.
	RelayServiceName = "globepath.v1.RelayService"
	// GetStatsProcedure is the Connect procedure path for GetStats.
	GetStatsProcedure = "/" + RelayServiceName + "/GetStats"
)

// StatsSource reports relay statistics. Values must be JSON-like scalars,
// maps or slices.
type StatsSource interface {
	GetStats() map[string]interface{}
}

// StatsService serves relay statistics over Connect
type StatsService struct {
	source StatsSource
}

func NewStatsService(source StatsSource) *StatsService {
	return &StatsService{source: source}
}

func (s *StatsService) GetStats(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	stats, err := structpb.NewStruct(s.source.GetStats())
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("encode stats: %w", err))
	}
	return connect.NewResponse(stats), nil
}

// NewStatsServiceHandler builds an HTTP handler for the service and returns
// the path to mount it on.
func NewStatsServiceHandler(svc *StatsService, opts ...connect.HandlerOption) (string, http.Handler) {
	getStats := connect.NewUnaryHandler(GetStatsProcedure, svc.GetStats, opts...)

	mux := http.NewServeMux()
	mux.Handle(GetStatsProcedure, getStats)
	return "/" + RelayServiceName + "/", mux
}
