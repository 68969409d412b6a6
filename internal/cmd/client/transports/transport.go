package transports

import (
	"context"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rzbill/ensdb/internal/matching"
	"github.com/rzbill/ensdb/internal/recordlog"
	"github.com/rzbill/ensdb/internal/runtime"
	grpcserver "github.com/rzbill/ensdb/internal/server/grpc"
)

// RangeRequest selects records; see grpcserver.RangeRequest.
type RangeRequest = grpcserver.RangeRequest

// MatchResponse carries the matching summary and the annotated candidates.
type MatchResponse = grpcserver.MatchResponse

// RecordsTransport abstracts the transport used by the CLI.
type RecordsTransport interface {
	Add(ctx context.Context, rec recordlog.Record) (uint32, error)
	Get(ctx context.Context, sn uint32) (recordlog.Record, error)
	Delete(ctx context.Context, sn uint32) error
	Search(ctx context.Context, timestamp uint32, mode string) (uint32, error)
	Range(ctx context.Context, req RangeRequest, onRecord func(recordlog.Record) error) error
	Match(ctx context.Context, cands []matching.Candidate) (MatchResponse, error)
	Stats(ctx context.Context) (runtime.Stats, error)
	Reset(ctx context.Context) error
	Health(ctx context.Context, service string) (*healthpb.HealthCheckResponse, error)
}
