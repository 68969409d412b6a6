// Package transports provides pluggable transport implementations for the CLI.
package transports

import (
	"context"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rzbill/ensdb/internal/matching"
	"github.com/rzbill/ensdb/internal/recordlog"
	"github.com/rzbill/ensdb/internal/runtime"
	grpcserver "github.com/rzbill/ensdb/internal/server/grpc"
)

// GrpcTransport implements RecordsTransport over gRPC.
type GrpcTransport struct {
	dial func(ctx context.Context) (*grpc.ClientConn, error)
}

// NewGrpcTransport constructs a new GrpcTransport using the provided dialer.
func NewGrpcTransport(dial func(ctx context.Context) (*grpc.ClientConn, error)) *GrpcTransport {
	return &GrpcTransport{dial: dial}
}

func (t *GrpcTransport) withClient(ctx context.Context, fn func(cli *grpcserver.RecordsClient) error) error {
	conn, err := t.dial(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	return fn(grpcserver.NewRecordsClient(conn))
}

// Add appends a record via gRPC.
func (t *GrpcTransport) Add(ctx context.Context, rec recordlog.Record) (sn uint32, err error) {
	err = t.withClient(ctx, func(cli *grpcserver.RecordsClient) error {
		sn, err = cli.Add(ctx, rec)
		return err
	})
	return sn, err
}

// Get loads one record via gRPC.
func (t *GrpcTransport) Get(ctx context.Context, sn uint32) (rec recordlog.Record, err error) {
	err = t.withClient(ctx, func(cli *grpcserver.RecordsClient) error {
		rec, err = cli.Get(ctx, sn)
		return err
	})
	return rec, err
}

// Delete tombstones one record via gRPC.
func (t *GrpcTransport) Delete(ctx context.Context, sn uint32) error {
	return t.withClient(ctx, func(cli *grpcserver.RecordsClient) error {
		return cli.Delete(ctx, sn)
	})
}

// Search bisects the remote log for a timestamp.
func (t *GrpcTransport) Search(ctx context.Context, timestamp uint32, mode string) (sn uint32, err error) {
	err = t.withClient(ctx, func(cli *grpcserver.RecordsClient) error {
		sn, err = cli.Search(ctx, grpcserver.SearchRequest{Timestamp: timestamp, Mode: mode})
		return err
	})
	return sn, err
}

// Range streams records and invokes onRecord for each.
func (t *GrpcTransport) Range(ctx context.Context, req RangeRequest, onRecord func(recordlog.Record) error) error {
	return t.withClient(ctx, func(cli *grpcserver.RecordsClient) error {
		return cli.Range(ctx, req, onRecord)
	})
}

// Match runs candidate matching on the server.
func (t *GrpcTransport) Match(ctx context.Context, cands []matching.Candidate) (res MatchResponse, err error) {
	err = t.withClient(ctx, func(cli *grpcserver.RecordsClient) error {
		res, err = cli.Match(ctx, grpcserver.MatchRequest{Candidates: cands})
		return err
	})
	return res, err
}

// Stats fetches log statistics.
func (t *GrpcTransport) Stats(ctx context.Context) (st runtime.Stats, err error) {
	err = t.withClient(ctx, func(cli *grpcserver.RecordsClient) error {
		st, err = cli.Stats(ctx)
		return err
	})
	return st, err
}

// Reset empties the remote log.
func (t *GrpcTransport) Reset(ctx context.Context) error {
	return t.withClient(ctx, func(cli *grpcserver.RecordsClient) error {
		return cli.Reset(ctx)
	})
}

// Health queries the standard gRPC health service.
func (t *GrpcTransport) Health(ctx context.Context, service string) (resp *healthpb.HealthCheckResponse, err error) {
	conn, err := t.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()
	return healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
}
