package grpcserver

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	cfgpkg "github.com/rzbill/ensdb/internal/config"
	"github.com/rzbill/ensdb/internal/matching"
	"github.com/rzbill/ensdb/internal/recordlog"
	"github.com/rzbill/ensdb/internal/runtime"
	"github.com/rzbill/ensdb/pkg/id"
)

const bufSize = 1 << 20

func dialer(s *grpc.Server) func(context.Context, string) (net.Conn, error) {
	lis := bufconn.Listen(bufSize)
	go func() { _ = s.Serve(lis) }()
	return func(ctx context.Context, s string) (net.Conn, error) { return lis.DialContext(ctx) }
}

func setup(t *testing.T) (*RecordsClient, *grpc.ClientConn, *runtime.Runtime) {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.DataDir = t.TempDir()
	cfg.Flash.SectorSize = 128
	cfg.Flash.SectorCount = 4
	rt, err := runtime.Open(runtime.Options{Config: cfg})
	if err != nil {
		t.Fatalf("rt open: %v", err)
	}
	srv := New(rt, nil)
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(dialer(srv.grpc)),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
		srv.grpc.Stop()
		_ = rt.Close()
	})
	return NewRecordsClient(conn), conn, rt
}

func TestHealthOverGRPC(t *testing.T) {
	_, conn, _ := setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c := healthpb.NewHealthClient(conn)
	for _, svc := range []string{"", RecordsServiceName} {
		res, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: svc})
		if err != nil {
			t.Fatalf("check %q: %v", svc, err)
		}
		if res.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			t.Fatalf("status %q: %v", svc, res.GetStatus())
		}
	}
}

func TestAddGetRangeOverGRPC(t *testing.T) {
	c, _, _ := setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ident := id.Random()
	for ts := uint32(10); ts <= 50; ts += 10 {
		if _, err := c.Add(ctx, recordlog.Record{Timestamp: ts, RSSI: -50, Identifier: ident, Metadata: [4]byte{9, 9, 9, 9}}); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	rec, err := c.Get(ctx, 2)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Timestamp != 30 || rec.Identifier != ident || rec.Metadata != [4]byte{9, 9, 9, 9} {
		t.Fatalf("record: %+v", rec)
	}

	from, to := uint32(20), uint32(40)
	var got []uint32
	err = c.Range(ctx, RangeRequest{From: &from, To: &to, Filter: "rssi == -50"}, func(r recordlog.Record) error {
		got = append(got, r.Timestamp)
		return nil
	})
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(got) != 3 || got[0] != 20 || got[2] != 40 {
		t.Fatalf("range: %v", got)
	}

	st, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Count != 5 || st.Latest != 4 {
		t.Fatalf("stats: %+v", st)
	}
}

func TestErrorsMapToCodes(t *testing.T) {
	c, _, _ := setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := c.Get(ctx, 7); status.Code(err) != codes.NotFound {
		t.Fatalf("get missing: %v", err)
	}
	if _, err := c.Search(ctx, SearchRequest{Timestamp: 1, Mode: "middle"}); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("bad mode: %v", err)
	}
	start, from := uint32(0), uint32(0)
	err := c.Range(ctx, RangeRequest{Start: &start, From: &from}, func(recordlog.Record) error { return nil })
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("mixed bounds: %v", err)
	}
}

func TestMatchSearchDeleteReset(t *testing.T) {
	c, _, rt := setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	met := id.Random()
	for ts := uint32(1); ts <= 3; ts++ {
		if _, err := c.Add(ctx, recordlog.Record{Timestamp: ts * 10, Identifier: met}); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	sn, err := c.Search(ctx, SearchRequest{Timestamp: 25, Mode: "max"})
	if err != nil || sn != 1 {
		t.Fatalf("search: %d %v", sn, err)
	}

	res, err := c.Match(ctx, MatchRequest{Candidates: []matching.Candidate{{Identifier: met}, {Identifier: id.Random()}}})
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if res.Result.Confirmed != 3 || res.Candidates[0].Met != 3 || res.Candidates[1].Met != 0 {
		t.Fatalf("match: %+v", res)
	}

	if err := c.Delete(ctx, 0); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if rt.Log().Oldest() != 1 {
		t.Fatalf("oldest: %d", rt.Log().Oldest())
	}
	if err := c.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if rt.Log().Count() != 0 {
		t.Fatalf("count after reset: %d", rt.Log().Count())
	}
}
