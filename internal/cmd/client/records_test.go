package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	cfgpkg "github.com/rzbill/ensdb/internal/config"
	"github.com/rzbill/ensdb/internal/recordlog"
	"github.com/rzbill/ensdb/internal/runtime"
	grpcserver "github.com/rzbill/ensdb/internal/server/grpc"
	"github.com/rzbill/ensdb/pkg/id"
)

// startServer runs a real gRPC server over a fresh runtime and points the
// CLI at it.
func startServer(t *testing.T) *runtime.Runtime {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.DataDir = t.TempDir()
	cfg.Flash.SectorSize = 128
	cfg.Flash.SectorCount = 4
	rt, err := runtime.Open(runtime.Options{Config: cfg})
	if err != nil {
		t.Fatalf("rt open: %v", err)
	}
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	srv := grpcserver.New(rt, nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, lis)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = rt.Close()
	})
	t.Setenv("ENS_GRPC", lis.Addr().String())
	return rt
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRoot()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestAddGetList(t *testing.T) {
	startServer(t)
	ident := id.Random().String()
	for _, ts := range []string{"100", "200", "300"} {
		out, err := run(t, "records", "add", "--timestamp", ts, "--rssi", "-61", "--id", ident, "--meta", "0a0b0c0d")
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		if !strings.Contains(out, "sn:") {
			t.Fatalf("add output: %s", out)
		}
	}

	out, err := run(t, "records", "get", "1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var rec recordlog.Record
	if err := json.Unmarshal([]byte(out), &rec); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if rec.Timestamp != 200 || rec.Identifier.String() != ident || rec.Metadata != [4]byte{0x0a, 0x0b, 0x0c, 0x0d} {
		t.Fatalf("record: %+v", rec)
	}

	out, err = run(t, "records", "list", "--from", "150", "--filter", "rssi == -61")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if lines := strings.Count(out, "\n"); lines != 2 {
		t.Fatalf("list lines: %d\n%s", lines, out)
	}
}

func TestAddRejectsBadMeta(t *testing.T) {
	startServer(t)
	if _, err := run(t, "records", "add", "--meta", "zz"); err == nil {
		t.Fatalf("expected metadata error")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	rt := startServer(t)
	for ts := uint32(1); ts <= 5; ts++ {
		if _, err := rt.Log().Add(context.Background(), recordlog.Record{Timestamp: ts, Identifier: id.Random()}); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	path := filepath.Join(t.TempDir(), "dump.jsonl.zst")
	if out, err := run(t, "records", "export", "-o", path); err != nil {
		t.Fatalf("export: %v %s", err, out)
	}
	if fi, err := os.Stat(path); err != nil || fi.Size() == 0 {
		t.Fatalf("export file: %v", err)
	}

	if _, err := run(t, "records", "reset", "--yes"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	out, err := run(t, "records", "import", path)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out, "imported 5 records") {
		t.Fatalf("import output: %s", out)
	}
	if got := rt.Log().Count(); got != 5 {
		t.Fatalf("count: %d", got)
	}
}

func TestResetRequiresConfirmation(t *testing.T) {
	startServer(t)
	if _, err := run(t, "records", "reset"); err == nil {
		t.Fatalf("expected refusal")
	}
}

func TestMatchStatsHealth(t *testing.T) {
	rt := startServer(t)
	met := id.Random()
	for ts := uint32(10); ts <= 30; ts += 10 {
		if _, err := rt.Log().Add(context.Background(), recordlog.Record{Timestamp: ts, Identifier: met}); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	out, err := run(t, "match", "--id", met.String(), "--id", id.Random().String(), "--start", "20")
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	var res struct {
		Result struct {
			Confirmed int `json:"confirmed"`
		} `json:"result"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil || res.Result.Confirmed != 2 {
		t.Fatalf("match output: %s (%v)", out, err)
	}

	if _, err := run(t, "match"); err == nil {
		t.Fatalf("expected error without candidates")
	}

	out, err = run(t, "stats")
	if err != nil || !strings.Contains(out, `"count": 3`) {
		t.Fatalf("stats: %s (%v)", out, err)
	}

	out, err = run(t, "health")
	if err != nil || !strings.Contains(out, "SERVING") {
		t.Fatalf("health: %s (%v)", out, err)
	}
}
