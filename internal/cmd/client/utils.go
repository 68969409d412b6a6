package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	transports "github.com/rzbill/ensdb/internal/cmd/client/transports"
)

// grpcAddrFromEnv returns the gRPC server address from ENS_GRPC or a default.
func grpcAddrFromEnv() string {
	if addr := os.Getenv("ENS_GRPC"); addr != "" {
		return addr
	}
	return "127.0.0.1:50051"
}

// dialGRPCContext connects to the ensdb gRPC endpoint with insecure
// transport for local/dev.
func dialGRPCContext(_ context.Context) (*grpc.ClientConn, error) {
	return grpc.NewClient(grpcAddrFromEnv(), grpc.WithTransportCredentials(insecure.NewCredentials()))
}

func getTransport() transports.RecordsTransport {
	return transports.NewGrpcTransport(dialGRPCContext)
}

// parseUint32 parses a decimal sequence number or timestamp.
func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return uint32(v), nil
}

// optUint32 returns a pointer to the flag value when the flag was set.
func optUint32(changed bool, v uint32) *uint32 {
	if !changed {
		return nil
	}
	return &v
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
