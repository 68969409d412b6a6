// Package grpcserver hosts the gRPC server for ensdb: the records service
// (Struct-typed messages mirroring the HTTP JSON shapes), the standard
// grpc.health.v1 service driven by runtime health probes, and reflection.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{Config: config.Default()})
//	s := grpcserver.New(rt, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":50051")
package grpcserver
