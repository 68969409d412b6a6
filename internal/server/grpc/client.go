package grpcserver

import (
	"context"
	"errors"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rzbill/ensdb/internal/recordlog"
	"github.com/rzbill/ensdb/internal/runtime"
)

// RecordsClient is a typed client for the records service.
type RecordsClient struct {
	cc grpc.ClientConnInterface
}

// NewRecordsClient wraps an established connection.
func NewRecordsClient(cc grpc.ClientConnInterface) *RecordsClient {
	return &RecordsClient{cc: cc}
}

func (c *RecordsClient) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	req, err := toStruct(in)
	if err != nil {
		return err
	}
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, req, resp, opts...); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return fromStruct(resp, out)
}

// Stats returns the server's log statistics.
func (c *RecordsClient) Stats(ctx context.Context, opts ...grpc.CallOption) (runtime.Stats, error) {
	var st runtime.Stats
	err := c.invoke(ctx, methodStats, struct{}{}, &st, opts...)
	return st, err
}

// Add appends rec and returns its sequence number. rec.SN is ignored.
func (c *RecordsClient) Add(ctx context.Context, rec recordlog.Record, opts ...grpc.CallOption) (uint32, error) {
	var out SNMessage
	err := c.invoke(ctx, methodAdd, rec, &out, opts...)
	return out.SN, err
}

// Get loads one record.
func (c *RecordsClient) Get(ctx context.Context, sn uint32, opts ...grpc.CallOption) (recordlog.Record, error) {
	var rec recordlog.Record
	err := c.invoke(ctx, methodGet, SNMessage{SN: sn}, &rec, opts...)
	return rec, err
}

// Delete tombstones one record.
func (c *RecordsClient) Delete(ctx context.Context, sn uint32, opts ...grpc.CallOption) error {
	return c.invoke(ctx, methodDelete, SNMessage{SN: sn}, nil, opts...)
}

// Search bisects the log for a timestamp.
func (c *RecordsClient) Search(ctx context.Context, req SearchRequest, opts ...grpc.CallOption) (uint32, error) {
	var out SNMessage
	err := c.invoke(ctx, methodSearch, req, &out, opts...)
	return out.SN, err
}

// Match runs the matching protocol server side.
func (c *RecordsClient) Match(ctx context.Context, req MatchRequest, opts ...grpc.CallOption) (MatchResponse, error) {
	var out MatchResponse
	err := c.invoke(ctx, methodMatch, req, &out, opts...)
	return out, err
}

// Reset empties the server's log.
func (c *RecordsClient) Reset(ctx context.Context, opts ...grpc.CallOption) error {
	return c.invoke(ctx, methodReset, struct{}{}, nil, opts...)
}

// Range streams records to fn until the range ends, fn returns an error,
// or ctx is cancelled.
func (c *RecordsClient) Range(ctx context.Context, req RangeRequest, fn func(recordlog.Record) error, opts ...grpc.CallOption) error {
	in, err := toStruct(req)
	if err != nil {
		return err
	}
	stream, err := c.cc.NewStream(ctx, &recordsServiceDesc.Streams[0], methodRange, opts...)
	if err != nil {
		return err
	}
	if err := stream.SendMsg(in); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		msg := new(structpb.Struct)
		if err := stream.RecvMsg(msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		var rec recordlog.Record
		if err := fromStruct(msg, &rec); err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}
