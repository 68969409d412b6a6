package grpcserver

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rzbill/ensdb/internal/matching"
	"github.com/rzbill/ensdb/internal/recordlog"
	"github.com/rzbill/ensdb/internal/runtime"
	logpkg "github.com/rzbill/ensdb/pkg/log"
)

// RecordsServiceName is the fully qualified name of the records service.
// Messages are google.protobuf.Struct values carrying the same JSON shapes
// as the HTTP gateway.
const RecordsServiceName = "ensdb.v1.Records"

const (
	methodStats  = "/" + RecordsServiceName + "/Stats"
	methodAdd    = "/" + RecordsServiceName + "/Add"
	methodGet    = "/" + RecordsServiceName + "/Get"
	methodDelete = "/" + RecordsServiceName + "/Delete"
	methodSearch = "/" + RecordsServiceName + "/Search"
	methodMatch  = "/" + RecordsServiceName + "/Match"
	methodReset  = "/" + RecordsServiceName + "/Reset"
	methodRange  = "/" + RecordsServiceName + "/Range"
)

// RangeRequest selects records for Range. Start/End bound sequence numbers
// and From/To bound timestamps; the two pairs cannot be combined.
type RangeRequest struct {
	Start  *uint32 `json:"start,omitempty"`
	End    *uint32 `json:"end,omitempty"`
	From   *uint32 `json:"from,omitempty"`
	To     *uint32 `json:"to,omitempty"`
	Filter string  `json:"filter,omitempty"`
	Limit  int     `json:"limit,omitempty"`
}

// SearchRequest asks for the sequence number a timestamp bisects to.
type SearchRequest struct {
	Timestamp uint32 `json:"timestamp"`
	Mode      string `json:"mode,omitempty"`
}

// SNMessage carries a single sequence number.
type SNMessage struct {
	SN uint32 `json:"sn"`
}

// MatchRequest carries candidates; MatchResponse echoes them with Met set.
type MatchRequest struct {
	Candidates []matching.Candidate `json:"candidates"`
}

type MatchResponse struct {
	Result     matching.Result      `json:"result"`
	Candidates []matching.Candidate `json:"candidates"`
}

type recordsServer interface {
	Stats(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Add(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Get(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Delete(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Search(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Match(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reset(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Range(*structpb.Struct, grpc.ServerStream) error
}

func unaryHandler(fullMethod string, call func(recordsServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(recordsServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(recordsServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var recordsServiceDesc = grpc.ServiceDesc{
	ServiceName: RecordsServiceName,
	HandlerType: (*recordsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Stats", Handler: unaryHandler(methodStats, recordsServer.Stats)},
		{MethodName: "Add", Handler: unaryHandler(methodAdd, recordsServer.Add)},
		{MethodName: "Get", Handler: unaryHandler(methodGet, recordsServer.Get)},
		{MethodName: "Delete", Handler: unaryHandler(methodDelete, recordsServer.Delete)},
		{MethodName: "Search", Handler: unaryHandler(methodSearch, recordsServer.Search)},
		{MethodName: "Match", Handler: unaryHandler(methodMatch, recordsServer.Match)},
		{MethodName: "Reset", Handler: unaryHandler(methodReset, recordsServer.Reset)},
	},
	Streams: []grpc.StreamDesc{{
		StreamName: "Range",
		Handler: func(srv any, stream grpc.ServerStream) error {
			in := new(structpb.Struct)
			if err := stream.RecvMsg(in); err != nil {
				return err
			}
			return srv.(recordsServer).Range(in, stream)
		},
		ServerStreams: true,
	}},
	Metadata: "ensdb/v1/records.proto",
}

func registerRecordsServer(s grpc.ServiceRegistrar, srv recordsServer) {
	s.RegisterService(&recordsServiceDesc, srv)
}

type recordsSvc struct {
	rt     *runtime.Runtime
	logger logpkg.Logger
}

func (s *recordsSvc) Stats(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(s.rt.Stats())
}

func (s *recordsSvc) Add(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var rec recordlog.Record
	if err := fromStruct(in, &rec); err != nil {
		return nil, err
	}
	sn, err := s.rt.Log().Add(ctx, rec)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(SNMessage{SN: sn})
}

func (s *recordsSvc) Get(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req SNMessage
	if err := fromStruct(in, &req); err != nil {
		return nil, err
	}
	rec, err := s.rt.Log().Load(req.SN)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(rec)
}

func (s *recordsSvc) Delete(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req SNMessage
	if err := fromStruct(in, &req); err != nil {
		return nil, err
	}
	if err := s.rt.Log().Delete(req.SN); err != nil {
		return nil, toStatus(err)
	}
	return &structpb.Struct{}, nil
}

func (s *recordsSvc) Search(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req SearchRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, err
	}
	mode := recordlog.SearchMin
	switch req.Mode {
	case "", "min":
	case "max":
		mode = recordlog.SearchMax
	default:
		return nil, status.Errorf(codes.InvalidArgument, "mode must be min or max, got %q", req.Mode)
	}
	sn, err := recordlog.SearchTimestamp(s.rt.Log(), req.Timestamp, mode)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(SNMessage{SN: sn})
}

func (s *recordsSvc) Match(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req MatchRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, err
	}
	res, err := s.rt.Match(ctx, req.Candidates)
	if err != nil {
		return nil, toStatus(err)
	}
	if req.Candidates == nil {
		req.Candidates = []matching.Candidate{}
	}
	return toStruct(MatchResponse{Result: res, Candidates: req.Candidates})
}

func (s *recordsSvc) Reset(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := s.rt.Log().Reset(); err != nil {
		return nil, toStatus(err)
	}
	s.logger.WithContext(ctx).Info("log reset over grpc")
	return &structpb.Struct{}, nil
}

func (s *recordsSvc) Range(in *structpb.Struct, stream grpc.ServerStream) error {
	var req RangeRequest
	if err := fromStruct(in, &req); err != nil {
		return err
	}
	if (req.Start != nil || req.End != nil) && (req.From != nil || req.To != nil) {
		return status.Error(codes.InvalidArgument, "start/end and from/to cannot be combined")
	}
	filter, err := recordlog.NewFilter(req.Filter)
	if err != nil {
		return toStatus(err)
	}
	var it *recordlog.Iterator
	if req.From != nil || req.To != nil {
		if it, err = recordlog.NewTimeRangeIterator(s.rt.Log(), req.From, req.To); err != nil {
			return toStatus(err)
		}
	} else {
		it = recordlog.NewRangeIterator(s.rt.Log(), req.Start, req.End)
	}

	sent := 0
	var sendErr error
	it.Walk(func(rec *recordlog.Record) recordlog.Action {
		if rec == nil || (req.Limit > 0 && sent == req.Limit) {
			return recordlog.Stop
		}
		if !filter.Match(*rec) {
			return recordlog.Continue
		}
		msg, err := toStruct(*rec)
		if err == nil {
			err = stream.SendMsg(msg)
		}
		if err != nil {
			sendErr = err
			return recordlog.Stop
		}
		sent++
		return recordlog.Continue
	})
	if sendErr != nil {
		return sendErr
	}
	return toStatus(it.Err())
}

// toStruct converts v to a Struct through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return s, nil
}

// fromStruct decodes a Struct into v through its JSON form.
func fromStruct(s *structpb.Struct, v any) error {
	b, err := json.Marshal(s.AsMap())
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	if err := json.Unmarshal(b, v); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return nil
}

func toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, recordlog.ErrNotFound), errors.Is(err, recordlog.ErrDeleted):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, recordlog.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, recordlog.ErrAddressInUse):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
