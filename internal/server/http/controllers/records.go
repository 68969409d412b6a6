package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/rzbill/ensdb/internal/recordlog"
	"github.com/rzbill/ensdb/internal/runtime"
	logpkg "github.com/rzbill/ensdb/pkg/log"
)

// RecordsController exposes the record log: append, point reads, range
// listings and timestamp search.
type RecordsController struct {
	rt     *runtime.Runtime
	logger logpkg.Logger
}

// NewRecordsController creates a new records controller.
func NewRecordsController(rt *runtime.Runtime, logger logpkg.Logger) *RecordsController {
	return &RecordsController{rt: rt, logger: logger}
}

// RegisterRoutes registers record routes with the given mux.
func (c *RecordsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/records", c.handleList)
	mux.HandleFunc("POST /v1/records", c.handleAdd)
	mux.HandleFunc("GET /v1/records/{sn}", c.handleGet)
	mux.HandleFunc("DELETE /v1/records/{sn}", c.handleDelete)
	mux.HandleFunc("GET /v1/search", c.handleSearch)
	mux.HandleFunc("POST /v1/reset", c.handleReset)
}

func (c *RecordsController) handleAdd(w http.ResponseWriter, r *http.Request) {
	var rec recordlog.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	sn, err := c.rt.Log().Add(r.Context(), rec)
	if err != nil {
		c.logger.WithContext(r.Context()).Error("add record failed", logpkg.Err(err))
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeCreated(w, addResp{SN: sn})
}

func pathSN(r *http.Request) (uint32, bool) {
	v, err := strconv.ParseUint(r.PathValue("sn"), 10, 32)
	return uint32(v), err == nil
}

func (c *RecordsController) handleGet(w http.ResponseWriter, r *http.Request) {
	sn, ok := pathSN(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid sn")
		return
	}
	rec, err := c.rt.Log().Load(sn)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, rec)
}

func (c *RecordsController) handleDelete(w http.ResponseWriter, r *http.Request) {
	sn, ok := pathSN(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid sn")
		return
	}
	if err := c.rt.Log().Delete(sn); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeNoContent(w)
}

func (c *RecordsController) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := c.rt.Log().Reset(); err != nil {
		c.logger.WithContext(r.Context()).Error("reset failed", logpkg.Err(err))
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeNoContent(w)
}

// handleSearch returns the sequence number a timestamp bisection converges
// to. Query: timestamp (required), mode=min|max (default min).
func (c *RecordsController) handleSearch(w http.ResponseWriter, r *http.Request) {
	ts, err := parseOptUint32(r, "timestamp")
	if err != nil || ts == nil {
		writeError(w, http.StatusBadRequest, "timestamp is required")
		return
	}
	mode := recordlog.SearchMin
	switch strings.ToLower(r.URL.Query().Get("mode")) {
	case "", "min":
	case "max":
		mode = recordlog.SearchMax
	default:
		writeError(w, http.StatusBadRequest, "mode must be min or max")
		return
	}
	sn, err := recordlog.SearchTimestamp(c.rt.Log(), *ts, mode)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, searchResp{Mode: mode.String(), SN: sn})
}

// handleList walks a range of the log. Query parameters:
//
//	start, end  sequence number bounds, inclusive
//	from, to    timestamp bounds, inclusive; exclusive with start/end
//	filter      CEL predicate over sn, timestamp, rssi, identifier, metadata
//	limit       maximum number of records returned
//
// With Accept: text/event-stream the records are streamed as SSE.
func (c *RecordsController) handleList(w http.ResponseWriter, r *http.Request) {
	it, err := c.iterator(r)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	var filter *recordlog.Filter
	if expr := r.URL.Query().Get("filter"); expr != "" {
		if filter, err = recordlog.NewFilter(expr); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	limit := parseLimit(r.URL.Query().Get("limit"))

	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		c.stream(newSSESink(w, r), it, filter, limit)
		return
	}

	resp := listResp{Records: []recordlog.Record{}}
	it.Walk(func(rec *recordlog.Record) recordlog.Action {
		if rec == nil || r.Context().Err() != nil {
			return recordlog.Stop
		}
		if filter != nil && !filter.Match(*rec) {
			return recordlog.Continue
		}
		if limit > 0 && len(resp.Records) == limit {
			next := rec.SN
			resp.Next = &next
			return recordlog.Stop
		}
		resp.Records = append(resp.Records, *rec)
		return recordlog.Continue
	})
	if err := it.Err(); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, resp)
}

func (c *RecordsController) stream(sink sseSink, it *recordlog.Iterator, filter *recordlog.Filter, limit int) {
	sent := 0
	it.Walk(func(rec *recordlog.Record) recordlog.Action {
		if rec == nil || sink.Context().Err() != nil || (limit > 0 && sent == limit) {
			return recordlog.Stop
		}
		if filter != nil && !filter.Match(*rec) {
			return recordlog.Continue
		}
		if err := sink.Send(*rec); err != nil {
			return recordlog.Stop
		}
		sent++
		if sent%64 == 0 {
			sink.Flush()
		}
		return recordlog.Continue
	})
	if err := it.Err(); err != nil {
		_ = sink.Event("error", map[string]string{"error": err.Error()})
	}
	_ = sink.Event("end", map[string]int{"count": sent})
	sink.Flush()
}

func (c *RecordsController) iterator(r *http.Request) (*recordlog.Iterator, error) {
	var bounds [4]*uint32
	for i, name := range []string{"start", "end", "from", "to"} {
		v, err := parseOptUint32(r, name)
		if err != nil {
			return nil, badRequest(err)
		}
		bounds[i] = v
	}
	start, end, from, to := bounds[0], bounds[1], bounds[2], bounds[3]
	if (from != nil || to != nil) && (start != nil || end != nil) {
		return nil, badRequest(errMixedBounds)
	}
	if from != nil || to != nil {
		return recordlog.NewTimeRangeIterator(c.rt.Log(), from, to)
	}
	return recordlog.NewRangeIterator(c.rt.Log(), start, end), nil
}
