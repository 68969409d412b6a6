package controllers

import (
	"github.com/rzbill/ensdb/internal/matching"
	"github.com/rzbill/ensdb/internal/recordlog"
)

// Records travel in their recordlog JSON form; on POST /v1/records the sn
// field is ignored and assigned by the log.

type addResp struct {
	SN uint32 `json:"sn"`
}

type listResp struct {
	Records []recordlog.Record `json:"records"`
	// Next is set when the listing stopped at limit.
	Next *uint32 `json:"next,omitempty"`
}

type searchResp struct {
	Mode string `json:"mode"`
	SN   uint32 `json:"sn"`
}

type matchReq struct {
	Candidates []matching.Candidate `json:"candidates"`
}

type matchResp struct {
	Result     matching.Result      `json:"result"`
	Candidates []matching.Candidate `json:"candidates"`
}
