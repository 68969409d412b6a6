// Package matching answers "which of these candidate identifiers were
// met" against the record log. A Bloom filter built from the smaller side
// prunes the scan of the larger side; every filter positive is confirmed
// against the log before it counts.
package matching

import (
	"context"
	"errors"
	"fmt"

	"github.com/rzbill/ensdb/internal/bloom"
	"github.com/rzbill/ensdb/internal/recordlog"
	"github.com/rzbill/ensdb/pkg/id"
	logpkg "github.com/rzbill/ensdb/pkg/log"
)

// Candidate is one identifier to look for, optionally bounded to a
// timestamp window. Met is set to the number of confirmed records.
type Candidate struct {
	Identifier id.ID   `json:"identifier"`
	Start      *uint32 `json:"start,omitempty"`
	End        *uint32 `json:"end,omitempty"`
	Met        int     `json:"met"`
}

func (c *Candidate) covers(ts uint32) bool {
	if c.Start != nil && ts < *c.Start {
		return false
	}
	if c.End != nil && ts > *c.End {
		return false
	}
	return true
}

// Method names the scan that produced a Result.
type Method string

const (
	MethodForward  Method = "forward"
	MethodReverse  Method = "reverse"
	MethodWindowed Method = "windowed"
)

// Result summarizes one matching call.
type Result struct {
	Method Method `json:"method"`
	// Positives counts filter hits, including false positives.
	Positives int `json:"positives"`
	// Confirmed is the sum of Met over all candidates.
	Confirmed int `json:"confirmed"`
}

// Options tunes the matcher.
type Options struct {
	Strategy bloom.Strategy
	Logger   logpkg.Logger
}

func (o Options) logger() logpkg.Logger {
	if o.Logger == nil {
		return logpkg.NewNopLogger()
	}
	return o.Logger.WithComponent("matching")
}

// Match builds the filter from whichever side is smaller.
func Match(ctx context.Context, l *recordlog.Log, cands []Candidate, opts Options) (Result, error) {
	if int(l.Count()) <= len(cands) {
		return Forward(ctx, l, cands, opts)
	}
	return Reverse(ctx, l, cands, opts)
}

// Forward fills a filter with the stored identifiers, tests each candidate
// and confirms the positives with a time-range scan.
func Forward(ctx context.Context, l *recordlog.Log, cands []Candidate, opts Options) (Result, error) {
	res := Result{Method: MethodForward}
	f, err := bloom.New(bloom.SizeFor(int(l.Count())), opts.Strategy)
	if err != nil {
		return res, err
	}
	defer f.Destroy()

	it := recordlog.NewRangeIterator(l, nil, nil)
	for rec := range it.All() {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		f.Add(rec.Identifier)
	}
	if err := it.Err(); err != nil {
		return res, err
	}

	for i := range cands {
		c := &cands[i]
		c.Met = 0
		if !f.ProbablyContains(c.Identifier) {
			continue
		}
		res.Positives++
		if err := confirm(ctx, l, c); err != nil {
			return res, err
		}
		res.Confirmed += c.Met
	}
	opts.logger().Debug("forward match done",
		logpkg.Int("candidates", len(cands)),
		logpkg.Int("positives", res.Positives),
		logpkg.Int("confirmed", res.Confirmed))
	return res, nil
}

// Reverse fills a filter with the candidates and scans the whole log through
// it, comparing positives exactly.
func Reverse(ctx context.Context, l *recordlog.Log, cands []Candidate, opts Options) (Result, error) {
	res := Result{Method: MethodReverse}
	f, err := bloom.New(bloom.SizeFor(len(cands)), opts.Strategy)
	if err != nil {
		return res, err
	}
	defer f.Destroy()

	byID := make(map[id.ID][]int, len(cands))
	for i := range cands {
		cands[i].Met = 0
		f.Add(cands[i].Identifier)
		byID[cands[i].Identifier] = append(byID[cands[i].Identifier], i)
	}

	it := recordlog.NewRangeIterator(l, nil, nil)
	for rec := range it.All() {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if !f.ProbablyContains(rec.Identifier) {
			continue
		}
		res.Positives++
		for _, i := range byID[rec.Identifier] {
			if cands[i].covers(rec.Timestamp) {
				cands[i].Met++
				res.Confirmed++
			}
		}
	}
	if err := it.Err(); err != nil {
		return res, err
	}
	opts.logger().Debug("reverse match done",
		logpkg.Int("candidates", len(cands)),
		logpkg.Int("positives", res.Positives),
		logpkg.Int("confirmed", res.Confirmed))
	return res, nil
}

// Windowed skips the filter and scans each candidate's window directly.
func Windowed(ctx context.Context, l *recordlog.Log, cands []Candidate, opts Options) (Result, error) {
	res := Result{Method: MethodWindowed}
	for i := range cands {
		if err := confirm(ctx, l, &cands[i]); err != nil {
			return res, err
		}
		res.Confirmed += cands[i].Met
	}
	return res, nil
}

// confirm counts the records in c's window carrying c's identifier.
func confirm(ctx context.Context, l *recordlog.Log, c *Candidate) error {
	c.Met = 0
	it, err := recordlog.NewTimeRangeIterator(l, c.Start, c.End)
	if errors.Is(err, recordlog.ErrInvalidArgument) {
		// An inverted window matches nothing.
		return nil
	}
	if err != nil {
		return fmt.Errorf("matching: candidate %s: %w", c.Identifier, err)
	}
	for rec := range it.All() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if rec.Identifier == c.Identifier {
			c.Met++
		}
	}
	return it.Err()
}
