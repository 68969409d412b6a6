package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/rzbill/ensdb/internal/matching"
	"github.com/rzbill/ensdb/pkg/id"
)

func newMatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Count how often candidate identifiers were met",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cands, err := candidatesFromFlags(cmd)
			if err != nil {
				return err
			}
			res, err := getTransport().Match(cmd.Context(), cands)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringSlice("id", nil, "Candidate identifier (repeatable)")
	cmd.Flags().Uint32("start", 0, "Window start timestamp for --id candidates")
	cmd.Flags().Uint32("end", 0, "Window end timestamp for --id candidates")
	cmd.Flags().String("candidates", "", `JSON file: a candidate array or {"candidates": [...]}`)
	return cmd
}

func candidatesFromFlags(cmd *cobra.Command) ([]matching.Candidate, error) {
	f := cmd.Flags()
	ids, _ := f.GetStringSlice("id")
	start, _ := f.GetUint32("start")
	end, _ := f.GetUint32("end")
	path, _ := f.GetString("candidates")

	var cands []matching.Candidate
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(b, &cands); err != nil {
			var wrapped struct {
				Candidates []matching.Candidate `json:"candidates"`
			}
			if werr := json.Unmarshal(b, &wrapped); werr != nil {
				return nil, fmt.Errorf("candidates %s: %w", path, err)
			}
			cands = wrapped.Candidates
		}
	}
	for _, s := range ids {
		ident, err := id.Parse(s)
		if err != nil {
			return nil, err
		}
		cands = append(cands, matching.Candidate{
			Identifier: ident,
			Start:      optUint32(f.Changed("start"), start),
			End:        optUint32(f.Changed("end"), end),
		})
	}
	if len(cands) == 0 {
		return nil, errors.New("no candidates: use --id or --candidates")
	}
	return cands, nil
}

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the log interval and slot counters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := getTransport().Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		},
	}
}

func newHealthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Query the gRPC health service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, _ := cmd.Flags().GetString("service")
			resp, err := getTransport().Health(cmd.Context(), svc)
			if err != nil {
				return err
			}
			b, err := protojson.MarshalOptions{UseProtoNames: true}.Marshal(resp)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
	cmd.Flags().String("service", "", "Service name (empty for the whole server)")
	return cmd
}
