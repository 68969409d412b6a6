package client

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"

	transports "github.com/rzbill/ensdb/internal/cmd/client/transports"
	"github.com/rzbill/ensdb/internal/recordlog"
	"github.com/rzbill/ensdb/pkg/id"
)

// NewRecordsCommand constructs the `records` command group and subcommands.
func NewRecordsCommand() *cobra.Command {
	recordsCmd := &cobra.Command{Use: "records", Short: "Record log operations"}
	recordsCmd.AddCommand(
		newRecordsAddCommand(),
		newRecordsGetCommand(),
		newRecordsDeleteCommand(),
		newRecordsListCommand(),
		newRecordsSearchCommand(),
		newRecordsResetCommand(),
		newRecordsExportCommand(),
		newRecordsImportCommand(),
	)
	return recordsCmd
}

func newRecordsAddCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Append a record",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ts, _ := cmd.Flags().GetUint32("timestamp")
			rssi, _ := cmd.Flags().GetInt8("rssi")
			ident, _ := cmd.Flags().GetString("id")
			meta, _ := cmd.Flags().GetString("meta")

			rec := recordlog.Record{Timestamp: ts, RSSI: rssi}
			if ident == "" {
				rec.Identifier = id.Random()
			} else {
				parsed, err := id.Parse(ident)
				if err != nil {
					return err
				}
				rec.Identifier = parsed
			}
			if meta != "" {
				m, err := recordlog.ParseMetadata(meta)
				if err != nil {
					return err
				}
				rec.Metadata = m
			}
			sn, err := getTransport().Add(cmd.Context(), rec)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sn: %d identifier: %s\n", sn, rec.Identifier)
			return nil
		},
	}
	cmd.Flags().Uint32("timestamp", 0, "Record timestamp (seconds)")
	cmd.Flags().Int8("rssi", 0, "Received signal strength")
	cmd.Flags().String("id", "", "Identifier as 32 hex characters (random when empty)")
	cmd.Flags().String("meta", "", "Encrypted metadata as 8 hex characters")
	return cmd
}

func newRecordsGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get SN",
		Short: "Print one record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sn, err := parseUint32(args[0])
			if err != nil {
				return err
			}
			rec, err := getTransport().Get(cmd.Context(), sn)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rec)
		},
	}
}

func newRecordsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete SN",
		Short: "Tombstone one record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sn, err := parseUint32(args[0])
			if err != nil {
				return err
			}
			if err := getTransport().Delete(cmd.Context(), sn); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d\n", sn)
			return nil
		},
	}
}

func addRangeFlags(cmd *cobra.Command) {
	cmd.Flags().Uint32("start", 0, "First sequence number")
	cmd.Flags().Uint32("end", 0, "Last sequence number")
	cmd.Flags().Uint32("from", 0, "First timestamp")
	cmd.Flags().Uint32("to", 0, "Last timestamp")
	cmd.Flags().String("filter", "", "CEL predicate over sn, timestamp, rssi, identifier, metadata")
	cmd.Flags().Int("limit", 0, "Maximum number of records (0 = all)")
	cmd.MarkFlagsMutuallyExclusive("start", "from")
	cmd.MarkFlagsMutuallyExclusive("start", "to")
	cmd.MarkFlagsMutuallyExclusive("end", "from")
	cmd.MarkFlagsMutuallyExclusive("end", "to")
}

func rangeRequestFromFlags(cmd *cobra.Command) transports.RangeRequest {
	f := cmd.Flags()
	start, _ := f.GetUint32("start")
	end, _ := f.GetUint32("end")
	from, _ := f.GetUint32("from")
	to, _ := f.GetUint32("to")
	filter, _ := f.GetString("filter")
	limit, _ := f.GetInt("limit")
	return transports.RangeRequest{
		Start:  optUint32(f.Changed("start"), start),
		End:    optUint32(f.Changed("end"), end),
		From:   optUint32(f.Changed("from"), from),
		To:     optUint32(f.Changed("to"), to),
		Filter: filter,
		Limit:  limit,
	}
}

func newRecordsListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print records as JSON lines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			return getTransport().Range(cmd.Context(), rangeRequestFromFlags(cmd), func(rec recordlog.Record) error {
				return enc.Encode(rec)
			})
		},
	}
	addRangeFlags(cmd)
	return cmd
}

func newRecordsSearchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search TIMESTAMP",
		Short: "Find the sequence number bounding a timestamp",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := parseUint32(args[0])
			if err != nil {
				return err
			}
			mode, _ := cmd.Flags().GetString("mode")
			sn, err := getTransport().Search(cmd.Context(), ts, mode)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d: sn %d\n", mode, ts, sn)
			return nil
		},
	}
	cmd.Flags().String("mode", "min", "min: first record at or after; max: last record at or before")
	return cmd
}

func newRecordsResetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Empty the record log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				return errors.New("refusing to reset without --yes")
			}
			if err := getTransport().Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "log reset")
			return nil
		},
	}
	cmd.Flags().Bool("yes", false, "Confirm the reset")
	return cmd
}

func newRecordsExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write records as zstd-compressed JSON lines",
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			out, _ := cmd.Flags().GetString("out")
			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, ferr := os.Create(out)
				if ferr != nil {
					return ferr
				}
				defer func() {
					if cerr := f.Close(); err == nil {
						err = cerr
					}
				}()
				w = f
			}
			zw, err := zstd.NewWriter(w)
			if err != nil {
				return err
			}
			n := 0
			enc := json.NewEncoder(zw)
			rerr := getTransport().Range(cmd.Context(), rangeRequestFromFlags(cmd), func(rec recordlog.Record) error {
				n++
				return enc.Encode(rec)
			})
			if err := zw.Close(); err != nil && rerr == nil {
				rerr = err
			}
			if rerr != nil {
				return rerr
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d records\n", n)
			return nil
		},
	}
	addRangeFlags(cmd)
	cmd.Flags().StringP("out", "o", "", "Output file (default stdout)")
	return cmd
}

func newRecordsImportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Append records from a zstd-compressed JSON lines export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			zr, err := zstd.NewReader(f)
			if err != nil {
				return err
			}
			defer zr.Close()

			t := getTransport()
			sc := bufio.NewScanner(zr)
			n := 0
			for sc.Scan() {
				if len(sc.Bytes()) == 0 {
					continue
				}
				var rec recordlog.Record
				if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
					return fmt.Errorf("line %d: %w", n+1, err)
				}
				if _, err := t.Add(cmd.Context(), rec); err != nil {
					return fmt.Errorf("line %d: %w", n+1, err)
				}
				n++
			}
			if err := sc.Err(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d records\n", n)
			return nil
		},
	}
	return cmd
}
