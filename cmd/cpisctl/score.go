package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"cpis/internal/domain/cpis"
)

type scoreFlags struct {
	policyPath string
	format     string
	out        string
	workers    int
}

// subjectFile is one subject's evidence snapshot. An evidence file holds a
// single object or an array of them.
type subjectFile struct {
	SubjectID string                `json:"subjectId"`
	Records   []cpis.RawRecord      `json:"records"`
	History   cpis.HistoricalSeries `json:"history"`
}

type scoreOutput struct {
	SubjectID string       `json:"subjectId"`
	Result    *cpis.Result `json:"result,omitempty"`
	Error     string       `json:"error,omitempty"`
}

func newScoreCmd() *cobra.Command {
	f := &scoreFlags{}
	cmd := &cobra.Command{
		Use:   "score <evidence-file>",
		Short: "Compute CPIS results for the subjects in an evidence file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd.Context(), args[0], f, cmd.OutOrStdout())
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.policyPath, "policy", "", "Policy YAML overlaid on the defaults")
	flags.StringVar(&f.format, "format", "json", "Output format: json or text")
	flags.StringVar(&f.out, "out", "", "Output file path (default: stdout)")
	flags.IntVar(&f.workers, "workers", 0, "Parallel subjects (default: GOMAXPROCS)")
	return cmd
}

func runScore(ctx context.Context, path string, f *scoreFlags, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if f.format != "json" && f.format != "text" {
		return exitError(2, "unknown format %q", f.format)
	}
	engine, err := loadEngine(f.policyPath)
	if err != nil {
		return exitError(3, "%v", err)
	}
	subjects, err := readSubjects(path)
	if err != nil {
		return exitError(3, "failed to read evidence: %v", err)
	}

	inputs := make([]cpis.Input, len(subjects))
	for i, s := range subjects {
		for j := range s.Records {
			if s.Records[j].SubjectID == "" {
				s.Records[j].SubjectID = s.SubjectID
			}
		}
		inputs[i] = cpis.Input{SubjectID: s.SubjectID, Records: s.Records, History: s.History}
	}
	outcomes := engine.ComputeBatch(ctx, inputs, f.workers)

	outputs := make([]scoreOutput, len(outcomes))
	for i, o := range outcomes {
		outputs[i].SubjectID = o.SubjectID
		if o.Err != nil {
			outputs[i].Error = o.Err.Error()
			continue
		}
		res := o.Result
		outputs[i].Result = &res
	}

	var buf bytes.Buffer
	if f.format == "text" {
		writeText(&buf, outputs)
	} else {
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(outputs); err != nil {
			return err
		}
	}
	if f.out != "" {
		if err := os.WriteFile(f.out, buf.Bytes(), 0o644); err != nil {
			return exitError(3, "failed to write output: %v", err)
		}
	} else if _, err := stdout.Write(buf.Bytes()); err != nil {
		return err
	}

	if failed := cpis.Failed(outcomes); failed > 0 {
		return exitError(4, "%d of %d subjects failed", failed, len(outcomes))
	}
	return nil
}

func readSubjects(path string) ([]subjectFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if len(raw) > 0 && raw[0] == '[' {
		var subjects []subjectFile
		if err := dec.Decode(&subjects); err != nil {
			return nil, err
		}
		return subjects, nil
	}
	var one subjectFile
	if err := dec.Decode(&one); err != nil {
		return nil, err
	}
	return []subjectFile{one}, nil
}

func writeText(w io.Writer, outputs []scoreOutput) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SUBJECT\tSCORE\tGRADE\tSTARS\tCONFIDENCE\tRANGE\tTREND")
	for _, o := range outputs {
		if o.Result == nil {
			fmt.Fprintf(tw, "%s\terror: %s\n", o.SubjectID, o.Error)
			continue
		}
		r := o.Result
		fmt.Fprintf(tw, "%s\t%.1f\t%s\t%s\t%.2f\t%.1f-%.1f\t%s\n",
			r.SubjectID, r.Score, r.Grade, strings.Repeat("*", r.StarRating),
			r.Confidence.Level, r.Confidence.LowerBound, r.Confidence.UpperBound, r.Trajectory.Direction)
	}
	tw.Flush()
}
