package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/influxdata/kvquery"
	"github.com/influxdata/kvquery/kit/platform/errors"
	"github.com/influxdata/kvquery/kv"
)

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 8, 1, '\t', 0)
}

// writeRows prints rows as a table. The primary key column comes first,
// followed by every other column seen in any row in ascending order.
func writeRows(w io.Writer, pkColumn string, rows []kvquery.Row) error {
	seen := map[string]bool{pkColumn: true}
	columns := []string{}
	for _, row := range rows {
		for col := range row {
			if !seen[col] {
				seen[col] = true
				columns = append(columns, col)
			}
		}
	}
	sort.Strings(columns)
	columns = append([]string{pkColumn}, columns...)

	tw := newTabWriter(w)
	fmt.Fprintln(tw, strings.Join(columns, "\t"))
	for _, row := range rows {
		values := make([]string, len(columns))
		for i, col := range columns {
			values[i] = row[col]
		}
		fmt.Fprintln(tw, strings.Join(values, "\t"))
	}
	return tw.Flush()
}

func writeRow(w io.Writer, row kvquery.Row) error {
	tw := newTabWriter(w)
	for _, col := range row.Columns() {
		fmt.Fprintf(tw, "%s\t%s\n", col, row[col])
	}
	return tw.Flush()
}

func writeFamilies(w io.Writer, families []kvquery.ColumnFamily) error {
	tw := newTabWriter(w)
	fmt.Fprintln(tw, "NAME\tPK\tINDEXED\tCOMPOUND KEY")
	for _, cf := range families {
		var compound string
		if cf.CompoundKey != nil {
			compound = strings.Join(cf.CompoundKey.Fields, cf.CompoundKey.Sep())
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", cf.Name, cf.PKColumn, strings.Join(cf.Indexed, ","), compound)
	}
	return tw.Flush()
}

// writeIndexDiffs prints the verification result of every index of cf and
// fails when any of them disagrees with the rows.
func writeIndexDiffs(w io.Writer, cf string, diffs map[string]kv.IndexDiff) error {
	columns := make([]string, 0, len(diffs))
	for col := range diffs {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	tw := newTabWriter(w)
	fmt.Fprintln(tw, "COLUMN\tDANGLING\tMISSING")
	var broken []string
	for _, col := range columns {
		diff := diffs[col]
		fmt.Fprintf(tw, "%s\t%d\t%d\n", col, len(diff.Source), len(diff.Index))
		if !diff.Empty() {
			broken = append(broken, col)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(broken) > 0 {
		return &errors.Error{
			Code: errors.EConflict,
			Msg:  "indexes of " + cf + " out of sync: " + strings.Join(broken, ", "),
		}
	}
	return nil
}

// writeError reports a failed command with its error code and, for store
// failures, the operation that failed.
func writeError(w io.Writer, err error) {
	msg := fmt.Sprintf("Error: %s (%s)", err, errors.ErrorCode(err))
	if op := errors.ErrorOp(err); op != "" {
		msg += " in " + op
	}
	fmt.Fprintln(w, msg)
}
