package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/influxdata/kvquery"
	"github.com/influxdata/kvquery/bolt"
	"github.com/influxdata/kvquery/kit/platform/errors"
	"github.com/influxdata/kvquery/planner"
	"github.com/influxdata/kvquery/predicate"
)

func (a *app) familiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "families",
		Short: "List the column families",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(); err != nil {
				return err
			}
			return writeFamilies(a.stdout, a.families)
		},
	}
}

func (a *app) putCmd() *cobra.Command {
	var nulls []string
	cmd := &cobra.Command{
		Use:   "put <column-family> <column=value>...",
		Short: "Insert a row and print its key",
		Long: `Insert a row and print its key. The key is taken from the primary key
column when given, joined from the compound key fields otherwise, or
generated.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseAssignments(args[1:], nulls)
			if err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context, p *planner.Planner) error {
				key, err := p.Insert(ctx, args[0], values)
				if err != nil {
					return err
				}
				fmt.Fprintln(a.stdout, key)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&nulls, "null", nil, "columns stored as null")
	return cmd
}

func (a *app) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <column-family> <key>",
		Short: "Print the row stored under a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, p *planner.Planner) error {
				cf, err := a.family(args[0])
				if err != nil {
					return err
				}
				q, err := p.Build(cf.Name, kvquery.Where(cf.PKColumn, kvquery.LookupExact, args[1]))
				if err != nil {
					return err
				}
				rows, err := q.Fetch(ctx, 0, 1)
				if err != nil {
					return err
				}
				if len(rows) == 0 {
					return &errors.Error{
						Code: errors.ENotFound,
						Msg:  "key " + strconv.Quote(args[1]) + " not found in " + cf.Name,
					}
				}
				return writeRow(a.stdout, rows[0])
			})
		},
	}
}

func (a *app) queryCmd() *cobra.Command {
	var (
		orderBy []string
		offset  int
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "query <column-family> [filter]",
		Short: "Print the rows matching a filter",
		Long: `Print the rows matching a filter. Without a filter every row is printed.

A filter combines conditions with and, or, not and parentheses:

    kvquery query hosts 'k >= "key2" and not (os startswith "lin" or ip in ("10.0.0.1"))'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFilter(args[1:])
			if err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context, p *planner.Planner) error {
				q, err := p.Build(args[0], f)
				if err != nil {
					return err
				}
				if len(orderBy) > 0 {
					if err := q.OrderBy(orderBy...); err != nil {
						return err
					}
				}
				rows, err := q.Fetch(ctx, offset, limit)
				if err != nil {
					return err
				}
				cf, err := a.family(args[0])
				if err != nil {
					return err
				}
				return writeRows(a.stdout, cf.PKColumn, rows)
			})
		},
	}
	cmd.Flags().StringSliceVar(&orderBy, "order-by", nil, "columns to sort by; a leading - sorts descending")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of rows to skip")
	cmd.Flags().IntVar(&limit, "limit", -1, "maximum number of rows to print; negative prints all")
	return cmd
}

func (a *app) countCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count <column-family> [filter]",
		Short: "Print the number of rows matching a filter",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFilter(args[1:])
			if err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context, p *planner.Planner) error {
				q, err := p.Build(args[0], f)
				if err != nil {
					return err
				}
				n, err := q.Count(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(a.stdout, n)
				return nil
			})
		},
	}
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <column-family> <filter>",
		Short: "Delete the rows matching a filter",
		Long: `Delete the rows matching a filter. An empty filter ("") deletes every
row of the column family.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFilter(args[1:])
			if err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context, p *planner.Planner) error {
				q, err := p.Build(args[0], f)
				if err != nil {
					return err
				}
				n, err := q.DeleteAll(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "deleted %s rows\n", humanize.Comma(int64(n)))
				return nil
			})
		},
	}
}

func (a *app) updateCmd() *cobra.Command {
	var (
		sets  []string
		nulls []string
	)
	cmd := &cobra.Command{
		Use:   "update <column-family> <filter> --set column=value...",
		Short: "Set columns on the rows matching a filter",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFilter(args[1:])
			if err != nil {
				return err
			}
			values, err := parseAssignments(sets, nulls)
			if err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context, p *planner.Planner) error {
				q, err := p.Build(args[0], f)
				if err != nil {
					return err
				}
				n, err := q.Update(ctx, values)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "updated %s rows\n", humanize.Comma(int64(n)))
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "column=value to set; may be repeated")
	cmd.Flags().StringSliceVar(&nulls, "null", nil, "columns to clear")
	return cmd
}

func (a *app) explainCmd() *cobra.Command {
	var orderBy []string
	cmd := &cobra.Command{
		Use:   "explain <column-family> [filter]",
		Short: "Print how a filter would be evaluated",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFilter(args[1:])
			if err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context, p *planner.Planner) error {
				q, err := p.Build(args[0], f)
				if err != nil {
					return err
				}
				if len(orderBy) > 0 {
					if err := q.OrderBy(orderBy...); err != nil {
						return err
					}
				}
				fmt.Fprint(a.stdout, q.Explain())
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&orderBy, "order-by", nil, "columns to sort by; a leading - sorts descending")
	return cmd
}

func (a *app) verifyIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-index <column-family>",
		Short: "Compare the secondary indexes of a column family against its rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err := a.setup(); err != nil {
				return err
			}
			sess, err := a.dialer.Dial(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				err = multierr.Append(err, sess.Close())
			}()

			diffs, err := sess.(*bolt.Session).VerifyIndexes(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeIndexDiffs(a.stdout, args[0], diffs)
		},
	}
}

func parseFilter(args []string) (kvquery.Filter, error) {
	return predicate.Parse(strings.Join(args, " "))
}

// parseAssignments turns column=value arguments into a row. Columns listed
// in nulls are set to kvquery.Null.
func parseAssignments(args, nulls []string) (kvquery.Row, error) {
	row := make(kvquery.Row, len(args)+len(nulls))
	for _, arg := range args {
		col, val, ok := strings.Cut(arg, "=")
		if !ok || col == "" {
			return nil, &errors.Error{
				Code: errors.EInvalid,
				Msg:  "expected column=value, got " + strconv.Quote(arg),
			}
		}
		row[col] = val
	}
	for _, col := range nulls {
		if _, ok := row[col]; ok {
			return nil, &errors.Error{
				Code: errors.EConflict,
				Msg:  "column " + col + " is both set and cleared",
			}
		}
		row[col] = kvquery.Null
	}
	return row, nil
}
