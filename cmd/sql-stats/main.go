package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"energyweb/internal/resolution"
	"energyweb/internal/store"
)

func main() {
	cmd := &cli.Command{
		Name:  "sql-stats",
		Usage: "print the SQL the store runs, or the graph query for one range",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "name",
				Usage: "print only the named statement",
			},
			&cli.StringFlag{
				Name:  "resolution",
				Usage: "print the graph query and its bind values for this resolution",
			},
			&cli.TimestampFlag{
				Name:   "start",
				Usage:  "range start (with --resolution)",
				Config: cli.TimestampConfig{Layouts: []string{time.RFC3339}},
			},
			&cli.TimestampFlag{
				Name:   "end",
				Usage:  "range end, inclusive (with --resolution); open when unset",
				Config: cli.TimestampConfig{Layouts: []string{time.RFC3339}},
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			queries, err := store.NamedQueries()
			if err != nil {
				return err
			}
			if res := cmd.String("resolution"); res != "" {
				r, err := resolution.Parse(res)
				if err != nil {
					return err
				}
				q := store.Query{Resolution: r, Start: cmd.Timestamp("start"), End: cmd.Timestamp("end")}
				return printGraphQuery(os.Stdout, queries, q)
			}
			return printQueries(os.Stdout, queries, cmd.String("name"))
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// printQueries writes the statements sorted by name, or only name if set.
func printQueries(w io.Writer, queries map[string]string, name string) error {
	if name != "" {
		q, ok := queries[name]
		if !ok {
			return fmt.Errorf("no statement named %q", name)
		}
		fmt.Fprintf(w, "-- name: %s\n%s;\n", name, q)
		return nil
	}

	names := make([]string, 0, len(queries))
	for n := range queries {
		names = append(names, n)
	}
	sort.Strings(names)

	for i, n := range names {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "-- name: %s\n%s;\n", n, strings.TrimSpace(queries[n]))
	}
	return nil
}

// printGraphQuery shows the cursor statement for q with its bind values in
// the order the store passes them.
func printGraphQuery(w io.Writer, queries map[string]string, q store.Query) error {
	name := store.GraphQueryName(q)
	end := "open"
	if !q.End.IsZero() {
		end = fmt.Sprintf("%d (%s)", q.End.UnixNano(), q.End.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(w, "-- name: %s\n", name)
	fmt.Fprintf(w, "-- average_type: %s\n", q.Resolution)
	fmt.Fprintf(w, "-- start: %d (%s)\n", q.Start.UnixNano(), q.Start.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "-- end: %s\n", end)
	fmt.Fprintf(w, "%s;\n", queries[name])
	return nil
}
