package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/cube2222/caggunion/graph"
	"github.com/cube2222/caggunion/query"
)

var formats = []string{"sql", "explain", "dot", "columns", "dump"}

func writeOutput(w io.Writer, format string, q *query.Query) error {
	switch format {
	case "sql":
		sql, err := query.Deparse(q)
		if err != nil {
			return errors.Wrap(err, "couldn't deparse query")
		}
		_, err = fmt.Fprintln(w, sql)
		return err

	case "explain":
		return graph.Render(w, query.Explain(q))

	case "dot":
		g, err := graph.Show(query.Explain(q))
		if err != nil {
			return errors.Wrap(err, "couldn't build graph")
		}
		_, err = fmt.Fprintln(w, g.String())
		return err

	case "columns":
		return writeColumns(w, q)

	case "dump":
		spew.Fdump(w, q)
		return nil

	default:
		return errors.Errorf("invalid output format '%s', should be one of: %s", format, strings.Join(formats, ", "))
	}
}

func writeColumns(w io.Writer, q *query.Query) error {
	table := tablewriter.NewWriter(w)
	table.SetColWidth(64)
	table.SetHeader([]string{"#", "name", "type", "typmod", "collation", "source"})
	table.SetAutoFormatHeaders(false)

	origins := query.Lineage(q)
	for i, tle := range q.NonJunkTargets() {
		source := "(computed)"
		if i < len(origins) && origins[i].Found {
			source = fmt.Sprintf("%s.%s.%s", origins[i].Schema, origins[i].Relation, origins[i].Column)
		}
		collation := ""
		if tle.Expr.Collation != 0 {
			collation = tle.Expr.Collation.String()
		}
		table.Append([]string{
			strconv.Itoa(i + 1),
			tle.Name,
			tle.Expr.Type.String(),
			strconv.Itoa(int(tle.Expr.Typmod)),
			collation,
			source,
		})
	}
	table.Render()
	return nil
}

// compareExpected deparses q and compares it with the contents of path,
// ignoring surrounding whitespace. A mismatch is reported as a unified diff.
func compareExpected(w io.Writer, q *query.Query, path string) error {
	got, err := query.Deparse(q)
	if err != nil {
		return errors.Wrap(err, "couldn't deparse query")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "couldn't read expected output")
	}
	want := strings.TrimSpace(string(data))
	if want == got {
		fmt.Fprintln(w, "OK")
		return nil
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(want + "\n"),
		B:        difflib.SplitLines(got + "\n"),
		FromFile: "Expected",
		ToFile:   "Actual",
		Context:  2,
	})
	if err != nil {
		return errors.Wrap(err, "couldn't compute diff")
	}
	fmt.Fprint(w, diff)
	return errors.Errorf("query differs from %s", path)
}
