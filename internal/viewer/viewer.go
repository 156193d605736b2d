// Package viewer renders rules and rule trees as read-only text tables for
// the CLI.
package viewer

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/solatis/ruledesk/internal/rules"
	"github.com/solatis/ruledesk/internal/types"
	"github.com/solatis/ruledesk/internal/validation"
)

// UnknownLabel is shown in place of nodes that are neither a condition nor
// an AND/OR group.
const UnknownLabel = "Unknown rule type"

const maxValueWidth = 40

// TreeView renders a rule tree, one row per node, children indented under
// their group. When Nodes is set, each row also lists that node's
// validation errors.
type TreeView struct {
	Title string
	Nodes map[types.NodeID]validation.FieldErrors
}

// RenderTree renders n without validation state.
func RenderTree(n *types.Node) string {
	return TreeView{}.Render(n)
}

// Render renders n.
func (v TreeView) Render(n *types.Node) string {
	tw := table.NewWriter()
	title := v.Title
	if title == "" {
		title = "RULE TREE"
	}
	tw.SetTitle(title)

	header := table.Row{"Node", "Field", "Operator", "Value", "Children"}
	if v.Nodes != nil {
		header = append(header, "Errors")
	}
	tw.AppendHeader(header)

	for _, row := range v.rows(n, 0) {
		tw.AppendRow(row)
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, WidthMax: maxValueWidth},
		{Number: 5, Align: text.AlignRight},
	})

	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	tw.SetStyle(style)
	return tw.Render()
}

func (v TreeView) rows(n *types.Node, depth int) []table.Row {
	indent := strings.Repeat("  ", depth)

	var row table.Row
	switch {
	case n == nil:
		row = table.Row{indent + UnknownLabel, "", "", "", ""}
	case n.Kind == types.KindBase:
		row = table.Row{indent + n.Kind.String(), n.Field, string(n.Operator), n.Value.String(), ""}
	case n.Kind.IsGroup():
		row = table.Row{indent + n.Kind.String(), "", "", "", len(n.Children)}
	default:
		row = table.Row{indent + UnknownLabel, "", "", "", ""}
	}
	if v.Nodes != nil {
		var errs validation.FieldErrors
		if n != nil {
			errs = v.Nodes[n.ID]
		}
		row = append(row, errorSummary(errs))
	}

	rows := []table.Row{row}
	if n != nil && n.Kind.IsGroup() {
		for _, child := range n.Children {
			rows = append(rows, v.rows(child, depth+1)...)
		}
	}
	return rows
}

func errorSummary(errs validation.FieldErrors) string {
	if len(errs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(errs))
	for _, p := range errs.Paths() {
		if p == "" {
			parts = append(parts, errs[p])
			continue
		}
		parts = append(parts, p+": "+errs[p])
	}
	return strings.Join(parts, "\n")
}

// RenderRules renders a rule listing. Update times are shown relative to now.
func RenderRules(list []types.Rule, now time.Time) string {
	tw := table.NewWriter()
	tw.SetTitle(fmt.Sprintf("RULES (%s)", humanize.Comma(int64(len(list)))))
	tw.AppendHeader(table.Row{"ID", "Name", "Category", "Destination", "Type", "Conditions", "Updated"})

	for _, r := range list {
		updated := ""
		if !r.UpdatedAt.IsZero() {
			updated = humanize.RelTime(r.UpdatedAt, now, "ago", "from now")
		}
		tw.AppendRow(table.Row{
			string(r.ID), r.Name, r.Category, r.Destination, r.Type,
			conditionCount(r.Rule), updated,
		})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 6, Align: text.AlignRight},
	})
	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	tw.SetStyle(style)
	return tw.Render()
}

// TestOutcome is the result of testing one rule against a payload.
type TestOutcome struct {
	Rule   types.Rule
	Result rules.MatchResult
	Err    error
}

// RenderTestResults renders one row per tested rule with the conditions
// that produced a match.
func RenderTestResults(outcomes []TestOutcome) string {
	tw := table.NewWriter()
	tw.SetTitle("TEST RESULTS")
	tw.AppendHeader(table.Row{"Rule", "Result", "Evaluated", "Matched fields"})

	matched := 0
	for _, o := range outcomes {
		result := "no match"
		var fields []string
		switch {
		case o.Err != nil:
			result = "error: " + o.Err.Error()
		case o.Result.Matched:
			result = "MATCH"
			matched++
			for _, f := range o.Result.MatchedFields {
				fields = append(fields, fmt.Sprintf("%s = %v", f.Path, f.Value))
			}
		}
		tw.AppendRow(table.Row{o.Rule.Name, result, o.Result.Evaluated, strings.Join(fields, "\n")})
	}
	tw.AppendFooter(table.Row{"", fmt.Sprintf("%d/%d matched", matched, len(outcomes)), "", ""})

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
	})
	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	style.Format.Footer = text.FormatDefault
	tw.SetStyle(style)
	return tw.Render()
}

func conditionCount(n *types.Node) int {
	if n == nil {
		return 0
	}
	if n.Kind == types.KindBase {
		return 1
	}
	count := 0
	for _, child := range n.Children {
		count += conditionCount(child)
	}
	return count
}
