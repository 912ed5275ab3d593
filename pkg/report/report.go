// Package report renders plans for humans and exports them for machines.
package report

import (
	"fmt"
	"strings"

	"pathworks.io/netmirror/pkg/planner"
)

// Summary holds the per-action item counts of a plan.
type Summary struct {
	Add     int
	Update  int
	Skip    int
	Exclude int
}

// Total returns the number of classified items.
func (s Summary) Total() int {
	return s.Add + s.Update + s.Skip + s.Exclude
}

// Summarize counts the items of a plan per action.
func Summarize(items []planner.Item) Summary {
	var s Summary
	for _, it := range items {
		switch it.Action {
		case planner.ActionAdd:
			s.Add++
		case planner.ActionUpdate:
			s.Update++
		case planner.ActionSkip:
			s.Skip++
		case planner.ActionExclude:
			s.Exclude++
		}
	}
	return s
}

// String renders the one-line summary shown at the end of every plan.
func (s Summary) String() string {
	return fmt.Sprintf("Summary: total %d | add %d | update %d | skip %d | exclude %d",
		s.Total(), s.Add, s.Update, s.Skip, s.Exclude)
}

// FormatPlan renders a plan as text, grouped by action. With compact set,
// only the summary line is returned.
func FormatPlan(items []planner.Item, srcRoot, dstRoot string, compact bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Mirror plan: %s -> %s\n", srcRoot, dstRoot)

	if !compact {
		writeGroup(&b, "ADD", planner.ActionAdd, items)
		writeGroup(&b, "UPDATE", planner.ActionUpdate, items)
		writeGroup(&b, "SKIP", planner.ActionSkip, items)
		writeGroup(&b, "EXCLUDE", planner.ActionExclude, items)
	}

	b.WriteString(Summarize(items).String())
	b.WriteString("\n")
	return b.String()
}

func writeGroup(b *strings.Builder, header string, action planner.Action, items []planner.Item) {
	first := true
	for _, it := range items {
		if it.Action != action {
			continue
		}
		if first {
			fmt.Fprintf(b, "\n%s:\n", header)
			first = false
		}
		fmt.Fprintf(b, "  %-60s (%s)\n", it.Rel, it.Reason)
	}
}
