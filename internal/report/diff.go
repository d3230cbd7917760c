package report

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

type ChangeType string

const (
	ChangeAdded   ChangeType = "added"
	ChangeRemoved ChangeType = "removed"
)

// Change is one line present in only one of two reports.
type Change struct {
	Type ChangeType `json:"type"`
	Line string     `json:"line"`
}

// Diff compares the text form of two reports line by line. Unchanged lines
// are omitted.
func Diff(base, head Document) []Change {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(base.Text(), head.Text())
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	changes := make([]Change, 0)
	for _, d := range diffs {
		var t ChangeType
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			t = ChangeAdded
		case diffmatchpatch.DiffDelete:
			t = ChangeRemoved
		case diffmatchpatch.DiffEqual:
			continue
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			if strings.TrimSpace(line) != "" {
				changes = append(changes, Change{Type: t, Line: line})
			}
		}
	}
	return changes
}
