package cmd

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// ValueDiff renders the change from oldValue to newValue as a patch.
// It returns an empty string when nothing changed.
func ValueDiff(key, oldValue, newValue string) string {
	if oldValue == newValue {
		return ""
	}

	dmp := diffmatchpatch.New()

	// Line-mode diff, values are often multi-line blobs
	a, b, lineArray := dmp.DiffLinesToChars(oldValue, newValue)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	patches := dmp.PatchMake(oldValue, diffs)
	if len(patches) == 0 {
		return ""
	}

	var result strings.Builder
	fmt.Fprintf(&result, "--- %s (stored)\n", key)
	fmt.Fprintf(&result, "+++ %s (new)\n", key)
	result.WriteString(dmp.PatchToText(patches))

	return result.String()
}
