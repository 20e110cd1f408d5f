package model

import (
	"fmt"
	"strings"
)

// Default render thresholds. Both are policy constants, overridable through
// configuration.
const (
	DefaultLargeThreshold = 100 // Net change above this gets the "large" tier marker.
	DefaultHugeThreshold  = 200 // Net change above this gets the large-PR advisory.
)

// SummaryStats is a pure reduction of a pull request's changed-file list.
// Invariant: NetChange == Additions - Deletions, and FilesChanged equals the
// number of non-removed files.
type SummaryStats struct {
	Additions    int
	Deletions    int
	FilesChanged int
	NetChange    int
}

// Summarize reduces the changed-file list into summary statistics. Files
// with removed status do not contribute.
func Summarize(files []ChangedFile) SummaryStats {
	var stats SummaryStats
	for _, f := range files {
		if !f.CountsInSummary() {
			continue
		}
		stats.Additions += f.Additions
		stats.Deletions += f.Deletions
		stats.FilesChanged++
	}
	stats.NetChange = stats.Additions - stats.Deletions
	return stats
}

// RenderOptions are the policy thresholds for the summary comment.
type RenderOptions struct {
	LargeThreshold int // Tier boundary; net > LargeThreshold renders the growing marker.
	HugeThreshold  int // Advisory boundary; net > HugeThreshold renders the large-PR warning.
}

// DefaultRenderOptions returns the standard thresholds.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{
		LargeThreshold: DefaultLargeThreshold,
		HugeThreshold:  DefaultHugeThreshold,
	}
}

// Render produces the deterministic markdown summary comment for the given
// stats. The leading marker is chosen by net-change magnitude tier and the
// trailing advisory line flips at the huge threshold.
func Render(stats SummaryStats, opts RenderOptions) string {
	var marker string
	switch {
	case stats.NetChange > opts.LargeThreshold:
		marker = "📈 This PR grows the codebase significantly."
	case stats.NetChange < 0:
		marker = "📉 This PR shrinks the codebase. Nice cleanup!"
	default:
		marker = "📊 This PR makes a moderate change."
	}

	advisory := "✅ Good size for review."
	if stats.NetChange > opts.HugeThreshold {
		advisory = "⚠️ Large PR — consider splitting into smaller changes for easier review."
	}

	var b strings.Builder
	b.WriteString(marker)
	b.WriteString("\n\n")
	b.WriteString("## Diff Summary\n\n")
	fmt.Fprintf(&b, "| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Files changed | %d |\n", stats.FilesChanged)
	fmt.Fprintf(&b, "| Additions | +%d |\n", stats.Additions)
	fmt.Fprintf(&b, "| Deletions | -%d |\n", stats.Deletions)
	fmt.Fprintf(&b, "| Net change | %+d |\n", stats.NetChange)
	b.WriteString("\n")
	b.WriteString(advisory)
	b.WriteString("\n")
	return b.String()
}
