package model

import (
	"path"
	"strings"
)

// FileStatus represents the change status GitHub reports for a file in a
// pull request diff.
type FileStatus string

const (
	FileStatusAdded    FileStatus = "added"
	FileStatusModified FileStatus = "modified"
	FileStatusRemoved  FileStatus = "removed"
	FileStatusRenamed  FileStatus = "renamed"
)

// SkipReason explains why a changed file was excluded from review.
type SkipReason string

const (
	SkipReasonNone      SkipReason = ""
	SkipReasonRemoved   SkipReason = "removed"    // Deleted files have nothing to review.
	SkipReasonNoPatch   SkipReason = "no patch"   // Binary or oversized diffs carry no line-level patch.
	SkipReasonImageFile SkipReason = "image file" // Not meaningfully reviewable as text.
)

// imageExtensions are file extensions that are never sent for review.
var imageExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".svg":  {},
	".webp": {},
	".ico":  {},
	".bmp":  {},
}

// ChangedFile is a single entry in a pull request's file diff, as reported
// by the GitHub list-files API. Read-only within the core.
type ChangedFile struct {
	Filename  string
	Status    FileStatus
	Additions int
	Deletions int
	Patch     string // Empty for binary or too-large diffs.
}

// SkipReasonFor returns the reason this file should be excluded from review,
// or SkipReasonNone if it is reviewable. Checks run in order: removed status,
// missing patch, non-reviewable extension.
func (f ChangedFile) SkipReasonFor() SkipReason {
	if f.Status == FileStatusRemoved {
		return SkipReasonRemoved
	}
	if f.Patch == "" {
		return SkipReasonNoPatch
	}
	if _, ok := imageExtensions[strings.ToLower(path.Ext(f.Filename))]; ok {
		return SkipReasonImageFile
	}
	return SkipReasonNone
}

// Reviewable returns true if the file should be sent to the review service.
func (f ChangedFile) Reviewable() bool {
	return f.SkipReasonFor() == SkipReasonNone
}

// CountsInSummary returns true if the file contributes to summary statistics.
// Removed files are excluded from additions/deletions/filesChanged counts.
func (f ChangedFile) CountsInSummary() bool {
	return f.Status != FileStatusRemoved
}
