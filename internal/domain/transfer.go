package domain

import (
	"path/filepath"
	"strings"
)

// partTag marks an in-progress file.
const partTag = ".part"

// fallbackPartName is used when the destination has no usable file name.
const fallbackPartName = "video.part.mp4"

// TransferTarget pairs a destination with its in-progress sibling. The part
// path is a pure function of the destination so an interrupted transfer
// leaves a recognisable artifact next to where the file would have been.
type TransferTarget struct {
	Dest string
	Part string
}

// NewTransferTarget derives the part path: video.mp4 -> video.part.mp4,
// video -> video.part, both in the destination's directory.
func NewTransferTarget(dest string) TransferTarget {
	return TransferTarget{Dest: dest, Part: PartPath(dest)}
}

// Dir is the directory both paths live in.
func (t TransferTarget) Dir() string {
	return filepath.Dir(t.Dest)
}

// PartPath returns the in-progress path for dest.
func PartPath(dest string) string {
	dir, base := filepath.Split(dest)
	if base == "" || base == "." || base == ".." {
		return filepath.Join(filepath.Clean(dest), fallbackPartName)
	}

	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		// dotfile such as ".video": the whole name is the stem
		stem, ext = base, ""
	}

	name := stem + partTag + ext
	if dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}

// IsPartPath reports whether path looks like an in-progress file.
func IsPartPath(path string) bool {
	base := filepath.Base(path)
	if strings.HasSuffix(base, partTag) {
		return true
	}
	ext := filepath.Ext(base)
	return ext != "" && strings.HasSuffix(strings.TrimSuffix(base, ext), partTag)
}

// ProgressState is the running byte count of one transfer. Total is -1 when
// the response carried no length.
type ProgressState struct {
	Written int64 `json:"written"`
	Total   int64 `json:"total"`
}

// NewProgressState starts a counter at zero.
func NewProgressState(total int64) ProgressState {
	if total < 0 {
		total = -1
	}
	return ProgressState{Total: total}
}

// Known reports whether the total length is known.
func (p ProgressState) Known() bool {
	return p.Total >= 0
}

// Percent is the completed fraction in [0,100], or -1 when the total is unknown.
func (p ProgressState) Percent() float64 {
	if !p.Known() {
		return -1
	}
	if p.Total == 0 {
		return 100
	}
	pct := float64(p.Written) / float64(p.Total) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}
