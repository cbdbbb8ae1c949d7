package model

import (
	"path/filepath"
	"time"
)

// Folder is a source directory scanned for review candidates.
type Folder struct {
	Path string `json:"path"`
}

// Name returns the last element of the folder path.
func (f Folder) Name() string {
	return filepath.Base(filepath.Clean(f.Path))
}

// CandidateFile is the most recently modified file found in a Folder.
type CandidateFile struct {
	Folder  Folder    `json:"folder"`
	Path    string    `json:"path"`
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

// Folders builds a Folder list from raw paths, dropping blanks and repeats.
// The first occurrence of a path keeps its position.
func Folders(paths []string) []Folder {
	seen := make(map[string]bool, len(paths))
	out := make([]Folder, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		clean := filepath.Clean(p)
		if seen[clean] {
			continue
		}
		seen[clean] = true
		out = append(out, Folder{Path: clean})
	}
	return out
}
