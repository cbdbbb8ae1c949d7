// Package scanner selects the most recently modified file of each folder.
package scanner

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-git/go-billy/v5"

	"github.com/peer-review/internal/model"
)

// Options tune which directory entries count as candidates.
type Options struct {
	IncludeHidden bool
	Logger        *slog.Logger
}

// Scanner walks folders on a billy filesystem. Listing is non-recursive.
type Scanner struct {
	fs            billy.Filesystem
	includeHidden bool
	logger        *slog.Logger
}

func New(fs billy.Filesystem, opts Options) *Scanner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		fs:            fs,
		includeHidden: opts.IncludeHidden,
		logger:        logger,
	}
}

// Scan returns one CandidateFile per folder, in folder order. The first
// folder that fails aborts the scan.
func (s *Scanner) Scan(folders []model.Folder) ([]model.CandidateFile, error) {
	files := make([]model.CandidateFile, 0, len(folders))
	for _, folder := range folders {
		f, err := s.Latest(folder)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// Latest returns the regular file in folder with the newest modification
// time. Equal times resolve to the lexically greatest name.
func (s *Scanner) Latest(folder model.Folder) (model.CandidateFile, error) {
	info, err := s.fs.Stat(folder.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.CandidateFile{}, &NotFoundError{Folder: folder.Path, Reason: reasonMissing, Err: err}
		}
		return model.CandidateFile{}, fmt.Errorf("scan %s: %w", folder.Path, err)
	}
	if !info.IsDir() {
		return model.CandidateFile{}, &NotFoundError{Folder: folder.Path, Reason: reasonNotDir}
	}

	entries, err := s.fs.ReadDir(folder.Path)
	if err != nil {
		return model.CandidateFile{}, fmt.Errorf("scan %s: list: %w", folder.Path, err)
	}

	var (
		best  os.FileInfo
		found bool
	)
	for _, entry := range entries {
		fi, ok := s.candidate(folder, entry)
		if !ok {
			continue
		}
		if !found || newer(fi, best) {
			best = fi
			found = true
		}
	}
	if !found {
		return model.CandidateFile{}, &NotFoundError{Folder: folder.Path, Reason: reasonEmpty}
	}

	selected := model.CandidateFile{
		Folder:  folder,
		Path:    s.fs.Join(folder.Path, best.Name()),
		Name:    best.Name(),
		Size:    best.Size(),
		ModTime: best.ModTime(),
	}
	s.logger.Debug("scanner: selected file",
		"folder", folder.Path,
		"file", selected.Name,
		"mod_time", selected.ModTime,
		"entries", len(entries))
	return selected, nil
}

// candidate resolves entry to the info of a regular file, following symlinks.
func (s *Scanner) candidate(folder model.Folder, entry os.FileInfo) (os.FileInfo, bool) {
	name := entry.Name()
	if !s.includeHidden && strings.HasPrefix(name, ".") {
		return nil, false
	}
	if entry.Mode()&os.ModeSymlink != 0 {
		target, err := s.fs.Stat(s.fs.Join(folder.Path, name))
		if err != nil {
			s.logger.Debug("scanner: skipping dangling link", "folder", folder.Path, "file", name, "err", err)
			return nil, false
		}
		if !target.Mode().IsRegular() {
			return nil, false
		}
		return namedInfo{FileInfo: target, name: name}, true
	}
	if !entry.Mode().IsRegular() {
		return nil, false
	}
	return entry, true
}

func newer(a, b os.FileInfo) bool {
	if a.ModTime().Equal(b.ModTime()) {
		return a.Name() > b.Name()
	}
	return a.ModTime().After(b.ModTime())
}

// namedInfo keeps the link name while reporting the target's metadata.
type namedInfo struct {
	os.FileInfo
	name string
}

func (n namedInfo) Name() string { return n.name }
