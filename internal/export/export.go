package export

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/lehigh-university-libraries/cardset/internal/cards"
	"github.com/lehigh-university-libraries/cardset/internal/filestore"
	"github.com/lehigh-university-libraries/cardset/internal/locate"
)

// File describes one exported image
type File struct {
	Side    locate.Side
	SrcPath string
	DstPath string
	RelPath string // relative to the output directory, slash separated
	Size    int64
}

// Error reports a failed export step together with the offending path
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Exporter copies resolved card images into the output tree
type Exporter struct {
	Store filestore.Store
}

// New creates an exporter writing through store
func New(store filestore.Store) *Exporter {
	return &Exporter{Store: store}
}

// Export copies the front and back images of a record to
// {outputDir}/{company}/{grade}_{id}_{side}{ext}. Existing destinations are
// overwritten. If either copy fails, both destinations are removed,
// including files left by an earlier run, so the company directory never
// holds one side of a pair without the other.
func (e *Exporter) Export(record cards.Record, images []locate.Image, grade, company, id, outputDir string) ([2]File, error) {
	var files [2]File

	if len(images) != 2 {
		return files, &Error{Op: "export", Path: outputDir, Err: fmt.Errorf("need exactly 2 images (front/back), got %d", len(images))}
	}

	companyDir := PathComponent(company)
	dir := filepath.Join(outputDir, companyDir)
	if err := e.Store.MkdirAll(dir); err != nil {
		return files, &Error{Op: "create directory", Path: dir, Err: err}
	}

	var names, dsts [2]string
	for i, img := range images {
		names[i] = FileName(grade, id, img.Side, img.Ext)
		dsts[i] = filepath.Join(dir, names[i])
	}

	for i, img := range images {
		n, err := e.copy(img.AbsPath, dsts[i])
		if err != nil {
			e.discard(dsts[:])
			return [2]File{}, err
		}

		files[i] = File{
			Side:    img.Side,
			SrcPath: img.AbsPath,
			DstPath: dsts[i],
			RelPath: companyDir + "/" + names[i],
			Size:    n,
		}
	}

	slog.Debug("Exported card", "listing", record.Label(), "id", id, "front", files[0].RelPath, "back", files[1].RelPath)
	return files, nil
}

// discard removes whatever exists at the given destinations
func (e *Exporter) discard(dsts []string) {
	for _, dst := range dsts {
		if err := e.Store.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Failed to remove partial export", "path", dst, "error", err)
		}
	}
}

func (e *Exporter) copy(src, dst string) (int64, error) {
	in, err := e.Store.Open(src)
	if err != nil {
		return 0, &Error{Op: "open", Path: src, Err: err}
	}
	defer in.Close()

	n, err := e.Store.WriteFile(dst, in)
	if err != nil {
		return n, &Error{Op: "write", Path: dst, Err: err}
	}
	return n, nil
}

// FileName builds the exported image name, e.g. 10_1a2b3c4d_front.jpg
func FileName(grade, id string, side locate.Side, ext string) string {
	return fmt.Sprintf("%s_%s_%s%s", PathComponent(grade), id, side, ext)
}

// PathComponent makes a label safe to use as a single path element:
// NFC-normalized, trimmed, with separators replaced so it cannot escape
// its parent directory.
func PathComponent(s string) string {
	s = norm.NFC.String(strings.TrimSpace(s))
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '-'
		}
		return r
	}, s)
	if s == "." || s == ".." {
		s = strings.Repeat("_", len(s))
	}
	return s
}
