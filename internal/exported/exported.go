// Package exported reads back an export tree: it pairs the front and back
// images written by the exporter and can move a pair to a different grade.
package exported

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/cardset/internal/cards"
	"github.com/lehigh-university-libraries/cardset/internal/export"
	"github.com/lehigh-university-libraries/cardset/internal/filestore"
	"github.com/lehigh-university-libraries/cardset/internal/locate"
	"github.com/lehigh-university-libraries/cardset/internal/manifest"
)

// Pair is a complete front/back image pair in the export tree. Paths are
// relative to the scanned directory and slash separated.
type Pair struct {
	Company string
	Grade   string
	ID      string
	Front   string
	Back    string
}

// Name is a parsed exported file name
type Name struct {
	Grade string
	ID    string
	Side  locate.Side
	Ext   string
}

// ParseName splits {grade}_{id}_{side}{ext}. The grade may itself contain
// underscores, so the id and side are taken from the right.
func ParseName(name string) (Name, bool) {
	ext := filepath.Ext(name)
	if !locate.IsSupportedExtension(ext) {
		return Name{}, false
	}
	stem := strings.TrimSuffix(name, ext)

	i := strings.LastIndex(stem, "_")
	if i <= 0 {
		return Name{}, false
	}
	side := locate.Side(stem[i+1:])
	if side != locate.SideFront && side != locate.SideBack {
		return Name{}, false
	}
	stem = stem[:i]

	j := strings.LastIndex(stem, "_")
	if j <= 0 || j == len(stem)-1 {
		return Name{}, false
	}
	return Name{Grade: stem[:j], ID: stem[j+1:], Side: side, Ext: ext}, true
}

// Scan lists the complete pairs under dir. Files directly in dir and in
// its company subdirectories are considered. Incomplete pairs and files
// that do not follow the export naming scheme are ignored.
func Scan(store filestore.Store, dir string) ([]Pair, error) {
	entries, err := store.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read export directory: %w", err)
	}

	found := make(map[string]*Pair)
	collect := func(company string, names []string) {
		for _, n := range names {
			parsed, ok := ParseName(n)
			if !ok {
				slog.Debug("Ignoring file", "company", company, "name", n)
				continue
			}
			key := company + "\x00" + parsed.Grade + "\x00" + parsed.ID
			p, ok := found[key]
			if !ok {
				p = &Pair{Company: company, Grade: parsed.Grade, ID: parsed.ID}
				found[key] = p
			}
			rel := path.Join(company, n)
			if parsed.Side == locate.SideFront {
				p.Front = rel
			} else {
				p.Back = rel
			}
		}
	}

	var top []string
	for _, e := range entries {
		if !e.IsDir() {
			top = append(top, e.Name())
			continue
		}
		sub, err := store.ReadDir(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read company directory %s: %w", e.Name(), err)
		}
		var names []string
		for _, s := range sub {
			if !s.IsDir() {
				names = append(names, s.Name())
			}
		}
		collect(e.Name(), names)
	}
	collect("", top)

	pairs := make([]Pair, 0, len(found))
	for _, p := range found {
		if p.Front == "" || p.Back == "" {
			slog.Debug("Skipping incomplete pair", "company", p.Company, "id", p.ID, "front", p.Front, "back", p.Back)
			continue
		}
		pairs = append(pairs, *p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].ID != pairs[j].ID {
			return pairs[i].ID < pairs[j].ID
		}
		if pairs[i].Company != pairs[j].Company {
			return pairs[i].Company < pairs[j].Company
		}
		return pairs[i].Grade < pairs[j].Grade
	})
	return pairs, nil
}

// GradeEqual compares grades numerically when both parse as numbers, so
// "10" equals "10.0", and as trimmed text otherwise.
func GradeEqual(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		return fa == fb
	}
	return a == b
}

// FilterGrade keeps the pairs whose grade equals grade
func FilterGrade(pairs []Pair, grade string) []Pair {
	var out []Pair
	for _, p := range pairs {
		if GradeEqual(p.Grade, grade) {
			out = append(out, p)
		}
	}
	return out
}

// Regrade renames both images of pair to newGrade and rewrites the
// matching manifest entry when a manifest exists in dir. If the back image
// cannot be renamed, the front is moved back.
func Regrade(store filestore.Store, dir string, pair Pair, newGrade string) (Pair, error) {
	newGrade = strings.TrimSpace(newGrade)
	if newGrade == "" {
		return pair, errors.New("new grade must not be empty")
	}

	updated := pair
	updated.Grade = export.PathComponent(newGrade)
	updated.Front = renamed(pair.Front, updated.Grade, pair.ID, locate.SideFront)
	updated.Back = renamed(pair.Back, updated.Grade, pair.ID, locate.SideBack)
	if updated.Front == pair.Front && updated.Back == pair.Back {
		return pair, nil
	}

	abs := func(rel string) string { return filepath.Join(dir, filepath.FromSlash(rel)) }
	for _, dst := range []string{updated.Front, updated.Back} {
		if _, err := store.Stat(abs(dst)); err == nil {
			return pair, fmt.Errorf("failed to regrade %s: %s already exists", pair.ID, dst)
		}
	}

	if err := store.Rename(abs(pair.Front), abs(updated.Front)); err != nil {
		return pair, fmt.Errorf("failed to rename front image: %w", err)
	}
	if err := store.Rename(abs(pair.Back), abs(updated.Back)); err != nil {
		if rbErr := store.Rename(abs(updated.Front), abs(pair.Front)); rbErr != nil {
			slog.Error("Failed to restore front image", "path", pair.Front, "error", rbErr)
		}
		return pair, fmt.Errorf("failed to rename back image: %w", err)
	}

	if err := updateManifest(store, dir, pair, updated, newGrade); err != nil {
		return updated, err
	}

	slog.Info("Regraded pair", "id", pair.ID, "from", pair.Grade, "to", updated.Grade)
	return updated, nil
}

func renamed(rel, grade, id string, side locate.Side) string {
	dir, name := path.Split(rel)
	return dir + export.FileName(grade, id, side, path.Ext(name))
}

func updateManifest(store filestore.Store, dir string, before, after Pair, grade string) error {
	m, err := manifest.Load(store, dir)
	if errors.Is(err, filestore.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	changed := false
	for i, e := range m.Exported {
		if e.ID != before.ID || e.FrontPath != before.Front {
			continue
		}
		m.Exported[i].Grade = gradeScalar(grade)
		m.Exported[i].FrontPath = after.Front
		m.Exported[i].BackPath = after.Back
		changed = true
	}
	if !changed {
		return nil
	}

	data, err := manifest.Encode(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if _, err := store.WriteFile(filepath.Join(dir, manifest.FileName), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func gradeScalar(grade string) cards.Scalar {
	if _, err := strconv.ParseFloat(grade, 64); err == nil {
		return cards.Number(grade)
	}
	return cards.String(grade)
}
