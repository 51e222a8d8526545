package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/lehigh-university-libraries/cardset/internal/cards"
	"github.com/lehigh-university-libraries/cardset/internal/export"
	"github.com/lehigh-university-libraries/cardset/internal/filestore"
)

const (
	// FileName is the manifest written at the root of the output directory
	FileName = "dataset_metadata.json"

	// ParquetFileName is the optional Parquet copy of the manifest entries
	ParquetFileName = "dataset_metadata.parquet"
)

// Entry describes one exported card
type Entry struct {
	Title          string       `json:"title"`
	CardName       string       `json:"card_name"`
	GradingCompany string       `json:"grading_company"`
	Grade          cards.Scalar `json:"grade"`
	Price          cards.Scalar `json:"price"`
	ListingURL     string       `json:"listing_url"`
	ListingID      cards.Scalar `json:"listing_id"`
	ID             string       `json:"id"`
	FrontPath      string       `json:"front_path"`
	BackPath       string       `json:"back_path"`
}

// Stats are the run-level counters
type Stats struct {
	Considered           int `json:"considered"`
	Exported             int `json:"exported"`
	SkippedInvalid       int `json:"skipped_invalid"`
	SkippedMissingImages int `json:"skipped_missing_images"`
	Failed               int `json:"failed"`
}

// Manifest is the document persisted at the end of a run
type Manifest struct {
	Exported []Entry `json:"exported"`
	Stats    Stats   `json:"stats"`
}

// NewEntry builds the manifest entry for an exported record
func NewEntry(record cards.Record, id string, files [2]export.File) Entry {
	return Entry{
		Title:          record.Title,
		CardName:       record.CardName,
		GradingCompany: record.GradingCompany,
		Grade:          record.Grade,
		Price:          record.Price,
		ListingURL:     record.ListingURL,
		ListingID:      record.ListingID,
		ID:             id,
		FrontPath:      files[0].RelPath,
		BackPath:       files[1].RelPath,
	}
}

// Options controls which documents the writer produces
type Options struct {
	Parquet bool
}

// Writer accumulates entries in processing order and persists them
type Writer struct {
	store   filestore.Store
	dir     string
	opts    Options
	entries []Entry
}

// NewWriter creates a writer for the manifest in outputDir
func NewWriter(store filestore.Store, outputDir string, opts Options) *Writer {
	return &Writer{
		store:   store,
		dir:     outputDir,
		opts:    opts,
		entries: make([]Entry, 0),
	}
}

// Add appends an entry
func (w *Writer) Add(entry Entry) {
	w.entries = append(w.entries, entry)
}

// Entries returns the accumulated entries
func (w *Writer) Entries() []Entry {
	return w.entries
}

// Path returns the manifest location
func (w *Writer) Path() string {
	return filepath.Join(w.dir, FileName)
}

// Save renders the whole manifest in memory and atomically replaces any
// previous manifest in the output directory.
func (w *Writer) Save(stats Stats) error {
	if err := w.store.MkdirAll(w.dir); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := Encode(&Manifest{Exported: w.entries, Stats: stats})
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if _, err := w.store.WriteFile(w.Path(), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	if w.opts.Parquet {
		if err := w.saveParquet(); err != nil {
			return err
		}
	}
	return nil
}

// Encode renders a manifest as indented JSON with a trailing newline
func Encode(m *Manifest) ([]byte, error) {
	if m.Exported == nil {
		m.Exported = []Entry{}
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Load reads the manifest stored in outputDir
func Load(store filestore.Store, outputDir string) (*Manifest, error) {
	path := filepath.Join(outputDir, FileName)
	data, err := store.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", path, err)
	}
	return &m, nil
}

// parquetEntry is the row layout of dataset_metadata.parquet
type parquetEntry struct {
	ID             string  `parquet:"id"`
	Title          string  `parquet:"title"`
	CardName       string  `parquet:"card_name"`
	GradingCompany string  `parquet:"grading_company"`
	Grade          string  `parquet:"grade"`
	Price          *string `parquet:"price,optional"`
	ListingURL     string  `parquet:"listing_url"`
	ListingID      *string `parquet:"listing_id,optional"`
	FrontPath      string  `parquet:"front_path"`
	BackPath       string  `parquet:"back_path"`
}

func optional(s cards.Scalar) *string {
	if !s.IsSet() {
		return nil
	}
	v := s.String()
	return &v
}

func (w *Writer) saveParquet() error {
	rows := make([]parquetEntry, 0, len(w.entries))
	for _, e := range w.entries {
		rows = append(rows, parquetEntry{
			ID:             e.ID,
			Title:          e.Title,
			CardName:       e.CardName,
			GradingCompany: e.GradingCompany,
			Grade:          e.Grade.String(),
			Price:          optional(e.Price),
			ListingURL:     e.ListingURL,
			ListingID:      optional(e.ListingID),
			FrontPath:      e.FrontPath,
			BackPath:       e.BackPath,
		})
	}

	var buf bytes.Buffer
	if err := parquet.Write(&buf, rows); err != nil {
		return fmt.Errorf("failed to encode parquet manifest: %w", err)
	}

	path := filepath.Join(w.dir, ParquetFileName)
	if _, err := w.store.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("failed to write parquet manifest: %w", err)
	}
	return nil
}
