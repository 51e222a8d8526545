package cards

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// parquetRecord is the on-disk row layout for Parquet listing exports.
// Loosely typed columns are stored as optional strings.
type parquetRecord struct {
	Title          string   `parquet:"title,optional"`
	CardName       string   `parquet:"card_name,optional"`
	GradingCompany string   `parquet:"grading_company,optional"`
	Grade          *string  `parquet:"grade,optional"`
	Price          *string  `parquet:"price,optional"`
	ListingURL     string   `parquet:"listing_url,optional"`
	ListingID      *string  `parquet:"listing_id,optional"`
	Images         []string `parquet:"images,list"`
}

func (p parquetRecord) toRecord() Record {
	opt := func(v *string) Scalar {
		if v == nil {
			return Scalar{}
		}
		return String(*v)
	}
	return Record{
		Title:          p.Title,
		CardName:       p.CardName,
		GradingCompany: p.GradingCompany,
		Grade:          opt(p.Grade),
		Price:          opt(p.Price),
		ListingURL:     p.ListingURL,
		ListingID:      opt(p.ListingID),
		Images:         append([]string(nil), p.Images...),
	}
}

// Loader reads card records from a listings file
type Loader struct {
	path string
}

// NewLoader creates a new loader for the given file
func NewLoader(path string) *Loader {
	return &Loader{
		path: path,
	}
}

// Load loads every record from a JSON, JSONL or Parquet file
func (l *Loader) Load() ([]Record, error) {
	return l.LoadSample(-1)
}

// LoadSample loads at most limit records; a negative limit loads everything
func (l *Loader) LoadSample(limit int) ([]Record, error) {
	ext := strings.ToLower(filepath.Ext(l.path))

	var (
		records []Record
		err     error
	)
	switch ext {
	case ".json":
		records, err = l.loadJSON()
	case ".jsonl":
		records, err = l.loadJSONL(limit)
	case ".parquet":
		records, err = l.loadParquet(limit)
	default:
		return nil, fmt.Errorf("unsupported file format: %s (supported: .json, .jsonl, .parquet)", ext)
	}
	if err != nil {
		return nil, err
	}

	if limit >= 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// loadJSON accepts either a single record object or an array of them
func (l *Loader) loadJSON() ([]Record, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open listings file: %w", err)
	}

	records, err := DecodeJSON(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", l.path, err)
	}

	slog.Debug("Loaded JSON listings", "path", l.path, "records", len(records))
	return records, nil
}

// DecodeJSON decodes a JSON document holding one record or an array of records
func DecodeJSON(data []byte) ([]Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty document")
	}

	if trimmed[0] == '{' {
		var record Record
		if err := json.Unmarshal(trimmed, &record); err != nil {
			return nil, err
		}
		return []Record{record}, nil
	}

	var records []Record
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (l *Loader) loadJSONL(limit int) ([]Record, error) {
	file, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open listings file: %w", err)
	}
	defer file.Close()

	var records []Record
	scanner := bufio.NewScanner(file)

	// Scraped titles can be long; allow 1MB per line
	const maxCapacity = 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxCapacity)

	lineNum := 0
	for scanner.Scan() {
		if limit >= 0 && len(records) >= limit {
			break
		}
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var record Record
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", lineNum, err)
		}
		records = append(records, record)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading listings: %w", err)
	}

	slog.Debug("Loaded JSONL listings", "path", l.path, "records", len(records), "lines", lineNum)
	return records, nil
}

func (l *Loader) loadParquet(limit int) ([]Record, error) {
	file, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	slog.Debug("Parquet file opened", "path", l.path, "num_rows", pf.NumRows())

	reader := parquet.NewGenericReader[parquetRecord](pf)
	defer reader.Close()

	var records []Record
	rows := make([]parquetRecord, 128)

	for limit < 0 || len(records) < limit {
		n, err := reader.Read(rows)
		for _, row := range rows[:n] {
			records = append(records, row.toRecord())
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}

	return records, nil
}
