package runlog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lehigh-university-libraries/cardset/internal/manifest"
	"github.com/lehigh-university-libraries/cardset/internal/pipeline"
)

// Meta describes the run the log belongs to
type Meta struct {
	RunID     string `yaml:"runid"`
	Input     string `yaml:"input"`
	ImagesDir string `yaml:"imagesdir"`
	OutputDir string `yaml:"outputdir"`
	Timestamp string `yaml:"timestamp"`
}

// Entry is one record's outcome
type Entry struct {
	Index     int    `yaml:"index"`
	ListingID string `yaml:"listingid,omitempty"`
	Label     string `yaml:"label"`
	ID        string `yaml:"id,omitempty"`
	Status    string `yaml:"status"`
	Reason    string `yaml:"reason,omitempty"`
	Detail    string `yaml:"detail,omitempty"`
	Error     string `yaml:"error,omitempty"`
	Front     string `yaml:"front,omitempty"`
	Back      string `yaml:"back,omitempty"`
}

// Log is the document written to disk
type Log struct {
	Run     Meta           `yaml:"run"`
	Stats   manifest.Stats `yaml:"stats"`
	Records []Entry        `yaml:"records"`
}

// Build converts a pipeline result into a run log
func Build(meta Meta, result *pipeline.Result, listingIDs []string) *Log {
	if meta.Timestamp == "" {
		meta.Timestamp = time.Now().Format(time.RFC3339)
	}

	log := &Log{
		Run:     meta,
		Stats:   result.Stats,
		Records: make([]Entry, 0, len(result.Outcomes)),
	}
	for _, o := range result.Outcomes {
		entry := Entry{
			Index:  o.Index,
			Label:  o.Label,
			ID:     o.ID,
			Status: string(o.Status),
			Reason: o.ReasonText(),
			Error:  o.ErrorText(),
		}
		if o.Index < len(listingIDs) {
			entry.ListingID = listingIDs[o.Index]
		}
		if o.Status == pipeline.StatusRejected {
			entry.Detail = o.Verdict.String()
		}
		if o.Status == pipeline.StatusExported {
			entry.Front = o.Files[0].RelPath
			entry.Back = o.Files[1].RelPath
		}
		log.Records = append(log.Records, entry)
	}
	return log
}

// Save writes the run log as YAML to path. The log sits outside the
// export tree because it carries a timestamp.
func Save(path string, meta Meta, result *pipeline.Result, listingIDs []string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create run log directory: %w", err)
		}
	}

	data, err := yaml.Marshal(Build(meta, result, listingIDs))
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write run log: %w", err)
	}

	slog.Info("Run log saved", "path", path, "records", len(result.Outcomes))
	return nil
}

// Load reads a run log back
func Load(path string) (*Log, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run log: %w", err)
	}
	var log Log
	if err := yaml.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("failed to parse run log: %w", err)
	}
	return &log, nil
}
