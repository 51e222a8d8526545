// Package pipeline drives the validate, identify, locate and export steps
// over a batch of card records and records one terminal outcome per record.
package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/lehigh-university-libraries/cardset/internal/cards"
	"github.com/lehigh-university-libraries/cardset/internal/export"
	"github.com/lehigh-university-libraries/cardset/internal/filestore"
	"github.com/lehigh-university-libraries/cardset/internal/ident"
	"github.com/lehigh-university-libraries/cardset/internal/locate"
	"github.com/lehigh-university-libraries/cardset/internal/manifest"
	"github.com/lehigh-university-libraries/cardset/internal/validate"
)

// Status is the terminal state of a record
type Status string

const (
	StatusRejected     Status = "rejected"
	StatusImageMissing Status = "image_missing"
	StatusExported     Status = "exported"
	StatusFailed       Status = "failed"
)

// Outcome is what happened to one record
type Outcome struct {
	Index  int
	Label  string
	Status Status
	ID     string

	// Reason is set for rejected records
	Reason validate.Reason
	// Verdict carries validation detail such as the actual image count
	Verdict validate.Verdict
	// Err is set for missing images and failed exports
	Err error

	Files [2]export.File
}

// Result is the aggregate of a run
type Result struct {
	Outcomes    []Outcome
	Stats       manifest.Stats
	BytesCopied int64
}

// Options tunes a pipeline run
type Options struct {
	ImagesDir string
	OutputDir string

	// ExcludedListingIDs are skipped as if they failed validation
	ExcludedListingIDs []string
	// Incremental persists the manifest after every record
	Incremental bool
	// Parquet also writes dataset_metadata.parquet
	Parquet bool
}

// Pipeline composes the export steps. Not safe for concurrent use.
type Pipeline struct {
	store     filestore.Store
	validator *validate.Validator
	locator   *locate.Locator
	exporter  *export.Exporter
	opts      Options
	logger    *slog.Logger
}

// New creates a pipeline writing through store
func New(store filestore.Store, opts Options, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:     store,
		validator: validate.New(opts.ExcludedListingIDs),
		locator:   locate.New(store, opts.ImagesDir),
		exporter:  export.New(store),
		opts:      opts,
		logger:    logger,
	}
}

// Run processes every record in order and writes the manifest. It returns
// an error only when the manifest cannot be persisted or ctx is cancelled;
// in the latter case the manifest of the records processed so far is
// still written.
func (p *Pipeline) Run(ctx context.Context, records []cards.Record) (*Result, error) {
	writer := manifest.NewWriter(p.store, p.opts.OutputDir, manifest.Options{Parquet: p.opts.Parquet})
	ids := ident.NewRegistry()
	result := &Result{Outcomes: make([]Outcome, 0, len(records))}

	p.logger.Info("Starting export", "records", len(records), "images", p.opts.ImagesDir, "output", p.opts.OutputDir)

	var runErr error
	for i, record := range records {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("Export interrupted", "processed", i, "total", len(records))
			runErr = err
			break
		}

		outcome := p.process(i, record, ids)
		result.add(outcome)
		if outcome.Status == StatusExported {
			writer.Add(manifest.NewEntry(record, outcome.ID, outcome.Files))
		}
		p.logOutcome(outcome, len(records))

		if p.opts.Incremental {
			if err := writer.Save(result.Stats); err != nil {
				return result, err
			}
		}
	}

	if err := writer.Save(result.Stats); err != nil {
		return result, err
	}

	p.logger.Info("Export complete",
		"considered", result.Stats.Considered,
		"exported", result.Stats.Exported,
		"skipped_invalid", result.Stats.SkippedInvalid,
		"skipped_missing_images", result.Stats.SkippedMissingImages,
		"failed", result.Stats.Failed,
		"manifest", writer.Path())

	return result, runErr
}

// process moves one record from pending to its terminal state
func (p *Pipeline) process(index int, record cards.Record, ids *ident.Registry) Outcome {
	outcome := Outcome{Index: index, Label: record.Label()}

	verdict := p.validator.Validate(record)
	outcome.Verdict = verdict
	if !verdict.Eligible {
		outcome.Status = StatusRejected
		outcome.Reason = verdict.Reason
		return outcome
	}

	images, notFound := locate.Resolved(p.locator.Locate(record))
	if notFound != nil {
		outcome.Status = StatusImageMissing
		outcome.Err = notFound
		return outcome
	}

	// Only records whose images resolved take part in collision widening
	outcome.ID = ids.Assign(record)

	files, err := p.exporter.Export(record, images, record.GetGrade(), record.GetCompany(), outcome.ID, p.opts.OutputDir)
	if err != nil {
		outcome.Status = StatusFailed
		outcome.Err = err
		return outcome
	}

	outcome.Status = StatusExported
	outcome.Files = files
	return outcome
}

func (r *Result) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	r.Stats.Considered++
	switch o.Status {
	case StatusRejected:
		r.Stats.SkippedInvalid++
	case StatusImageMissing:
		r.Stats.SkippedMissingImages++
	case StatusFailed:
		r.Stats.Failed++
	case StatusExported:
		r.Stats.Exported++
		r.BytesCopied += o.Files[0].Size + o.Files[1].Size
	}
}

func (p *Pipeline) logOutcome(o Outcome, total int) {
	progress := slog.Group("progress", "index", o.Index+1, "total", total)
	switch o.Status {
	case StatusExported:
		p.logger.Info("Exported", progress, "listing", o.Label, "id", o.ID, "front", o.Files[0].RelPath, "back", o.Files[1].RelPath)
	case StatusRejected:
		p.logger.Info("Skipped", progress, "listing", o.Label, "reason", o.Verdict.String())
	case StatusImageMissing:
		var nf *locate.NotFoundError
		if errors.As(o.Err, &nf) {
			p.logger.Warn("Skipped, image missing", progress, "listing", o.Label, "side", nf.Side, "path", nf.AbsPath, "error", nf.Err)
			return
		}
		p.logger.Warn("Skipped, image missing", progress, "listing", o.Label, "error", o.Err)
	case StatusFailed:
		p.logger.Error("Export failed", progress, "listing", o.Label, "id", o.ID, "error", o.Err)
	}
}

// ErrorText renders an outcome's error for reports, or "" when there is none
func (o Outcome) ErrorText() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// ReasonText is the machine-readable reason code for non-exported outcomes
func (o Outcome) ReasonText() string {
	switch o.Status {
	case StatusRejected:
		return string(o.Reason)
	case StatusImageMissing:
		return "IMAGE_NOT_FOUND"
	case StatusFailed:
		return "EXPORT_IO"
	default:
		return ""
	}
}
