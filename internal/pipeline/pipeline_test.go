package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lehigh-university-libraries/cardset/internal/cards"
	"github.com/lehigh-university-libraries/cardset/internal/filestore"
	"github.com/lehigh-university-libraries/cardset/internal/ident"
	"github.com/lehigh-university-libraries/cardset/internal/manifest"
	"github.com/lehigh-university-libraries/cardset/internal/validate"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func options() Options {
	return Options{ImagesDir: "images", OutputDir: "out"}
}

func card(listingID, company string, grade cards.Scalar, images ...string) cards.Record {
	return cards.Record{
		Title:          "Card " + listingID,
		GradingCompany: company,
		Grade:          grade,
		ListingID:      cards.String(listingID),
		Images:         images,
	}
}

func putImages(store *filestore.Memory, paths ...string) {
	for _, p := range paths {
		store.Put(filepath.Join("images", filepath.FromSlash(p)), []byte("bytes of "+p))
	}
}

func TestRunSingleEligibleRecord(t *testing.T) {
	store := filestore.NewMemory()
	putImages(store, "a/1.jpg", "a/2.jpg")
	record := card("123", "PSA", cards.Number("10"), "a/1.jpg", "a/2.jpg")

	result, err := New(store, options(), quietLogger).Run(context.Background(), []cards.Record{record})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	id := ident.Generate(record)
	outcome := result.Outcomes[0]
	if outcome.Status != StatusExported || outcome.ID != id {
		t.Fatalf("Expected exported with id %s, got %+v", id, outcome)
	}

	for side, src := range map[string]string{"front": "a/1.jpg", "back": "a/2.jpg"} {
		dst := filepath.Join("out", "PSA", "10_"+id+"_"+side+".jpg")
		data, err := store.ReadFile(dst)
		if err != nil {
			t.Fatalf("Expected %s: %v", dst, err)
		}
		if string(data) != "bytes of "+src {
			t.Errorf("Expected %s to copy %s, got %q", dst, src, string(data))
		}
	}

	m, err := manifest.Load(store, "out")
	if err != nil {
		t.Fatalf("Load manifest failed: %v", err)
	}
	if len(m.Exported) != 1 || m.Exported[0].FrontPath != "PSA/10_"+id+"_front.jpg" {
		t.Errorf("Unexpected manifest entries: %+v", m.Exported)
	}
}

func TestRunOneImageMissing(t *testing.T) {
	store := filestore.NewMemory()
	putImages(store, "a/1.jpg")
	record := card("123", "PSA", cards.Number("10"), "a/1.jpg", "a/2.jpg")

	result, err := New(store, options(), quietLogger).Run(context.Background(), []cards.Record{record})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	outcome := result.Outcomes[0]
	if outcome.Status != StatusImageMissing {
		t.Fatalf("Expected image_missing, got %s", outcome.Status)
	}
	if !errors.Is(outcome.Err, fs.ErrNotExist) {
		t.Errorf("Expected wrapped ErrNotExist, got %v", outcome.Err)
	}
	if outcome.ReasonText() != "IMAGE_NOT_FOUND" {
		t.Errorf("Unexpected reason text %s", outcome.ReasonText())
	}
	if store.HasDir(filepath.Join("out", "PSA")) {
		t.Error("Expected no company directory for a record with a missing image")
	}
	if result.Stats.SkippedMissingImages != 1 || result.Stats.Exported != 0 {
		t.Errorf("Unexpected stats: %+v", result.Stats)
	}
}

// statCounter records whether the locator touched the filesystem
type statCounter struct {
	*filestore.Memory
	stats int
}

func (s *statCounter) Stat(name string) (fs.FileInfo, error) {
	s.stats++
	return s.Memory.Stat(name)
}

func TestRunMissingCompanyNeverLocates(t *testing.T) {
	mem := filestore.NewMemory()
	putImages(mem, "a/1.jpg", "a/2.jpg")
	store := &statCounter{Memory: mem}
	record := card("123", "", cards.Number("10"), "a/1.jpg", "a/2.jpg")

	result, err := New(store, options(), quietLogger).Run(context.Background(), []cards.Record{record})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	outcome := result.Outcomes[0]
	if outcome.Status != StatusRejected || outcome.Reason != validate.ReasonMissingGradingCompany {
		t.Errorf("Expected MISSING_GRADING_COMPANY rejection, got %+v", outcome)
	}
	if store.stats != 0 {
		t.Errorf("Expected locator not to be consulted, saw %d stat calls", store.stats)
	}
}

func TestRunMixedBatch(t *testing.T) {
	store := filestore.NewMemory()
	putImages(store, "a/1.jpg", "a/2.jpg", "b/1.png", "b/2.png", "d/2.jpg", "e/1.jpg", "e/2.jpg")

	ioFailure := card("5", "PSA", cards.Number("7"), "e/1.jpg", "e/2.jpg")
	store.FailWrites(filepath.Join("out", "PSA", "7_"+ident.Generate(ioFailure)+"_front.jpg"), errors.New("disk full"))

	records := []cards.Record{
		card("1", "PSA", cards.Number("10"), "a/1.jpg", "a/2.jpg"),
		card("2", "BGS", cards.String("9.5"), "b/1.png", "b/2.png"),
		card("3", "", cards.Number("8"), "c/1.jpg", "c/2.jpg"),
		card("4", "CGC", cards.Number("8"), "d/1.jpg", "d/2.jpg"),
		ioFailure,
	}

	result, err := New(store, options(), quietLogger).Run(context.Background(), records)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	expected := manifest.Stats{Considered: 5, Exported: 2, SkippedInvalid: 1, SkippedMissingImages: 1, Failed: 1}
	if result.Stats != expected {
		t.Errorf("Expected stats %+v, got %+v", expected, result.Stats)
	}

	statuses := []Status{StatusExported, StatusExported, StatusRejected, StatusImageMissing, StatusFailed}
	for i, want := range statuses {
		if result.Outcomes[i].Status != want {
			t.Errorf("Record %d: expected %s, got %s", i, want, result.Outcomes[i].Status)
		}
		if result.Outcomes[i].Index != i {
			t.Errorf("Record %d: outcome out of order (index %d)", i, result.Outcomes[i].Index)
		}
	}

	m, err := manifest.Load(store, "out")
	if err != nil {
		t.Fatalf("Load manifest failed: %v", err)
	}
	if len(m.Exported) != 2 {
		t.Fatalf("Expected 2 manifest entries, got %d", len(m.Exported))
	}
	if m.Exported[0].ListingID.String() != "1" || m.Exported[1].ListingID.String() != "2" {
		t.Errorf("Expected entries in input order, got %s then %s", m.Exported[0].ListingID, m.Exported[1].ListingID)
	}
	if m.Stats != expected {
		t.Errorf("Expected manifest stats %+v, got %+v", expected, m.Stats)
	}
}

func TestRunAllFailStillWritesManifest(t *testing.T) {
	store := filestore.NewMemory()
	records := []cards.Record{
		card("1", "PSA", cards.Scalar{}, "a.jpg", "b.jpg"),
		card("2", "PSA", cards.Number("9")),
	}

	result, err := New(store, options(), quietLogger).Run(context.Background(), records)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Stats.SkippedInvalid != 2 {
		t.Errorf("Expected 2 invalid, got %+v", result.Stats)
	}
	if result.Outcomes[1].Reason != validate.ReasonWrongImageCount || result.Outcomes[1].Verdict.ImageCount != 0 {
		t.Errorf("Expected WRONG_IMAGE_COUNT with count 0, got %+v", result.Outcomes[1])
	}

	m, err := manifest.Load(store, "out")
	if err != nil {
		t.Fatalf("Expected manifest even when nothing exported: %v", err)
	}
	if len(m.Exported) != 0 || m.Stats.Considered != 2 {
		t.Errorf("Unexpected manifest: %+v", m)
	}
}

func TestRunExcluded(t *testing.T) {
	store := filestore.NewMemory()
	putImages(store, "a/1.jpg", "a/2.jpg")
	opts := options()
	opts.ExcludedListingIDs = []string{"123"}

	result, err := New(store, opts, quietLogger).Run(context.Background(), []cards.Record{
		card("123", "PSA", cards.Number("10"), "a/1.jpg", "a/2.jpg"),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Outcomes[0].Reason != validate.ReasonExcluded || result.Stats.SkippedInvalid != 1 {
		t.Errorf("Expected excluded record, got %+v", result.Outcomes[0])
	}
}

func TestRunIsIdempotent(t *testing.T) {
	store := filestore.NewMemory()
	putImages(store, "a/1.jpg", "a/2.jpg", "b/1.png", "b/2.png")
	records := []cards.Record{
		card("1", "PSA", cards.Number("10"), "a/1.jpg", "a/2.jpg"),
		card("2", "BGS", cards.String("9.5"), "b/1.png", "b/2.png"),
	}

	snapshot := func() map[string][]byte {
		files := make(map[string][]byte)
		for _, name := range store.Files() {
			data, _ := store.ReadFile(name)
			files[name] = data
		}
		return files
	}

	if _, err := New(store, options(), quietLogger).Run(context.Background(), records); err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	first := snapshot()

	if _, err := New(store, options(), quietLogger).Run(context.Background(), records); err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	second := snapshot()

	if len(first) != len(second) {
		t.Fatalf("Expected same file set, got %d then %d files", len(first), len(second))
	}
	for name, data := range first {
		if !bytes.Equal(data, second[name]) {
			t.Errorf("File %s changed between runs", name)
		}
	}
}

func TestRunOnDiskIsIdempotent(t *testing.T) {
	imagesDir := t.TempDir()
	outDir := t.TempDir()
	for _, rel := range []string{"a/1.jpg", "a/2.jpg"} {
		path := filepath.Join(imagesDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("MkdirAll failed: %v", err)
		}
		if err := os.WriteFile(path, []byte("jpeg "+rel), 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}

	opts := Options{ImagesDir: imagesDir, OutputDir: outDir}
	records := []cards.Record{card("123", "PSA", cards.Number("10"), "a/1.jpg", "a/2.jpg")}

	var manifests [][]byte
	for run := 0; run < 2; run++ {
		if _, err := New(filestore.NewOS(), opts, quietLogger).Run(context.Background(), records); err != nil {
			t.Fatalf("Run %d failed: %v", run, err)
		}
		data, err := os.ReadFile(filepath.Join(outDir, manifest.FileName))
		if err != nil {
			t.Fatalf("Manifest missing after run %d: %v", run, err)
		}
		manifests = append(manifests, data)
	}

	if !bytes.Equal(manifests[0], manifests[1]) {
		t.Errorf("Expected identical manifests:\n%s\n---\n%s", manifests[0], manifests[1])
	}

	entries, err := os.ReadDir(filepath.Join(outDir, "PSA"))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("Expected 2 exported files, got %d", len(entries))
	}
}

func TestRunCancelled(t *testing.T) {
	store := filestore.NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := New(store, options(), quietLogger).Run(ctx, []cards.Record{card("1", "PSA", cards.Number("10"), "a.jpg", "b.jpg")})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if len(result.Outcomes) != 0 {
		t.Errorf("Expected no outcomes, got %d", len(result.Outcomes))
	}
	if _, err := manifest.Load(store, "out"); err != nil {
		t.Errorf("Expected manifest to be written on cancellation: %v", err)
	}
}

func TestRunIncrementalManifestFailure(t *testing.T) {
	store := filestore.NewMemory()
	store.FailWrites(filepath.Join("out", manifest.FileName), errors.New("read-only"))
	opts := options()
	opts.Incremental = true

	result, err := New(store, opts, quietLogger).Run(context.Background(), []cards.Record{
		card("1", "", cards.Number("10")),
		card("2", "", cards.Number("10")),
	})
	if err == nil {
		t.Fatal("Expected manifest error, got nil")
	}
	if len(result.Outcomes) != 1 {
		t.Errorf("Expected run to stop after first manifest failure, got %d outcomes", len(result.Outcomes))
	}
}

func TestBytesCopied(t *testing.T) {
	store := filestore.NewMemory()
	putImages(store, "a/1.jpg", "a/2.jpg")

	result, err := New(store, options(), quietLogger).Run(context.Background(), []cards.Record{
		card("1", "PSA", cards.Number("10"), "a/1.jpg", "a/2.jpg"),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	want := int64(len("bytes of a/1.jpg") + len("bytes of a/2.jpg"))
	if result.BytesCopied != want {
		t.Errorf("Expected %d bytes copied, got %d", want, result.BytesCopied)
	}
}

func TestRunFailedRerunRemovesStalePair(t *testing.T) {
	store := filestore.NewMemory()
	putImages(store, "a/1.jpg", "a/2.jpg")
	record := card("123", "PSA", cards.Number("10"), "a/1.jpg", "a/2.jpg")

	if _, err := New(store, options(), quietLogger).Run(context.Background(), []cards.Record{record}); err != nil {
		t.Fatalf("First run failed: %v", err)
	}

	back := filepath.Join("out", "PSA", "10_"+ident.Generate(record)+"_back.jpg")
	store.FailWrites(back, errors.New("disk full"))

	result, err := New(store, options(), quietLogger).Run(context.Background(), []cards.Record{record})
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if result.Outcomes[0].Status != StatusFailed {
		t.Fatalf("Expected failed outcome, got %s", result.Outcomes[0].Status)
	}

	for _, name := range store.Files() {
		if strings.HasPrefix(name, filepath.Join("out", "PSA")+string(filepath.Separator)) {
			t.Errorf("Expected no exported files left for the failed record, found %s", name)
		}
	}

	m, err := manifest.Load(store, "out")
	if err != nil {
		t.Fatalf("Load manifest failed: %v", err)
	}
	if len(m.Exported) != 0 {
		t.Errorf("Expected empty manifest, got %d entries", len(m.Exported))
	}
}

func TestRunImageMissingDoesNotReserveID(t *testing.T) {
	// Find two listing ids whose short identifiers collide
	seen := make(map[string]string)
	var missingID, exportedID string
	for i := 0; i < 1<<22; i++ {
		listing := fmt.Sprintf("%d", i)
		short := ident.Generate(cards.Record{ListingID: cards.String(listing)})
		if prev, ok := seen[short]; ok {
			missingID, exportedID = prev, listing
			break
		}
		seen[short] = listing
	}
	if missingID == "" {
		t.Skip("no 8 character collision found in search space")
	}

	store := filestore.NewMemory()
	putImages(store, "b/1.jpg", "b/2.jpg")
	records := []cards.Record{
		card(missingID, "PSA", cards.Number("10"), "a/1.jpg", "a/2.jpg"),
		card(exportedID, "PSA", cards.Number("9"), "b/1.jpg", "b/2.jpg"),
	}

	result, err := New(store, options(), quietLogger).Run(context.Background(), records)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Outcomes[0].Status != StatusImageMissing || result.Outcomes[0].ID != "" {
		t.Errorf("Expected image_missing without an id, got %+v", result.Outcomes[0])
	}
	want := ident.Generate(records[1])
	if result.Outcomes[1].ID != want {
		t.Errorf("Expected unwidened id %s, got %s", want, result.Outcomes[1].ID)
	}
}
