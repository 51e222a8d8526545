package locate

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/lehigh-university-libraries/cardset/internal/cards"
	"github.com/lehigh-university-libraries/cardset/internal/filestore"
)

// Side tags an image by its position in the record's image list
type Side string

const (
	SideFront Side = "front"
	SideBack  Side = "back"
	SideExtra Side = "extra"
)

// SideForIndex maps an image position to its side. Only the first two
// positions carry meaning; any later image is an extra.
func SideForIndex(i int) Side {
	switch i {
	case 0:
		return SideFront
	case 1:
		return SideBack
	default:
		return SideExtra
	}
}

// ErrUnsupportedExtension is returned for images that are not JPEG or PNG
var ErrUnsupportedExtension = errors.New("unsupported image extension")

var supportedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// IsSupportedExtension reports whether ext (with leading dot) can be exported
func IsSupportedExtension(ext string) bool {
	return supportedExtensions[strings.ToLower(ext)]
}

// Image is a declared image path resolved to a readable file
type Image struct {
	RelPath string
	AbsPath string
	Ext     string // lower-cased, with leading dot
	Side    Side
	Size    int64
}

// NotFoundError reports an image that could not be resolved
type NotFoundError struct {
	RelPath string
	AbsPath string
	Side    Side
	Err     error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("image %s (%s) not usable at %s: %v", e.RelPath, e.Side, e.AbsPath, e.Err)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// Result holds either a resolved image or the reason it could not be resolved
type Result struct {
	Image Image
	Err   *NotFoundError
}

// OK reports whether the image resolved
func (r Result) OK() bool {
	return r.Err == nil
}

// Locator resolves record image paths against a base directory
type Locator struct {
	Store   filestore.Store
	BaseDir string
}

// New creates a locator rooted at baseDir
func New(store filestore.Store, baseDir string) *Locator {
	return &Locator{Store: store, BaseDir: baseDir}
}

// Locate resolves every declared image of the record, in order. A failure
// for one image does not stop resolution of the others.
func (l *Locator) Locate(record cards.Record) []Result {
	results := make([]Result, 0, len(record.Images))
	for i, rel := range record.Images {
		results = append(results, l.resolve(rel, SideForIndex(i)))
	}
	return results
}

func (l *Locator) resolve(rel string, side Side) Result {
	abs := filepath.Join(l.BaseDir, filepath.FromSlash(rel))
	fail := func(err error) Result {
		return Result{Err: &NotFoundError{RelPath: rel, AbsPath: abs, Side: side, Err: err}}
	}

	ext := strings.ToLower(filepath.Ext(abs))
	if !IsSupportedExtension(ext) {
		return fail(fmt.Errorf("%w: %q", ErrUnsupportedExtension, filepath.Ext(abs)))
	}

	info, err := l.Store.Stat(abs)
	if err != nil {
		return fail(err)
	}
	if info.IsDir() {
		return fail(errors.New("path is a directory"))
	}

	f, err := l.Store.Open(abs)
	if err != nil {
		return fail(err)
	}
	_ = f.Close()

	return Result{Image: Image{
		RelPath: rel,
		AbsPath: abs,
		Ext:     ext,
		Side:    side,
		Size:    info.Size(),
	}}
}

// Resolved returns the resolved images and the first failure, if any
func Resolved(results []Result) ([]Image, *NotFoundError) {
	images := make([]Image, 0, len(results))
	for _, r := range results {
		if !r.OK() {
			return nil, r.Err
		}
		images = append(images, r.Image)
	}
	return images, nil
}
