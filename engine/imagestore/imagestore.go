// Package imagestore keeps reference photos of modules and keys on disk,
// keyed by vehicle and image type. Uploaded images are normalised to an
// RGB JPEG no larger than MaxWidth x MaxHeight.
package imagestore

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	// Registered decoders for Save.
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"github.com/google/uuid"

	"github.com/WessleyAI/keyintel/engine/domain"
)

const (
	MaxWidth    = 800
	MaxHeight   = 800
	JPEGQuality = 85
)

// Extensions are probed by Find in this order.
var Extensions = []string{".jpg", ".jpeg", ".png", ".gif"}

var (
	ErrInvalidKey = errors.New("invalid image key")
	ErrDecode     = errors.New("unsupported or corrupt image")
)

// Store finds and saves reference images by key.
type Store interface {
	Find(key string) (string, bool)
	Save(key string, r io.Reader) (string, error)
}

var keyReplacer = strings.NewReplacer(" ", "_", "/", "-")

// Key derives the storage key for a vehicle image.
func Key(make_ domain.Make, model, yearRange string, t domain.ImageType) string {
	base := keyReplacer.Replace(fmt.Sprintf("%s_%s_%s", make_, model, yearRange))
	return base + "_" + strings.ToLower(string(t))
}

// KeyFor derives the key for a selection. yearRange is the matched bucket
// range; when it is empty the selection's year stands in for it.
func KeyFor(sel domain.Selection, yearRange string, t domain.ImageType) string {
	if yearRange == "" {
		yearRange = strconv.Itoa(sel.Year)
	}
	return Key(sel.Make, sel.Model, yearRange, t)
}

// Dir is a Store backed by a flat directory.
type Dir struct {
	root string
	log  *slog.Logger
}

var _ Store = (*Dir)(nil)

// NewDir returns a store rooted at root. The directory is created on the
// first Save.
func NewDir(root string, log *slog.Logger) *Dir {
	if log == nil {
		log = slog.Default()
	}
	return &Dir{root: root, log: log}
}

// Root returns the directory the store reads and writes.
func (d *Dir) Root() string { return d.root }

func validKey(key string) bool {
	return key != "" && key != "." && key != ".." &&
		!strings.ContainsAny(key, `/\`) && filepath.Base(key) == key
}

// Find returns the path of the first existing file for key.
func (d *Dir) Find(key string) (string, bool) {
	if !validKey(key) {
		return "", false
	}
	for _, ext := range Extensions {
		p := filepath.Join(d.root, key+ext)
		if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
			return p, true
		}
	}
	return "", false
}

// Save decodes r, normalises it and writes {key}.jpg atomically. It returns
// the written path.
func (d *Dir) Save(key string, r io.Reader) (string, error) {
	if !validKey(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	src, format, err := image.Decode(r)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecode, err)
	}
	img := Normalize(src)

	if err := os.MkdirAll(d.root, 0o755); err != nil {
		return "", fmt.Errorf("create image dir: %w", err)
	}
	dst := filepath.Join(d.root, key+".jpg")
	tmp := filepath.Join(d.root, "."+key+"."+uuid.NewString()+".tmp")

	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create temp image: %w", err)
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("encode jpeg: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("close temp image: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("store image: %w", err)
	}

	b := img.Bounds()
	d.log.Info("image saved", "key", key, "source_format", format, "width", b.Dx(), "height", b.Dy(), "path", dst)
	return dst, nil
}

// FitSize scales w x h down to fit within maxW x maxH keeping the aspect
// ratio. Sizes that already fit are returned unchanged.
func FitSize(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	scale := min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw := max(1, int(float64(w)*scale))
	nh := max(1, int(float64(h)*scale))
	return nw, nh
}

// Normalize flattens transparency onto white and shrinks the image to fit
// MaxWidth x MaxHeight.
func Normalize(src image.Image) *image.RGBA {
	sb := src.Bounds()
	flat := image.NewRGBA(image.Rect(0, 0, sb.Dx(), sb.Dy()))
	draw.Draw(flat, flat.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), src, sb.Min, draw.Over)

	w, h := FitSize(sb.Dx(), sb.Dy(), MaxWidth, MaxHeight)
	if w == sb.Dx() && h == sb.Dy() {
		return flat
	}
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(out, out.Bounds(), flat, flat.Bounds(), draw.Src, nil)
	return out
}
