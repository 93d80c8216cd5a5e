package imagestore

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"github.com/WessleyAI/keyintel/engine/domain"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "BMW_3_Series_2015-2018_module",
		Key(domain.MakeBMW, "3 Series", "2015-2018", domain.ImageModule))
	assert.Equal(t, "Mercedes-Benz_C-Class_W205_2015-2021_key",
		Key(domain.MakeMercedes, "C-Class W205", "2015-2021", domain.ImageKey))
	assert.Equal(t, "Volkswagen_Golf-GTI_2013-2020_key",
		Key(domain.MakeVolkswagen, "Golf/GTI", "2013-2020", domain.ImageKey))
}

func TestKeyFor_YearFallback(t *testing.T) {
	s := domain.Selection{Make: domain.MakeAudi, Model: "A4", Year: 2011}
	assert.Equal(t, "Audi_A4_2011_module", KeyFor(s, "", domain.ImageModule))
	assert.Equal(t, "Audi_A4_2008-2016_module", KeyFor(s, "2008-2016", domain.ImageModule))
}

func TestFind_ExtensionOrder(t *testing.T) {
	dir := t.TempDir()
	d := NewDir(dir, nil)

	_, ok := d.Find("BMW_X5_2014-2018_key")
	assert.False(t, ok)

	for _, name := range []string{"BMW_X5_2014-2018_key.png", "BMW_X5_2014-2018_key.jpeg"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	p, ok := d.Find("BMW_X5_2014-2018_key")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "BMW_X5_2014-2018_key.jpeg"), p)

	_, ok = d.Find("../etc")
	assert.False(t, ok)
}

func encodePNG(t *testing.T, img image.Image) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &buf
}

func decodeSaved(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := jpeg.Decode(f)
	require.NoError(t, err)
	return img
}

func TestSave_FlattensAlphaOntoWhite(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 20, 10))
	for x := 10; x < 20; x++ {
		for y := 0; y < 10; y++ {
			src.Set(x, y, color.NRGBA{R: 255, A: 255})
		}
	}
	d := NewDir(filepath.Join(t.TempDir(), "images"), nil)

	path, err := d.Save("Audi_A4_2008-2016_module", encodePNG(t, src))
	require.NoError(t, err)
	assert.Equal(t, ".jpg", filepath.Ext(path))

	img := decodeSaved(t, path)
	assert.Equal(t, image.Rect(0, 0, 20, 10), img.Bounds())

	r, g, b, _ := img.At(2, 5).RGBA()
	assert.Greater(t, r>>8, uint32(240))
	assert.Greater(t, g>>8, uint32(240))
	assert.Greater(t, b>>8, uint32(240))

	r, g, _, _ = img.At(17, 5).RGBA()
	assert.Greater(t, r>>8, uint32(200))
	assert.Less(t, g>>8, uint32(60))
}

func TestSave_Downscales(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 1600, 400))
	d := NewDir(t.TempDir(), nil)

	path, err := d.Save("wide", encodePNG(t, src))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 800, 200), decodeSaved(t, path).Bounds())
}

func TestSave_BMPAndOverwrite(t *testing.T) {
	d := NewDir(t.TempDir(), nil)
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 30, 40))))

	_, err := d.Save("bmp", &buf)
	require.NoError(t, err)
	path, err := d.Save("bmp", encodePNG(t, image.NewRGBA(image.Rect(0, 0, 12, 12))))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 12, 12), decodeSaved(t, path).Bounds())

	found, ok := d.Find("bmp")
	require.True(t, ok)
	assert.Equal(t, path, found)

	entries, err := os.ReadDir(d.Root())
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), e.Name())
	}
}

func TestSave_Errors(t *testing.T) {
	d := NewDir(t.TempDir(), nil)

	_, err := d.Save("bad", strings.NewReader("not an image"))
	assert.ErrorIs(t, err, ErrDecode)

	_, err = d.Save("a/b", encodePNG(t, image.NewRGBA(image.Rect(0, 0, 1, 1))))
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = d.Save("", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestFitSize(t *testing.T) {
	cases := []struct{ w, h, ww, wh int }{
		{100, 100, 100, 100},
		{800, 800, 800, 800},
		{1600, 1600, 800, 800},
		{1000, 2000, 400, 800},
		{3000, 10, 800, 2},
	}
	for _, tc := range cases {
		w, h := FitSize(tc.w, tc.h, MaxWidth, MaxHeight)
		assert.Equal(t, tc.ww, w)
		assert.Equal(t, tc.wh, h)
	}
}
