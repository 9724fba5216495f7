package imageload

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/photo-dedupe/internal/scanner"
)

func createTestImage(width, height int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func writeJPEG(t *testing.T, path string, img image.Image) scanner.Record {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	return scanner.Record{Path: path, Name: filepath.Base(path), Ext: ".jpg", Size: int64(buf.Len())}
}

func writePNG(t *testing.T, path string, img image.Image) scanner.Record {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	return scanner.Record{Path: path, Name: filepath.Base(path), Ext: ".png", Size: int64(buf.Len())}
}

func TestNormalize_Size(t *testing.T) {
	img := createTestImage(640, 480, color.White)

	result := Normalize(img, 224)

	bounds := result.Bounds()
	if bounds.Dx() != 224 || bounds.Dy() != 224 {
		t.Errorf("expected 224x224, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestNormalize_DropsAlpha(t *testing.T) {
	img := createTestImage(10, 10, color.RGBA{0, 0, 0, 0})

	result := Normalize(img, 4)

	_, _, _, a := result.At(1, 1).RGBA()
	if a != 0xffff {
		t.Errorf("expected opaque pixel, got alpha %d", a)
	}
}

func TestLoad_SkipsUndecodable(t *testing.T) {
	dir := t.TempDir()
	good1 := writeJPEG(t, filepath.Join(dir, "a.jpg"), createTestImage(50, 40, color.White))

	badPath := filepath.Join(dir, "b.jpg")
	if err := os.WriteFile(badPath, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	bad := scanner.Record{Path: badPath, Name: "b.jpg", Ext: ".jpg", Size: 12}

	good2 := writePNG(t, filepath.Join(dir, "c.png"), createTestImage(30, 60, color.Black))

	result := Load([]scanner.Record{good1, bad, good2}, 32, nil)

	if len(result.Images) != 2 {
		t.Fatalf("expected 2 loaded images, got %d", len(result.Images))
	}
	if len(result.Failures) != 1 || result.Failures[0].Path != badPath {
		t.Fatalf("expected 1 failure for %s, got %+v", badPath, result.Failures)
	}

	paths := result.Paths()
	if paths[0] != good1.Path || paths[1] != good2.Path {
		t.Errorf("expected input order to be preserved, got %v", paths)
	}

	decoded, err := jpeg.Decode(bytes.NewReader(result.Images[1].Data))
	if err != nil {
		t.Fatalf("loaded data is not a JPEG: %v", err)
	}
	if decoded.Bounds().Dx() != 32 || decoded.Bounds().Dy() != 32 {
		t.Errorf("expected 32x32 thumbnail, got %v", decoded.Bounds())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	rec := scanner.Record{Path: filepath.Join(t.TempDir(), "gone.jpg")}

	result := Load([]scanner.Record{rec}, 32, nil)

	if len(result.Images) != 0 {
		t.Errorf("expected no images, got %d", len(result.Images))
	}
	if len(result.Failures) != 1 {
		t.Errorf("expected 1 failure, got %d", len(result.Failures))
	}
}
