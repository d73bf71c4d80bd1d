package storage

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"strings"
	"testing"
)

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, w, h)), nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestValidateFile(t *testing.T) {
	allowed := []string{"image/jpeg", "image/png"}
	img := jpegBytes(t, 10, 10)

	data, mime, err := ValidateFile(bytes.NewReader(img), allowed, 1<<20)
	if err != nil {
		t.Fatalf("ValidateFile: %v", err)
	}
	if mime != "image/jpeg" {
		t.Errorf("mime = %q, want image/jpeg", mime)
	}
	if len(data) != len(img) {
		t.Errorf("data length = %d, want %d", len(data), len(img))
	}
}

func TestValidateFileRejectsDisallowedType(t *testing.T) {
	_, _, err := ValidateFile(strings.NewReader("plain text payload"), []string{"image/jpeg"}, 1<<20)
	if !errors.Is(err, ErrInvalidMimeType) {
		t.Errorf("err = %v, want ErrInvalidMimeType", err)
	}
}

func TestValidateFileRejectsOversized(t *testing.T) {
	img := jpegBytes(t, 50, 50)
	_, _, err := ValidateFile(bytes.NewReader(img), []string{"image/jpeg"}, int64(len(img)-1))
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("err = %v, want ErrFileTooLarge", err)
	}
}

func TestValidateFileRejectsEmpty(t *testing.T) {
	_, _, err := ValidateFile(strings.NewReader(""), []string{"image/jpeg"}, 1<<20)
	if !errors.Is(err, ErrEmptyFile) {
		t.Errorf("err = %v, want ErrEmptyFile", err)
	}
}

func TestValidateFileIgnoresDeclaredType(t *testing.T) {
	// Magic bytes win: a PNG allow-list must reject JPEG content no matter
	// what the client claimed.
	img := jpegBytes(t, 10, 10)
	_, _, err := ValidateFile(bytes.NewReader(img), []string{"image/png"}, 1<<20)
	if !errors.Is(err, ErrInvalidMimeType) {
		t.Errorf("err = %v, want ErrInvalidMimeType", err)
	}
}
