package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"
)

func buildZip(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for name, body := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestTextPlain(t *testing.T) {
	got, err := Text("notes.txt", []byte("\xEF\xBB\xBFCats are mammals."))
	if err != nil {
		t.Fatalf("Text() error: %v", err)
	}
	if got != "Cats are mammals." {
		t.Fatalf("Text() = %q, BOM not stripped", got)
	}
}

func TestTextPlainRejectsBinary(t *testing.T) {
	if _, err := Text("notes.txt", []byte{0xff, 0xfe, 0x00}); !errors.Is(err, ErrUnreadable) {
		t.Fatalf("Text() error = %v, want ErrUnreadable", err)
	}
}

func TestTextUnsupportedExtension(t *testing.T) {
	if _, err := Text("deck.pdf", []byte("x")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("Text() error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestTextXLSXSharedStrings(t *testing.T) {
	data := buildZip(t, map[string]string{
		"xl/sharedStrings.xml": `<?xml version="1.0"?><sst><si><t>Photosynthesis</t></si><si><t>Chlorophyll</t></si></sst>`,
	})
	got, err := Text("terms.xlsx", data)
	if err != nil {
		t.Fatalf("Text() error: %v", err)
	}
	if got != "Photosynthesis\nChlorophyll" {
		t.Fatalf("Text() = %q", got)
	}
}

func TestTextPPTXSlideOrder(t *testing.T) {
	data := buildZip(t, map[string]string{
		"ppt/slides/slide2.xml":  `<p:sld><a:t>Second slide</a:t></p:sld>`,
		"ppt/slides/slide1.xml":  `<p:sld><a:t>First slide</a:t></p:sld>`,
		"ppt/slides/slide10.xml": `<p:sld><a:t>Tenth slide</a:t></p:sld>`,
	})
	got, err := Text("deck.pptx", data)
	if err != nil {
		t.Fatalf("Text() error: %v", err)
	}
	want := "First slide\n\nSecond slide\n\nTenth slide"
	if got != want {
		t.Fatalf("Text() = %q, want %q (numeric slide order)", got, want)
	}
}

func TestTextCorruptArchive(t *testing.T) {
	if _, err := Text("deck.pptx", []byte("not a zip")); !errors.Is(err, ErrUnreadable) {
		t.Fatalf("Text() error = %v, want ErrUnreadable", err)
	}
}

func TestTextPPTXSkipsEmptySlides(t *testing.T) {
	data := buildZip(t, map[string]string{
		"ppt/slides/slide1.xml": `<p:sld><a:t>Only content</a:t></p:sld>`,
		"ppt/slides/slide2.xml": `<p:sld></p:sld>`,
	})
	got, err := Text("deck.pptx", data)
	if err != nil {
		t.Fatalf("Text() error: %v", err)
	}
	if strings.Contains(got, "\n\n\n") || got != "Only content" {
		t.Fatalf("Text() = %q", got)
	}
}
