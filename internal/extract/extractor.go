// Package extract converts uploaded course material (txt, xlsx, pptx) into
// plain text for the generation pipeline. Office formats are zip archives of
// XML parts; only text runs are pulled out, layout is discarded.
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

var (
	// ErrUnsupportedFormat is returned for file extensions the extractor
	// does not understand.
	ErrUnsupportedFormat = errors.New("extract: unsupported file format")
	// ErrUnreadable is returned when the file cannot be decoded at all
	// (corrupt archive, invalid encoding).
	ErrUnreadable = errors.New("extract: unreadable file")
)

// Text extracts plain text from the uploaded file. The filename's extension
// decides the decoder. Returned text is not trimmed; emptiness checks belong
// to the caller.
func Text(filename string, data []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt":
		return plainText(data)
	case ".xlsx":
		return xlsxText(data)
	case ".pptx":
		return pptxText(data)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

func plainText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: not valid UTF-8", ErrUnreadable)
	}
	return string(data), nil
}

// xlsxText collects the workbook's shared strings plus inline cell strings,
// one line per string, in file order. Cell layout carries no meaning for
// lesson text, so it is not reconstructed.
func xlsxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	var lines []string
	for _, f := range zr.File {
		if f.Name != "xl/sharedStrings.xml" && !strings.HasPrefix(f.Name, "xl/worksheets/") {
			continue
		}
		texts, err := textNodes(f, "t")
		if err != nil {
			return "", err
		}
		lines = append(lines, texts...)
	}
	return strings.Join(lines, "\n"), nil
}

// pptxText walks slides in numeric order and joins each slide's text runs.
// Slides become paragraphs separated by blank lines so downstream paragraph
// splitting sees one block per slide.
func pptxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	var slides []*zip.File
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "ppt/slides/slide") && strings.HasSuffix(f.Name, ".xml") {
			slides = append(slides, f)
		}
	}
	sort.Slice(slides, func(i, j int) bool { return slideNumber(slides[i].Name) < slideNumber(slides[j].Name) })

	var blocks []string
	for _, f := range slides {
		texts, err := textNodes(f, "t")
		if err != nil {
			return "", err
		}
		if joined := strings.TrimSpace(strings.Join(texts, "\n")); joined != "" {
			blocks = append(blocks, joined)
		}
	}
	return strings.Join(blocks, "\n\n"), nil
}

func slideNumber(name string) int {
	base := strings.TrimSuffix(strings.TrimPrefix(name, "ppt/slides/slide"), ".xml")
	n := 0
	for _, r := range base {
		if r < '0' || r > '9' {
			return n
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// textNodes returns the character data of every element with the given local
// name, in document order.
func textNodes(f *zip.File, local string) ([]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrUnreadable, f.Name, err)
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)
	var texts []string
	depth := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrUnreadable, f.Name, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == local {
				depth++
			}
		case xml.EndElement:
			if t.Name.Local == local && depth > 0 {
				depth--
			}
		case xml.CharData:
			if depth > 0 {
				texts = append(texts, string(t))
			}
		}
	}
	return texts, nil
}
