package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"ragchat/internal/domain"
)

// Extracted is the text of an uploaded file plus the metadata derived from its name.
type Extracted struct {
	Title   string
	Type    string
	Content string
}

// Allowed lists the accepted file extensions.
var Allowed = []string{"txt", "doc", "docx"}

// Supported reports whether a file name has an accepted extension.
func Supported(name string) bool {
	_, ok := fileType(name)
	return ok
}

func FromFile(path string) (Extracted, error) {
	if !Supported(path) {
		return Extracted{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Extracted{}, err
	}
	return FromBytes(filepath.Base(path), data)
}

// FromBytes extracts text from the contents of a file called name. The
// title is the file name without its extension and the type is the
// lower-cased extension.
func FromBytes(name string, data []byte) (Extracted, error) {
	typ, ok := fileType(name)
	if !ok {
		return Extracted{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, name)
	}

	base := filepath.Base(name)
	out := Extracted{
		Title: strings.TrimSuffix(base, filepath.Ext(base)),
		Type:  typ,
	}

	switch typ {
	case "txt":
		if !utf8.Valid(data) {
			return Extracted{}, fmt.Errorf("%w: %s is not valid UTF-8", domain.ErrUnsupportedFormat, name)
		}
		out.Content = string(data)
	default:
		content, err := docxText(data)
		if err != nil {
			return Extracted{}, fmt.Errorf("%w: %s: %w", domain.ErrUnsupportedFormat, name, err)
		}
		out.Content = content
	}
	return out, nil
}

func fileType(name string) (string, bool) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	for _, allowed := range Allowed {
		if ext == allowed {
			return ext, true
		}
	}
	return "", false
}

// docxText returns the paragraphs of word/document.xml joined by newlines.
func docxText(data []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("not an OOXML document: %w", err)
	}

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return "", err
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", err
		}
		return parseDocumentXML(content)
	}
	return "", fmt.Errorf("missing word/document.xml")
}

type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

// paragraph collects the text of every run in a w:p, including runs nested
// in hyperlinks, tracked insertions and content controls. Deleted text lives
// in w:delText and is left out.
type paragraph struct {
	Text string
}

func (p *paragraph) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var (
		b     strings.Builder
		stack []string
	)
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch tok := tok.(type) {
		case xml.StartElement:
			if len(stack) > 0 && stack[len(stack)-1] == "r" {
				switch tok.Name.Local {
				case "tab":
					b.WriteByte('\t')
				case "br", "cr":
					b.WriteByte('\n')
				}
			}
			stack = append(stack, tok.Name.Local)
		case xml.EndElement:
			if len(stack) == 0 {
				p.Text = b.String()
				return nil
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) >= 2 && stack[len(stack)-1] == "t" && stack[len(stack)-2] == "r" {
				b.Write(tok)
			}
		}
	}
}

func parseDocumentXML(content []byte) (string, error) {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return "", fmt.Errorf("failed to parse document.xml: %w", err)
	}

	paragraphs := make([]string, 0, len(doc.Body.Paragraphs))
	for _, para := range doc.Body.Paragraphs {
		paragraphs = append(paragraphs, para.Text)
	}
	return strings.Join(paragraphs, "\n"), nil
}
