package service

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"shipdecl/internal/domain"
	"shipdecl/internal/ledger"
	"shipdecl/internal/parser"
)

var imageTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// NewDocument wraps one uploaded file as a single-page document. PDFs are sent whole to
// the provider, which reads every page of the document block.
func NewDocument(name string, data []byte) (Document, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".pdf" {
		if err := ledger.ValidatePDF(data); err != nil {
			return Document{}, fmt.Errorf("%s: %w", name, err)
		}
		return Document{Name: name, Pages: []parser.Page{{Content: data, ContentType: "application/pdf", Number: 1}}}, nil
	}
	ct, ok := imageTypes[ext]
	if !ok {
		return Document{}, fmt.Errorf("%s: %w", name, domain.ErrUnsupportedFileType)
	}
	if len(data) == 0 {
		return Document{}, fmt.Errorf("%s: %w", name, domain.ErrEmptyFile)
	}
	return Document{Name: name, Pages: []parser.Page{{Content: data, ContentType: ct, Number: 1}}}, nil
}

// LoadDocument reads a document from disk.
func LoadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return NewDocument(filepath.Base(path), data)
}

// LoadDocumentDir reads every supported file in dir in name order. Unreadable files are
// returned as errors alongside the documents that did load.
func LoadDocumentDir(dir string) ([]Document, []error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("reading %s: %w", dir, err)}
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var (
		docs []Document
		errs []error
	)
	for _, n := range names {
		ext := strings.ToLower(filepath.Ext(n))
		if _, isImage := imageTypes[ext]; ext != ".pdf" && !isImage {
			continue
		}
		doc, err := LoadDocument(filepath.Join(dir, n))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, errs
}

// LoadLedgerPaths reads ledger workbooks from disk.
func LoadLedgerPaths(paths []string) ([]LedgerFile, []error) {
	var (
		files []LedgerFile
		errs  []error
	)
	for _, p := range paths {
		if err := ledger.ValidateFilename(p, ledger.FileKindExcel); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			errs = append(errs, fmt.Errorf("reading %s: %w", p, err))
			continue
		}
		files = append(files, LedgerFile{Name: filepath.Base(p), Data: data})
	}
	return files, errs
}
