package ledger

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"shipdecl/internal/domain"
)

const (
	MaxExcelSize = 50 * 1024 * 1024
	MaxPDFSize   = 100 * 1024 * 1024
)

var (
	magicPDF  = []byte("%PDF")
	magicXLSX = []byte("PK\x03\x04")
	magicXLS  = []byte("\xd0\xcf\x11\xe0")
)

// FileKind is the upload type a file name is checked against.
type FileKind string

const (
	FileKindPDF   FileKind = "pdf"
	FileKindExcel FileKind = "excel"
)

// ValidateExcelBytes checks size and magic bytes of an xlsx or xls upload.
func ValidateExcelBytes(b []byte) error {
	if err := checkSize(len(b), MaxExcelSize); err != nil {
		return err
	}
	if !bytes.HasPrefix(b, magicXLSX) && !bytes.HasPrefix(b, magicXLS) {
		return fmt.Errorf("%w: not a valid Excel file (invalid header)", domain.ErrInvalidLedgerFile)
	}
	return nil
}

// ValidateExcel reads r fully and checks it as an Excel upload, returning the bytes.
func ValidateExcel(r io.Reader) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, MaxExcelSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	return b, ValidateExcelBytes(b)
}

// ValidatePDF checks size and magic bytes of a PDF upload.
func ValidatePDF(b []byte) error {
	if err := checkSize(len(b), MaxPDFSize); err != nil {
		return err
	}
	if !bytes.HasPrefix(b, magicPDF) {
		return fmt.Errorf("%w: not a valid PDF (invalid header)", domain.ErrUnsupportedFileType)
	}
	return nil
}

// ValidateFilename checks the extension matches the expected kind.
func ValidateFilename(name string, kind FileKind) error {
	if name == "" {
		return fmt.Errorf("%w: filename is empty", domain.ErrUnsupportedFileType)
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	switch kind {
	case FileKindPDF:
		if ext != "pdf" {
			return fmt.Errorf("%w: expected PDF file, got .%s", domain.ErrUnsupportedFileType, ext)
		}
	case FileKindExcel:
		if ext != "xlsx" && ext != "xls" {
			return fmt.Errorf("%w: expected Excel file (.xlsx/.xls), got .%s", domain.ErrUnsupportedFileType, ext)
		}
	}
	return nil
}

func checkSize(size, limit int) error {
	if size == 0 {
		return domain.ErrEmptyFile
	}
	if size > limit {
		return fmt.Errorf("%w (%.1f MB, max %d MB)", domain.ErrFileTooLarge,
			float64(size)/1024/1024, limit/1024/1024)
	}
	return nil
}
