package domain

import "errors"

var (
	ErrNotFound            = errors.New("resource not found")
	ErrMissingAPIKey       = errors.New("extraction API key not configured")
	ErrUnknownProvider     = errors.New("unknown extraction provider")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file exceeds maximum allowed size")
	ErrEmptyFile           = errors.New("file is empty")
	ErrInvalidLedgerFile   = errors.New("invalid ledger file")
	ErrShipmentNotFound    = errors.New("shipment not found")
	ErrUnknownField        = errors.New("unknown shipment field")
	ErrInvalidFieldValue   = errors.New("invalid value for shipment field")
	ErrNoSession           = errors.New("no saved session")
	ErrUploadFailed        = errors.New("file upload to storage failed")
)
