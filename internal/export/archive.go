package export

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"shipdecl/internal/port"
)

const (
	// XLSXContentType is the MIME type of generated workbooks.
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	presignSeconds = 3600
)

// Archived describes a workbook copied to object storage.
type Archived struct {
	Bucket   string
	Key      string
	Location string
	URL      string
}

// Archiver copies generated workbooks to object storage.
type Archiver struct {
	store  port.ObjectStorage
	bucket string
	prefix string
	now    func() time.Time
}

// NewArchiver stores workbooks under bucket/prefix.
func NewArchiver(store port.ObjectStorage, bucket, prefix string) *Archiver {
	return &Archiver{store: store, bucket: bucket, prefix: prefix, now: time.Now}
}

// Key returns the object key for a period's workbook generated at t.
func (a *Archiver) Key(period string, t time.Time) string {
	return path.Join(a.prefix, period, t.UTC().Format("20060102T150405Z")+"_"+Filename(period))
}

// Archive uploads the workbook and returns a time-limited download link. A failed presign
// still reports the stored object.
func (a *Archiver) Archive(ctx context.Context, period, sessionID string, data []byte) (*Archived, error) {
	key := a.Key(period, a.now())
	out, err := a.store.Upload(ctx, port.UploadInput{
		Bucket:      a.bucket,
		Key:         key,
		Body:        bytes.NewReader(data),
		ContentType: XLSXContentType,
		Size:        int64(len(data)),
		Filename:    Filename(period),
		Metadata:    map[string]string{"period": period, "session": sessionID},
	})
	if err != nil {
		return nil, fmt.Errorf("archiving declaration: %w", err)
	}

	res := &Archived{Bucket: a.bucket, Key: key, Location: out.Location}
	if url, err := a.store.GetPresignedURL(ctx, a.bucket, key, presignSeconds); err == nil {
		res.URL = url
	}
	return res, nil
}
