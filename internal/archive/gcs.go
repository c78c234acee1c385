// Package archive stores generated report workbooks in Google Cloud
// Storage so past reports remain retrievable after the mail has gone out.
package archive

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Uploader writes report files into one GCS bucket.
// It assumes Application Default Credentials are configured.
type Uploader struct {
	bucket string
}

// NewUploader creates an uploader for the given bucket.
func NewUploader(bucket string) *Uploader {
	return &Uploader{bucket: bucket}
}

// UploadReport writes the workbook bytes to the bucket under objectName.
func (u *Uploader) UploadReport(ctx context.Context, objectName string, data []byte) error {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(u.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = xlsxContentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object %s: %w", objectName, err)
	}

	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload %s: %w", objectName, err)
	}

	return nil
}
