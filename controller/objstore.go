package controller

import (
	"context"
	"io"
)

// Object is a single entry in the object store. Listings leave Body nil.
type Object struct {
	Key         string
	Body        io.ReadCloser
	ContentType string
	Size        int64
	// Unix seconds
	Uploaded   int64
	UploadedBy string
}

type ObjectPage struct {
	Objects []Object
	// Store-native opaque continuation cursor, empty on the last page
	Cursor string
}

// ObjectStore is the narrow surface the files controller needs from an
// object storage backend. Implemented by cloudflare.R2Client.
type ObjectStore interface {
	Head(ctx context.Context, key string) (*Object, error)
	Get(ctx context.Context, key string) (*Object, error)
	Put(ctx context.Context, key string, body io.Reader, contentType, uploadedBy string) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix, cursor string, limit int) (*ObjectPage, error)
}
