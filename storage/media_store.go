package storage

import "context"

// ResourceKind tells the media store how to handle an object.
type ResourceKind string

// ResourceVideo is the generic streaming media kind. Audio is uploaded
// under it as well so both are handled uniformly.
const ResourceVideo ResourceKind = "video"

// UploadOptions configures an upload.
type UploadOptions struct {
	Kind        ResourceKind
	ContentType string
}

// DestroyOptions configures a deletion.
type DestroyOptions struct {
	Kind ResourceKind
}

// UploadResult is what the media store hands back for a stored object.
type UploadResult struct {
	URL string // Durable public URL
	ID  string // Handle accepted by Destroy
}

// MediaStore hosts uploaded media files.
type MediaStore interface {
	Upload(ctx context.Context, localPath string, opts UploadOptions) (*UploadResult, error)
	Destroy(ctx context.Context, id string, opts DestroyOptions) error
}
