package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/abate-Agegnehu/musiccollectionbackend/apperrors"
	"github.com/abate-Agegnehu/musiccollectionbackend/logger"
	"github.com/abate-Agegnehu/musiccollectionbackend/model"
)

const (
	// MediaField is the multipart field carrying the media file.
	MediaField = "media"

	// Allowance for text fields on top of the file limit.
	formOverhead = 1 << 20
	maxFieldSize = 64 << 10

	msgUnsupportedType = "File type is not supported"
	msgUnexpectedField = "Unexpected field"
	msgInvalidBody     = "Invalid request body"
)

var allowedExtensions = map[string]bool{
	".mp3": true,
	".mp4": true,
	".avi": true,
	".mov": true,
	".mkv": true,
}

// Upload is the parsed request body handed to music handlers.
type Upload struct {
	Fields map[string]string
	File   *model.StagedFile
}

// Value returns the text field name, or "" when absent.
func (u *Upload) Value(name string) string {
	if u == nil {
		return ""
	}
	return u.Fields[name]
}

type uploadKey struct{}

// UploadFrom returns the upload attached by UploadMiddleware. It is never nil.
func UploadFrom(ctx context.Context) *Upload {
	if u, ok := ctx.Value(uploadKey{}).(*Upload); ok {
		return u
	}
	return &Upload{Fields: map[string]string{}}
}

// UploadConfig controls UploadMiddleware.
type UploadConfig struct {
	Dir         string // Staging directory
	MaxFileSize int64  // Bytes
}

func (c UploadConfig) tooLarge() error {
	return apperrors.PayloadTooLarge(fmt.Sprintf("File size is too large. Max size is %dMB.", c.MaxFileSize>>20))
}

// UploadMiddleware parses multipart, urlencoded and JSON bodies, stages at
// most one media file on disk and attaches the result to the request
// context. The staged file is removed once the handler returns.
func UploadMiddleware(cfg UploadConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limit := cfg.MaxFileSize + formOverhead
			if r.ContentLength > limit {
				writeError(w, r, cfg.tooLarge())
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)

			upload, err := parseUpload(r, cfg)
			if upload.File != nil {
				defer removeStaged(upload.File.Path)
			}
			if err != nil {
				var maxErr *http.MaxBytesError
				if errors.As(err, &maxErr) {
					err = cfg.tooLarge()
				}
				writeError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), uploadKey{}, upload)))
		})
	}
}

func parseUpload(r *http.Request, cfg UploadConfig) (*Upload, error) {
	upload := &Upload{Fields: map[string]string{}}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return upload, nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return upload, apperrors.Validation(msgInvalidBody)
	}

	switch mediaType {
	case "multipart/form-data":
		return upload, parseMultipart(r, cfg, upload)
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return upload, bodyError(err)
		}
		for name, values := range r.PostForm {
			if len(values) > 0 {
				upload.Fields[name] = values[0]
			}
		}
		return upload, nil
	case "application/json":
		return upload, parseJSON(r.Body, upload)
	default:
		return upload, nil
	}
}

func parseMultipart(r *http.Request, cfg UploadConfig, upload *Upload) error {
	reader, err := r.MultipartReader()
	if err != nil {
		return bodyError(err)
	}

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return bodyError(err)
		}

		err = readPart(part, cfg, upload)
		part.Close()
		if err != nil {
			return err
		}
	}
}

func readPart(part *multipart.Part, cfg UploadConfig, upload *Upload) error {
	name := part.FormName()
	if name == "" {
		return nil
	}

	if part.FileName() == "" {
		value, err := io.ReadAll(io.LimitReader(part, maxFieldSize+1))
		if err != nil {
			return bodyError(err)
		}
		if len(value) > maxFieldSize {
			return apperrors.Validation(fmt.Sprintf("Field %s is too long", name))
		}
		if _, seen := upload.Fields[name]; !seen {
			upload.Fields[name] = string(value)
		}
		return nil
	}

	if name != MediaField || upload.File != nil {
		return apperrors.Validation(msgUnexpectedField)
	}
	ext := strings.ToLower(filepath.Ext(part.FileName()))
	if !allowedExtensions[ext] {
		return apperrors.Validation(msgUnsupportedType)
	}

	file, err := stagePart(part, cfg, ext)
	if err != nil {
		return err
	}
	upload.File = file
	return nil
}

func stagePart(part *multipart.Part, cfg UploadConfig, ext string) (*model.StagedFile, error) {
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("create upload dir: %w", err))
	}
	out, err := os.CreateTemp(cfg.Dir, "upload-*"+ext)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("create staged file: %w", err))
	}

	size, copyErr := io.Copy(out, io.LimitReader(part, cfg.MaxFileSize+1))
	closeErr := out.Close()
	switch {
	case copyErr != nil:
		removeStaged(out.Name())
		return nil, bodyError(copyErr)
	case closeErr != nil:
		removeStaged(out.Name())
		return nil, apperrors.Internal(fmt.Errorf("write staged file: %w", closeErr))
	case size > cfg.MaxFileSize:
		removeStaged(out.Name())
		return nil, cfg.tooLarge()
	}

	mimeType := baseMediaType(part.Header.Get("Content-Type"))
	if mimeType == "" || mimeType == "application/octet-stream" {
		if detected, err := mimetype.DetectFile(out.Name()); err == nil {
			mimeType = baseMediaType(detected.String())
		}
	}

	return &model.StagedFile{
		OriginalName: filepath.Base(part.FileName()),
		MimeType:     mimeType,
		Path:         out.Name(),
		Size:         size,
	}, nil
}

// parseJSON accepts an object body. Scalars are kept in their text form and
// nulls are ignored.
func parseJSON(body io.Reader, upload *Upload) error {
	var raw map[string]interface{}
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		if err == io.EOF {
			return nil
		}
		return bodyError(err)
	}
	for name, value := range raw {
		switch v := value.(type) {
		case nil:
		case string:
			upload.Fields[name] = v
		case float64, bool:
			upload.Fields[name] = fmt.Sprint(v)
		default:
			return apperrors.Validation(msgInvalidBody)
		}
	}
	return nil
}

// bodyError keeps size violations recognisable and reports anything else
// as a malformed body.
func bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return err
	}
	return apperrors.Validation(msgInvalidBody)
}

func baseMediaType(v string) string {
	if v == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(v)
	if err != nil {
		return ""
	}
	return mediaType
}

func removeStaged(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to remove staged file", logger.String("path", path), logger.ErrorField(err))
	}
}
