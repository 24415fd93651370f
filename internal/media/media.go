// Package media validates, recompresses and uploads user media to the external host.
package media

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"campushub/internal/middleware"
	"campushub/internal/models"
	"campushub/internal/observability"

	"golang.org/x/sync/errgroup"
)

// Bucket is the logical folder a file is uploaded into.
type Bucket string

const (
	BucketAvatars     Bucket = "avatars"
	BucketPosts       Bucket = "posts"
	BucketStories     Bucket = "stories"
	BucketCircles     Bucket = "circles"
	BucketMarketplace Bucket = "marketplace"
	BucketMenus       Bucket = "menus"
)

// ParseBucket validates a bucket name from a request.
func ParseBucket(raw string) (Bucket, error) {
	switch b := Bucket(strings.ToLower(strings.TrimSpace(raw))); b {
	case BucketAvatars, BucketPosts, BucketStories, BucketCircles, BucketMarketplace, BucketMenus:
		return b, nil
	}
	return "", models.NewValidationError(fmt.Sprintf("unknown upload bucket %q", raw))
}

const (
	DefaultMaxUploadBytes = 100 << 20
	DefaultCompressAbove  = 1 << 20
	DefaultMaxDimension   = 1080
	DefaultWebPQuality    = 80
	uploadManyConcurrency = 3
)

// File is one file as received from a client.
type File struct {
	Name        string
	ContentType string
	Content     []byte
}

// Uploaded describes a stored file.
type Uploaded struct {
	URL          string `json:"url"`
	ContentType  string `json:"content_type"`
	Size         int    `json:"size"`
	Compressed   bool   `json:"compressed"`
	ResourceType string `json:"resource_type"`
}

// FileError reports the failure of one file in a multi-file upload.
type FileError struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Error string `json:"error"`
}

// MultiResult is the mixed outcome of UploadMany; URLs keep input order.
type MultiResult struct {
	URLs   []string    `json:"urls"`
	Errors []FileError `json:"errors"`
}

// Host stores prepared bytes and returns a public URL.
type Host interface {
	Upload(ctx context.Context, f File, folder string) (string, error)
}

// Config tunes validation and compression.
type Config struct {
	MaxBytes      int
	CompressAbove int
	MaxDimension  int
	WebPQuality   int
}

// DefaultConfig returns the production limits.
func DefaultConfig() Config {
	return Config{
		MaxBytes:      DefaultMaxUploadBytes,
		CompressAbove: DefaultCompressAbove,
		MaxDimension:  DefaultMaxDimension,
		WebPQuality:   DefaultWebPQuality,
	}
}

// Pipeline runs validate, compress and upload for each file.
type Pipeline struct {
	host Host
	cfg  Config
}

// NewPipeline builds a pipeline; zero config values take the defaults.
func NewPipeline(host Host, cfg Config) *Pipeline {
	def := DefaultConfig()
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = def.MaxBytes
	}
	if cfg.CompressAbove <= 0 {
		cfg.CompressAbove = def.CompressAbove
	}
	if cfg.MaxDimension <= 0 {
		cfg.MaxDimension = def.MaxDimension
	}
	if cfg.WebPQuality <= 0 {
		cfg.WebPQuality = def.WebPQuality
	}
	return &Pipeline{host: host, cfg: cfg}
}

// Folder is the host folder for a bucket and user.
func Folder(bucket Bucket, userID uint) string {
	return "campushub/" + string(bucket) + "/" + strconv.FormatUint(uint64(userID), 10)
}

// Upload validates f, recompresses large images and sends the result to the host.
func (p *Pipeline) Upload(ctx context.Context, f File, bucket Bucket, userID uint) (*Uploaded, error) {
	prepared, compressed, err := p.Prepare(f)
	if err != nil {
		observability.MediaUploads.WithLabelValues(string(bucket), "rejected").Inc()
		return nil, err
	}
	if compressed {
		observability.MediaBytesSaved.Add(float64(max(len(f.Content)-len(prepared.Content), 0)))
	}

	url, err := p.host.Upload(ctx, prepared, Folder(bucket, userID))
	if err != nil {
		observability.MediaUploads.WithLabelValues(string(bucket), "failed").Inc()
		middleware.Logger.WarnContext(ctx, "media upload failed",
			slog.String("bucket", string(bucket)),
			slog.String("file", f.Name),
			slog.String("error", err.Error()),
		)
		return nil, models.NewUpstreamError("Upload failed, please try again", err)
	}
	observability.MediaUploads.WithLabelValues(string(bucket), "ok").Inc()

	return &Uploaded{
		URL:          url,
		ContentType:  prepared.ContentType,
		Size:         len(prepared.Content),
		Compressed:   compressed,
		ResourceType: resourceType(prepared.ContentType),
	}, nil
}

// UploadMany uploads files independently. A failing file is reported in Errors and
// never aborts the others.
func (p *Pipeline) UploadMany(ctx context.Context, files []File, bucket Bucket, userID uint) MultiResult {
	urls := make([]string, len(files))
	errs := make([]error, len(files))

	var g errgroup.Group
	g.SetLimit(uploadManyConcurrency)
	for i := range files {
		i := i
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("upload panicked: %v", r)
				}
			}()
			up, err := p.Upload(ctx, files[i], bucket, userID)
			if err != nil {
				errs[i] = err
				return nil
			}
			urls[i] = up.URL
			return nil
		})
	}
	_ = g.Wait()

	res := MultiResult{URLs: []string{}, Errors: []FileError{}}
	for i := range files {
		if errs[i] != nil {
			res.Errors = append(res.Errors, FileError{Index: i, Name: files[i].Name, Error: errs[i].Error()})
			continue
		}
		res.URLs = append(res.URLs, urls[i])
	}
	return res
}

// Delete is a no-op: the host has no unsigned delete path.
func (p *Pipeline) Delete(ctx context.Context, url string) {
	middleware.Logger.DebugContext(ctx, "media delete skipped, host has no unsigned delete", slog.String("url", url))
}
