package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"campushub/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// CloudinaryHost uploads through an unsigned upload preset:
// POST <endpoint>/<cloud>/<image|video>/upload with upload_preset and folder.
type CloudinaryHost struct {
	Endpoint     string
	CloudName    string
	UploadPreset string
	Timeout      time.Duration
}

type cloudinaryResponse struct {
	SecureURL string `json:"secure_url"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewCloudinaryHost returns a host with a 60s default timeout.
func NewCloudinaryHost(endpoint, cloudName, preset string, timeout time.Duration) *CloudinaryHost {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &CloudinaryHost{
		Endpoint:     strings.TrimRight(endpoint, "/"),
		CloudName:    cloudName,
		UploadPreset: preset,
		Timeout:      timeout,
	}
}

// Upload implements Host.
func (h *CloudinaryHost) Upload(ctx context.Context, f File, folder string) (string, error) {
	if h.CloudName == "" || h.UploadPreset == "" {
		return "", errors.New("media host is not configured")
	}

	ctx, span := observability.StartClientSpan(ctx, "media_host", "upload")
	defer span.End()

	timeout := h.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}
	if timeout <= 0 {
		return "", context.DeadlineExceeded
	}

	url := fmt.Sprintf("%s/%s/%s/upload", h.Endpoint, h.CloudName, resourceType(f.ContentType))

	args := fiber.AcquireArgs()
	defer fiber.ReleaseArgs(args)
	args.Set("upload_preset", h.UploadPreset)
	args.Set("folder", folder)

	agent := fiber.Post(url).
		Timeout(timeout).
		FileData(&fiber.FormFile{Fieldname: "file", Name: f.Name, Content: f.Content}).
		MultipartForm(args)

	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		err := errors.Join(errs...)
		span.SetError(err)
		return "", fmt.Errorf("media host request: %w", err)
	}

	var resp cloudinaryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		err = fmt.Errorf("media host returned %d with unreadable body: %w", status, err)
		span.SetError(err)
		return "", err
	}
	if status >= fiber.StatusBadRequest || resp.SecureURL == "" {
		msg := fmt.Sprintf("status %d", status)
		if resp.Error != nil && resp.Error.Message != "" {
			msg = resp.Error.Message
		}
		err := fmt.Errorf("media host rejected upload: %s", msg)
		span.SetError(err)
		return "", err
	}
	return resp.SecureURL, nil
}
