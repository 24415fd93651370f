package service

import (
	"context"

	"campushub/internal/media"
	"campushub/internal/models"
	"campushub/internal/ratelimit"
)

const maxFilesPerUpload = 10

type UploadService struct {
	pipeline *media.Pipeline
	guard    *Guard
}

func NewUploadService(pipeline *media.Pipeline, guard *Guard) *UploadService {
	return &UploadService{pipeline: pipeline, guard: guard}
}

// Upload sends each file through the media pipeline. Every file in the batch
// counts against the upload limit; per-file failures are reported in the result,
// not returned.
func (s *UploadService) Upload(ctx context.Context, userID uint, bucket media.Bucket, files []media.File) (media.MultiResult, error) {
	if err := requireUser(userID); err != nil {
		return media.MultiResult{}, err
	}
	if len(files) == 0 {
		return media.MultiResult{}, models.NewValidationError("No files to upload")
	}
	if len(files) > maxFilesPerUpload {
		return media.MultiResult{}, models.NewValidationError("Too many files in one upload")
	}
	if err := s.guard.AllowN(ratelimit.ActionUpload, userID, len(files)); err != nil {
		return media.MultiResult{}, err
	}
	return s.pipeline.UploadMany(ctx, files, bucket, userID), nil
}
