// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"io"
	"mime/multipart"

	"campushub/internal/media"
	"campushub/internal/models"
	"campushub/internal/service"

	"github.com/gofiber/fiber/v2"
)

// maxFilesPerUpload bounds the multipart parts read from one request.
const maxFilesPerUpload = 10

// readFormFile loads an uploaded part into memory.
func readFormFile(fh *multipart.FileHeader) (media.File, error) {
	src, err := fh.Open()
	if err != nil {
		return media.File{}, err
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(src)
	if err != nil {
		return media.File{}, err
	}
	return media.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Content:     content,
	}, nil
}

// Upload handles POST /api/uploads (multipart: bucket, files[]). Each file succeeds
// or fails on its own; the response lists URLs in input order and per-file errors.
func (s *Server) Upload(c *fiber.Ctx) error {
	bucket, err := media.ParseBucket(c.FormValue("bucket"))
	if err != nil {
		return respond(c, err)
	}

	form, err := c.MultipartForm()
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Expected a multipart form"))
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		headers = form.File["file"]
	}
	if len(headers) > maxFilesPerUpload {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Too many files in one upload"))
	}

	files := make([]media.File, 0, len(headers))
	for _, fh := range headers {
		f, err := readFormFile(fh)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Unable to read uploaded file"))
		}
		files = append(files, f)
	}

	res, err := s.uploadService.Upload(c.UserContext(), currentUserID(c), bucket, files)
	if err != nil {
		return respond(c, err)
	}
	status := fiber.StatusOK
	if len(res.Errors) > 0 {
		status = fiber.StatusMultiStatus
	}
	return c.Status(status).JSON(res)
}

// GetMenu handles GET /api/menu?date=YYYY-MM-DD. Without a stored menu the static
// fallback is returned.
func (s *Server) GetMenu(c *fiber.Ctx) error {
	menu, err := s.menuService.GetMenu(c.UserContext(), c.Query("date"))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(menu)
}

// UploadMenu handles POST /api/admin/menu/upload (multipart: date, image)
func (s *Server) UploadMenu(c *fiber.Ctx) error {
	fh, err := c.FormFile("image")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("No file uploaded"))
	}
	file, err := readFormFile(fh)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Unable to read uploaded file"))
	}

	res, err := s.menuService.UploadMenu(c.UserContext(), currentUserID(c), c.FormValue("date"), file)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(res)
}

// UpdateMenu handles PUT /api/admin/menu
func (s *Server) UpdateMenu(c *fiber.Ctx) error {
	var req struct {
		Date      string   `json:"date"`
		Breakfast []string `json:"breakfast"`
		Lunch     []string `json:"lunch"`
		Snacks    []string `json:"snacks"`
		Dinner    []string `json:"dinner"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	menu, err := s.menuService.UpdateMenu(c.UserContext(), service.UpdateMenuInput{
		UserID:    currentUserID(c),
		Date:      req.Date,
		Breakfast: req.Breakfast,
		Lunch:     req.Lunch,
		Snacks:    req.Snacks,
		Dinner:    req.Dinner,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(menu)
}

// GetSettings handles GET /api/settings
func (s *Server) GetSettings(c *fiber.Ctx) error {
	settings, err := s.settingService.All(c.UserContext())
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(settings)
}

// GetSetting handles GET /api/settings/:key
func (s *Server) GetSetting(c *fiber.Ctx) error {
	setting, err := s.settingService.Get(c.UserContext(), c.Params("key"))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(setting)
}

// UpsertSetting handles PUT /api/admin/settings/:key
func (s *Server) UpsertSetting(c *fiber.Ctx) error {
	var req struct {
		Value string `json:"value"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	setting, err := s.settingService.Upsert(c.UserContext(), currentUserID(c), c.Params("key"), req.Value)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(setting)
}

// GetNotifications handles GET /api/notifications?unread=true
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	notes, err := s.notificationService.List(c.UserContext(), currentUserID(c),
		c.QueryBool("unread", false), parsePagination(c, 30))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(notes)
}

// MarkNotificationsRead handles POST /api/notifications/read. An empty id list
// marks everything read.
func (s *Server) MarkNotificationsRead(c *fiber.Ctx) error {
	var req struct {
		IDs []uint `json:"ids"`
	}
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return nil
		}
	}
	n, err := s.notificationService.MarkRead(c.UserContext(), currentUserID(c), req.IDs)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"marked": n})
}
