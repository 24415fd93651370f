package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"net/http"
	"path"
	"strings"

	"campushub/internal/models"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var allowedTypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/png":       {},
	"image/webp":      {},
	"image/gif":       {},
	"video/mp4":       {},
	"video/webm":      {},
	"video/quicktime": {},
}

var compressibleTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
}

// Prepare validates f and, when it is a large still image, returns the recompressed
// WebP version. Files that are not recompressed are returned byte-identical.
func (p *Pipeline) Prepare(f File) (File, bool, error) {
	if len(f.Content) == 0 {
		return File{}, false, models.NewValidationError("No file uploaded")
	}
	if len(f.Content) > p.cfg.MaxBytes {
		return File{}, false, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", p.cfg.MaxBytes>>20))
	}

	ct, err := resolveContentType(f)
	if err != nil {
		return File{}, false, err
	}
	f.ContentType = ct

	if _, ok := compressibleTypes[ct]; !ok || len(f.Content) <= p.cfg.CompressAbove {
		return f, false, nil
	}

	out, err := p.compress(f.Content)
	if err != nil {
		return File{}, false, models.NewValidationError("Invalid image file")
	}
	return File{
		Name:        replaceExt(f.Name, ".webp"),
		ContentType: "image/webp",
		Content:     out,
	}, true, nil
}

func (p *Pipeline) compress(content []byte) ([]byte, error) {
	decoded, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	return encodeWebP(resizeToFit(decoded, p.cfg.MaxDimension, p.cfg.MaxDimension), p.cfg.WebPQuality)
}

// resolveContentType trusts the sniffed type when the declared one is missing or
// generic, and rejects images whose bytes disagree with the declared type.
func resolveContentType(f File) (string, error) {
	sniffed := normalizeContentType(http.DetectContentType(f.Content))
	ct := normalizeContentType(f.ContentType)
	if ct == "" || ct == "application/octet-stream" {
		ct = sniffed
	}
	if ct == "image/jpg" {
		ct = "image/jpeg"
	}
	if _, ok := allowedTypes[ct]; !ok {
		return "", models.NewValidationError(fmt.Sprintf("File type %q is not allowed", ct))
	}
	if strings.HasPrefix(ct, "image/") && sniffed != ct {
		return "", models.NewValidationError("Image content type mismatch")
	}
	return ct, nil
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func resourceType(contentType string) string {
	if strings.HasPrefix(contentType, "video/") {
		return "video"
	}
	return "image"
}

func replaceExt(name, ext string) string {
	if name == "" {
		return "upload" + ext
	}
	return strings.TrimSuffix(name, path.Ext(name)) + ext
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 || (w <= maxWidth && h <= maxHeight) {
		return src
	}

	scale := min(float64(maxWidth)/float64(w), float64(maxHeight)/float64(h))
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
