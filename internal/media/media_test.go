package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHost struct {
	mu      sync.Mutex
	files   []File
	folders []string
	fail    map[string]error
}

func (h *recordingHost) Upload(_ context.Context, f File, folder string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.fail[f.Name]; err != nil {
		return "", err
	}
	h.files = append(h.files, f)
	h.folders = append(h.folders, folder)
	return "https://cdn.test/" + folder + "/" + f.Name, nil
}

func (h *recordingHost) last() File {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.files[len(h.files)-1]
}

func noisePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(42))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(rng.Intn(256)), G: uint8(rng.Intn(256)), B: uint8(rng.Intn(256)), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestUpload_LargeImageIsDownscaledToWebP(t *testing.T) {
	t.Parallel()
	content := noisePNG(t, 1600, 1200)
	host := &recordingHost{}
	p := NewPipeline(host, Config{CompressAbove: 64 << 10})
	require.Greater(t, len(content), 64<<10)

	up, err := p.Upload(context.Background(), File{Name: "campus.png", ContentType: "image/png", Content: content}, BucketPosts, 7)
	require.NoError(t, err)
	assert.True(t, up.Compressed)
	assert.Equal(t, "image/webp", up.ContentType)

	sent := host.last()
	assert.Equal(t, "image/webp", sent.ContentType)
	assert.Equal(t, "campus.webp", sent.Name)
	assert.Equal(t, "campushub/posts/7", host.folders[0])

	cfg, err := webp.DecodeConfig(bytes.NewReader(sent.Content))
	require.NoError(t, err)
	assert.LessOrEqual(t, cfg.Width, 1080)
	assert.LessOrEqual(t, cfg.Height, 1080)
	assert.Equal(t, 1080, cfg.Width)
	assert.Equal(t, 810, cfg.Height)
}

func TestUpload_SmallImagePassesThroughByteIdentical(t *testing.T) {
	t.Parallel()
	content := noisePNG(t, 40, 30)
	host := &recordingHost{}
	p := NewPipeline(host, DefaultConfig())

	up, err := p.Upload(context.Background(), File{Name: "tiny.png", ContentType: "image/png", Content: content}, BucketAvatars, 1)
	require.NoError(t, err)
	assert.False(t, up.Compressed)
	assert.Equal(t, "image/png", up.ContentType)
	assert.Equal(t, content, host.last().Content)
}

func TestUpload_VideoIsNeverRecompressed(t *testing.T) {
	t.Parallel()
	content := bytes.Repeat([]byte{0x00}, 2<<20)
	host := &recordingHost{}
	p := NewPipeline(host, DefaultConfig())

	up, err := p.Upload(context.Background(), File{Name: "clip.mov", ContentType: "video/quicktime", Content: content}, BucketStories, 3)
	require.NoError(t, err)
	assert.Equal(t, "video", up.ResourceType)
	assert.False(t, up.Compressed)
	assert.Equal(t, content, host.last().Content)
}

func TestPrepare_Rejections(t *testing.T) {
	t.Parallel()
	p := NewPipeline(&recordingHost{}, Config{MaxBytes: 1 << 20})
	small := noisePNG(t, 4, 4)

	tests := []struct {
		name string
		file File
	}{
		{"empty", File{Name: "a.png", ContentType: "image/png"}},
		{"too large", File{Name: "a.mp4", ContentType: "video/mp4", Content: make([]byte, 2<<20)}},
		{"disallowed type", File{Name: "a.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.4")}},
		{"mismatched image", File{Name: "a.jpg", ContentType: "image/jpeg", Content: small}},
		{"sniffed text", File{Name: "a.txt", Content: []byte("hello there")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := p.Prepare(tt.file)
			assert.Error(t, err)
		})
	}
}

func TestPrepare_SniffsMissingContentType(t *testing.T) {
	t.Parallel()
	p := NewPipeline(&recordingHost{}, DefaultConfig())
	out, compressed, err := p.Prepare(File{Name: "a.png", Content: noisePNG(t, 8, 8)})
	require.NoError(t, err)
	assert.False(t, compressed)
	assert.Equal(t, "image/png", out.ContentType)
}

func TestUploadMany_MixedResults(t *testing.T) {
	t.Parallel()
	host := &recordingHost{fail: map[string]error{"broken.png": errors.New("host down")}}
	p := NewPipeline(host, DefaultConfig())
	good := noisePNG(t, 8, 8)

	files := []File{
		{Name: "one.png", ContentType: "image/png", Content: good},
		{Name: "empty.png", ContentType: "image/png"},
		{Name: "two.png", ContentType: "image/png", Content: good},
		{Name: "doc.exe", ContentType: "application/x-msdownload", Content: []byte("MZ")},
		{Name: "broken.png", ContentType: "image/png", Content: good},
		{Name: "three.png", ContentType: "image/png", Content: good},
	}

	var res MultiResult
	require.NotPanics(t, func() {
		res = p.UploadMany(context.Background(), files, BucketMarketplace, 9)
	})
	assert.Len(t, res.URLs, 3)
	require.Len(t, res.Errors, 3)
	assert.Equal(t, "https://cdn.test/campushub/marketplace/9/one.png", res.URLs[0])
	assert.Equal(t, "https://cdn.test/campushub/marketplace/9/three.png", res.URLs[2])
	assert.Equal(t, []int{1, 3, 4}, []int{res.Errors[0].Index, res.Errors[1].Index, res.Errors[2].Index})
	assert.Equal(t, "broken.png", res.Errors[2].Name)
}

func TestUploadMany_Empty(t *testing.T) {
	t.Parallel()
	res := NewPipeline(&recordingHost{}, DefaultConfig()).UploadMany(context.Background(), nil, BucketPosts, 1)
	assert.Empty(t, res.URLs)
	assert.Empty(t, res.Errors)
}

func TestParseBucket(t *testing.T) {
	t.Parallel()
	b, err := ParseBucket(" Stories ")
	require.NoError(t, err)
	assert.Equal(t, BucketStories, b)

	_, err = ParseBucket("secrets")
	assert.Error(t, err)
}

func TestCloudinaryHost_Upload(t *testing.T) {
	t.Parallel()
	var gotPath, gotPreset, gotFolder, gotName string
	var gotBytes []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, r.ParseMultipartForm(10<<20))
		gotPreset = r.FormValue("upload_preset")
		gotFolder = r.FormValue("folder")
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		gotName = hdr.Filename
		gotBytes, _ = io.ReadAll(f)
		_ = json.NewEncoder(w).Encode(map[string]string{"secure_url": "https://res.test/demo/abc.webp"})
	}))
	defer srv.Close()

	host := NewCloudinaryHost(srv.URL+"/", "demo", "unsigned", 5*time.Second)
	url, err := host.Upload(context.Background(), File{Name: "abc.webp", ContentType: "image/webp", Content: []byte("RIFFdata")}, "campushub/posts/1")
	require.NoError(t, err)
	assert.Equal(t, "https://res.test/demo/abc.webp", url)
	assert.Equal(t, "/demo/image/upload", gotPath)
	assert.Equal(t, "unsigned", gotPreset)
	assert.Equal(t, "campushub/posts/1", gotFolder)
	assert.Equal(t, "abc.webp", gotName)
	assert.Equal(t, []byte("RIFFdata"), gotBytes)
}

func TestCloudinaryHost_VideoEndpointAndErrors(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/demo/video/upload" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"message":"wrong path"}}`))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Upload preset not found"}}`))
	}))
	defer srv.Close()

	host := NewCloudinaryHost(srv.URL, "demo", "missing", time.Second)
	_, err := host.Upload(context.Background(), File{Name: "clip.mp4", ContentType: "video/mp4", Content: []byte("x")}, "f")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Upload preset not found")

	_, err = NewCloudinaryHost(srv.URL, "", "", time.Second).Upload(context.Background(), File{}, "f")
	assert.Error(t, err)
}

func TestPipeline_UploadWrapsHostFailure(t *testing.T) {
	t.Parallel()
	host := &recordingHost{fail: map[string]error{"a.png": errors.New("quota")}}
	p := NewPipeline(host, DefaultConfig())
	_, err := p.Upload(context.Background(), File{Name: "a.png", ContentType: "image/png", Content: noisePNG(t, 2, 2)}, BucketPosts, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota")
}
