package media

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"net/http"
	"os"
	"path/filepath"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp" // register WebP decoder

	"agora/internal/models"
)

const (
	localMaxDimension = 2048
	localWebPQuality  = 80
)

// LocalUploader validates, downscales, and re-encodes uploads to WebP files
// under a directory, returning a URL rooted at baseURL. Filenames are the
// content hash, so re-uploading the same bytes is idempotent.
type LocalUploader struct {
	dir     string
	baseURL string
}

// NewLocalUploader creates the target directory if needed.
func NewLocalUploader(dir, baseURL string) (*LocalUploader, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("media: create upload dir: %w", err)
	}
	return &LocalUploader{dir: dir, baseURL: baseURL}, nil
}

func (u *LocalUploader) Upload(_ context.Context, _ string, content []byte) (string, error) {
	if len(content) == 0 {
		return "", models.NewValidationError("no file uploaded")
	}
	if len(content) > MaxUploadSizeBytes {
		return "", models.NewValidationError(fmt.Sprintf("file too large (max %dMB)", MaxUploadSizeBytes/(1024*1024)))
	}
	if !isAllowedImageMIME(http.DetectContentType(content)) {
		return "", models.NewValidationError("invalid image type")
	}

	decoded, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return "", models.NewValidationError("invalid image file")
	}
	resized := resizeToFit(decoded, localMaxDimension, localMaxDimension)

	buf := &bytes.Buffer{}
	if err := webp.Encode(buf, resized, &webp.Options{Quality: localWebPQuality}); err != nil {
		return "", models.NewInternalError(err)
	}

	name := contentHash(buf.Bytes()) + ".webp"
	path := filepath.Join(u.dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return "", models.NewExternalError("write image", err)
	}
	return u.baseURL + "/" + name, nil
}

// Open returns the stored bytes for a previously uploaded file name.
func (u *LocalUploader) Open(name string) ([]byte, error) {
	clean := filepath.Base(name)
	raw, err := os.ReadFile(filepath.Join(u.dir, clean))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, models.NewNotFoundError("image", clean)
		}
		return nil, models.NewExternalError("read image", err)
	}
	return raw, nil
}

func isAllowedImageMIME(contentType string) bool {
	switch contentType {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scaleW := float64(maxWidth) / float64(w)
	scaleH := float64(maxHeight) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
