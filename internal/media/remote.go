package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"agora/internal/models"
)

// RemoteUploader posts image bytes to an unsigned-upload endpoint of a
// hosted image service and returns the secure URL it hands back. net/http
// is used directly: the provider speaks plain multipart over HTTPS and no
// SDK is involved.
type RemoteUploader struct {
	endpoint string
	preset   string
	client   *http.Client
}

// NewRemoteUploader builds an uploader for the given endpoint and unsigned
// upload preset.
func NewRemoteUploader(endpoint, preset string) *RemoteUploader {
	return &RemoteUploader{
		endpoint: endpoint,
		preset:   preset,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	URL       string `json:"url"`
}

func (u *RemoteUploader) Upload(ctx context.Context, filename string, content []byte) (string, error) {
	if len(content) == 0 {
		return "", models.NewValidationError("no file uploaded")
	}
	if len(content) > MaxUploadSizeBytes {
		return "", models.NewValidationError(fmt.Sprintf("file too large (max %dMB)", MaxUploadSizeBytes/(1024*1024)))
	}

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	if _, err := part.Write(content); err != nil {
		return "", models.NewInternalError(err)
	}
	if err := mw.WriteField("upload_preset", u.preset); err != nil {
		return "", models.NewInternalError(err)
	}
	if err := mw.Close(); err != nil {
		return "", models.NewInternalError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, body)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := u.client.Do(req)
	if err != nil {
		return "", models.NewExternalError("image upload", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", models.NewExternalError("image upload",
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, raw))
	}

	var parsed uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", models.NewExternalError("image upload", err)
	}
	if parsed.SecureURL != "" {
		return parsed.SecureURL, nil
	}
	if parsed.URL != "" {
		return parsed.URL, nil
	}
	return "", models.NewExternalError("image upload", fmt.Errorf("response carries no url"))
}
