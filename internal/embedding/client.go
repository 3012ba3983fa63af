// Package embedding talks to the external face embedding service. The
// service is opaque: it takes a captured image and returns a fixed-length
// face vector. Everything beyond the vector's length and numeric type is
// its business.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/kozaktomas/gym-gate/internal/biometric"
	"github.com/kozaktomas/gym-gate/internal/constants"
)

const defaultEmbeddingURL = "http://localhost:8000"

// ErrNoFaceDetected is returned when the service finds no face in the image.
// Callers treat this as "abort the capture", not as a matching failure.
var ErrNoFaceDetected = errors.New("no face detected")

// ErrMultipleFaces is returned when more than one face is found; enrollment
// and gate captures must contain exactly one person.
var ErrMultipleFaces = errors.New("multiple faces detected")

// Client computes face vectors using the embedding service.
type Client struct {
	baseURL string
	dim     int
	client  *http.Client
}

// NewClient creates a new embedding client. dim is the vector length the
// service is expected to produce; a vector of any other length is rejected
// as provider drift. dim <= 0 falls back to the engine's dimension.
func NewClient(baseURL string, dim int) *Client {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	if dim <= 0 {
		dim = biometric.VectorDim
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		dim:     dim,
		client:  &http.Client{},
	}
}

// faceDetection represents a single detected face.
type faceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	DetScore  float64   `json:"det_score"`
}

// faceResponse represents the response from the face embedding endpoint.
type faceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []faceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// postMultipartImage constructs a multipart form with the image data and
// posts it to the given endpoint. The part carries an explicit Content-Type
// based on magic byte detection.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="capture.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// CaptureVector extracts the face vector from a captured image. The image is
// downscaled before upload. Exactly one face must be present.
func (c *Client) CaptureVector(ctx context.Context, imageData []byte) ([]float32, error) {
	resized, err := ResizeImage(imageData, constants.MaxImageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare image: %w", err)
	}

	body, err := c.postMultipartImage(ctx, "/embed/face", resized)
	if err != nil {
		return nil, err
	}

	var faceResp faceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	switch {
	case len(faceResp.Faces) == 0:
		return nil, ErrNoFaceDetected
	case len(faceResp.Faces) > 1:
		return nil, ErrMultipleFaces
	}

	vector := faceResp.Faces[0].Embedding
	if len(vector) != c.dim {
		return nil, fmt.Errorf("unexpected embedding dimension: got %d, want %d", len(vector), c.dim)
	}
	return vector, nil
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// WebP: 52 49 46 46 ... 57 45 42 50
	if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return "image/webp"
	}
	return "application/octet-stream"
}
