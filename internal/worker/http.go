package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
	"time"

	"github.com/andresmejia3/faceindex/internal/faceindex"
)

const defaultEmbeddingURL = "http://localhost:8000"

// HTTPDetector calls a face embedding server exposing POST /embed/face.
type HTTPDetector struct {
	baseURL string
	client  *http.Client
}

var _ faceindex.Detector = (*HTTPDetector)(nil)

// NewHTTPDetector creates a detector for baseURL. A zero timeout means no limit.
func NewHTTPDetector(baseURL string, timeout time.Duration) *HTTPDetector {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	return &HTTPDetector{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// faceDetection is a single face in the server response.
type faceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float64 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

type faceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []faceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// DetectFaces implements faceindex.Detector.
func (d *HTTPDetector) DetectFaces(ctx context.Context, imagePath string, imageData []byte) ([]faceindex.Detection, error) {
	body, err := d.postImage(ctx, "/embed/face", filepath.Base(imagePath), imageData)
	if err != nil {
		return nil, err
	}

	var resp faceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	detections := make([]faceindex.Detection, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		if len(f.BBox) != 4 {
			return nil, fmt.Errorf("face %d: expected 4 bbox values, got %d", f.FaceIndex, len(f.BBox))
		}
		x1, y1, x2, y2 := f.BBox[0], f.BBox[1], f.BBox[2], f.BBox[3]
		detections = append(detections, faceindex.Detection{
			Location: faceindex.BoundingBox{
				Top:    int(math.Round(y1)),
				Right:  int(math.Round(x2)),
				Bottom: int(math.Round(y2)),
				Left:   int(math.Round(x1)),
			},
			Embedding: faceindex.Embedding(f.Embedding),
		})
	}
	return detections, nil
}

func (d *HTTPDetector) postImage(ctx context.Context, endpoint, filename string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", http.DetectContentType(imageData))
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

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// Close is a no-op; it lets callers treat both detectors uniformly.
func (d *HTTPDetector) Close() error { return nil }
