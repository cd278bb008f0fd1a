package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zombor/fridgetrack/internal/imaging"
)

// cocoFoodClasses are the COCO classes that count as food or kitchen items
var cocoFoodClasses = map[string]bool{
	"apple":      true,
	"banana":     true,
	"orange":     true,
	"broccoli":   true,
	"carrot":     true,
	"hot dog":    true,
	"pizza":      true,
	"donut":      true,
	"cake":       true,
	"sandwich":   true,
	"bottle":     true,
	"wine glass": true,
	"cup":        true,
	"fork":       true,
	"knife":      true,
	"spoon":      true,
	"bowl":       true,
}

// YOLO calls a YOLO inference sidecar.
//
// The sidecar accepts a multipart POST with an "image" file and a "conf" field and answers
// {"predictions": [{"class_name": "apple", "confidence": 0.91, "box": [x1, y1, x2, y2]}]}.
type YOLO struct {
	url    string
	client *http.Client
}

// NewYOLO creates a client for the sidecar at url
func NewYOLO(url string) (*YOLO, error) {
	if url == "" {
		return nil, fmt.Errorf("yolo url is required")
	}
	return &YOLO{
		url: url,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

// Name implements Provider
func (y *YOLO) Name() string {
	return "yolo"
}

// Predict implements Provider
func (y *YOLO) Predict(ctx context.Context, img *imaging.Image, threshold float64) ([]Prediction, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("image", "image.png")
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(img.PNG); err != nil {
		return nil, fmt.Errorf("writing image: %w", err)
	}
	if err := writer.WriteField("conf", strconv.FormatFloat(threshold, 'f', -1, 64)); err != nil {
		return nil, fmt.Errorf("writing threshold: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, y.url, &body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling yolo sidecar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("yolo error: status=%d body=%s", resp.StatusCode, string(bodyBytes))
	}

	var yoloResp struct {
		Predictions []struct {
			ClassName  string     `json:"class_name"`
			Confidence float64    `json:"confidence"`
			Box        [4]float64 `json:"box"`
		} `json:"predictions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&yoloResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	predictions := make([]Prediction, 0, len(yoloResp.Predictions))
	for _, p := range yoloResp.Predictions {
		name := strings.ToLower(strings.TrimSpace(p.ClassName))
		food := cocoFoodClasses[name]
		predictions = append(predictions, Prediction{
			ClassName:   name,
			Confidence:  p.Confidence,
			Geometry:    Corners{X1: p.Box[0], Y1: p.Box[1], X2: p.Box[2], Y2: p.Box[3]},
			FoodRelated: &food,
		})
	}
	return predictions, nil
}
