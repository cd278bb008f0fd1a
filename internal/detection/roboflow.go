package detection

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/zombor/fridgetrack/internal/imaging"
)

const roboflowBaseURL = "https://detect.roboflow.com"

// RoboflowConfig identifies a hosted Roboflow model
type RoboflowConfig struct {
	APIKey    string
	Workspace string
	Project   string
	Version   int

	// BaseURL overrides the hosted inference endpoint
	BaseURL string
}

// Valid reports whether the config has real credentials and a model to call
func (c RoboflowConfig) Valid() bool {
	if c.Project == "" || c.Version <= 0 {
		return false
	}
	key := strings.ToLower(strings.TrimSpace(c.APIKey))
	switch {
	case key == "":
		return false
	case strings.HasPrefix(key, "your"), key == "changeme", key == "xxx":
		return false
	}
	return true
}

// Roboflow calls the Roboflow hosted object-detection API
type Roboflow struct {
	cfg    RoboflowConfig
	client *http.Client
}

// NewRoboflow creates a Roboflow client, rejecting missing or placeholder credentials
func NewRoboflow(cfg RoboflowConfig) (*Roboflow, error) {
	if !cfg.Valid() {
		return nil, fmt.Errorf("roboflow credentials are missing or placeholders")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = roboflowBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	return &Roboflow{
		cfg: cfg,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Name implements Provider
func (r *Roboflow) Name() string {
	return "roboflow"
}

// Predict implements Provider
func (r *Roboflow) Predict(ctx context.Context, img *imaging.Image, threshold float64) ([]Prediction, error) {
	query := url.Values{}
	query.Set("api_key", r.cfg.APIKey)
	query.Set("confidence", strconv.Itoa(int(math.Round(threshold*100))))
	endpoint := fmt.Sprintf("%s/%s/%d?%s", r.cfg.BaseURL, r.cfg.Project, r.cfg.Version, query.Encode())

	body := strings.NewReader(base64.StdEncoding.EncodeToString(img.PNG))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling roboflow API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("roboflow api error: status=%d body=%s", resp.StatusCode, string(bodyBytes))
	}

	var rfResp struct {
		Predictions []struct {
			X          float64 `json:"x"`
			Y          float64 `json:"y"`
			Width      float64 `json:"width"`
			Height     float64 `json:"height"`
			Confidence float64 `json:"confidence"`
			Class      string  `json:"class"`
		} `json:"predictions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rfResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	predictions := make([]Prediction, 0, len(rfResp.Predictions))
	for _, p := range rfResp.Predictions {
		predictions = append(predictions, Prediction{
			ClassName:  strings.ToLower(strings.TrimSpace(p.Class)),
			Confidence: p.Confidence,
			Geometry:   CenterSize{X: p.X, Y: p.Y, Width: p.Width, Height: p.Height},
		})
	}
	return predictions, nil
}
