package expiry

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/vision/v1"
)

// CloudVisionOCR implements OCR with Google Cloud Vision document text detection
type CloudVisionOCR struct {
	service *vision.Service
}

// NewCloudVisionOCR creates a Cloud Vision client authenticated with an API key
func NewCloudVisionOCR(ctx context.Context, apiKey string, opts ...option.ClientOption) (*CloudVisionOCR, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("cloud vision api key is required")
	}

	service, err := vision.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("creating vision service: %w", err)
	}
	return &CloudVisionOCR{service: service}, nil
}

// ReadText implements OCR, returning one span per recognized paragraph
func (c *CloudVisionOCR) ReadText(ctx context.Context, png []byte) ([]TextSpan, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{{
			Image:    &vision.Image{Content: base64.StdEncoding.EncodeToString(png)},
			Features: []*vision.Feature{{Type: "DOCUMENT_TEXT_DETECTION"}},
		}},
	}

	resp, err := c.service.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("annotating image: %w", err)
	}
	if len(resp.Responses) == 0 {
		return nil, nil
	}

	annotation := resp.Responses[0]
	if annotation.Error != nil && annotation.Error.Message != "" {
		return nil, fmt.Errorf("vision error: code=%d message=%s", annotation.Error.Code, annotation.Error.Message)
	}
	if annotation.FullTextAnnotation == nil {
		return nil, nil
	}

	var spans []TextSpan
	for _, page := range annotation.FullTextAnnotation.Pages {
		for _, block := range page.Blocks {
			for _, paragraph := range block.Paragraphs {
				text := paragraphText(paragraph)
				if text == "" {
					continue
				}
				spans = append(spans, TextSpan{Text: text, Confidence: paragraph.Confidence})
			}
		}
	}
	return spans, nil
}

// paragraphText rebuilds paragraph text from symbols, adding spaces only where Vision
// detected a break so that "03/20/2099" stays one token
func paragraphText(p *vision.Paragraph) string {
	var sb strings.Builder
	for _, word := range p.Words {
		for _, symbol := range word.Symbols {
			sb.WriteString(symbol.Text)
			if symbol.Property == nil || symbol.Property.DetectedBreak == nil {
				continue
			}
			switch symbol.Property.DetectedBreak.Type {
			case "SPACE", "SURE_SPACE", "EOL_SURE_SPACE", "LINE_BREAK":
				sb.WriteString(" ")
			}
		}
	}
	return strings.TrimSpace(sb.String())
}
