package main

import (
	"context"
	"log/slog"

	"github.com/zombor/fridgetrack/internal/detection"
	"github.com/zombor/fridgetrack/internal/expiry"
	"github.com/zombor/fridgetrack/internal/scanning"
)

// providers are the process-wide model handles, resolved once at startup
type providers struct {
	vision    scanning.Vision
	text      scanning.TextGenerator
	ocr       expiry.OCR
	detectors []detection.Provider
	closers   []func() error
}

func (p *providers) Close() {
	for _, closeFn := range p.closers {
		if err := closeFn(); err != nil {
			slog.Warn("Failed to close provider", "error", err)
		}
	}
}

// resolveProviders builds every configured provider. Missing or broken configuration is
// logged and skipped, never fatal.
func resolveProviders(ctx context.Context, cfg *Config) *providers {
	p := &providers{}

	if cfg.GeminiKey != "" {
		gemini, err := scanning.NewGemini(cfg.GeminiKey, cfg.GeminiModel)
		if err != nil {
			slog.Warn("Gemini unavailable", "provider", "gemini", "error", err)
		} else {
			slog.Info("Gemini configured", "model", cfg.GeminiModel)
			p.vision = gemini
			p.closers = append(p.closers, gemini.Close)
		}
	}
	if p.vision == nil && cfg.OllamaURL != "" {
		ollama, err := scanning.NewOllama(cfg.OllamaURL, cfg.OllamaModel)
		if err != nil {
			slog.Warn("Ollama unavailable", "provider", "ollama", "error", err)
		} else {
			slog.Info("Ollama configured", "url", cfg.OllamaURL, "model", cfg.OllamaModel)
			p.vision = ollama
			p.closers = append(p.closers, ollama.Close)
		}
	}
	if p.vision == nil {
		slog.Warn("No vision model configured; vision detection and date reading disabled")
	}

	switch {
	case p.vision != nil:
		p.text = p.vision
	case cfg.GroqKey != "":
		groq, err := scanning.NewGroq(cfg.GroqKey, "")
		if err != nil {
			slog.Warn("Groq unavailable", "provider", "groq", "error", err)
			break
		}
		slog.Info("Groq configured for text suggestions")
		p.text = groq
	default:
		slog.Warn("No language model configured; using shelf-life table and fallback recipes")
	}

	if cfg.VisionOCRKey != "" {
		ocr, err := expiry.NewCloudVisionOCR(ctx, cfg.VisionOCRKey)
		if err != nil {
			slog.Warn("Cloud Vision OCR unavailable", "provider", "cloud-vision", "error", err)
		} else {
			slog.Info("Cloud Vision OCR configured")
			p.ocr = ocr
		}
	} else {
		slog.Warn("No OCR configured; printed dates will not be read")
	}

	roboflowCfg := detection.RoboflowConfig{
		APIKey:    cfg.RoboflowKey,
		Workspace: cfg.RoboflowWorkspace,
		Project:   cfg.RoboflowProject,
		Version:   cfg.RoboflowVersion,
	}
	if roboflowCfg.Valid() {
		roboflow, err := detection.NewRoboflow(roboflowCfg)
		if err != nil {
			slog.Warn("Roboflow unavailable", "provider", "roboflow", "error", err)
		} else {
			slog.Info("Roboflow detection configured", "project", cfg.RoboflowProject, "version", cfg.RoboflowVersion)
			p.detectors = append(p.detectors, roboflow)
		}
	}
	if cfg.YOLOURL != "" {
		yolo, err := detection.NewYOLO(cfg.YOLOURL)
		if err != nil {
			slog.Warn("YOLO unavailable", "provider", "yolo", "error", err)
		} else {
			slog.Info("YOLO detection configured", "url", cfg.YOLOURL)
			p.detectors = append(p.detectors, yolo)
		}
	}
	if p.vision != nil {
		name := "gemini"
		if _, ok := p.vision.(*scanning.Ollama); ok {
			name = "ollama"
		}
		p.detectors = append(p.detectors, detection.NewVisionDetector(name, p.vision))
	}

	return p
}
