package scanning

import "context"

// TextGenerator answers free-text prompts
type TextGenerator interface {
	// AskText sends a text-only prompt and returns the raw model response
	AskText(ctx context.Context, prompt string) (string, error)
}

// Vision is a vision-language model that can also answer text-only prompts
type Vision interface {
	TextGenerator

	// Ask sends a PNG image together with a prompt and returns the raw model response
	Ask(ctx context.Context, image []byte, prompt string) (string, error)

	// Close releases the underlying client
	Close() error
}
