package translate

import "context"

// Translator translates free text into a target language.
type Translator interface {
	Translate(ctx context.Context, text, target string) (string, error)
}
