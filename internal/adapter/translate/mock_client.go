package translate

import (
	"context"
	"fmt"
)

// MockClient is a mock implementation of Translator for testing.
type MockClient struct {
	// Err, when set, is returned from every call.
	Err error
}

// NewMockClient creates a new mock translator.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Ensure MockClient implements Translator interface.
var _ Translator = (*MockClient)(nil)

// Translate tags text with the target language.
func (m *MockClient) Translate(ctx context.Context, text, target string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("[%s] %s", target, text), nil
}
