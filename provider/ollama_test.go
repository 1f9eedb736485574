package provider

import (
	"chatd/model"
	"testing"
)

// TestOllamaProviderImplementsInterface is a compile-time check that OllamaProvider
// implements the Provider interface. This test will fail to compile if the interface
// is not satisfied.
func TestOllamaProviderImplementsInterface(t *testing.T) {
	var _ model.Provider = (*OllamaProvider)(nil)
}

// Integration tests that need a running Ollama server are exercised through
// the interface contract tests in interface_test.go with a mocked client.
