package embedding

import (
	"context"
	"testing"
)

func TestOpenAIProvider_Embed_EmptyInputIsNoop(t *testing.T) {
	p := NewOpenAIProvider("test-key", "text-embedding-3-small")
	vectors, err := p.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if vectors != nil {
		t.Errorf("vectors = %+v, want nil for empty input", vectors)
	}
}
