package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type stubEmbedder struct {
	result EmbeddingResult
	err    error
	got    string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	s.got = text
	return s.result, s.err
}

func TestInstructionEmbedder_PrependsQueryPrefix(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{0.1, 0.2}}}
	emb := NewInstructionEmbedder(inner, "query: ")

	res, err := emb.Embed(context.Background(), "api timeout")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.got != "query: api timeout" {
		t.Errorf("expected prefixed text, got %q", inner.got)
	}
	if len(res.Embedding) != 2 {
		t.Errorf("expected 2-element vector, got %d", len(res.Embedding))
	}
}

func TestInstructionEmbedder_WrapsInnerError(t *testing.T) {
	innerErr := errors.New("provider down")
	emb := NewInstructionEmbedder(&stubEmbedder{err: innerErr}, "query: ")

	_, err := emb.Embed(context.Background(), "x")
	if !errors.Is(err, innerErr) {
		t.Fatalf("expected wrapped inner error, got %v", err)
	}
}

func TestRevisionConflictError(t *testing.T) {
	err := fmt.Errorf("approve: %w", NewRevisionConflict(2, "approved"))

	if !errors.Is(err, ErrRevisionConflict) {
		t.Fatal("expected errors.Is ErrRevisionConflict")
	}
	var rce *RevisionConflictError
	if !errors.As(err, &rce) {
		t.Fatal("expected errors.As RevisionConflictError")
	}
	if rce.CurrentVersion != 2 || rce.CurrentStatus != "approved" {
		t.Errorf("unexpected conflict details: %+v", rce)
	}
	if rce.Error() != "revision conflict: version 2 is approved" {
		t.Errorf("unexpected message %q", rce.Error())
	}
}
