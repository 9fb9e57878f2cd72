package llm

import (
	"context"
	"strings"
	"testing"
)

func TestBuildAnalyzeMessagesSingleChunk(t *testing.T) {
	msgs := BuildAnalyzeMessages(AnalyzeInput{PolicyText: "policy text", ChunkIndex: 0, ChunkCount: 1})
	if len(msgs) != 2 {
		t.Fatalf("expected system+user messages, got %d", len(msgs))
	}
	if msgs[0].Role != RoleSystem || msgs[1].Role != RoleUser {
		t.Fatalf("bad roles: %s, %s", msgs[0].Role, msgs[1].Role)
	}
	if msgs[1].Content != "policy text" {
		t.Fatalf("single chunk must not carry part framing: %q", msgs[1].Content)
	}
}

func TestBuildAnalyzeMessagesMultiChunkFraming(t *testing.T) {
	msgs := BuildAnalyzeMessages(AnalyzeInput{PolicyText: "chunk body", ChunkIndex: 1, ChunkCount: 3})
	if !strings.Contains(msgs[1].Content, "part 2 of 3") {
		t.Fatalf("expected part framing, got %q", msgs[1].Content)
	}
	if !strings.Contains(msgs[1].Content, "chunk body") {
		t.Fatalf("chunk text missing from message")
	}
}

func TestBuildClassifyMessagesCarriesFeatures(t *testing.T) {
	msgs := BuildClassifyMessages(ClassifyInput{Features: []ClassifyFeature{
		{ID: "maternity", Name: "Maternity", Value: "covered after 24 months"},
	}})
	if !strings.Contains(msgs[1].Content, `"maternity"`) {
		t.Fatalf("features missing from payload: %q", msgs[1].Content)
	}
	if !strings.Contains(msgs[0].Content, "GREAT") || !strings.Contains(msgs[0].Content, "UNCLEAR") {
		t.Fatalf("system prompt must name the categories")
	}
}

func TestFixJSONContextRoundTrip(t *testing.T) {
	ctx := WithFixJSON(context.Background(), `{"broken":`)
	raw, ok := FixJSONFromContext(ctx)
	if !ok || raw != `{"broken":` {
		t.Fatalf("got %q/%v", raw, ok)
	}
}
