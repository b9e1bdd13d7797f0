package agentout

import (
	"errors"
	"testing"

	"github.com/drsproject/drs/internal/review"
)

const fencedIssue = "Here you go:\n```json\n{\"issues\":[{\"category\":\"SECURITY\",\"severity\":\"HIGH\",\"title\":\"X\",\"file\":\"a.ts\",\"problem\":\"p\",\"solution\":\"s\"}]}\n```"

func TestParseReview_FencedBlock(t *testing.T) {
	res, err := ParseReview(fencedIssue)
	if err != nil {
		t.Fatalf("ParseReview: %v", err)
	}
	if res.Kind != KindIssues || len(res.Issues) != 1 {
		t.Fatalf("result = %+v", res)
	}
	got := res.Issues[0]
	if got.Category != review.CategorySecurity || got.Severity != review.SeverityHigh || got.File != "a.ts" {
		t.Errorf("issue = %+v", got)
	}
	if got.Agent != "" {
		t.Errorf("agent should be empty until dispatch stamps it, got %q", got.Agent)
	}
}

func TestParseReview_WholeTextJSON(t *testing.T) {
	res, err := ParseReview(`{"issues":[]}`)
	if err != nil {
		t.Fatalf("ParseReview: %v", err)
	}
	if res.Kind != KindIssues || len(res.Issues) != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestParseReview_BraceScan(t *testing.T) {
	text := `I found one problem. {"not":"this"} and then {"issues":[{"category":"QUALITY","severity":"LOW","title":"T","file":"f.go","line":7,"problem":"p","solution":"s"}]} done.`
	res, err := ParseReview(text)
	if err != nil {
		t.Fatalf("ParseReview: %v", err)
	}
	if len(res.Issues) != 1 || res.Issues[0].Line != 7 {
		t.Errorf("issues = %+v", res.Issues)
	}
}

func TestParseReview_InvalidItemsDroppedNotFatal(t *testing.T) {
	text := `{"issues":[
		{"category":"NOPE","severity":"HIGH","title":"bad cat","file":"a.go","problem":"p","solution":"s"},
		{"category":"SECURITY","severity":"WRONG","title":"bad sev","file":"a.go","problem":"p","solution":"s"},
		{"category":"SECURITY","severity":"HIGH","title":"bad line","file":"a.go","line":"twelve","problem":"p","solution":"s"},
		{"category":"SECURITY","severity":"HIGH","title":"ok","file":"a.go","problem":"p","solution":"s"}
	]}`
	res, err := ParseReview(text)
	if err != nil {
		t.Fatalf("ParseReview: %v", err)
	}
	if len(res.Issues) != 1 || res.Issues[0].Title != "ok" {
		t.Errorf("issues = %+v", res.Issues)
	}
	if res.Dropped != 3 {
		t.Errorf("Dropped = %d, want 3", res.Dropped)
	}
}

func TestParseReview_ClosedEnvelopeRejectsExtras(t *testing.T) {
	_, err := ParseReview(`{"issues":[],"confidence":0.9}`)
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("err = %v, want SchemaError", err)
	}
	if schemaErr.Raw == "" {
		t.Error("schema error should carry the raw text")
	}
}

func TestParseReview_SyntaxVsSchemaErrors(t *testing.T) {
	_, err := ParseReview("this is not json at all")
	var syntaxErr *SyntaxError
	if !errors.As(err, &syntaxErr) {
		t.Fatalf("err = %v, want SyntaxError", err)
	}
	if syntaxErr.Raw != "this is not json at all" {
		t.Errorf("Raw = %q", syntaxErr.Raw)
	}

	_, err = ParseReview(`{"somethingElse": true}`)
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("err = %v, want SchemaError", err)
	}
}

func TestParseReview_PointerDetected(t *testing.T) {
	res, err := ParseReview(`{"outputType":"review","outputPath":"out/review.json"}`)
	if err != nil {
		t.Fatalf("ParseReview: %v", err)
	}
	if res.Kind != KindPointer || res.Pointer.OutputPath != "out/review.json" {
		t.Errorf("result = %+v", res)
	}
}

func TestParseDescription(t *testing.T) {
	text := "```json\n" + `{"type":"feature","title":"Add widget","summary":["adds a widget"],"walkthrough":[{"file":"w.go","changeType":"added","semanticLabel":"feature","title":"widget"}],"labels":["feature"]}` + "\n```"
	res, err := ParseDescription(text)
	if err != nil {
		t.Fatalf("ParseDescription: %v", err)
	}
	if res.Kind != KindDescription || res.Description.Title != "Add widget" {
		t.Errorf("result = %+v", res)
	}
}

func TestParseDescription_ClosedSchema(t *testing.T) {
	_, err := ParseDescription(`{"type":"feature","title":"t","summary":["s"],"extra":1}`)
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("err = %v, want SchemaError", err)
	}
}

func TestFencedBlocks_UntaggedAndTagged(t *testing.T) {
	text := "prose\n```json\n{\"a\":1}\n```\nmore\n```\n{\"b\":2}\n```\n```python\nprint()\n```"
	blocks := fencedBlocks(text)
	if len(blocks) != 2 {
		t.Fatalf("blocks = %v", blocks)
	}
}

func TestBraceCandidates_NestingAndStrings(t *testing.T) {
	text := `x {"a":{"b":"}"}} y {"c":1}`
	got := braceCandidates(text)
	if len(got) != 2 {
		t.Fatalf("candidates = %v", got)
	}
	if got[0] != `{"a":{"b":"}"}}` {
		t.Errorf("first candidate = %q", got[0])
	}
}
