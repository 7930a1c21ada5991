package prompt

import (
	"errors"
	"strings"
	"testing"

	"echo-grade/api/internal/grade/types"
)

func TestDecodeExtract(t *testing.T) {
	raw := "```json\n{\"equations\":[{\"equation\":\"E=mc^2\",\"description\":\"energy equals m c squared\"}]}\n```"
	out, err := DecodeExtract(raw)
	if err != nil {
		t.Fatalf("DecodeExtract: %v", err)
	}
	if len(out.Equations) != 1 || out.Equations[0].Equation != "E=mc^2" {
		t.Fatalf("unexpected reply: %+v", out)
	}
}

func TestDecodeExtractRejects(t *testing.T) {
	cases := map[string]string{
		"empty":       "   ",
		"not json":    "there are no equations",
		"wrong shape": `{"items":[]}`,
		"empty item":  `{"equations":[{"equation":""}]}`,
		"wrong type":  `{"equations":"E=mc^2"}`,
		"broken json": `{"equations":[`,
	}
	for name, raw := range cases {
		if _, err := DecodeExtract(raw); !errors.Is(err, types.ErrParse) {
			t.Fatalf("%s: expected ErrParse, got %v", name, err)
		}
	}
}

func TestDecodeFeedback(t *testing.T) {
	raw := `Here you go: {"score_out_of_10": 7.5, "verdict": "good", "comment": "Mostly right.", "advice": "Show the proof.", "unmatched_equations": ["a^2+b^2=c^2"]}`
	out, err := DecodeFeedback(raw)
	if err != nil {
		t.Fatalf("DecodeFeedback: %v", err)
	}
	if out.ScoreOutOf10 == nil || *out.ScoreOutOf10 != 7.5 || out.Verdict != "good" {
		t.Fatalf("unexpected reply: %+v", out)
	}
	if _, err := DecodeFeedback(`{"verdict":"good","comment":"x","score_out_of_10":42}`); !errors.Is(err, types.ErrParse) {
		t.Fatalf("expected out-of-range score to fail, got %v", err)
	}
}

func TestExtractionPromptCarriesText(t *testing.T) {
	p := Extraction("F = ma holds")
	if !strings.Contains(p, "F = ma holds") || !strings.Contains(p, `"equations"`) {
		t.Fatalf("prompt misses text or schema: %s", p)
	}
}

func TestFeedbackPromptCarriesInput(t *testing.T) {
	p := Feedback(map[string]any{"final_score": 0.5})
	if !strings.Contains(p, `INPUT_JSON:`) || !strings.Contains(p, `"final_score":0.5`) {
		t.Fatalf("prompt misses input: %s", p)
	}
}
