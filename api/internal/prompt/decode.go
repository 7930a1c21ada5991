package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"echo-grade/api/internal/grade/types"
	"echo-grade/api/internal/util"
)

var (
	extractSchema  = mustSchema("extract", ExtractSchema)
	feedbackSchema = mustSchema("feedback", FeedbackSchema)
)

func mustSchema(name, raw string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("bad %s schema (embedded): %v", name, err))
	}
	return s
}

// ExtractReply is the decoded extraction reply.
type ExtractReply struct {
	Equations []ExtractItem `json:"equations"`
}

type ExtractItem struct {
	Equation    string `json:"equation"`
	Description string `json:"description"`
}

// FeedbackReply is the decoded feedback reply.
type FeedbackReply struct {
	ScoreOutOf10       *float64 `json:"score_out_of_10"`
	Verdict            string   `json:"verdict"`
	Comment            string   `json:"comment"`
	Advice             string   `json:"advice"`
	UnmatchedEquations []string `json:"unmatched_equations"`
}

func DecodeExtract(raw string) (ExtractReply, error) {
	var out ExtractReply
	err := decode(raw, extractSchema, &out)
	return out, err
}

func DecodeFeedback(raw string) (FeedbackReply, error) {
	var out FeedbackReply
	err := decode(raw, feedbackSchema, &out)
	return out, err
}

// decode treats the model reply as untrusted: fences and chatter around the
// object are cut, then the object must satisfy the schema before it is
// unmarshalled. Every failure wraps types.ErrParse.
func decode(raw string, schema *gojsonschema.Schema, out any) error {
	txt := util.JSONObject(util.StripCodeFences(raw))
	if strings.TrimSpace(txt) == "" {
		return fmt.Errorf("%w: empty response", types.ErrParse)
	}
	res, err := schema.Validate(gojsonschema.NewStringLoader(txt))
	if err != nil {
		return fmt.Errorf("%w: bad JSON: %v", types.ErrParse, err)
	}
	if !res.Valid() {
		errs := make([]string, 0, len(res.Errors()))
		for _, d := range res.Errors() {
			errs = append(errs, d.String())
		}
		return fmt.Errorf("%w: schema: %s", types.ErrParse, strings.Join(errs, ", "))
	}
	if err := json.Unmarshal([]byte(txt), out); err != nil {
		return fmt.Errorf("%w: bad JSON: %v", types.ErrParse, err)
	}
	return nil
}
