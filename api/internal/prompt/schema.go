package prompt

// ExtractSchema is extract.schema.json, the reply format of the equation
// extraction prompt.
const ExtractSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "extract",
  "type": "object",
  "required": ["equations"],
  "properties": {
    "equations": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["equation"],
        "properties": {
          "equation":    {"type": "string", "minLength": 1},
          "description": {"type": "string"}
        }
      }
    }
  }
}`

// FeedbackSchema is feedback.schema.json, the reply format of the feedback
// prompt.
const FeedbackSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "feedback",
  "type": "object",
  "required": ["verdict", "comment"],
  "properties": {
    "score_out_of_10":     {"type": "number", "minimum": 0, "maximum": 10},
    "verdict":             {"type": "string", "minLength": 1},
    "comment":             {"type": "string", "minLength": 1},
    "advice":              {"type": "string"},
    "unmatched_equations": {"type": "array", "items": {"type": "string"}}
  }
}`
