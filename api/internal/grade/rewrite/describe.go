package rewrite

import "strings"

// Multi-character operators first; Replacer tries patterns in order.
var words = strings.NewReplacer(
	"<=", " is less than or equal to ",
	">=", " is greater than or equal to ",
	"!=", " is not equal to ",
	"sqrt", " the square root of ",
	"=", " equals ",
	"<", " is less than ",
	">", " is greater than ",
	"+", " plus ",
	"-", " minus ",
	"*", " times ",
	"/", " divided by ",
	"^", " to the power of ",
	"_", " sub ",
	"(", " ", ")", " ", "{", " ", "}", " ", "[", " ", "]", " ",
	`\frac`, " fraction ",
	`\`, " ",
)

// Describe reads a canonical equation form aloud, e.g.
// "E=mc^2" -> "E equals mc to the power of 2".
func Describe(form string) string {
	s := strings.Join(strings.Fields(words.Replace(form)), " ")
	if s == "" {
		return "an equation"
	}
	return s
}
