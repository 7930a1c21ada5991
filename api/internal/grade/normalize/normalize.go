// Package normalize canonicalizes equation spans so that spellings of the
// same expression compare equal.
package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"echo-grade/api/internal/grade/types"
)

var (
	// \left before \le, \leq before \le: Replacer tries patterns in order.
	symbols = strings.NewReplacer(
		`\left`, "", `\right`, "",
		`\times`, "*", `\cdot`, "*", `\ast`, "*",
		`\div`, "/",
		`\leq`, "<=", `\geq`, ">=", `\neq`, "!=", `\le`, "<=", `\ge`, ">=",
		`\sqrt`, "sqrt",
		`\,`, "", `\;`, "", `\!`, "",
		"×", "*", "·", "*", "⋅", "*", "∗", "*", "∙", "*",
		"÷", "/", "∕", "/",
		"−", "-", "–", "-", "—", "-", "‐", "-",
		"≤", "<=", "≥", ">=", "≠", "!=",
		"√", "sqrt",
		"**", "^",
	)

	opSpaces   = regexp.MustCompile(`\s*([=+\-*/^<>!(),\[\]{}])\s*`)
	braceGroup = regexp.MustCompile(`\^\{(\w+)\}`)

	superscripts = map[rune]byte{
		'⁰': '0', '¹': '1', '²': '2', '³': '3', '⁴': '4',
		'⁵': '5', '⁶': '6', '⁷': '7', '⁸': '8', '⁹': '9',
	}
	subscripts = map[rune]byte{
		'₀': '0', '₁': '1', '₂': '2', '₃': '3', '₄': '4',
		'₅': '5', '₆': '6', '₇': '7', '₈': '8', '₉': '9',
	}
)

// Normalize returns eq with Normalized filled from its raw span.
func Normalize(eq types.Equation) types.Equation {
	eq.Normalized = Form(eq.Raw)
	return eq
}

// All normalizes every equation in place.
func All(eqs []types.Equation) {
	for i := range eqs {
		eqs[i] = Normalize(eqs[i])
	}
}

// Form is the canonical token stream of s. It is deterministic and total;
// Form(Form(s)) == Form(s).
func Form(s string) string {
	for {
		n := pass(s)
		if n == s {
			return n
		}
		s = n
	}
}

func pass(s string) string {
	s = stripDelimiters(s)
	s = scripts(s)
	s = norm.NFKC.String(s)
	s = symbols.Replace(s)
	s = braceGroup.ReplaceAllString(s, "^$1")
	s = opSpaces.ReplaceAllString(s, "$1")
	return strings.Join(strings.Fields(s), " ")
}

var delimiters = [][2]string{{"$$", "$$"}, {"$", "$"}, {`\(`, `\)`}, {`\[`, `\]`}, {"`", "`"}}

// stripDelimiters peels math delimiters and trailing punctuation until none
// are left around s.
func stripDelimiters(s string) string {
	for {
		prev := s
		s = strings.TrimSpace(s)
		s = strings.TrimRight(s, ".,;:")
		for _, d := range delimiters {
			if len(s) >= len(d[0])+len(d[1]) && strings.HasPrefix(s, d[0]) && strings.HasSuffix(s, d[1]) {
				s = s[len(d[0]) : len(s)-len(d[1])]
			}
		}
		s = strings.TrimSpace(s)
		if s == prev {
			return s
		}
	}
}

// scripts rewrites runs of unicode super/subscript digits as ^digits and
// _digits before NFKC would flatten them into plain digits.
func scripts(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var prev byte
	for _, r := range s {
		switch {
		case superscripts[r] != 0:
			if prev != '^' {
				b.WriteByte('^')
			}
			b.WriteByte(superscripts[r])
			prev = '^'
		case subscripts[r] != 0:
			if prev != '_' {
				b.WriteByte('_')
			}
			b.WriteByte(subscripts[r])
			prev = '_'
		default:
			b.WriteRune(r)
			prev = 0
		}
	}
	return b.String()
}
