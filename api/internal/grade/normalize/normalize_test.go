package normalize

import (
	"strings"
	"testing"

	"echo-grade/api/internal/grade/types"
)

func TestForm(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"E = mc²", "E=mc^2"},
		{"$E=mc^2$", "E=mc^2"},
		{"$$ a^{2} + b^{2} = c^{2} $$.", "a^2+b^2=c^2"},
		{`\(F = m \times a\)`, "F=m*a"},
		{"F = m · a", "F=m*a"},
		{"y = x**2 − 1", "y=x^2-1"},
		{"a ÷ b", "a/b"},
		{"x ≤ 10", "x<=10"},
		{`\left( a \right)`, "(a)"},
		{`x \leq y`, "x<=y"},
		{"H₂O", "H_2O"},
		{"x¹²", "x^12"},
		{"  sin   x  ", "sin x"},
		{"", ""},
		{"no math here", "no math here"},
	}
	for _, tc := range tests {
		if got := Form(tc.in); got != tc.want {
			t.Errorf("Form(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormIdempotent(t *testing.T) {
	inputs := []string{
		"E = mc²", "$$ a^{2} + b^{2} = c^{2} $$.", "``x``", "$$$x$$$",
		`\(\(x\)\)`, "y = x***2", "a — b – c", "ＡＢ＝１", "x^{ {2} }", "$ $", ".,;:",
		"f(x) = 3x² + 2x − 5;", `\frac{1}{2} \cdot m v^2`,
		nested(`\(`, `\)`, "x=1", 20), nested("$", "$", "x = 1.", 40),
	}
	for _, in := range inputs {
		once := Form(in)
		if twice := Form(once); twice != once {
			t.Errorf("Form not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}

func TestFormDeepDelimiters(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{nested(`\(`, `\)`, "x=1", 20), "x=1"},
		{nested(`\[`, `\]`, "y = 2", 64), "y=2"},
		{nested("`", "`", nested("$$", "$$", "a+b", 10), 10), "a+b"},
	}
	for _, c := range cases {
		if got := Form(c.in); got != c.want {
			t.Fatalf("Form(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func nested(left, right, s string, depth int) string {
	return strings.Repeat(left, depth) + s + strings.Repeat(right, depth)
}

func TestNormalizeFillsForm(t *testing.T) {
	eq := types.Equation{Raw: "E = mc²", Position: 4}
	got := Normalize(eq)
	if got.Normalized != "E=mc^2" || got.Raw != eq.Raw || got.Position != 4 {
		t.Fatalf("unexpected equation: %+v", got)
	}
	again := Normalize(types.Equation{Raw: got.Normalized})
	if again.Normalized != got.Normalized {
		t.Fatalf("normalize(normalize(e)) != normalize(e): %q vs %q", again.Normalized, got.Normalized)
	}
}

func TestAll(t *testing.T) {
	eqs := []types.Equation{{Raw: "a × b"}, {Raw: "c ÷ d"}}
	All(eqs)
	if eqs[0].Normalized != "a*b" || eqs[1].Normalized != "c/d" {
		t.Fatalf("unexpected forms: %+v", eqs)
	}
}
