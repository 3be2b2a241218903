// Package analyzer derives static metrics from a single version's content.
//
// The counters are deliberately approximate token-frequency heuristics,
// deterministic and pure — not a parse or a control-flow-graph analysis.
// The keyword set is the closed set of Java reserved words; content in
// other languages still analyzes, it just scores fewer keyword hits.
package analyzer

import "regexp"

// Metrics is the result of analyzing one content snapshot.
type Metrics struct {
	LOC                  int
	KeywordCount         int
	CyclomaticComplexity int
}

// javaKeywords is the closed, case-sensitive set of Java reserved words.
var javaKeywords = map[string]bool{
	"abstract": true, "assert": true, "boolean": true, "break": true,
	"byte": true, "case": true, "catch": true, "char": true,
	"class": true, "const": true, "continue": true, "default": true,
	"do": true, "double": true, "else": true, "enum": true,
	"extends": true, "final": true, "finally": true, "float": true,
	"for": true, "goto": true, "if": true, "implements": true,
	"import": true, "instanceof": true, "int": true, "interface": true,
	"long": true, "native": true, "new": true, "package": true,
	"private": true, "protected": true, "public": true, "return": true,
	"short": true, "static": true, "strictfp": true, "super": true,
	"switch": true, "synchronized": true, "this": true, "throw": true,
	"throws": true, "transient": true, "try": true, "void": true,
	"volatile": true, "while": true,
}

// controlFlowTokens are the word tokens that each add one point of
// complexity. The short-circuit operators && and || are counted
// separately as literal substrings since word tokenization drops them.
var controlFlowTokens = map[string]bool{
	"if": true, "for": true, "while": true, "case": true, "catch": true,
}

var wordPattern = regexp.MustCompile(`\w+`)

// Analyze computes the metrics for content.
//
// Line counting convention: the empty string has zero lines and a
// trailing newline does not start a new line ("a\n" is one line,
// "a\n\n" is two). An empty input therefore yields LOC 0,
// KeywordCount 0, and the base complexity of 1.
func Analyze(content string) Metrics {
	return Metrics{
		LOC:                  countLines(content),
		KeywordCount:         countKeywords(content),
		CyclomaticComplexity: estimateComplexity(content),
	}
}

func countLines(content string) int {
	if content == "" {
		return 0
	}
	lines := 1
	for i := 0; i < len(content); i++ {
		// The final newline closes the last line instead of opening a new one.
		if content[i] == '\n' && i != len(content)-1 {
			lines++
		}
	}
	return lines
}

func countKeywords(content string) int {
	count := 0
	for _, word := range wordPattern.FindAllString(content, -1) {
		if javaKeywords[word] {
			count++
		}
	}
	return count
}

// estimateComplexity approximates cyclomatic complexity as one plus the
// number of branching tokens plus the number of short-circuit operators.
func estimateComplexity(content string) int {
	count := 1
	for _, word := range wordPattern.FindAllString(content, -1) {
		if controlFlowTokens[word] {
			count++
		}
	}
	for i := 0; i+1 < len(content); i++ {
		if (content[i] == '&' && content[i+1] == '&') ||
			(content[i] == '|' && content[i+1] == '|') {
			count++
			i++
		}
	}
	return count
}
