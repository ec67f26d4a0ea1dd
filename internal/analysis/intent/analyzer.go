package intent

import (
	"strings"
	"unicode"
)

// Label classifies a caller transcript.
type Label string

const (
	Empty   Label = "empty"
	Goodbye Label = "goodbye"
	Query   Label = "query"
)

// Decision is the analysis result for one transcript.
type Decision struct {
	Intent Label
	// Matched is the lexicon term that decided a goodbye.
	Matched string
	// Urgent is set when the caller describes an emergency.
	Urgent bool
}

// GoodbyeTerms is the fixed goodbye lexicon.
var GoodbyeTerms = []string{"pa", "la revedere", "gata", "mulțumesc", "bye", "stop", "terminat"}

var urgentTerms = []string{
	"sângerare", "sângerează", "urgență", "urgent", "febră", "durere mare", "umflat", "umflătură", "nu pot respira",
}

var (
	goodbyeLexicon = compile(GoodbyeTerms)
	urgentLexicon  = compile(urgentTerms)
)

// Analyze classifies a transcript. Matching is case-insensitive, diacritic-insensitive and whole-word.
func Analyze(transcript string) Decision {
	tokens := tokenize(transcript)
	if len(tokens) == 0 {
		return Decision{Intent: Empty}
	}

	urgent := urgentLexicon.find(tokens) != ""
	if term := goodbyeLexicon.find(tokens); term != "" {
		return Decision{Intent: Goodbye, Matched: term, Urgent: urgent}
	}
	return Decision{Intent: Query, Urgent: urgent}
}

// IsGoodbye reports whether the transcript contains a goodbye term.
func IsGoodbye(transcript string) bool {
	return Analyze(transcript).Intent == Goodbye
}

type phrase struct {
	term   string
	tokens []string
}

type lexicon []phrase

func compile(terms []string) lexicon {
	lex := make(lexicon, 0, len(terms))
	for _, term := range terms {
		if tokens := tokenize(term); len(tokens) > 0 {
			lex = append(lex, phrase{term: term, tokens: tokens})
		}
	}
	return lex
}

// find returns the first term whose tokens occur consecutively in tokens.
func (l lexicon) find(tokens []string) string {
	for _, p := range l {
		if containsSequence(tokens, p.tokens) {
			return p.term
		}
	}
	return ""
}

func containsSequence(haystack, needle []string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		matched := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

var diacritics = strings.NewReplacer(
	"ă", "a", "â", "a", "î", "i",
	"ș", "s", "ş", "s",
	"ț", "t", "ţ", "t",
)

func tokenize(text string) []string {
	normalized := diacritics.Replace(strings.ToLower(strings.TrimSpace(text)))
	return strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
