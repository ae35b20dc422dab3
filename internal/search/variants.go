package search

import (
	"regexp"
	"strings"
	"unicode"
)

// CollapseDuplicateLetters removes consecutive duplicate letters from a name.
// Only letters are collapsed; repeated spaces and punctuation are kept, so a
// doubled transcription like "SMITTH" becomes "SMITH" without touching the
// shape of the rest of the string.
func CollapseDuplicateLetters(name string) string {
	if name == "" {
		return name
	}
	var b strings.Builder
	b.Grow(len(name))
	var prev rune
	for i, r := range name {
		if i == 0 || r != prev || !unicode.IsLetter(r) {
			b.WriteRune(r)
		}
		prev = r
	}
	return b.String()
}

// GenerateNameVariants builds the ordered ladder of spelling variants tried
// against the property search, most specific first:
//
//  1. the literal owner name;
//  2. the punctuation-stripped, whitespace-collapsed form (if different);
//  3. for two-token names, the three duplicate-letter-collapsed combinations
//     (second token, first token, both); for any other token count a single
//     fully-collapsed form.
//
// Entity names containing "llc" are never varied; those must match exactly.
// Duplicates are removed preserving first occurrence.
func GenerateNameVariants(ownerName string) []string {
	if strings.Contains(strings.ToLower(ownerName), "llc") {
		return []string{ownerName}
	}

	punctToSpace := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return ' '
		}
		return r
	}, ownerName)
	collapsed := strings.Join(strings.Fields(punctToSpace), " ")

	variants := []string{ownerName}
	if collapsed != ownerName {
		variants = append(variants, collapsed)
	}

	words := strings.Fields(punctToSpace)
	if len(words) == 2 {
		w1, w2 := words[0], words[1]
		variants = append(variants,
			w1+" "+CollapseDuplicateLetters(w2),
			CollapseDuplicateLetters(w1)+" "+w2,
			CollapseDuplicateLetters(w1)+" "+CollapseDuplicateLetters(w2),
		)
	} else if len(words) > 0 {
		dedup := make([]string, len(words))
		for i, w := range words {
			dedup[i] = CollapseDuplicateLetters(w)
		}
		variants = append(variants, strings.Join(dedup, " "))
	}

	seen := make(map[string]struct{}, len(variants))
	unique := variants[:0]
	for _, v := range variants {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		unique = append(unique, v)
	}
	return unique
}

var legalDescNoise = regexp.MustCompile(`(?i)\b(ADDITION|SUBDIVISION)\b`)

// stop keywords mark the start of lot/block detail we do not want in a query
var legalDescStopKeywords = []string{"Sec:", "Lot:", "Block:", "Unit:", "Abstract:"}

// CleanLegalDescription strips a raw legal description down to the
// subdivision name. Input that does not start with the "Desc:" marker is not
// a parseable description and yields "".
func CleanLegalDescription(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(strings.ToLower(trimmed), "desc:") {
		return ""
	}
	desc := strings.TrimSpace(trimmed[len("desc:"):])
	desc = legalDescNoise.ReplaceAllString(desc, "")

	lower := strings.ToLower(desc)
	for _, kw := range legalDescStopKeywords {
		if idx := strings.Index(lower, strings.ToLower(kw)); idx != -1 {
			desc = desc[:idx]
			break
		}
	}
	return strings.TrimSpace(desc)
}
