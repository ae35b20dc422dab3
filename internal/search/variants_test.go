package search

import (
	"reflect"
	"testing"
)

func TestCollapseDuplicateLetters(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"SMITH", "SMITH"},
		{"SMITTH", "SMITH"},
		{"AABBCC", "ABC"},
		{"AA BB", "A B"},
		{"BOOK", "BOK"},
		{"A--B", "A--B"},   // punctuation is not collapsed
		{"A  B", "A  B"},   // spaces are not collapsed
		{"1122", "1122"},   // digits are not collapsed
		{"MISSISSIPPI", "MISISIPI"},
	}
	for _, c := range cases {
		if got := CollapseDuplicateLetters(c.in); got != c.want {
			t.Errorf("CollapseDuplicateLetters(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestGenerateNameVariantsTwoTokens(t *testing.T) {
	got := GenerateNameVariants("SMITTH JOHNN")
	want := []string{
		"SMITTH JOHNN",
		"SMITTH JOHN",
		"SMITH JOHNN",
		"SMITH JOHN",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("variants = %v, want %v", got, want)
	}
}

func TestGenerateNameVariantsPunctuation(t *testing.T) {
	got := GenerateNameVariants("O'BRIEN,  PATRICK")
	// literal first, then the punctuation-stripped form, then the collapsed
	// combinations of the stripped tokens
	if got[0] != "O'BRIEN,  PATRICK" {
		t.Fatalf("first variant must be the literal name, got %q", got[0])
	}
	if got[1] != "O BRIEN PATRICK" {
		t.Fatalf("second variant = %q, want punctuation-stripped form", got[1])
	}
}

func TestGenerateNameVariantsLLCNeverVaried(t *testing.T) {
	for _, name := range []string{"ACME LLC", "Lone Star Holdings, LLC", "llc properties"} {
		got := GenerateNameVariants(name)
		if len(got) != 1 || got[0] != name {
			t.Errorf("GenerateNameVariants(%q) = %v, want the literal name only", name, got)
		}
	}
}

func TestGenerateNameVariantsThreeTokens(t *testing.T) {
	got := GenerateNameVariants("AA BB CC")
	want := []string{"AA BB CC", "A B C"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("variants = %v, want %v", got, want)
	}
}

func TestGenerateNameVariantsDeterministic(t *testing.T) {
	first := GenerateNameVariants("GARCIAA MARIA")
	for i := 0; i < 10; i++ {
		if got := GenerateNameVariants("GARCIAA MARIA"); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d produced %v, first run produced %v", i, got, first)
		}
	}
}

func TestGenerateNameVariantsNoDuplicates(t *testing.T) {
	// every collapsed combination degenerates to the same string
	got := GenerateNameVariants("SMITH JOHN")
	want := []string{"SMITH JOHN"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("variants = %v, want %v", got, want)
	}
}

func TestCleanLegalDescription(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"plain", "Desc: OAK FOREST", "OAK FOREST"},
		{"noise removed", "Desc: OAK FOREST ADDITION", "OAK FOREST"},
		{"stops at lot detail", "Desc: OAK FOREST Lot: 12 Block: 3", "OAK FOREST"},
		{"subdivision removed", "Desc: TIMBERGROVE SUBDIVISION Sec: 2", "TIMBERGROVE"},
		{"no marker", "OAK FOREST Lot: 12", ""},
		{"empty", "", ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := CleanLegalDescription(c.in); got != c.want {
				t.Errorf("CleanLegalDescription(%q) = %q, want %q", c.in, got, c.want)
			}
		})
	}
}
