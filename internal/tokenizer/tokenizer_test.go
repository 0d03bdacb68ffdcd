package tokenizer

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []Token
	}{
		{"empty", "", []Token{}},
		{"whitespace only", " \t\n ", []Token{}},
		{"lowercases", "Go Crawler", []Token{{"go", 0}, {"crawler", 1}}},
		{"keeps punctuation", "hello, world!", []Token{{"hello,", 0}, {"world!", 1}}},
		{"mixed whitespace", "a\tb\n\nc", []Token{{"a", 0}, {"b", 1}, {"c", 2}}},
		{"keeps stop words", "the cat", []Token{{"the", 0}, {"cat", 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDistinctTerms(t *testing.T) {
	got := DistinctTerms("Go go GO crawler go")
	want := []string{"go", "crawler"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DistinctTerms = %v, want %v", got, want)
	}
}
