package worddiff

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "empty", text: "", want: []string{}},
		{name: "whitespace only", text: " \t\n ", want: []string{}},
		{name: "lowercases", text: "Hello WORLD", want: []string{"hello", "world"}},
		{name: "strips punctuation", text: "Hello, world!", want: []string{"hello", "world"}},
		{name: "punctuation only tokens vanish", text: "a -- b ...", want: []string{"a", "b"}},
		{name: "keeps digits and underscores", text: "snake_case 42 v1.2", want: []string{"snake_case", "42", "v12"}},
		{name: "joins across inner punctuation", text: "state-of-the-art can't", want: []string{"stateoftheart", "cant"}},
		{name: "collapses whitespace runs", text: "one\t\ttwo\n\n  three", want: []string{"one", "two", "three"}},
		{name: "keeps repeats in order", text: "b a b", want: []string{"b", "a", "b"}},
		{name: "drops non ascii letters", text: "café naïve 日本", want: []string{"caf", "nave"}},
		{name: "no break space separates", text: "a\u00a0b", want: []string{"a", "b"}},
		{name: "next line does not separate", text: "a\u0085b", want: []string{"ab"}},
		{name: "byte order mark separates", text: "a\ufeffb", want: []string{"a", "b"}},
		{name: "ideographic space separates", text: "a\u3000b", want: []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.text))
		})
	}
}

func TestCount(t *testing.T) {
	counts := Count(Tokenize("Cat cat dog, CAT! bird"))

	assert.Equal(t, map[string]int{"cat": 3, "dog": 1, "bird": 1}, counts)
}

func TestCountEmpty(t *testing.T) {
	assert.Empty(t, Count(nil))
}
