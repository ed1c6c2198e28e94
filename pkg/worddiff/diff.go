package worddiff

import "sort"

// Result lists the words that appeared in and disappeared from a text.
// Both slices are sorted and duplicate-free.
type Result struct {
	AddedWords   []string `json:"addedWords"`
	RemovedWords []string `json:"removedWords"`
}

// Empty reports whether neither list has entries.
func (r Result) Empty() bool {
	return len(r.AddedWords) == 0 && len(r.RemovedWords) == 0
}

// Detect compares the vocabularies of oldText and newText.
//
// Only presence is tracked: a word whose count changes but stays above
// zero in both texts is reported in neither list.
func Detect(oldText, newText string) Result {
	oldCounts := Count(Tokenize(oldText))
	newCounts := Count(Tokenize(newText))

	return Result{
		AddedWords:   missingFrom(newCounts, oldCounts),
		RemovedWords: missingFrom(oldCounts, newCounts),
	}
}

// missingFrom returns the sorted keys of from whose count in other is zero.
func missingFrom(from, other map[string]int) []string {
	words := []string{}
	for word := range from {
		if other[word] == 0 {
			words = append(words, word)
		}
	}
	sort.Strings(words)
	return words
}
