package scoring

import (
	"math"
	"strings"
)

// Keyword lists for the sentiment heuristic. Matching is on whitespace
// tokens, so punctuation attached to a word defeats the match; that is
// the documented behavior, not a bug to fix.
var negativeKeywords = makeSet(
	"terrible", "horrible", "awful", "bad", "poor", "worst", "unacceptable",
	"disappointing", "failed", "broken", "defective", "dangerous", "unsafe",
	"unprofessional", "incompetent", "negligent", "delayed", "late", "slow",
	"expensive", "overpriced", "waste", "fraud", "scam", "cheated", "lied",
	"never", "hate", "angry", "furious", "disgusted", "appalled", "shocked",
	"cheap", "shoddy", "substandard", "inferior", "damage", "damaged",
)

var veryNegativePhrases = []string{
	"complete disaster", "total failure", "absolute worst", "never again",
	"stay away", "do not hire", "avoid at all costs", "waste of money",
	"serious safety", "code violation", "illegal", "not up to code",
}

// Complaints can still mention positive aspects.
var positiveKeywords = makeSet(
	"good", "great", "excellent", "professional", "quality", "satisfied",
	"happy", "pleased", "resolved", "fixed", "improved", "better",
)

var intensifiers = makeSet("very", "extremely", "absolutely", "totally", "completely")

const (
	phrasePenalty    = 0.3
	keywordWeight    = 0.1
	intensifierBoost = 1.5
	negationPenalty  = 0.1
	partialNegation  = 0.05
	sentimentBias    = 0.2
)

func makeSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func isNegation(word string) bool {
	return word == "not" || word == "don't" || word == "didn't"
}

// AnalyzeSentiment scores complaint text from -1 (very negative) to +1
// (very positive). The accumulated keyword score is normalized by the
// square root of the word count, clamped, then shifted by a fixed
// negative bias because complaints skew pessimistic.
func AnalyzeSentiment(text string) float64 {
	lower := strings.ToLower(text)

	score := 0.0

	for _, phrase := range veryNegativePhrases {
		if strings.Contains(lower, phrase) {
			score -= phrasePenalty
		}
	}

	words := strings.Fields(lower)

	for i, word := range words {
		multiplier := 1.0
		if i > 0 {
			if _, ok := intensifiers[words[i-1]]; ok {
				multiplier = intensifierBoost
			}
		}

		if _, ok := negativeKeywords[word]; ok {
			score -= keywordWeight * multiplier
		}
		if _, ok := positiveKeywords[word]; ok {
			score += keywordWeight * multiplier
		}

		// Negations only partially flip the following word: "not good"
		// reads negative, "not bad" only mildly softens.
		if isNegation(word) && i < len(words)-1 {
			next := words[i+1]
			if _, ok := positiveKeywords[next]; ok {
				score -= negationPenalty
			} else if _, ok := negativeKeywords[next]; ok {
				score += partialNegation
			}
		}
	}

	if len(words) > 0 {
		score /= math.Sqrt(float64(len(words)))
	}

	score = clamp(score, -1, 1)
	score -= sentimentBias
	return clamp(score, -1, 1)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
