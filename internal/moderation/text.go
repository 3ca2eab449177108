package moderation

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"

	CategoryMinors      = "sexual_minors"
	CategoryTransaction = "sexual_transaction"
	CategoryProposition = "sexual_proposition"

	// ReasonInappropriate is the report reason used by AutoFlag.
	ReasonInappropriate = "nevhodny_obsah"
)

// Hit is one category matched by Categorize.
type Hit struct {
	Category string
	Severity string
	Match    string
}

// Flag is the outcome of AutoFlag.
type Flag struct {
	Flagged bool
	Reason  string
	Note    string
}

func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

var leet = strings.NewReplacer("0", "o", "1", "i", "3", "e", "4", "a", "5", "s", "7", "t", "@", "a", "$", "s")

var (
	nonAlnum   = regexp.MustCompile(`[^a-z0-9]+`)
	nonWord    = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// normalize lowercases text, strips diacritics and undoes leetspeak. words keeps
// single spaces between tokens, compact drops everything but [a-z0-9].
func normalize(text string) (words, compact string) {
	t := leet.Replace(stripDiacritics(strings.ToLower(text)))
	compact = nonAlnum.ReplaceAllString(t, "")
	words = strings.TrimSpace(whitespace.ReplaceAllString(nonWord.ReplaceAllString(t, " "), " "))
	return words, compact
}

// plainWords is normalize without the leet map, so age terms like "15rocny" survive.
func plainWords(text string) string {
	t := stripDiacritics(strings.ToLower(text))
	return strings.TrimSpace(whitespace.ReplaceAllString(nonWord.ReplaceAllString(t, " "), " "))
}

const (
	verbs    = `(darujem|predam|predavam|vymenim|vymena|ponukam|ponuka|kupim|hladam)`
	trans    = `(za|vymenou\s*za|na\s*vymenu\s*za)`
	sexTerms = `(fajku|fajka|oral|oralyk?|oralny\s*sex|vyfajcit|vyfajci[ts]|vykourit|kourit|oralkem?)`
)

var (
	tobaccoException = regexp.MustCompile(`\b(vodna\s*fajka|vodnu\s*fajku|dymka|tabak|shisha|sisha|vodnej\s*fajky)\b`)

	quidProQuo1 = regexp.MustCompile(`\b` + verbs + `\b[\s\S]{0,120}?\b` + trans + `\b[\s\S]{0,20}?\b` + sexTerms + `\b`)
	quidProQuo2 = regexp.MustCompile(`\b` + sexTerms + `\b[\s\S]{0,40}?\b` + trans + `\b`)

	propositionTerms = regexp.MustCompile(`\b(anal(ik)?|analny|sex(ik)?|pretiahnut|pretiahnes|pretiahni|vyfajc[ti]|vyfuk|vyfuknes|zasun|zasunes|vyhul[ia]t|vyhul)\b`)

	minorTerms = regexp.MustCompile(`\b(nezletil[ey]|maloleta?|14rocny|15rocny|16rocny|skolacka|skolacik|teenka|mladistv[ey])\b`)

	compactTransaction = []string{"zafajku", "zaoral", "zaoralyk"}
)

// Categorize returns every category the text falls into, most severe first.
func Categorize(text string) []Hit {
	var hits []Hit
	words, compact := normalize(text)

	if minorTerms.MatchString(words) || minorTerms.MatchString(plainWords(text)) {
		hits = append(hits, Hit{Category: CategoryMinors, Severity: SeverityCritical, Match: "minors"})
	}

	if !tobaccoException.MatchString(words) {
		if quidProQuo1.MatchString(words) || quidProQuo2.MatchString(words) || containsAny(compact, compactTransaction) {
			hits = append(hits, Hit{Category: CategoryTransaction, Severity: SeverityHigh, Match: "za-sex"})
		}
	}

	if propositionTerms.MatchString(words) {
		hits = append(hits, Hit{Category: CategoryProposition, Severity: SeverityMedium, Match: "prop-lexicon"})
	}
	return hits
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

var flagPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bfajka\b`),
	regexp.MustCompile(`\boral\b`),
	regexp.MustCompile(`\banal\b`),
	regexp.MustCompile(`\bsex\b`),
	regexp.MustCompile(`\bporno\b|\bxxx\b`),
	regexp.MustCompile(`\bza\s+fajku\b|\bza\s+sex\b|\bza\s+oral\b`),
}

// AutoFlag marks text for manual review. It never blocks anything.
func AutoFlag(text string) Flag {
	t := stripDiacritics(strings.ToLower(strings.TrimSpace(text)))
	if t == "" {
		return Flag{}
	}
	var hits []string
	for _, rx := range flagPatterns {
		if m := rx.FindString(t); m != "" && !contains(hits, m) {
			hits = append(hits, m)
		}
	}
	if len(hits) == 0 {
		return Flag{}
	}
	if len(hits) > 5 {
		hits = hits[:5]
	}
	return Flag{Flagged: true, Reason: ReasonInappropriate, Note: "zachytené: " + strings.Join(hits, ", ")}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
