package source

import (
	"fmt"
	"strings"
	"unicode"
)

// delimiterPreference is the candidate set in tie-break order.
var delimiterPreference = []rune{',', '\t', ';', '|', ':', ' '}

// minConsistency is the share of sample lines that must agree on a
// delimiter count.
const minConsistency = 0.9

// Dialect describes the tabular format of a CSV sample.
type Dialect struct {
	Delimiter rune
	// Quote is the observed quote character, or 0 when no quoted field was
	// seen in the sample.
	Quote            rune
	SkipInitialSpace bool
}

func (d Dialect) String() string {
	quote := "none"
	if d.Quote != 0 {
		quote = fmt.Sprintf("%q", d.Quote)
	}
	return fmt.Sprintf("delimiter=%q quote=%s skipinitialspace=%t", d.Delimiter, quote, d.SkipInitialSpace)
}

// Sniff detects the delimiter and quoting convention of a CSV sample.
// The sample should end on a line boundary.
func Sniff(sample string) (Dialect, error) {
	lines := sampleLines(sample)
	if len(lines) == 0 {
		return Dialect{}, ErrNoDelimiter
	}

	// single quotes are literal text; the parser only quotes with '"'
	quote, quoteDelim := guessQuote(lines, '"')

	// A delimiter seen next to quoted fields wins over line consistency,
	// which quoted line breaks would otherwise skew.
	best := quoteDelim
	if best == 0 {
		var bestScore float64
		for _, delim := range delimiterPreference {
			score := consistency(lines, delim, quote)
			if score >= minConsistency && score > bestScore {
				best, bestScore = delim, score
			}
		}
	}
	if best == 0 {
		return Dialect{}, ErrNoDelimiter
	}

	return Dialect{
		Delimiter:        best,
		Quote:            quote,
		SkipInitialSpace: best != ' ' && followedBySpace(lines, best, quote),
	}, nil
}

func sampleLines(sample string) []string {
	var lines []string
	for _, line := range strings.Split(sample, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// consistency returns the share of lines whose delimiter count equals the
// modal count, or 0 when the modal count is zero.
func consistency(lines []string, delim, quote rune) float64 {
	freq := make(map[int]int)
	for _, line := range lines {
		freq[countOutsideQuotes(line, delim, quote)]++
	}

	mode, modeFreq := 0, 0
	for count, n := range freq {
		if n > modeFreq || (n == modeFreq && count > mode) {
			mode, modeFreq = count, n
		}
	}
	if mode == 0 {
		return 0
	}
	return float64(modeFreq) / float64(len(lines))
}

func countOutsideQuotes(line string, delim, quote rune) int {
	n, inQuote := 0, false
	for _, r := range line {
		switch {
		case quote != 0 && r == quote:
			inQuote = !inQuote
		case r == delim && !inQuote:
			n++
		}
	}
	return n
}

func followedBySpace(lines []string, delim, quote rune) bool {
	total, spaced := 0, 0
	for _, line := range lines {
		runes := []rune(line)
		inQuote := false
		for i, r := range runes {
			if quote != 0 && r == quote {
				inQuote = !inQuote
				continue
			}
			if r != delim || inQuote {
				continue
			}
			total++
			if i+1 < len(runes) && runes[i+1] == ' ' {
				spaced++
			}
		}
	}
	return total > 0 && spaced == total
}

// guessQuote reports q when some field is wrapped in it, or 0, together with
// the most frequent separator found next to those fields.
func guessQuote(lines []string, q rune) (rune, rune) {
	count := 0
	delims := make(map[rune]int)
	for _, line := range lines {
		count += quotedFields(line, q, delims)
	}
	if count == 0 {
		return 0, 0
	}

	var delim rune
	n := 0
	for _, d := range delimiterPreference {
		if delims[d] > n {
			delim, n = d, delims[d]
		}
	}
	return q, delim
}

// quotedFields counts fields of line wrapped in q and tallies the separators
// adjacent to them into delims.
func quotedFields(line string, q rune, delims map[rune]int) int {
	runes := []rune(line)
	n := 0
	for i := 0; i < len(runes); i++ {
		if runes[i] != q || (i > 0 && !isSeparatorLike(runes[i-1])) {
			continue
		}
		j := closingQuote(runes, i+1, q)
		if j < 0 {
			return n
		}
		if j+1 == len(runes) || isSeparatorLike(runes[j+1]) {
			n++
			if before := separatorBefore(runes, i); before != 0 {
				delims[before]++
			}
			if j+1 < len(runes) && runes[j+1] != ' ' {
				delims[runes[j+1]]++
			}
		}
		i = j
	}
	return n
}

// separatorBefore returns the separator preceding an opening quote at i,
// looking past a single space, or 0 when there is none.
func separatorBefore(runes []rune, i int) rune {
	switch {
	case i == 0:
		return 0
	case runes[i-1] != ' ':
		return runes[i-1]
	case i > 1 && runes[i-2] != ' ' && isSeparatorLike(runes[i-2]):
		return runes[i-2]
	}
	return 0
}

// closingQuote returns the index of the quote closing a field opened before
// start, skipping doubled quotes.
func closingQuote(runes []rune, start int, q rune) int {
	for j := start; j < len(runes); j++ {
		if runes[j] != q {
			continue
		}
		if j+1 < len(runes) && runes[j+1] == q {
			j++
			continue
		}
		return j
	}
	return -1
}

func isSeparatorLike(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '"' && r != '\''
}
