package common

// delimiters are the separators export tools use, in order of preference.
var delimiters = []rune{',', '\t', ';', '|'}

// DetectDelimiter picks the separator that splits a header line into the
// most fields. Separators inside double quotes are not counted. Ties and
// lines without any separator fall back to comma.
func DetectDelimiter(line string) rune {
	counts := make(map[rune]int, len(delimiters))
	quoted := false
	for _, r := range line {
		if r == '"' {
			quoted = !quoted
			continue
		}
		if !quoted {
			counts[r]++
		}
	}

	winner, best := ',', 0
	for _, d := range delimiters {
		if counts[d] > best {
			winner, best = d, counts[d]
		}
	}
	return winner
}
