package report

import (
	"strconv"
	"strings"
)

const literalMarker = "\x00"

// MaskLiterals swaps every quoted span of query ('...' or "...", with doubled
// quotes as escapes) for an opaque marker so placeholder rewriting only sees
// SQL outside quotes. unmask puts the spans back. An unterminated quote masks
// the rest of the statement.
func MaskLiterals(query string) (masked string, unmask func(string) string) {
	var (
		b     strings.Builder
		spans []string
	)
	for i := 0; i < len(query); {
		quote := query[i]
		if quote != '\'' && quote != '"' {
			b.WriteByte(query[i])
			i++
			continue
		}
		end := i + 1
		for end < len(query) {
			if query[end] == quote {
				if end+1 < len(query) && query[end+1] == quote {
					end += 2
					continue
				}
				break
			}
			end++
		}
		if end >= len(query) {
			end = len(query) - 1
		}
		b.WriteString(literalMarker + strconv.Itoa(len(spans)) + literalMarker)
		spans = append(spans, query[i:end+1])
		i = end + 1
	}

	if len(spans) == 0 {
		return query, func(s string) string { return s }
	}
	pairs := make([]string, 0, 2*len(spans))
	for idx, span := range spans {
		pairs = append(pairs, literalMarker+strconv.Itoa(idx)+literalMarker, span)
	}
	replacer := strings.NewReplacer(pairs...)
	return b.String(), replacer.Replace
}
