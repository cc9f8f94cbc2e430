package normalize

import (
	"strings"
)

const maxKeyLength = 40

// Word-level compressions applied before spaces are removed.
var compressions = [][2]string{
	{"FORT", "FT"},
	{"MOUNT", "MT"},
	{"POINT", "PT"},
	{"SAINTE", "STE"},
	{"SAINT", "ST"},
}

// Leading articles and generic feature words stripped when building the
// variant form of a key. Longest prefixes first so "ILE DE" wins over "ILE".
var variantPrefixes = []string{
	"CANON DE", "ILE DE", "ILE DU", "ILE D", "ILES", "ILSA",
	"CERRO", "FORT", "FT", "LAKE", "MOUNT", "MT", "POINT", "PT",
	"LAS", "LOS", "THE", "LA", "LE",
}

// Simplify reduces a place name to its 40-character index key: parenthetical
// tail stripped, folded to ASCII upper case, punctuation collapsed, common
// words compressed (SAINT -> ST etc.), spaces removed.
func Simplify(s string) string {
	return simplify(s, false)
}

// SimplifyVariant is Simplify with a leading article or feature word
// ("LAKE", "MT", "LA", ...) stripped, so "Lake Placid" and "Placid" index
// to the same variant key.
func SimplifyVariant(s string) string {
	return simplify(s, true)
}

func simplify(s string, asVariant bool) string {
	if idx := strings.Index(s, "("); idx >= 0 {
		s = s[:idx]
	}

	s = strings.ToUpper(PlainASCII(s))

	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ', r == '-', r == '.', r == '\'':
			sb.WriteByte(' ')
		}
	}
	s = strings.Join(strings.Fields(sb.String()), " ")

	for _, c := range compressions {
		s = replaceWord(s, c[0], c[1])
	}

	if asVariant {
		for _, prefix := range variantPrefixes {
			if strings.HasPrefix(s, prefix+" ") {
				s = s[len(prefix)+1:]
				break
			}
		}
	}

	s = strings.ReplaceAll(s, " ", "")
	if len(s) > maxKeyLength {
		s = s[:maxKeyLength]
	}
	return s
}

// replaceWord substitutes whole words only.
func replaceWord(s, word, repl string) string {
	if !strings.Contains(s, word) {
		return s
	}
	fields := strings.Split(s, " ")
	for i, f := range fields {
		if f == word {
			fields[i] = repl
		}
	}
	return strings.Join(fields, " ")
}

// StartsWithICND reports whether s begins with prefix, ignoring case,
// diacritics and punctuation.
func StartsWithICND(s, prefix string) bool {
	return strings.HasPrefix(Simplify(s), Simplify(prefix))
}
