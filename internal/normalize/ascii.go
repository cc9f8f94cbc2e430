package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes and drops combining marks (NFD, remove Mn, NFC).
// This handles the whole Latin Extended-A block without a per-rune table.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// translit maps code points with no single-letter decomposition to their
// conventional ASCII spellings.
var translit = map[rune]string{
	'Æ': "Ae", 'æ': "ae",
	'Ð': "D", 'ð': "d",
	'Ø': "O", 'ø': "o",
	'Þ': "Th", 'þ': "th",
	'ß': "ss",
	'Đ': "D", 'đ': "d",
	'Ħ': "H", 'ħ': "h",
	'Ĳ': "Ij", 'ĳ': "ij",
	'Ŀ': "L", 'ŀ': "l",
	'Ł': "L", 'ł': "l",
	'Ŋ': "Ng", 'ŋ': "ng",
	'Œ': "Oe", 'œ': "oe",
	'Ŧ': "T", 'ŧ': "t",
	'ſ': "s",
	'×': "x",
	'÷': "/",
	'¡': "!", '¿': "?",
	'«': "\"", '»': "\"",
	'‘': "'", '’': "'", '‚': "'",
	'“': "\"", '”': "\"", '„': "\"",
	'′': "'", '″': "\"",
	'‐': "-", '‑': "-", '‒': "-", '–': "-",
	' ': " ", ' ': " ", ' ': " ", ' ': " ",
	'•': "*",
	'·': "*",
}

// decorative transliterations expand to more than one character; when a
// plain single character will do (file names), these substitutes are used
// instead.
var translitDecorative = map[rune]string{
	'—': "--",  // em dash
	'―': "--",  // horizontal bar
	'…': "...", // ellipsis
}

var translitDecorativePlain = map[rune]string{
	'—': "-",
	'―': "-",
	'…': "_",
}

// fileNameSafe maps shell- and path-hostile ASCII to harmless stand-ins.
var fileNameSafe = map[rune]string{
	'"': "'", '[': "(", ']': ")", '*': "-", '/': "-", '\\': "-",
	':': "-", ';': ",", '<': "(", '>': ")", '?': "", '|': "-",
}

// PlainASCII folds s to printable ASCII. Characters in [0x20,0x7E] pass
// through, combining marks are dropped, accented Latin letters lose their
// diacritics, known ligatures and symbols are transliterated, and anything
// left over becomes "_".
func PlainASCII(s string) string {
	return plainASCII(s, false)
}

// PlainASCIIForFileName is PlainASCII with path-hostile characters mapped
// to safe substitutes and a leading dot replaced so the result never hides
// or escapes in a file listing.
func PlainASCIIForFileName(s string) string {
	return plainASCII(s, true)
}

func plainASCII(s string, forFileName bool) string {
	var sb strings.Builder
	sb.Grow(len(s))

	for _, r := range s {
		switch {
		case r >= 0x20 && r <= 0x7E:
			if forFileName {
				if sub, ok := fileNameSafe[r]; ok {
					sb.WriteString(sub)
					continue
				}
			}
			sb.WriteRune(r)
		case r >= 0x0300 && r <= 0x036F:
			// combining marks
		default:
			if sub, ok := translit[r]; ok {
				sb.WriteString(sub)
				continue
			}
			if forFileName {
				if sub, ok := translitDecorativePlain[r]; ok {
					sb.WriteString(sub)
					continue
				}
			} else if sub, ok := translitDecorative[r]; ok {
				sb.WriteString(sub)
				continue
			}
			if stripped, _, err := transform.String(stripMarks, string(r)); err == nil && isPlainLetters(stripped) {
				sb.WriteString(stripped)
				continue
			}
			sb.WriteByte('_')
		}
	}

	out := sb.String()
	if forFileName && strings.HasPrefix(out, ".") {
		out = "_" + out[1:]
	}
	return out
}

func isPlainLetters(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < 0x20 || r > 0x7E {
			return false
		}
	}
	return true
}
