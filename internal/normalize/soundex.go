package normalize

// Soundex returns the standard American Soundex code for s, e.g.
// "Nashua" -> "N200". The empty string is returned when s contains no
// ASCII letter. The atlas2 sound column is computed here rather than in
// SQL so Postgres and SQLite index identical values.
func Soundex(s string) string {
	s = Simplify(s)

	first := byte(0)
	var code []byte
	last := byte(0)

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 'A' || c > 'Z' {
			last = 0
			continue
		}
		d := soundexDigit(c)
		if first == 0 {
			first = c
			last = d
			continue
		}
		// H and W do not break a run of the same digit
		if c == 'H' || c == 'W' {
			continue
		}
		if d != 0 && d != last {
			code = append(code, d)
			if len(code) == 3 {
				break
			}
		}
		last = d
	}

	if first == 0 {
		return ""
	}
	for len(code) < 3 {
		code = append(code, '0')
	}
	return string(first) + string(code)
}

func soundexDigit(c byte) byte {
	switch c {
	case 'B', 'F', 'P', 'V':
		return '1'
	case 'C', 'G', 'J', 'K', 'Q', 'S', 'X', 'Z':
		return '2'
	case 'D', 'T':
		return '3'
	case 'L':
		return '4'
	case 'M', 'N':
		return '5'
	case 'R':
		return '6'
	}
	return 0
}
