package lucene

import "strconv"

// ISBN10To13 converts a whole-string ISBN-10 to ISBN-13. Hyphens are
// allowed anywhere; the checksum must be valid. The second result is false
// when s is not an ISBN-10, including when it already is an ISBN-13.
func ISBN10To13(s string) (string, bool) {
	digits := make([]byte, 0, 10)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '-':
		case c >= '0' && c <= '9':
			digits = append(digits, c)
		case c == 'X' || c == 'x':
			digits = append(digits, 'X')
		default:
			return "", false
		}
	}
	if len(digits) != 10 {
		return "", false
	}

	sum := 0
	for i, c := range digits {
		v := int(c - '0')
		if c == 'X' {
			if i != 9 {
				return "", false
			}
			v = 10
		}
		sum += (10 - i) * v
	}
	if sum%11 != 0 {
		return "", false
	}

	isbn := "978" + string(digits[:9])
	sum = 0
	for i := 0; i < len(isbn); i++ {
		weight := 1
		if i%2 == 1 {
			weight = 3
		}
		sum += weight * int(isbn[i]-'0')
	}
	return isbn + strconv.Itoa((10-sum%10)%10), true
}
