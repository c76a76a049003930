package reasoner

import "fmt"

// ExtractObject isolates the first balanced JSON object in s. Reasoner
// output frequently arrives wrapped in markdown fences or prose; a
// bracket-matching scan that skips string literals is more robust than
// a greedy regex. The result still has to survive json.Unmarshal at the
// caller; this only finds the candidate substring.
func ExtractObject(s string) (string, error) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			if start >= 0 {
				inString = true
			}
		case '{':
			if start < 0 {
				start = i
			}
			depth++
		case '}':
			if start < 0 {
				continue
			}
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}

	if start < 0 {
		return "", fmt.Errorf("no JSON object in response")
	}
	return "", fmt.Errorf("unbalanced JSON object in response")
}
