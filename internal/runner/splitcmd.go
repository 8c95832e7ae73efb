package runner

import "strings"

// SplitCommand tokenizes a configured check command into an argv slice
// without consulting a shell. Double- and single-quoted substrings group
// into one token; backslash escapes the next character inside double
// quotes and outside quotes. Shell metacharacters ("&&", "|", ";") are
// ordinary tokens, so a config file can never inject a second command.
func SplitCommand(command string) []string {
	var (
		argv    []string
		cur     strings.Builder
		inTok   bool
		quote   rune // 0, '\'' or '"'
		escaped bool
	)

	flush := func() {
		if inTok {
			argv = append(argv, cur.String())
			cur.Reset()
			inTok = false
		}
	}

	for _, r := range command {
		switch {
		case escaped:
			cur.WriteRune(r)
			inTok = true
			escaped = false

		case quote == '\'':
			// single quotes: everything literal, including backslashes
			if r == '\'' {
				quote = 0
			} else {
				cur.WriteRune(r)
			}

		case quote == '"':
			switch r {
			case '"':
				quote = 0
			case '\\':
				escaped = true
			default:
				cur.WriteRune(r)
			}

		case r == '\\':
			escaped = true
			inTok = true

		case r == '\'' || r == '"':
			quote = r
			inTok = true // empty quotes still produce a token

		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush()

		default:
			cur.WriteRune(r)
			inTok = true
		}
	}

	// trailing backslash is taken literally
	if escaped {
		cur.WriteRune('\\')
		inTok = true
	}
	flush()

	return argv
}
