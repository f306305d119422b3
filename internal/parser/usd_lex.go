package parser

// Lexer for the ASCII USD dialect. The grammar is small enough that a
// character scanner with an explicit state enum beats pulling in a parser
// generator: the only subtleties are quoted strings and bracket nesting,
// where whitespace and commas stop being token boundaries.

// lexState enumerates the scanner states.
type lexState int

const (
	lexNormal lexState = iota
	lexString
	lexBracket
)

// usdTokens splits USD text into tokens. Rules:
//   - '{', '}' and '=' are standalone tokens.
//   - a quoted string is one token, quotes included.
//   - a bracketed group ('(', '[' or '<' with arbitrary nesting) is one
//     token, brackets included, so tuple contents survive intact.
//   - '#' starts a comment running to end of line.
//   - everything else splits on whitespace.
func usdTokens(data []byte) []string {
	var (
		tokens []string
		cur    []byte
		state  = lexNormal
		depth  int
		quote  byte
	)

	flush := func() {
		if len(cur) > 0 {
			tokens = append(tokens, string(cur))
			cur = nil
		}
	}

	for i := 0; i < len(data); i++ {
		c := data[i]
		switch state {
		case lexString:
			cur = append(cur, c)
			if c == quote {
				state = lexNormal
				flush()
			}
		case lexBracket:
			cur = append(cur, c)
			switch c {
			case '(', '[', '<':
				depth++
			case ')', ']', '>':
				depth--
				if depth == 0 {
					state = lexNormal
					flush()
				}
			}
		default: // lexNormal
			switch c {
			case '#':
				flush()
				for i < len(data) && data[i] != '\n' {
					i++
				}
			case ' ', '\t', '\r', '\n', ',':
				flush()
			case '{', '}', '=':
				flush()
				tokens = append(tokens, string(c))
			case '"', '\'':
				flush()
				quote = c
				cur = append(cur, c)
				state = lexString
			case '(', '[', '<':
				flush()
				depth = 1
				cur = append(cur, c)
				state = lexBracket
			default:
				cur = append(cur, c)
			}
		}
	}
	flush()
	return tokens
}
