package interpreter

type lexer struct {
	src     []byte
	ch      byte
	offset  int
	pos     int
	nextPos int
}

func newLexer(src []byte) *lexer {
	l := &lexer{src: src}
	l.next()

	return l
}

func (l *lexer) Scan() (int, Token, string) {
	for l.ch == ' ' || l.ch == '\t' {
		l.next()
	}

	if l.ch == 0 {
		return l.pos, EOL, ""
	}

	tok := ILLEGAL
	pos := l.pos
	val := ""

	ch := l.ch
	l.next()

	// channel names
	if isAlpha(ch) || isSymbol(ch) {
		start := l.offset - 2
		for isAlpha(l.ch) || isDigit(l.ch) || isSymbol(l.ch) {
			l.next()
		}
		return pos, STRING, string(l.src[start : l.offset-1])
	}

	switch ch {
	case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		chars := make([]byte, 0, 32)
		chars = append(chars, ch)
		countDot := 0
		for isDigit(l.ch) || l.ch == '.' {
			if l.ch == '.' {
				countDot += 1
			}
			c := l.ch
			l.next()
			chars = append(chars, c)
		}
		tok = NUMBER
		val = string(chars)
		// allow only one dot in the number
		if countDot > 1 {
			tok = ILLEGAL
			val = "malformed number " + val
		}
	case '(':
		tok = LPAREN
	case ')':
		tok = RPAREN
	case '-':
		tok = DEC
	case '!':
		if l.ch == '=' {
			tok = NOT_EQUALS
			l.next()
		}
	case '=':
		if l.ch == '=' {
			tok = EQUALS
			l.next()
		}
	case '<':
		tok = LESS
		if l.ch == '=' {
			tok = LTE
			l.next()
		}
	case '>':
		tok = GREATER
		if l.ch == '=' {
			tok = GTE
			l.next()
		}
	case '&':
		if l.ch == '&' {
			tok = AND
			l.next()
		}
	case '|':
		if l.ch == '|' {
			tok = OR
			l.next()
		}
	}

	if tok == ILLEGAL && val == "" {
		val = "unexpected char '" + string(ch) + "'"
	}

	return pos, tok, val
}

// Load the next character into l.ch (or 0 on end of input) and update line position.
func (l *lexer) next() {
	l.pos = l.nextPos
	if l.offset >= len(l.src) {
		// For last character, move offset 1 past the end as it
		// simplifies offset calculations in NAME and NUMBER
		if l.ch != 0 {
			l.ch = 0
			l.offset++
			l.nextPos++
		}
		return
	}
	ch := l.src[l.offset]
	l.ch = ch
	l.nextPos++
	l.offset++
}

func isAlpha(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isSymbol(ch byte) bool {
	return ch == '_'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
