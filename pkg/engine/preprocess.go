package engine

import "strings"

// preprocessSource rewrites scene source into something zygomys accepts:
//
//   - :keyword becomes the string literal "__kw_keyword", so keywords need
//     no global symbols and cannot collide with user variables.
//   - kebab-case identifiers become snake_case (chunk-transform ->
//     chunk_transform); zygomys reads a bare hyphen as subtraction.
//   - ; and ;; line comments become // comments.
//
// String literals (double-quoted and backtick) pass through untouched.
func preprocessSource(source string) string {
	p := &preprocessor{src: source}
	p.out.Grow(len(source) + len(source)/4)
	for p.pos < len(p.src) {
		switch c := p.src[p.pos]; {
		case c == '"':
			p.quoted('"', true)
		case c == '`':
			p.quoted('`', false)
		case c == ';':
			p.comment()
		case c == ':' && p.keyword():
		case c == '-' && p.kebab():
		default:
			p.out.WriteByte(c)
			p.pos++
		}
	}
	return p.out.String()
}

type preprocessor struct {
	src string
	pos int
	out strings.Builder
}

// quoted copies a literal delimited by q, honoring backslash escapes when
// escapes is set.
func (p *preprocessor) quoted(q byte, escapes bool) {
	start := p.pos
	p.pos++
	for p.pos < len(p.src) && p.src[p.pos] != q {
		if escapes && p.src[p.pos] == '\\' && p.pos+1 < len(p.src) {
			p.pos++
		}
		p.pos++
	}
	if p.pos < len(p.src) {
		p.pos++ // closing quote
	}
	p.out.WriteString(p.src[start:p.pos])
}

func (p *preprocessor) comment() {
	for p.pos < len(p.src) && p.src[p.pos] == ';' {
		p.pos++
	}
	end := strings.IndexByte(p.src[p.pos:], '\n')
	if end < 0 {
		end = len(p.src) - p.pos
	}
	p.out.WriteString("//")
	p.out.WriteString(p.src[p.pos : p.pos+end])
	p.pos += end
}

// keyword rewrites :name at pos. It leaves := and a lone colon alone.
func (p *preprocessor) keyword() bool {
	if p.pos+1 >= len(p.src) || !isLetter(p.src[p.pos+1]) {
		return false
	}
	end := p.pos + 1
	for end < len(p.src) && isKWChar(p.src[end]) {
		end++
	}
	p.out.WriteByte('"')
	p.out.WriteString(kwPrefix)
	p.out.WriteString(p.src[p.pos+1 : end])
	p.out.WriteByte('"')
	p.pos = end
	return true
}

// kebab turns a hyphen between identifier characters into an underscore.
// A hyphen after whitespace or a paren is a minus sign or a negative
// number and is kept.
func (p *preprocessor) kebab() bool {
	if p.pos == 0 || p.pos+1 >= len(p.src) ||
		!isIdentChar(p.src[p.pos-1]) || !isLetter(p.src[p.pos+1]) {
		return false
	}
	p.out.WriteByte('_')
	p.pos++
	return true
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}
