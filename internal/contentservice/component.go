package contentservice

import (
	"strings"
	"unicode"

	"github.com/goccy/go-json"
)

// blocks splits src into markdown chunks and component blocks. baseLine is the line number of src's first line.
func (st *compileState) blocks(src string, baseLine int, root bool) ([]Node, error) {
	var (
		nodes     []Node
		chunk     strings.Builder
		fence     string
		fenceLine int
	)

	flush := func() {
		nodes = append(nodes, st.markdown(chunk.String())...)
		chunk.Reset()
	}

	pos := 0
	for pos < len(src) {
		end := strings.IndexByte(src[pos:], '\n')
		if end < 0 {
			end = len(src)
		} else {
			end += pos + 1
		}
		line := src[pos:end]
		lineNo := baseLine + strings.Count(src[:pos], "\n")
		trimmed := strings.TrimLeft(line, " ")
		indent := len(line) - len(trimmed)

		if fence != "" {
			chunk.WriteString(line)
			if indent < 4 && isFenceClose(trimmed, fence) {
				fence = ""
			}
			pos = end
			continue
		}

		if indent < 4 {
			if f := fenceOpen(trimmed); f != "" {
				fence, fenceLine = f, lineNo
				chunk.WriteString(line)
				pos = end
				continue
			}
		}

		if root && indent == 0 && (strings.HasPrefix(line, "import ") || strings.HasPrefix(line, "export ")) {
			st.warn(lineNo, "dropped module statement %q", strings.TrimSpace(line))
			pos = end
			continue
		}

		if indent < 4 && isComponentStart(trimmed) {
			flush()

			node, next, err := st.component(src, pos+indent, baseLine)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)

			// Anything trailing the tag on its last line is treated as the next line.
			if rest := strings.IndexByte(src[next:], '\n'); rest >= 0 && strings.TrimSpace(src[next:next+rest]) == "" {
				next += rest + 1
			}
			pos = next
			continue
		}

		chunk.WriteString(line)
		pos = end
	}

	if fence != "" {
		return nil, &CompileError{Line: fenceLine, Msg: "unterminated fenced code block"}
	}
	flush()

	return nodes, nil
}

func fenceOpen(trimmed string) string {
	for _, ch := range []byte{'`', '~'} {
		n := 0
		for n < len(trimmed) && trimmed[n] == ch {
			n++
		}
		if n >= 3 {
			// Backtick fences may not carry backticks in their info string.
			if ch == '`' && strings.ContainsRune(trimmed[n:], '`') {
				return ""
			}
			return trimmed[:n]
		}
	}

	return ""
}

func isFenceClose(trimmed, fence string) bool {
	s := strings.TrimRight(trimmed, " \t\n")
	if len(s) < len(fence) {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] != fence[0] {
			return false
		}
	}

	return true
}

func isComponentStart(s string) bool {
	return len(s) >= 2 && s[0] == '<' && s[1] >= 'A' && s[1] <= 'Z'
}

func isNameByte(c byte) bool {
	return c == '_' || c == '.' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isPropByte(c byte) bool {
	return isNameByte(c) && c != '.' || c == '-' || c == ':'
}

// component parses the tag starting at src[start] and returns the node and the offset just past it.
func (st *compileState) component(src string, start, baseLine int) (Node, int, error) {
	lineAt := func(i int) int {
		return baseLine + strings.Count(src[:i], "\n")
	}
	openLine := lineAt(start)

	i := start + 1
	for i < len(src) && isNameByte(src[i]) {
		i++
	}
	name := src[start+1 : i]
	node := Node{Type: "component", Component: name, Props: map[string]any{}}

	if st.compiler.components != nil && !st.compiler.components[name] {
		st.warn(openLine, "unknown component %q", name)
	}

	selfClosing := false
	for {
		for i < len(src) && unicode.IsSpace(rune(src[i])) {
			i++
		}
		if i >= len(src) {
			return Node{}, 0, &CompileError{Line: openLine, Msg: "unterminated component tag <" + name + ">"}
		}

		if src[i] == '/' {
			if i+1 < len(src) && src[i+1] == '>' {
				selfClosing = true
				i += 2
				break
			}
			return Node{}, 0, &CompileError{Line: lineAt(i), Msg: "malformed tag <" + name + ">"}
		}
		if src[i] == '>' {
			i++
			break
		}

		propStart := i
		for i < len(src) && isPropByte(src[i]) {
			i++
		}
		prop := src[propStart:i]
		if prop == "" {
			return Node{}, 0, &CompileError{Line: lineAt(i), Msg: "malformed prop in <" + name + ">"}
		}

		if i >= len(src) || src[i] != '=' {
			node.Props[prop] = true
			continue
		}
		i++

		if i >= len(src) {
			return Node{}, 0, &CompileError{Line: openLine, Msg: "unterminated component tag <" + name + ">"}
		}

		switch src[i] {
		case '"', '\'':
			quote := src[i]
			endQuote := strings.IndexByte(src[i+1:], quote)
			if endQuote < 0 {
				return Node{}, 0, &CompileError{Line: lineAt(i), Msg: "unterminated string for prop " + prop}
			}
			node.Props[prop] = src[i+1 : i+1+endQuote]
			i += endQuote + 2

		case '{':
			end, ok := matchBrace(src, i)
			if !ok {
				return Node{}, 0, &CompileError{Line: lineAt(i), Msg: "unterminated expression for prop " + prop}
			}
			var value any
			if err := json.Unmarshal([]byte(src[i+1:end]), &value); err != nil {
				return Node{}, 0, &CompileError{Line: lineAt(i), Msg: "invalid JSON for prop " + prop + ": " + err.Error()}
			}
			node.Props[prop] = value
			i = end + 1

		default:
			return Node{}, 0, &CompileError{Line: lineAt(i), Msg: "malformed value for prop " + prop}
		}
	}

	if selfClosing {
		return node, i, nil
	}

	closeStart, closeEnd, ok := findClosingTag(src, i, name)
	if !ok {
		return Node{}, 0, &CompileError{Line: openLine, Msg: "missing closing tag </" + name + ">"}
	}

	inner := src[i:closeStart]
	innerLine := lineAt(i)
	if strings.HasPrefix(inner, "\n") {
		inner = inner[1:]
		innerLine++
	}

	children, err := st.blocks(dedent(inner), innerLine, false)
	if err != nil {
		return Node{}, 0, err
	}
	node.Children = children

	return node, closeEnd, nil
}

// matchBrace returns the index of the brace closing the one at src[open], skipping JSON strings.
func matchBrace(src string, open int) (int, bool) {
	depth := 0
	inString := false
	for i := open; i < len(src); i++ {
		c := src[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}

	return 0, false
}

// findClosingTag locates the </name> balancing an already opened <name>, honoring nested tags of the same name.
// Tags inside fenced code blocks are ignored.
func findClosingTag(src string, from int, name string) (int, int, bool) {
	depth := 1
	fence := ""
	lineStart := false
	pos := from
	for pos < len(src) {
		end := strings.IndexByte(src[pos:], '\n')
		if end < 0 {
			end = len(src)
		} else {
			end += pos + 1
		}

		if lineStart {
			trimmed := strings.TrimLeft(src[pos:end], " \t")
			if fence != "" {
				if isFenceClose(trimmed, fence) {
					fence = ""
				}
				pos = end
				continue
			}
			if f := fenceOpen(trimmed); f != "" {
				fence = f
				pos = end
				continue
			}
		}
		lineStart = true

		if closeStart, closeEnd, ok := scanTags(src, pos, end, name, &depth); ok {
			return closeStart, closeEnd, true
		}
		pos = end
	}

	return 0, 0, false
}

// scanTags walks the tags of name starting in src[from:to], adjusting depth, and reports the closing tag that brings it to zero.
func scanTags(src string, from, to int, name string, depth *int) (int, int, bool) {
	i := from
	for i < to {
		j := strings.IndexByte(src[i:to], '<')
		if j < 0 {
			return 0, 0, false
		}
		j += i

		if strings.HasPrefix(src[j:], "</"+name) {
			k := j + 2 + len(name)
			for k < len(src) && (src[k] == ' ' || src[k] == '\t') {
				k++
			}
			if k < len(src) && src[k] == '>' {
				*depth--
				if *depth == 0 {
					return j, k + 1, true
				}
				i = k + 1
				continue
			}
		}

		if strings.HasPrefix(src[j:], "<"+name) {
			k := j + 1 + len(name)
			if k < len(src) && !isNameByte(src[k]) {
				if end := strings.IndexByte(src[k:], '>'); end >= 0 && src[k+end-1] != '/' {
					*depth++
				}
			}
		}

		i = j + 1
	}

	return 0, 0, false
}

// dedent strips the indentation shared by every non-blank line.
func dedent(s string) string {
	lines := strings.Split(s, "\n")
	common := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		n := len(l) - len(strings.TrimLeft(l, " \t"))
		if common < 0 || n < common {
			common = n
		}
	}
	if common <= 0 {
		return s
	}

	for i, l := range lines {
		if len(l) >= common {
			lines[i] = l[common:]
		} else {
			lines[i] = strings.TrimLeft(l, " \t")
		}
	}

	return strings.Join(lines, "\n")
}
