package contentservice

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// CacheVersion tags both compiled documents and cache entries. Bump it whenever the Node tree changes shape.
const CacheVersion = "1.2.0"

// CompileError reports malformed source. Line is 1-based within the body.
type CompileError struct {
	Line int
	Msg  string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile error at line %d: %s", e.Line, e.Msg)
}

type CompileOptions struct {
	// Extensions names the markdown extensions to enable: table, strikethrough, linkify, tasklist, gfm.
	Extensions []string
	// Components is the registry of known component names. Nil disables the unknown-component warning.
	Components []string
}

func DefaultCompileOptions() CompileOptions {
	return CompileOptions{
		Extensions: []string{"gfm"},
		Components: []string{
			"FAQ",
			"Callout",
			"PriceChart",
			"PaymentPlan",
			"Gallery",
			"ImageGrid",
			"VideoEmbed",
			"ProjectCard",
			"LocationMap",
		},
	}
}

type Node struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	Level     int            `json:"level,omitempty"`
	URL       string         `json:"url,omitempty"`
	Title     string         `json:"title,omitempty"`
	Language  string         `json:"language,omitempty"`
	Ordered   bool           `json:"ordered,omitempty"`
	Start     int            `json:"start,omitempty"`
	Align     []string       `json:"align,omitempty"`
	Checked   *bool          `json:"checked,omitempty"`
	Component string         `json:"component,omitempty"`
	Props     map[string]any `json:"props,omitempty"`
	Children  []Node         `json:"children,omitempty"`
}

type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
	ID    string `json:"id"`
}

type CompiledDocument struct {
	Version   string    `json:"version"`
	Nodes     []Node    `json:"nodes"`
	Headings  []Heading `json:"headings"`
	WordCount int       `json:"wordCount"`
	Warnings  []string  `json:"warnings,omitempty"`
}

// Compiler turns a content body into a CompiledDocument. It holds no mutable state and is safe for concurrent use.
type Compiler struct {
	md         goldmark.Markdown
	components map[string]bool
}

func NewCompiler(opts CompileOptions) (*Compiler, error) {
	var exts []goldmark.Extender
	for _, name := range opts.Extensions {
		switch strings.ToLower(name) {
		case "gfm":
			exts = append(exts, extension.GFM)
		case "table":
			exts = append(exts, extension.Table)
		case "strikethrough":
			exts = append(exts, extension.Strikethrough)
		case "linkify":
			exts = append(exts, extension.Linkify)
		case "tasklist":
			exts = append(exts, extension.TaskList)
		default:
			return nil, fmt.Errorf("unknown markdown extension %q", name)
		}
	}

	var components map[string]bool
	if opts.Components != nil {
		components = make(map[string]bool, len(opts.Components))
		for _, c := range opts.Components {
			components[c] = true
		}
	}

	return &Compiler{
		md:         goldmark.New(goldmark.WithExtensions(exts...)),
		components: components,
	}, nil
}

// Compile is a convenience wrapper around NewCompiler and Compiler.Compile.
func Compile(body string, opts CompileOptions) (*CompiledDocument, error) {
	c, err := NewCompiler(opts)
	if err != nil {
		return nil, err
	}

	return c.Compile(body)
}

func (c *Compiler) Compile(body string) (*CompiledDocument, error) {
	body = strings.ReplaceAll(body, "\r\n", "\n")

	st := &compileState{compiler: c, headingIDs: make(map[string]int)}
	nodes, err := st.blocks(body, 1, true)
	if err != nil {
		return nil, err
	}
	if nodes == nil {
		nodes = []Node{}
	}

	headings := st.headings
	if headings == nil {
		headings = []Heading{}
	}

	return &CompiledDocument{
		Version:   CacheVersion,
		Nodes:     nodes,
		Headings:  headings,
		WordCount: countWords(nodes),
		Warnings:  st.warnings,
	}, nil
}

type compileState struct {
	compiler   *Compiler
	headings   []Heading
	headingIDs map[string]int
	warnings   []string
}

func (st *compileState) warn(line int, format string, args ...any) {
	st.warnings = append(st.warnings, fmt.Sprintf("line %d: ", line)+fmt.Sprintf(format, args...))
}

// markdown parses a plain markdown chunk, one with no component blocks left in it.
func (st *compileState) markdown(chunk string) []Node {
	if strings.TrimSpace(chunk) == "" {
		return nil
	}

	src := []byte(chunk)
	doc := st.compiler.md.Parser().Parse(text.NewReader(src))

	return st.children(doc, src)
}

func (st *compileState) children(n ast.Node, src []byte) []Node {
	var out []Node
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		out = appendMerged(out, st.convert(c, src)...)
	}

	return out
}

// appendMerged joins adjacent text nodes so soft breaks do not fragment paragraphs.
func appendMerged(out []Node, nodes ...Node) []Node {
	for _, n := range nodes {
		if n.Type == "text" && len(out) > 0 && out[len(out)-1].Type == "text" {
			out[len(out)-1].Text += n.Text
			continue
		}
		out = append(out, n)
	}

	return out
}

func (st *compileState) convert(n ast.Node, src []byte) []Node {
	switch n := n.(type) {
	case *ast.Heading:
		children := st.children(n, src)
		st.addHeading(n.Level, plainText(children))
		return []Node{{Type: "heading", Level: n.Level, Children: children}}

	case *ast.Paragraph:
		return []Node{{Type: "paragraph", Children: st.children(n, src)}}

	case *ast.TextBlock:
		// Tight list items wrap their content in a TextBlock; flatten it.
		return st.children(n, src)

	case *ast.FencedCodeBlock:
		return []Node{{Type: "code", Language: string(n.Language(src)), Text: linesText(n.Lines(), src)}}

	case *ast.CodeBlock:
		return []Node{{Type: "code", Text: linesText(n.Lines(), src)}}

	case *ast.List:
		node := Node{Type: "list", Ordered: n.IsOrdered(), Children: st.children(n, src)}
		if n.IsOrdered() {
			node.Start = n.Start
		}
		return []Node{node}

	case *ast.ListItem:
		item := Node{Type: "listItem"}
		for _, c := range st.children(n, src) {
			if c.Type == "taskCheckbox" {
				item.Checked = c.Checked
				continue
			}
			item.Children = appendMerged(item.Children, c)
		}
		return []Node{item}

	case *ast.Blockquote:
		return []Node{{Type: "blockquote", Children: st.children(n, src)}}

	case *ast.ThematicBreak:
		return []Node{{Type: "thematicBreak"}}

	case *ast.HTMLBlock:
		html := linesText(n.Lines(), src)
		if n.HasClosure() {
			html += string(n.ClosureLine.Value(src))
		}
		return []Node{{Type: "html", Text: html}}

	case *ast.Text:
		value := string(n.Segment.Value(src))
		out := []Node{{Type: "text", Text: value}}
		switch {
		case n.HardLineBreak():
			out = append(out, Node{Type: "break"})
		case n.SoftLineBreak():
			out[0].Text += "\n"
		}
		return out

	case *ast.String:
		value := string(n.Value)
		return []Node{{Type: "text", Text: value}}

	case *ast.Emphasis:
		kind := "emphasis"
		if n.Level >= 2 {
			kind = "strong"
		}
		return []Node{{Type: kind, Children: st.children(n, src)}}

	case *ast.Link:
		return []Node{{Type: "link", URL: string(n.Destination), Title: string(n.Title), Children: st.children(n, src)}}

	case *ast.AutoLink:
		label := string(n.Label(src))
		return []Node{{Type: "link", URL: string(n.URL(src)), Children: []Node{{Type: "text", Text: label}}}}

	case *ast.Image:
		return []Node{{Type: "image", URL: string(n.Destination), Title: string(n.Title), Text: plainText(st.children(n, src))}}

	case *ast.CodeSpan:
		return []Node{{Type: "inlineCode", Text: plainText(st.children(n, src))}}

	case *ast.RawHTML:
		var buf bytes.Buffer
		for i := 0; i < n.Segments.Len(); i++ {
			seg := n.Segments.At(i)
			buf.Write(seg.Value(src))
		}
		return []Node{{Type: "html", Text: buf.String()}}

	case *east.Strikethrough:
		return []Node{{Type: "delete", Children: st.children(n, src)}}

	case *east.TaskCheckBox:
		checked := n.IsChecked
		return []Node{{Type: "taskCheckbox", Checked: &checked}}

	case *east.Table:
		align := make([]string, len(n.Alignments))
		for i, a := range n.Alignments {
			align[i] = alignment(a)
		}
		return []Node{{Type: "table", Align: align, Children: st.children(n, src)}}

	case *east.TableHeader:
		return []Node{{Type: "tableRow", Level: 1, Children: st.children(n, src)}}

	case *east.TableRow:
		return []Node{{Type: "tableRow", Children: st.children(n, src)}}

	case *east.TableCell:
		return []Node{{Type: "tableCell", Children: st.children(n, src)}}

	default:
		// Unknown node kinds keep their children so no text is lost.
		return st.children(n, src)
	}
}

func alignment(a east.Alignment) string {
	switch a {
	case east.AlignLeft:
		return "left"
	case east.AlignRight:
		return "right"
	case east.AlignCenter:
		return "center"
	default:
		return ""
	}
}

func linesText(lines *text.Segments, src []byte) string {
	var buf bytes.Buffer
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(src))
	}

	return buf.String()
}

// plainText flattens the text content of nodes.
func plainText(nodes []Node) string {
	var b strings.Builder
	var walk func([]Node)
	walk = func(ns []Node) {
		for _, n := range ns {
			switch n.Type {
			case "text", "inlineCode":
				b.WriteString(n.Text)
			case "break":
				b.WriteString(" ")
			}
			walk(n.Children)
		}
	}
	walk(nodes)

	return strings.TrimSpace(strings.ReplaceAll(b.String(), "\n", " "))
}

// countWords counts prose words. Code blocks and raw HTML are not prose.
func countWords(nodes []Node) int {
	var b strings.Builder
	var walk func([]Node)
	walk = func(ns []Node) {
		for _, n := range ns {
			switch n.Type {
			case "text", "inlineCode":
				b.WriteString(n.Text)
			case "emphasis", "strong", "delete", "link":
				walk(n.Children)
			case "code", "html":
				b.WriteString(" ")
			default:
				b.WriteString(" ")
				walk(n.Children)
				b.WriteString(" ")
			}
		}
	}
	walk(nodes)

	return len(strings.Fields(b.String()))
}

var nonSlugRX = regexp.MustCompile(`[^a-z0-9]+`)

func (st *compileState) addHeading(level int, title string) {
	id := strings.Trim(nonSlugRX.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if id == "" {
		id = "section"
	}

	if n := st.headingIDs[id]; n > 0 {
		st.headingIDs[id] = n + 1
		id = fmt.Sprintf("%s-%d", id, n)
	} else {
		st.headingIDs[id] = 1
	}

	st.headings = append(st.headings, Heading{Level: level, Text: title, ID: id})
}
