package indexer

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

const (
	minChunkSize = 50
	maxChunkSize = 700 // runes; keeps a chunk under a 512-token embedding window
)

// GoldmarkChunker splits markdown documents by heading hierarchy.
type GoldmarkChunker struct {
	parser goldmark.Markdown
}

// NewGoldmarkChunker creates a new goldmark chunker.
func NewGoldmarkChunker() *GoldmarkChunker {
	return &GoldmarkChunker{
		parser: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		),
	}
}

// section is the body of one heading, kept as separate blocks so splitting can prefer
// block boundaries.
type section struct {
	headingPath string
	blocks      []string
}

func (s section) text() string {
	return strings.Join(s.blocks, "\n\n")
}

// ChunkMarkdown returns the document title and its chunks. Text before the first heading
// is filed under the title. Plain text without markdown structure becomes paragraph chunks.
func (c *GoldmarkChunker) ChunkMarkdown(content []byte, filename string) (title string, chunks []Chunk) {
	if len(strings.TrimSpace(string(content))) == 0 {
		return titleFromFilename(filename), []Chunk{}
	}

	doc := c.parser.Parser().Parse(text.NewReader(content))
	title = extractTitle(doc, content, filename)

	var sections []section
	var stack []headingInfo
	current := section{headingPath: "# " + title}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			if len(current.blocks) > 0 {
				sections = append(sections, current)
			}
			for len(stack) > 0 && stack[len(stack)-1].level >= h.Level {
				stack = stack[:len(stack)-1]
			}
			stack = append(stack, headingInfo{level: h.Level, text: inlineText(h, content)})
			current = section{headingPath: buildHeadingPath(stack)}
			continue
		}
		if block := strings.TrimSpace(blockText(n, content)); block != "" {
			current.blocks = append(current.blocks, block)
		}
	}
	if len(current.blocks) > 0 {
		sections = append(sections, current)
	}

	return title, pack(sections)
}

// extractTitle picks the first level-1 heading, else the first level-2 heading, else the
// filename.
func extractTitle(doc ast.Node, content []byte, filename string) string {
	var firstH2 string
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok {
			continue
		}
		if h.Level == 1 {
			return inlineText(h, content)
		}
		if h.Level == 2 && firstH2 == "" {
			firstH2 = inlineText(h, content)
		}
	}
	if firstH2 != "" {
		return firstH2
	}
	return titleFromFilename(filename)
}

// titleFromFilename drops the extension and capitalizes each word.
func titleFromFilename(filename string) string {
	name := filepath.Base(filename)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)

	words := strings.Fields(name)
	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

type headingInfo struct {
	level int
	text  string
}

// buildHeadingPath formats the stack as "# Heading1 > ## Heading2".
func buildHeadingPath(stack []headingInfo) string {
	parts := make([]string, len(stack))
	for i, h := range stack {
		parts[i] = fmt.Sprintf("%s %s", strings.Repeat("#", h.level), h.text)
	}
	return strings.Join(parts, " > ")
}

// blockText returns the source text of a block. Leaf blocks keep their raw lines; lists,
// quotes and tables are flattened one line per item, row or child block.
func blockText(n ast.Node, content []byte) string {
	switch n.(type) {
	case *east.Table:
		var rows []string
		for row := n.FirstChild(); row != nil; row = row.NextSibling() {
			var cells []string
			for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
				cells = append(cells, inlineText(cell, content))
			}
			rows = append(rows, strings.Join(cells, " | "))
		}
		return strings.Join(rows, "\n")
	case *ast.ThematicBreak:
		return ""
	}

	if n.Type() == ast.TypeBlock && n.HasChildren() && n.FirstChild().Type() == ast.TypeBlock {
		var parts []string
		for child := n.FirstChild(); child != nil; child = child.NextSibling() {
			if t := strings.TrimSpace(blockText(child, content)); t != "" {
				parts = append(parts, t)
			}
		}
		return strings.Join(parts, "\n")
	}

	lines := n.Lines()
	parts := make([]string, 0, lines.Len())
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		parts = append(parts, strings.TrimRight(string(seg.Value(content)), "\r\n"))
	}
	return strings.Join(parts, "\n")
}

// inlineText concatenates the text of the inline children of n.
func inlineText(n ast.Node, content []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(content))
			if v.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

// pack turns sections into chunks: a section under minChunkSize is merged into the next
// one when the result fits, and a section over maxChunkSize is split at block, line or
// sentence boundaries.
func pack(sections []section) []Chunk {
	var chunks []Chunk
	for i := 0; i < len(sections); i++ {
		cur := sections[i]
		for utf8.RuneCountInString(cur.text()) < minChunkSize && i+1 < len(sections) {
			next := sections[i+1]
			merged := section{headingPath: cur.headingPath, blocks: append(append([]string{}, cur.blocks...), next.blocks...)}
			if utf8.RuneCountInString(merged.text()) > maxChunkSize {
				break
			}
			cur = merged
			i++
		}

		for _, piece := range split(cur.blocks) {
			chunks = append(chunks, Chunk{HeadingPath: cur.headingPath, Text: piece})
		}
	}

	for i := range chunks {
		chunks[i].Index = i
	}
	if chunks == nil {
		chunks = []Chunk{}
	}
	return chunks
}

// split packs blocks greedily into pieces of at most maxChunkSize runes.
func split(blocks []string) []string {
	var pieces []string
	var cur []string
	curLen := 0

	flush := func() {
		if len(cur) > 0 {
			pieces = append(pieces, strings.Join(cur, "\n\n"))
			cur, curLen = nil, 0
		}
	}

	for _, block := range blocks {
		n := utf8.RuneCountInString(block)
		if n > maxChunkSize {
			flush()
			pieces = append(pieces, hardSplit(block)...)
			continue
		}
		sep := 0
		if len(cur) > 0 {
			sep = 2
		}
		if curLen+sep+n > maxChunkSize {
			flush()
			sep = 0
		}
		cur = append(cur, block)
		curLen += sep + n
	}
	flush()
	return pieces
}

// hardSplit cuts an oversized block, preferring the last newline or sentence end inside
// each window.
func hardSplit(block string) []string {
	runes := []rune(block)
	var pieces []string
	for start := 0; start < len(runes); {
		end := start + maxChunkSize
		if end >= len(runes) {
			pieces = append(pieces, strings.TrimSpace(string(runes[start:])))
			break
		}
		window := string(runes[start:end])
		cut := end
		if i := strings.LastIndex(window, "\n"); i > 0 {
			cut = start + utf8.RuneCountInString(window[:i+1])
		} else if i := strings.LastIndex(window, ". "); i > 0 {
			cut = start + utf8.RuneCountInString(window[:i+2])
		}
		pieces = append(pieces, strings.TrimSpace(string(runes[start:cut])))
		start = cut
	}
	return pieces
}
