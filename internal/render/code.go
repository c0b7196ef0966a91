package render

import (
	"strings"
)

// CodeBlock is one fenced block from a markdown reply.
type CodeBlock struct {
	Lang string
	Code string
	// Closed is false for a block still open at the end of the text, as
	// happens while a reply is streaming.
	Closed bool
}

// CodeBlocks returns the fenced blocks in text, in order. Both ``` and ~~~
// fences are recognised; a closing fence must use the same character and be
// at least as long as the opening one.
func CodeBlocks(text string) []CodeBlock {
	var (
		blocks  []CodeBlock
		inBlock bool
		fence   string
		cur     CodeBlock
		body    []string
	)

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimRight(line, " \t\r")
		indent := len(trimmed) - len(strings.TrimLeft(trimmed, " "))
		bare := strings.TrimLeft(trimmed, " ")

		if !inBlock {
			if indent > 3 {
				continue
			}
			if f := fenceOf(bare); f != "" {
				inBlock = true
				fence = f
				cur = CodeBlock{Lang: infoLang(bare[len(f):])}
				body = body[:0]
			}
			continue
		}

		if indent <= 3 && isClosingFence(bare, fence) {
			cur.Code = strings.Join(body, "\n")
			cur.Closed = true
			blocks = append(blocks, cur)
			inBlock = false
			continue
		}
		body = append(body, strings.TrimRight(line, "\r"))
	}

	if inBlock {
		cur.Code = strings.Join(body, "\n")
		blocks = append(blocks, cur)
	}
	return blocks
}

// LastCodeBlock returns the last closed fenced block in text.
func LastCodeBlock(text string) (CodeBlock, bool) {
	blocks := CodeBlocks(text)
	for i := len(blocks) - 1; i >= 0; i-- {
		if blocks[i].Closed {
			return blocks[i], true
		}
	}
	return CodeBlock{}, false
}

func fenceOf(line string) string {
	for _, c := range []byte{'`', '~'} {
		n := 0
		for n < len(line) && line[n] == c {
			n++
		}
		if n < 3 {
			continue
		}
		// backtick fences cannot carry backticks in the info string
		if c == '`' && strings.ContainsRune(line[n:], '`') {
			return ""
		}
		return line[:n]
	}
	return ""
}

func isClosingFence(line, fence string) bool {
	c := fence[0]
	n := 0
	for n < len(line) && line[n] == c {
		n++
	}
	return n >= len(fence) && strings.TrimSpace(line[n:]) == ""
}

func infoLang(info string) string {
	fields := strings.Fields(info)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
