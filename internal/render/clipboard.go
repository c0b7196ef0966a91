package render

import (
	"errors"

	"github.com/atotto/clipboard"
)

var ErrNoCodeBlock = errors.New("no code block in the last reply")

// clipboardWriteAll is swapped out in tests.
var clipboardWriteAll = clipboard.WriteAll

// CopyLastCodeBlock puts the last closed code block of reply on the system
// clipboard and returns it.
func CopyLastCodeBlock(reply string) (CodeBlock, error) {
	block, ok := LastCodeBlock(reply)
	if !ok {
		return CodeBlock{}, ErrNoCodeBlock
	}
	if err := clipboardWriteAll(block.Code); err != nil {
		return CodeBlock{}, err
	}
	return block, nil
}

// CopyReply copies the last code block of reply, or the whole reply when it
// has none. It reports whether a code block was copied.
func CopyReply(reply string) (bool, error) {
	if _, err := CopyLastCodeBlock(reply); err == nil {
		return true, nil
	} else if !errors.Is(err, ErrNoCodeBlock) {
		return false, err
	}
	if err := clipboardWriteAll(reply); err != nil {
		return false, err
	}
	return false, nil
}
