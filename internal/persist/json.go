package persist

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/bz888/eyesy-bot/internal/transcript"
)

// DefaultFilename is the name exports are offered under.
const DefaultFilename = "chat.json"

const MimeType = "application/json"

var ErrNotJSONFile = errors.New("only .json files can be imported")

// ParseError means the imported bytes are not a JSON document.
type ParseError struct {
	Offset int64
	Err    error
}

func (e *ParseError) Error() string {
	if e.Offset > 0 {
		return fmt.Sprintf("invalid chat file at byte %d: %v", e.Offset, e.Err)
	}
	return fmt.Sprintf("invalid chat file: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type entry struct {
	Role    *string `json:"role"`
	Content *string `json:"content"`
}

// Export writes messages as an indented JSON array of {role, content}.
func Export(w io.Writer, messages []transcript.Message) error {
	if messages == nil {
		messages = []transcript.Message{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	return errors.Wrap(enc.Encode(messages), "encode transcript")
}

// Import parses an exported transcript. Syntax errors and invalid UTF-8
// produce a *ParseError; well-formed JSON of the wrong shape produces a
// *transcript.MalformedError. Entries are returned verbatim: no system
// message is added when the file has none.
func Import(r io.Reader) ([]transcript.Message, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read chat file")
	}
	if !utf8.Valid(raw) {
		return nil, &ParseError{Err: errors.New("content is not valid UTF-8")}
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))

	if !json.Valid(raw) {
		var doc interface{}
		err := json.Unmarshal(raw, &doc)
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return nil, &ParseError{Offset: syntaxErr.Offset, Err: syntaxErr}
		}
		return nil, &ParseError{Err: err}
	}

	var items []json.RawMessage
	// null decodes into a nil slice without error
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return nil, &transcript.MalformedError{Index: -1, Reason: "top level value is not an array"}
	}

	messages := make([]transcript.Message, 0, len(items))
	for i, item := range items {
		var e entry
		if err := json.Unmarshal(item, &e); err != nil {
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) && typeErr.Field != "" {
				return nil, &transcript.MalformedError{Index: i, Reason: fmt.Sprintf("%s must be a string", typeErr.Field)}
			}
			return nil, &transcript.MalformedError{Index: i, Reason: "entry is not an object"}
		}
		if e.Role == nil {
			return nil, &transcript.MalformedError{Index: i, Reason: "missing role"}
		}
		if e.Content == nil {
			return nil, &transcript.MalformedError{Index: i, Reason: "missing content"}
		}
		messages = append(messages, transcript.Message{Role: transcript.Role(*e.Role), Content: *e.Content})
	}

	if err := transcript.Validate(messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// WriteFile exports messages to path, replacing any existing file.
func WriteFile(path string, messages []transcript.Message) error {
	if path == "" {
		path = DefaultFilename
	}
	var buf bytes.Buffer
	if err := Export(&buf, messages); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
	}
	return errors.Wrapf(os.WriteFile(path, buf.Bytes(), 0o644), "write %s", path)
}

// ReadFile imports the transcript stored at path. Only .json files are accepted.
func ReadFile(path string) ([]transcript.Message, error) {
	if !IsJSONName(path) {
		return nil, errors.Wrap(ErrNotJSONFile, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return Import(f)
}

func IsJSONName(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".json")
}
