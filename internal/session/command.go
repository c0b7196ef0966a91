package session

import (
	"fmt"
	"strings"
)

// Command is a parsed slash command typed into the chat input.
type Command struct {
	Name string
	Arg  string
}

type commandHelp struct {
	usage   string
	summary string
}

var commandTable = map[string]commandHelp{
	"/help":   {"/help", "Display this help message"},
	"/bye":    {"/bye", "Exit the application (also /quit, /exit)"},
	"/clear":  {"/clear", "Start a new conversation"},
	"/save":   {"/save [path]", "Save the conversation as JSON"},
	"/load":   {"/load <path>", "Replace the conversation with a saved .json file"},
	"/models": {"/models", "List the models every provider offers"},
	"/model":  {"/model <name>", "Switch the model used from the next message"},
	"/copy":   {"/copy", "Copy the last code block to the clipboard"},
	"/tokens": {"/tokens", "Show how many tokens the conversation uses"},
	"/debug":  {"/debug", "Toggle the debug console"},
	"/voice":  {"/voice", "Speak your next message"},
}

var commandOrder = []string{"/help", "/bye", "/clear", "/save", "/load", "/models", "/model", "/copy", "/tokens", "/debug", "/voice"}

var commandAliases = map[string]string{
	"/quit": "/bye",
	"/exit": "/bye",
}

// ParseCommand recognises a slash command. Lines that are not commands,
// including unknown /words, are chat text and ok is false.
func ParseCommand(line string) (Command, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return Command{}, false
	}
	name, arg, _ := strings.Cut(line, " ")
	name = strings.ToLower(name)
	if alias, ok := commandAliases[name]; ok {
		name = alias
	}
	if _, ok := commandTable[name]; !ok {
		return Command{}, false
	}
	return Command{Name: name, Arg: strings.TrimSpace(arg)}, true
}

// HelpText lists the commands, one per line.
func HelpText() string {
	var b strings.Builder
	b.WriteString("Here are some commands you can use:\n")
	for _, name := range commandOrder {
		h := commandTable[name]
		fmt.Fprintf(&b, "- %s: %s\n", h.usage, h.summary)
	}
	return b.String()
}
