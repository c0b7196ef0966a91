package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want Command
		ok   bool
	}{
		{"/help", Command{Name: "/help"}, true},
		{"  /QUIT ", Command{Name: "/bye"}, true},
		{"/exit", Command{Name: "/bye"}, true},
		{"/save  out/chat.json ", Command{Name: "/save", Arg: "out/chat.json"}, true},
		{"/model llama3:latest", Command{Name: "/model", Arg: "llama3:latest"}, true},
		{"/draw a circle", Command{}, false},
		{"draw a circle", Command{}, false},
		{"", Command{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseCommand(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}
}

func TestHelpTextListsEveryCommand(t *testing.T) {
	help := HelpText()
	for _, name := range commandOrder {
		assert.Contains(t, help, commandTable[name].usage)
	}
	assert.Len(t, commandOrder, len(commandTable))
}
