package handler

import (
	"strings"
	"unicode"
)

const (
	CommandStart = "start"
	CommandSkip  = "skip"
	CommandInfo  = "info"
	CommandPlay  = "play"
	CommandQueue = "queue"
	CommandStop  = "stop"
	CommandHelp  = "help"
)

// Command is a parsed chat command such as "!dd play <url>".
type Command struct {
	Name string
	Arg  string
}

// ParseCommand reports whether content is addressed to the bot and, if so,
// which command it carries. A bare prefix parses as help.
func ParseCommand(content, prefix string) (Command, bool) {
	content = strings.TrimSpace(content)
	rest, ok := strings.CutPrefix(content, prefix)
	if !ok {
		return Command{}, false
	}
	if rest == "" {
		return Command{Name: CommandHelp}, true
	}
	// "!ddstart" is not addressed to us.
	if !unicode.IsSpace(rune(rest[0])) {
		return Command{}, false
	}

	rest = strings.TrimSpace(rest)
	name, arg := rest, ""
	if i := strings.IndexFunc(rest, unicode.IsSpace); i >= 0 {
		name, arg = rest[:i], rest[i:]
	}
	return Command{
		Name: strings.ToLower(name),
		Arg:  strings.TrimSpace(arg),
	}, true
}
