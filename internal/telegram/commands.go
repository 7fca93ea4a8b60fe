package telegram

import (
	"strings"
	"unicode"
)

// Command is a parsed bot command.
type Command struct {
	Name string
	Args string
}

const (
	votePrefix     = "voteimposter_"
	passwordPrefix = "password:"
)

// ParseCommand splits "/name@bot args" into its parts. Two commands carry their
// argument inside the command word: "/voteimposter_<@user|id>" and "/password:<secret>".
func ParseCommand(text string) (Command, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") || len(text) < 2 {
		return Command{}, false
	}
	head, args := text[1:], ""
	if i := strings.IndexFunc(head, unicode.IsSpace); i >= 0 {
		head, args = head[:i], strings.TrimSpace(head[i:])
	}

	if ref, ok := cutPrefixFold(head, votePrefix); ok {
		ref = stripBotName(ref)
		return Command{Name: "voteimposter", Args: ref}, ref != ""
	}
	if secret, ok := cutPrefixFold(head, passwordPrefix); ok {
		if args != "" {
			secret += " " + args
		}
		return Command{Name: "password", Args: secret}, true
	}

	name, _, _ := strings.Cut(head, "@")
	if name == "" {
		return Command{}, false
	}
	return Command{Name: strings.ToLower(name), Args: args}, true
}

// stripBotName drops a trailing "@bot" mention: "@alice@MyBot" -> "@alice", "123@MyBot" -> "123".
func stripBotName(ref string) string {
	if ref == "" {
		return ref
	}
	if i := strings.Index(ref[1:], "@"); i >= 0 {
		return ref[:i+1]
	}
	return ref
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}

// parseBool accepts the spellings admins actually type for /online.
func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "on", "yes", "1":
		return true, true
	case "false", "off", "no", "0":
		return false, true
	}
	return false, false
}

const helpText = `Imposter game commands

Players:
/start - join the lobby
/left - leave the lobby
/voteimposter_<@user|id> - vote during a round
/status - show the lobby

Admins:
/distribute - pick imposters and send roles
/vote - open a voting round
/tally - close the current round now
/reveal - privately show the topic and imposters
/end - end the game and reveal everything
/reset - empty the lobby
/remove <@user|id> - remove a player
/settimevote <10-600> - voting window in seconds
/setminplayers <n> - players needed to start
/online <true|false> - online mode
/setlinkgroup <link|clear> - group link sent with roles
/message <text> - message every player
/clear - delete tracked bot messages
/password:<secret> - become an admin`
