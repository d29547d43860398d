package protocol

import (
	"errors"
	"sort"
	"strconv"
	"strings"
)

// Legacy bracket dialect, decode-only. A reply is one or more commands
// joined by "&&". Each command names both parties with "PLAYER <name>"
// and "NPC <name>"; whichever keyword appears first in the command is
// the sender. A command containing SAYS and no GIVES is a chat message;
// anything else must be an item transfer carrying an ITEM keyword with a
// bracketed amount and a bracketed (or trailing-TO-terminated) item name.

type CommandKind int

const (
	KindTransfer CommandKind = iota
	KindSay
)

// Command is one decoded legacy command. Transfers sort before messages
// so inventory effects are applied before dialogue is surfaced.
type Command struct {
	Kind     CommandKind
	Sender   string
	Receiver string

	// KindTransfer
	Item   string
	Amount int

	// KindSay
	Text string
}

var errBracketSyntax = errors.New("malformed bracket command")

// DecodeBracket parses a full legacy reply. Any malformed command fails
// the whole decode; the caller falls back to the error interaction.
func DecodeBracket(raw string) ([]Command, error) {
	parts := strings.Split(raw, "&&")
	cmds := make([]Command, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, errBracketSyntax
		}
		cmd, err := decodeBracketCommand(part)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
	sortCommands(cmds)
	return cmds, nil
}

func decodeBracketCommand(s string) (Command, error) {
	playerIdx := strings.Index(s, "PLAYER")
	npcIdx := strings.Index(s, "NPC")
	if playerIdx < 0 || npcIdx < 0 {
		return Command{}, errBracketSyntax
	}
	playerName := wordAfter(s, playerIdx+len("PLAYER"))
	npcName := wordAfter(s, npcIdx+len("NPC"))
	if playerName == "" || npcName == "" {
		return Command{}, errBracketSyntax
	}

	// Keyword order decides direction.
	sender, receiver := npcName, playerName
	if playerIdx < npcIdx {
		sender, receiver = playerName, npcName
	}

	hasSays := strings.Contains(s, "SAYS")
	hasGives := strings.Contains(s, "GIVES")

	if hasSays && !hasGives {
		text, _, err := bracketToken(s, strings.Index(s, "SAYS")+len("SAYS"))
		if err != nil || text == "" {
			return Command{}, errBracketSyntax
		}
		return Command{Kind: KindSay, Sender: sender, Receiver: receiver, Text: text}, nil
	}

	itemIdx := strings.Index(s, "ITEM")
	if itemIdx < 0 {
		return Command{}, errBracketSyntax
	}
	amountTok, next, err := bracketToken(s, itemIdx+len("ITEM"))
	if err != nil {
		return Command{}, errBracketSyntax
	}
	amount, err := strconv.Atoi(strings.TrimSpace(amountTok))
	if err != nil {
		return Command{}, errBracketSyntax
	}
	item, _, err := bracketToken(s, next)
	if err != nil {
		// Unbracketed item name: everything up to the trailing " TO ".
		rest := s[next:]
		toIdx := strings.Index(rest, " TO ")
		if toIdx < 0 {
			return Command{}, errBracketSyntax
		}
		item = strings.TrimSpace(rest[:toIdx])
	}
	if item == "" {
		return Command{}, errBracketSyntax
	}
	return Command{Kind: KindTransfer, Sender: sender, Receiver: receiver, Item: item, Amount: amount}, nil
}

// wordAfter returns the first word run following a keyword, skipping
// leading spaces. Names are plain words, not bracket-delimited.
func wordAfter(s string, from int) string {
	i := from
	for i < len(s) && s[i] == ' ' {
		i++
	}
	start := i
	for i < len(s) && s[i] != ' ' && s[i] != '[' && s[i] != ']' {
		i++
	}
	return s[start:i]
}

// bracketToken scans from offset, entering capture mode on '[' and
// stopping on ']'. Returns the captured token and the index just past
// the closing bracket.
func bracketToken(s string, from int) (string, int, error) {
	if from < 0 || from >= len(s) {
		return "", from, errBracketSyntax
	}
	var b strings.Builder
	capturing := false
	for i := from; i < len(s); i++ {
		switch c := s[i]; {
		case c == '[':
			capturing = true
		case c == ']':
			if !capturing {
				return "", i, errBracketSyntax
			}
			return b.String(), i + 1, nil
		case capturing:
			b.WriteByte(c)
		}
	}
	return "", len(s), errBracketSyntax
}

// Deterministic ordering: transfers before messages, then lexicographic
// by fields within the same kind.
func sortCommands(cmds []Command) {
	sort.SliceStable(cmds, func(i, j int) bool {
		a, b := cmds[i], cmds[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Sender != b.Sender {
			return a.Sender < b.Sender
		}
		if a.Receiver != b.Receiver {
			return a.Receiver < b.Receiver
		}
		if a.Kind == KindTransfer {
			if a.Item != b.Item {
				return a.Item < b.Item
			}
			return a.Amount < b.Amount
		}
		return a.Text < b.Text
	})
}
