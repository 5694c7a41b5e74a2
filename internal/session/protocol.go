// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package session

import (
	"fmt"
	"strings"
)

// Kind is a parsed command keyword.
type Kind int

const (
	KindEmpty Kind = iota
	KindBlock
	KindUnblock
	KindList
	KindCheck
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindBlock:
		return "block"
	case KindUnblock:
		return "unblock"
	case KindList:
		return "list"
	case KindCheck:
		return "check"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Command is one request line.
type Command struct {
	Kind Kind
	Arg  string
}

// Parse tokenizes a request line. Only the keyword is case-insensitive.
//
// Any line whose first token is not UNBLOCK, LIST or CHECK is a block request
// for the whole trimmed line, so "BLOCKX aa:bb:cc:dd:ee:ff" asks to block the
// literal string and fails validation. A keyword with no argument uses the
// whole line as its argument, so "UNBLOCK" alone is rejected the same way.
func Parse(line string) Command {
	trimmed := strings.TrimSpace(line)
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return Command{Kind: KindEmpty}
	}

	arg := trimmed
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch strings.ToUpper(fields[0]) {
	case "UNBLOCK":
		return Command{Kind: KindUnblock, Arg: arg}
	case "LIST":
		return Command{Kind: KindList}
	case "CHECK":
		return Command{Kind: KindCheck, Arg: arg}
	}
	return Command{Kind: KindBlock, Arg: trimmed}
}

func invalidFormat(raw string) string {
	return fmt.Sprintf("Invalid MAC address format: %s", raw)
}

func blockedResponse(raw string) string {
	return fmt.Sprintf("Blocked MAC: %s", raw)
}

func blockFailedResponse(raw string, err error) string {
	return fmt.Sprintf("Failed to block %s: %v", raw, err)
}

func notBlockedResponse(raw string) string {
	return fmt.Sprintf("MAC %s not in blocklist", raw)
}

func listResponse(macs []string) string {
	return fmt.Sprintf("Blocked MACs (%d): %s", len(macs), strings.Join(macs, ", "))
}

func checkResponse(raw string, blocked bool) string {
	if blocked {
		return fmt.Sprintf("MAC %s: BLOCKED", raw)
	}
	return fmt.Sprintf("MAC %s: NOT BLOCKED", raw)
}
