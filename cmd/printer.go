// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cmd

import (
	"os"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Printer is the locale-aware printer for CLI output.
var Printer = NewCLIPrinter()

// NewCLIPrinter picks a language from the usual locale variables, defaulting to English.
func NewCLIPrinter() *message.Printer {
	return message.NewPrinter(localeTag())
}

func localeTag() language.Tag {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		// en_US.UTF-8 -> en-US
		base := strings.SplitN(v, ".", 2)[0]
		base = strings.SplitN(base, "@", 2)[0]
		if tag, err := language.Parse(strings.ReplaceAll(base, "_", "-")); err == nil {
			return tag
		}
		break
	}
	return language.English
}
