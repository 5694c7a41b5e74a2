// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cmd

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/term"
)

// RunSend connects to a running daemon and relays commands.
// With arguments it sends them as one line; otherwise it reads lines from stdin.
func RunSend(args []string) error {
	flags := flag.NewFlagSet("send", flag.ContinueOnError)
	addr := flags.String("addr", "127.0.0.1:9000", "Daemon address (host:port)")
	timeout := flags.Duration("timeout", 5*time.Second, "Dial timeout")
	if err := flags.Parse(args); err != nil {
		return err
	}

	conn, err := net.DialTimeout("tcp", *addr, *timeout)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", *addr, err)
	}
	defer conn.Close()

	if flags.NArg() > 0 {
		return sendLines(conn, strings.NewReader(strings.Join(flags.Args(), " ")+"\n"), os.Stdout, "")
	}

	prompt := ""
	if term.IsTerminal(int(os.Stdin.Fd())) {
		prompt = "macwall> "
	}
	return sendLines(conn, os.Stdin, os.Stdout, prompt)
}

// sendLines writes each non-blank input line to conn and copies one response line to out.
func sendLines(conn net.Conn, in io.Reader, out io.Writer, prompt string) error {
	input := bufio.NewScanner(in)
	replies := bufio.NewReader(conn)

	for {
		if prompt != "" {
			fmt.Fprint(out, prompt)
		}
		if !input.Scan() {
			return input.Err()
		}
		line := strings.TrimSpace(input.Text())
		if line == "" {
			// The daemon does not answer blank lines.
			continue
		}
		if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
			return fmt.Errorf("send failed: %w", err)
		}
		reply, err := replies.ReadString('\n')
		if err != nil {
			if err == io.EOF && reply == "" {
				return fmt.Errorf("connection closed by daemon")
			}
			if err != io.EOF {
				return fmt.Errorf("read failed: %w", err)
			}
		}
		fmt.Fprint(out, strings.TrimRight(reply, "\r\n")+"\n")
	}
}
