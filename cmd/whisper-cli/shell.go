package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	prompt "github.com/c-bata/go-prompt"
	"golang.org/x/term"

	"github.com/xtxerr/whisper"
)

// shellSession holds the state of one interactive whisper-cli shell: the
// currently open file, kept across commands so "fetch" and "info" don't
// have to repeat the path.
type shellSession struct {
	path string
}

var shellCommands = []prompt.Suggest{
	{Text: "open", Description: "open <path> — set the file for subsequent commands"},
	{Text: "info", Description: "print header and archive info for the open file"},
	{Text: "fetch", Description: "fetch <from> <until> — read a time range from the open file"},
	{Text: "update", Description: "update <value> [timestamp] — write a point to the open file"},
	{Text: "help", Description: "list available commands"},
	{Text: "exit", Description: "leave the shell"},
	{Text: "quit", Description: "leave the shell"},
}

func runShell(args []string) error {
	fs := flag.NewFlagSet("shell", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	session := &shellSession{}
	if fs.NArg() > 0 {
		session.path = fs.Arg(0)
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("shell requires an interactive terminal")
	}

	p := prompt.New(
		session.executor,
		completer,
		prompt.OptionPrefix("whisper> "),
		prompt.OptionTitle("whisper-cli"),
	)
	p.Run()
	return nil
}

func completer(d prompt.Document) []prompt.Suggest {
	return prompt.FilterHasPrefix(shellCommands, d.GetWordBeforeCursor(), true)
}

func (s *shellSession) executor(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	cmd, rest := fields[0], fields[1:]
	var err error
	switch cmd {
	case "open":
		if len(rest) < 1 {
			err = fmt.Errorf("usage: open <path>")
			break
		}
		s.path = rest[0]
	case "info":
		err = s.cmdInfo()
	case "fetch":
		err = s.cmdFetch(rest)
	case "update":
		err = s.cmdUpdate(rest)
	case "help":
		s.cmdHelp()
	case "exit", "quit":
		os.Exit(0)
	default:
		err = fmt.Errorf("unknown command %q, try 'help'", cmd)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
}

func (s *shellSession) requirePath() error {
	if s.path == "" {
		return fmt.Errorf("no file is open, run 'open <path>' first")
	}
	return nil
}

func (s *shellSession) cmdInfo() error {
	if err := s.requirePath(); err != nil {
		return err
	}
	info, err := whisper.Info(s.path)
	if err != nil {
		return err
	}
	printInfo(info)
	return nil
}

func (s *shellSession) cmdFetch(args []string) error {
	if err := s.requirePath(); err != nil {
		return err
	}
	if len(args) < 2 {
		return fmt.Errorf("usage: fetch <from> <until>")
	}
	from, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("parse from: %w", err)
	}
	until, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return fmt.Errorf("parse until: %w", err)
	}

	result, err := whisper.Fetch(s.path, uint32(from), uint32(until), whisper.FetchOptions{})
	if err != nil {
		return err
	}
	for i, v := range result.Values {
		ts := result.From + uint32(i)*result.Step
		if i < len(result.Known) && result.Known[i] {
			fmt.Printf("%s\t%v\n", formatTime(ts), v)
		} else {
			fmt.Printf("%s\tNone\n", formatTime(ts))
		}
	}
	return nil
}

func (s *shellSession) cmdUpdate(args []string) error {
	if err := s.requirePath(); err != nil {
		return err
	}
	if len(args) < 1 {
		return fmt.Errorf("usage: update <value> [timestamp]")
	}
	value, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("parse value: %w", err)
	}
	var ts uint64
	if len(args) > 1 {
		ts, err = strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("parse timestamp: %w", err)
		}
	}
	return whisper.Update(s.path, value, uint32(ts), whisper.UpdateOptions{})
}

func (s *shellSession) cmdHelp() {
	for _, c := range shellCommands {
		fmt.Printf("  %-8s %s\n", c.Text, c.Description)
	}
}
