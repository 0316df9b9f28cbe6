package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/trezcool/ushauri/core/resource"
)

const replHelp = `Commands:
  set FIELD [VALUE]  edit a filter; applied once you stop typing (empty VALUE removes it)
  flush              apply pending edits now
  sort FIELD         sort by FIELD, again to reverse
  page N | next | prev
  clear              remove every filter but the preserved ones
  tab RESOURCE       switch table, keeping the preserved filters
  back | forward     navigate the URL history
  refresh            reload the current page
  url                print the shareable URL
  help | quit`

type prompter interface {
	Prompt(prompt string) (string, error)
	AppendHistory(line string)
	Close() error
}

// linePrompter reads commands from a pipe.
type linePrompter struct {
	scanner *bufio.Scanner
}

func (p *linePrompter) Prompt(string) (string, error) {
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return p.scanner.Text(), nil
}

func (p *linePrompter) AppendHistory(string) {}

func (p *linePrompter) Close() error { return nil }

func newPrompter(in io.Reader) prompter {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		state := liner.NewLiner()
		state.SetCtrlCAborts(true)
		state.SetCompleter(completeCommand)
		return state
	}
	return &linePrompter{scanner: bufio.NewScanner(in)}
}

var replCommands = []string{"set", "flush", "sort", "page", "next", "prev", "clear", "tab", "back", "forward", "refresh", "url", "help", "quit"}

func completeCommand(line string) []string {
	var out []string
	for _, cmd := range replCommands {
		if strings.HasPrefix(cmd, line) {
			out = append(out, cmd)
		}
	}
	for _, key := range resource.Dashboard.Keys() {
		if strings.HasPrefix("tab "+key, line) {
			out = append(out, "tab "+key)
		}
	}
	return out
}

func (cli *commandLine) repl(args []string) error {
	replCmd := flag.NewFlagSet("repl", flag.ContinueOnError)
	replCmd.SetOutput(cli.out)
	key := replCmd.StringP("resource", "r", "expenses", "the table to open")
	rawURL := replCmd.String("url", defaultURL, "shareable dashboard URL to restore")
	if err := replCmd.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return errHelp
		}
		return err
	}

	sess, err := cli.newSession(*rawURL)
	if err != nil {
		return err
	}
	defer sess.close()
	if err = sess.open(*key); err != nil {
		return err
	}
	if err = sess.refresh(); err != nil {
		fmt.Fprintln(cli.out, errorStyle.Render("error: "+err.Error()))
	}

	p := newPrompter(cli.in)
	defer p.Close()

	for {
		line, err := p.Prompt(sess.ctrl.Resource().Key + "> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				return nil
			}
			return err
		}

		// views published by debounced edits since the last prompt
		sess.show(sess.ctrl.View())

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		p.AppendHistory(line)

		quit, err := sess.exec(fields[0], fields[1:])
		if err != nil {
			fmt.Fprintln(cli.out, errorStyle.Render("error: "+err.Error()))
		}
		if quit {
			return nil
		}
	}
}

// exec runs one REPL command. Commands that load a page wait for it and print it.
func (s *session) exec(cmd string, args []string) (quit bool, err error) {
	out := s.cli.out
	switch cmd {
	case "quit", "exit":
		return true, nil
	case "help":
		fmt.Fprintln(out, replHelp)
		return false, nil
	case "url":
		fmt.Fprintln(out, s.store.URL())
		return false, nil
	case "set":
		if len(args) == 0 {
			return false, fmt.Errorf("usage: set FIELD [VALUE]")
		}
		if err = s.ctrl.SetFilter(args[0], strings.Join(args[1:], " ")); err != nil {
			return false, err
		}
		fmt.Fprintln(out, mutedStyle.Render("pending: "+args[0]))
		return false, nil
	case "flush":
		s.ctrl.Flush()
	case "sort":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: sort FIELD")
		}
		if err = s.ctrl.Sort(args[0]); err != nil {
			return false, err
		}
	case "page":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: page N")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return false, fmt.Errorf("page %q is not a number", args[0])
		}
		if !s.ctrl.SetPage(n) {
			return false, fmt.Errorf("page %d is out of range (1-%d)", n, s.ctrl.View().TotalPages)
		}
	case "next":
		if !s.ctrl.NextPage() {
			return false, fmt.Errorf("already on the last page")
		}
	case "prev":
		if !s.ctrl.PrevPage() {
			return false, fmt.Errorf("already on the first page")
		}
	case "clear":
		s.ctrl.ClearAll()
	case "tab":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: tab RESOURCE")
		}
		if _, err = resource.Dashboard.Lookup(args[0]); err != nil {
			return false, err
		}
		s.close()
		s.store.Retain(s.cli.conf.Dashboard.PreservedFields...)
		if err = s.open(args[0]); err != nil {
			return false, err
		}
	case "back", "forward":
		move := s.hist.Back
		if cmd == "forward" {
			move = s.hist.Forward
		}
		rawURL, ok := move()
		if !ok {
			return false, fmt.Errorf("no %s history", cmd)
		}
		if err = s.store.Navigate(rawURL); err != nil {
			return false, err
		}
	case "refresh":
		s.ctrl.Refresh()
	default:
		return false, fmt.Errorf("unknown command %q, try help", cmd)
	}
	return false, s.refresh()
}

// refresh waits for the page in flight and prints it.
func (s *session) refresh() error {
	v, err := s.settle()
	if err != nil {
		return err
	}
	s.show(v)
	return nil
}
