package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"

	"github.com/trezcool/ushauri/apps"
	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/core/fetch"
	"github.com/trezcool/ushauri/core/pagedlist"
	"github.com/trezcool/ushauri/core/querystate"
	"github.com/trezcool/ushauri/core/resource"
	exportsvc "github.com/trezcool/ushauri/services/export"
)

// defaultURL is the dashboard page opened when no shareable URL is given.
const defaultURL = "http://localhost:3000/dashboard"

var errHelp = errors.New("help provided")

type commandLine struct {
	conf    *core.Config
	logger  core.Logger
	fetcher *fetch.Fetcher
	in      io.Reader
	out     io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  show [-r RESOURCE] [--url URL] [--set FIELD=VALUE]... [--page N] [--export FILE.xlsx] [--save FILE]")
	fmt.Fprintln(cli.out, "      - print one page of a table, restored from a shareable URL")
	fmt.Fprintln(cli.out, "  repl [-r RESOURCE] [--url URL] - browse tables interactively")
	fmt.Fprintf(cli.out, "Resources: %s\n", strings.Join(resource.Dashboard.Keys(), ", "))
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "show":
		return cli.show(args[2:])
	case "repl":
		return cli.repl(args[2:])
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) show(args []string) error {
	showCmd := flag.NewFlagSet("show", flag.ContinueOnError)
	showCmd.SetOutput(cli.out)
	key := showCmd.StringP("resource", "r", "expenses", "the table to show")
	rawURL := showCmd.String("url", defaultURL, "shareable dashboard URL to restore")
	sets := showCmd.StringArray("set", nil, "filter edit as FIELD=VALUE; an empty VALUE removes the filter")
	page := showCmd.Int("page", 0, "page to show once the filters are applied")
	exportPath := showCmd.String("export", "", "write the page and its summary to an .xlsx workbook")
	savePath := showCmd.String("save", "", "write the resulting shareable URL to a file")
	if err := showCmd.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return errHelp
		}
		return err
	}

	edits := make([][2]string, 0, len(*sets))
	for _, set := range *sets {
		i := strings.IndexByte(set, '=')
		if i <= 0 {
			return apps.NewArgumentError(fmt.Sprintf("--set %q: expected FIELD=VALUE", set))
		}
		edits = append(edits, [2]string{set[:i], set[i+1:]})
	}

	sess, err := cli.newSession(*rawURL)
	if err != nil {
		return err
	}
	defer sess.close()
	if err = sess.open(*key); err != nil {
		return err
	}

	for _, edit := range edits {
		if err = sess.ctrl.SetFilter(edit[0], edit[1]); err != nil {
			return err
		}
	}
	sess.ctrl.Flush()

	v, err := sess.settle()
	if err != nil {
		return err
	}
	if *page > 0 && *page != v.Page {
		if !sess.ctrl.SetPage(*page) {
			return apps.NewArgumentError(fmt.Sprintf("--page %d: out of range (1-%d)", *page, v.TotalPages))
		}
		if v, err = sess.settle(); err != nil {
			return err
		}
	}
	sess.show(v)
	if v.Status == pagedlist.Failed {
		return v.Err
	}

	if *exportPath != "" {
		if err = exportsvc.SaveExcel(*exportPath, sess.report(v)); err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "exported to %s\n", *exportPath)
	}
	if *savePath != "" {
		if err = atomic.WriteFile(*savePath, strings.NewReader(sess.store.URL()+"\n")); err != nil {
			return errors.Wrapf(err, "saving %s", *savePath)
		}
		fmt.Fprintf(cli.out, "link saved to %s\n", *savePath)
	}
	return nil
}

// =========================================================================
// Session

// session is one dashboard page: a URL, its history and the controller of the table on display.
type session struct {
	cli   *commandLine
	store *querystate.Store
	hist  *querystate.MemoryHistory
	ctrl  *pagedlist.Controller
	shown uint64 // version of the last view printed
}

func (cli *commandLine) newSession(rawURL string) (*session, error) {
	hist := querystate.NewMemoryHistory(rawURL)
	store, err := querystate.NewStore(rawURL, hist)
	if err != nil {
		return nil, apps.NewArgumentError(fmt.Sprintf("--url %q: %v", rawURL, err))
	}
	return &session{cli: cli, store: store, hist: hist}, nil
}

// open mounts the controller of resource key in place of the current one.
func (s *session) open(key string) error {
	res, err := resource.Dashboard.Lookup(key)
	if err != nil {
		return apps.NewArgumentError(err.Error())
	}
	conf := s.cli.conf.Dashboard
	ctrl, err := pagedlist.New(pagedlist.Options{
		Resource:         res,
		Store:            s.store,
		Fetcher:          s.cli.fetcher,
		Delay:            conf.DebounceDelay,
		PageSize:         conf.PageSize,
		Preserved:        conf.PreservedFields,
		ClearRowsOnError: conf.ClearRowsOnError,
		Logger:           s.cli.logger,
	})
	if err != nil {
		return err
	}

	if s.ctrl != nil {
		s.ctrl.Close()
	}
	s.ctrl = ctrl
	s.shown = 0
	ctrl.Start()
	return nil
}

func (s *session) close() {
	if s.ctrl != nil {
		s.ctrl.Close()
	}
}

// settle waits until the controller is done loading.
func (s *session) settle() (pagedlist.View, error) {
	timeout := s.cli.conf.API.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout+s.cli.conf.Dashboard.DebounceDelay)
	defer cancel()

	for {
		if v := s.ctrl.View(); !v.Loading && v.Status != pagedlist.Idle {
			return v, nil
		}
		select {
		case _, ok := <-s.ctrl.Updates():
			if !ok {
				return s.ctrl.View(), errors.New("table closed")
			}
		case <-ctx.Done():
			return s.ctrl.View(), errors.Wrapf(ctx.Err(), "loading %s", s.ctrl.Resource().Key)
		}
	}
}

// show prints v unless it was already printed.
func (s *session) show(v pagedlist.View) {
	if v.Version <= s.shown {
		return
	}
	s.shown = v.Version
	fmt.Fprintln(s.cli.out, renderView(s.ctrl.Resource(), v, s.store.URL()))
}

func (s *session) report(v pagedlist.View) exportsvc.Report {
	res := s.ctrl.Resource()
	return exportsvc.Report{
		Title:   res.Title,
		Link:    s.store.URL(),
		Columns: res.Columns,
		Rows:    v.Rows,
		Summary: v.Summary,
	}
}
