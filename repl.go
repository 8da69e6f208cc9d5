package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const shellHelp = `Commands:
  url <url>            set the source URL (shared by both platforms)
  platform <vk|tg>     switch platform tab
  generate             rewrite the source for the current platform (alias: regen)
  show                 print the current draft
  select <n>           use variant n; manual edits are replaced
  text                 replace the draft text; finish with a line containing only "."
  promote <n>          make image n the cover
  fix <request>        note what the next rewrite should fix
  publish [time]       publish now, or schedule at RFC 3339 / "YYYY-MM-DD HH:MM"
  export [md|html]     write the draft to the export directory
  preview              send the draft to the Telegram preview chat
  help                 show this help
  quit                 leave the editor`

// Shell is a line-oriented front end over an Editor
type Shell struct {
	editor       *Editor
	in           *bufio.Scanner
	out          io.Writer
	previewer    func() (*TelegramPreviewer, error)
	exportDir    string
	exportFormat string
}

func NewShell(editor *Editor, in io.Reader, out io.Writer) *Shell {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return &Shell{editor: editor, in: scanner, out: out, exportDir: "drafts", exportFormat: "md"}
}

// Run reads commands until quit or end of input. Command failures are
// printed and the shell keeps going.
func (s *Shell) Run(ctx context.Context) error {
	fmt.Fprintln(s.out, `Type "help" for commands.`)
	for {
		fmt.Fprintf(s.out, "%s> ", s.editor.ActivePlatform())
		if !s.in.Scan() {
			fmt.Fprintln(s.out)
			return s.in.Err()
		}

		line := strings.TrimSpace(s.in.Text())
		if line == "" {
			continue
		}
		cmd, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)

		if cmd == "quit" || cmd == "exit" {
			return nil
		}
		if err := s.dispatch(ctx, cmd, arg); err != nil {
			fmt.Fprintf(s.out, "✗ %v\n", err)
		}
	}
}

func (s *Shell) dispatch(ctx context.Context, cmd, arg string) error {
	e := s.editor
	switch cmd {
	case "help":
		fmt.Fprintln(s.out, shellHelp)
	case "url":
		if arg == "" {
			fmt.Fprintln(s.out, e.SourceURL())
			return nil
		}
		e.SetSourceURL(arg)
	case "platform":
		p, err := ParsePlatform(arg)
		if err != nil {
			return err
		}
		if err := e.SwitchPlatform(ctx, p); err != nil {
			return err
		}
		return s.show()
	case "generate", "regen":
		if _, err := e.Generate(ctx); err != nil {
			return err
		}
		return s.show()
	case "show":
		return s.show()
	case "select":
		n, err := oneBased(arg)
		if err != nil {
			return err
		}
		if err := e.SelectVariant(n); err != nil {
			return err
		}
		return s.show()
	case "text":
		text, err := s.readBlock()
		if err != nil {
			return err
		}
		return e.EditText(text)
	case "promote":
		n, err := oneBased(arg)
		if err != nil {
			return err
		}
		return e.PromoteImage(n)
	case "fix":
		e.SetFixRequest(arg)
	case "publish":
		at, err := parsePublishAt(arg)
		if err != nil {
			return err
		}
		item, err := e.Publish(ctx, at)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "✓ news %d\n", item.ID)
	case "export":
		format := s.exportFormat
		if arg != "" {
			format = arg
		}
		path, err := e.Export(s.exportDir, format)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "✓ %s\n", path)
	case "preview":
		if s.previewer == nil {
			return errors.New("preview is not configured")
		}
		previewer, err := s.previewer()
		if err != nil {
			return err
		}
		_, d, err := e.Current()
		if err != nil {
			return err
		}
		return previewer.Preview(ctx, d)
	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}
	return nil
}

func (s *Shell) show() error {
	p, d, err := s.editor.Current()
	if err != nil {
		return err
	}
	if !d.IsGenerated {
		fmt.Fprintf(s.out, "%s: nothing generated yet\n", p)
		return nil
	}
	printVariants(s.out, d)
	if fix := s.editor.FixRequest(); fix != "" {
		fmt.Fprintf(s.out, "  fix request: %s\n", fix)
	}
	return nil
}

// readBlock reads lines until a line containing only "."
func (s *Shell) readBlock() (string, error) {
	var lines []string
	for s.in.Scan() {
		line := s.in.Text()
		if strings.TrimSpace(line) == "." {
			return strings.Join(lines, "\n"), nil
		}
		lines = append(lines, line)
	}
	if err := s.in.Err(); err != nil {
		return "", err
	}
	return "", errors.New(`text not terminated with "."`)
}

func oneBased(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("expected a number, got %q", arg)
	}
	return n - 1, nil
}
