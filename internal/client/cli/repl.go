package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

const helpText = `Available commands:
  new | submit          write a new entry (multi-line)
  edit <id>             replace the content of an entry
  l | list              list entries
  show <id>             show one entry
  retry <id>            queue a failed entry again
  cancel <id>           drop a queued push
  delete <id>           delete an entry locally
  sync                  push everything queued now
  pull                  fetch remote changes
  status                show the push queue
  verify                check access to the remote
  init-remote <parent>  create the remote database under a parent page
  exit | quit           leave the program`

// commands is the surface the REPL dispatches to. The App implements it;
// tests provide a stub.
type commands interface {
	New(ctx context.Context) error
	Edit(ctx context.Context, id string) error
	List(ctx context.Context) error
	Show(ctx context.Context, id string) error
	Retry(ctx context.Context, id string) error
	Cancel(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Sync(ctx context.Context) error
	Pull(ctx context.Context) error
	Status(ctx context.Context) error
	Verify(ctx context.Context) error
	InitRemote(ctx context.Context, parent string) error
}

// runREPL reads commands from reader until EOF, "exit" or ctx ends. The
// prompt is only printed when prompt is set. Command errors are printed and
// the loop goes on.
func runREPL(ctx context.Context, a commands, statusFn func() string, reader *bufio.Reader, w io.Writer, prompt bool) {
	for ctx.Err() == nil {
		if prompt {
			fmt.Fprintf(w, "diary%s> ", statusFn())
		}
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		withID := func(usage string, fn func(ctx context.Context, id string) error) error {
			if len(args) != 1 {
				fmt.Fprintln(w, "Usage:", usage)
				return nil
			}
			return fn(ctx, args[0])
		}

		var cmdErr error
		switch cmd {
		case "help":
			fmt.Fprintln(w, helpText)
		case "new", "submit":
			cmdErr = a.New(ctx)
		case "edit":
			cmdErr = withID("edit <id>", a.Edit)
		case "l", "list":
			cmdErr = a.List(ctx)
		case "show":
			cmdErr = withID("show <id>", a.Show)
		case "retry":
			cmdErr = withID("retry <id>", a.Retry)
		case "cancel":
			cmdErr = withID("cancel <id>", a.Cancel)
		case "delete":
			cmdErr = withID("delete <id>", a.Delete)
		case "sync":
			cmdErr = a.Sync(ctx)
		case "pull":
			cmdErr = a.Pull(ctx)
		case "status":
			cmdErr = a.Status(ctx)
		case "verify":
			cmdErr = a.Verify(ctx)
		case "init-remote":
			cmdErr = withID("init-remote <parent page id>", a.InitRemote)
		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return
		default:
			fmt.Fprintln(w, "Unknown command:", cmd)
		}

		if cmdErr != nil {
			if errors.Is(cmdErr, io.EOF) {
				return
			}
			fmt.Fprintln(w, "Error:", cmdErr)
		}
	}
}

// lockedWriter serializes writes from the REPL and the event printer.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
