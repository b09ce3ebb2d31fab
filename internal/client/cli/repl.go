package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// execIface is the command surface the REPL dispatches to. The real App
// satisfies it; tests provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Verify(ctx context.Context, token string) error
	Login(ctx context.Context) error
	Forgot(ctx context.Context) error
	Profile(ctx context.Context) error
	Update(ctx context.Context) error
	Passwd(ctx context.Context) error
	History(ctx context.Context, label string) error
	Logout(ctx context.Context) error
}

// runREPL reads commands from reader until EOF, "exit" or "quit" and
// dispatches them to a. Command errors are printed and the loop continues.
//
//	Not logged in: help, register, verify [token], login, forgot, exit
//	Logged in:     help, profile, update, passwd, history [label], logout, exit
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader, w io.Writer) {
	for {
		fmt.Fprintf(w, "identityctl %s> ", statusFn())
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, rest := parts[0], strings.Join(parts[1:], " ")

		var cmdErr error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				fmt.Fprintln(w, "Available commands: profile, update, passwd, history [label], logout, exit")
			} else {
				fmt.Fprintln(w, "Available commands: register, verify [token], login, forgot, exit")
			}

		case "register":
			cmdErr = a.Register(ctx)

		case "verify":
			cmdErr = a.Verify(ctx, rest)

		case "login":
			cmdErr = a.Login(ctx)

		case "forgot":
			cmdErr = a.Forgot(ctx)

		case "profile":
			cmdErr = a.Profile(ctx)

		case "update":
			cmdErr = a.Update(ctx)

		case "passwd":
			cmdErr = a.Passwd(ctx)

		case "history":
			cmdErr = a.History(ctx, rest)

		case "logout":
			cmdErr = a.Logout(ctx)

		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return

		default:
			fmt.Fprintln(w, "Unknown command:", cmd)
		}

		if cmdErr != nil {
			fmt.Fprintln(w, "Error:", cmdErr)
		}
	}
}
