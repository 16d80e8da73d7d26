package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// execIface is the command surface the REPL dispatches to. App satisfies it;
// tests provide a stub.
type execIface interface {
	isSignedIn() bool
	SignUp(ctx context.Context) error
	SignIn(ctx context.Context) error
	SignOut(ctx context.Context) error
	Status(ctx context.Context) error
	ShowProfile(ctx context.Context) error
	UpdateProfile(ctx context.Context, args []string) error
	ShowProgress(ctx context.Context) error
	Complete(ctx context.Context, args []string) error
	ResetProgress(ctx context.Context) error
}

const (
	helpSignedOut = "Available commands: signup, signin, progress, complete <skill> <item>, status, exit"
	helpSignedIn  = "Available commands: profile, update <field>=<value>..., progress, complete <skill> <item>, reset, status, signout, exit"
)

// runREPL reads one command per line from r and dispatches it to a. Errors
// returned by handlers are printed and the loop goes on. The loop ends on
// EOF, on "exit" or "quit", or when ctx is done.
//
//	Signed out:
//	  signup                       create an account with the signup wizard
//	  signin                       authenticate
//
//	Signed in:
//	  profile                      show the profile mirror
//	  update field=value ...       change profile fields
//	  signout                      end the session
//
//	Always:
//	  progress                     show practice progress per skill
//	  complete <skill> <item>      mark a practice item as done
//	  reset                        forget local progress
//	  status | help | exit | quit
func runREPL(ctx context.Context, a execIface, statusFn func() string, r *bufio.Reader, w io.Writer) {
	for ctx.Err() == nil {
		fmt.Fprintf(w, "wiz %s> ", statusFn())

		line, err := r.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			fmt.Fprintln(w)
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var cmdErr error
		switch cmd {
		case "help":
			if a.isSignedIn() {
				fmt.Fprintln(w, helpSignedIn)
			} else {
				fmt.Fprintln(w, helpSignedOut)
			}
		case "signup", "register":
			cmdErr = a.SignUp(ctx)
		case "signin", "login":
			cmdErr = a.SignIn(ctx)
		case "signout", "logout":
			cmdErr = a.SignOut(ctx)
		case "status":
			cmdErr = a.Status(ctx)
		case "profile":
			cmdErr = a.ShowProfile(ctx)
		case "update":
			cmdErr = a.UpdateProfile(ctx, args)
		case "progress":
			cmdErr = a.ShowProgress(ctx)
		case "complete", "done":
			cmdErr = a.Complete(ctx, args)
		case "reset":
			cmdErr = a.ResetProgress(ctx)
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
