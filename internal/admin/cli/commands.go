package cli

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/taskauth/internal/common"
	"github.com/dmitrijs2005/taskauth/internal/flagx"
)

const minPasswordLength = 6

const usage = `Usage: taskauth-admin <command> [flags]

Commands:
  bootstrap   create an administrator account
  status      report whether an administrator exists
  help        show this message

Bootstrap flags:
  -email string   administrator email
  -name string    administrator full name
  -force          create another administrator even if one exists
`

var (
	ErrUnknownCommand   = errors.New("unknown command")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", minPasswordLength)
	ErrEmptyValue       = errors.New("value must not be empty")
)

// PrintUsage writes the command summary to w.
func PrintUsage(w io.Writer) { fmt.Fprint(w, usage) }

// IsHelp reports whether arg asks for the usage message.
func IsHelp(arg string) bool {
	return arg == "help" || arg == "-h" || arg == "--help"
}

// Run executes the command named by args[0]. Remaining arguments may mix
// command flags with server config flags; only the command's own flags are
// read here.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		PrintUsage(a.out)
		return ErrUnknownCommand
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "bootstrap":
		return a.runBootstrap(ctx, rest)
	case "status":
		return a.runStatus(ctx)
	case "help", "-h", "--help":
		PrintUsage(a.out)
		return nil
	default:
		PrintUsage(a.out)
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}
}

func (a *App) runStatus(ctx context.Context) error {
	st, err := a.bootstrap.Status(ctx)
	if err != nil {
		return err
	}
	if st.IsBootstrapped {
		fmt.Fprintf(a.out, "bootstrapped: %d administrator(s)\n", st.AdminCount)
	} else {
		fmt.Fprintln(a.out, "not bootstrapped: run 'taskauth-admin bootstrap' to create an administrator")
	}
	return nil
}

func (a *App) runBootstrap(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("bootstrap", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	email := fs.String("email", "", "administrator email")
	name := fs.String("name", "", "administrator full name")
	force := fs.Bool("force", false, "create even if an administrator exists")

	if err := fs.Parse(flagx.FilterArgs(args, []string{"-email", "-name", "-force"})); err != nil {
		return err
	}

	if !*force {
		st, err := a.bootstrap.Status(ctx)
		if err != nil {
			return err
		}
		if st.IsBootstrapped {
			return fmt.Errorf("%w; use -force to add another", common.ErrAlreadyBootstrapped)
		}
	}

	var err error
	if *email == "" {
		if *email, err = a.prompt("Administrator email"); err != nil {
			return err
		}
	}
	if *name == "" {
		if *name, err = a.prompt("Administrator full name"); err != nil {
			return err
		}
	}

	pw, err := a.readNewPassword()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	id, err := a.bootstrap.BootstrapAdmin(ctx, *email, *name, string(pw), *force)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "administrator %s created with id %d\n", *email, id)
	return nil
}

func (a *App) prompt(label string) (string, error) {
	v, err := GetSimpleText(a.reader, label, a.out)
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", fmt.Errorf("%s: %w", label, ErrEmptyValue)
	}
	return v, nil
}

// readNewPassword asks twice and returns the password once both entries
// agree. The confirmation copy is wiped before returning.
func (a *App) readNewPassword() ([]byte, error) {
	pw, err := GetPassword("Password", a.out)
	if err != nil {
		return nil, err
	}
	if len(pw) < minPasswordLength {
		common.WipeByteArray(pw)
		return nil, ErrPasswordTooShort
	}

	confirm, err := GetPassword("Repeat password", a.out)
	defer common.WipeByteArray(confirm)
	if err != nil {
		common.WipeByteArray(pw)
		return nil, err
	}
	if !bytes.Equal(pw, confirm) {
		common.WipeByteArray(pw)
		return nil, ErrPasswordMismatch
	}
	return pw, nil
}
