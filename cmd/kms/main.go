// Command kms is the teacher and student client of a KnowMyStatus server.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"knowmystatus/internal/logging"
	"knowmystatus/internal/session"
)

const defaultServer = "http://localhost:8081"

// app carries what every command shares.
type app struct {
	out         io.Writer
	sessionPath string
	server      string
	now         func() time.Time
	log         *zap.Logger
}

func main() {
	path := os.Getenv("KMS_SESSION")
	if path == "" {
		var err error
		if path, err = session.DefaultPath(); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
	}
	server := os.Getenv("KMS_SERVER")
	if server == "" {
		server = defaultServer
	}

	logger := zap.NewNop()
	if os.Getenv("KMS_DEBUG") != "" {
		logger = logging.New("dev").Named("kms")
		defer func() { _ = logger.Sync() }()
	}

	a := &app{out: os.Stdout, sessionPath: path, server: server, now: time.Now, log: logger}
	if err := a.registry().Execute(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (a *app) registry() *CommandRegistry {
	r := NewCommandRegistry()
	r.Register(&Command{
		Name:        "login",
		Description: "Sign in as a teacher",
		Usage:       "kms login -email <email> -password <password> [-server <url>]",
		Examples:    []string{"kms login -email rao@example.com -password secret1"},
		Run:         a.login,
	})
	r.Register(&Command{
		Name:        "logout",
		Description: "Forget the stored session",
		Usage:       "kms logout",
		Run:         a.logout,
	})
	r.Register(&Command{
		Name:        "status",
		Description: "Publish your availability",
		Usage:       "kms status -set <status> [-note <text>|-clear-note] [-until <time>|-clear-until]",
		Examples: []string{
			"kms status -set lunch -note \"Back after lunch\" -until 2024-03-01T13:30:00Z",
			"kms status -set available -clear-note -clear-until",
		},
		Run: a.status,
	})
	r.Register(&Command{
		Name:        "qr",
		Description: "Generate a fresh QR code, or show the current one",
		Usage:       "kms qr [-show]",
		Run:         a.qr,
	})
	r.Register(&Command{
		Name:        "scan",
		Description: "Scan a teacher QR code from image frames",
		Usage:       "kms scan -frames <file|dir> [-interval 100ms] [-timeout 30s] [-server <url>]",
		Examples:    []string{"kms scan -frames ./captures", "kms scan -frames door.png -timeout 5s"},
		Run:         a.scan,
	})
	return r
}

// parse parses args and reports whether the command should continue.
func parse(fs *flag.FlagSet, args []string) (bool, error) {
	err := fs.Parse(args)
	if errors.Is(err, flag.ErrHelp) {
		return false, nil
	}
	return err == nil, err
}
