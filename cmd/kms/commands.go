package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"knowmystatus/internal/apiclient"
	"knowmystatus/internal/scanner"
	"knowmystatus/internal/session"
	"knowmystatus/internal/teacher"
)

// ErrSessionExpired is returned when the stored session can no longer be used.
var ErrSessionExpired = errors.New("session expired, run 'kms login' again")

func (a *app) login(cmd *Command, args []string) error {
	fs := cmd.NewFlagSet()
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	server := fs.String("server", a.server, "API base URL")
	if ok, err := parse(fs, args); !ok {
		return err
	}
	if *email == "" || *password == "" {
		return fmt.Errorf("-email and -password are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	client := apiclient.New(*server)
	res, err := client.Login(ctx, *email, *password)
	if err != nil {
		return err
	}

	s := session.Session{
		BaseURL:      client.BaseURL,
		Token:        res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresAt:    res.AccessExp,
		TeacherID:    res.Teacher.ID,
		Email:        res.Teacher.Email,
	}
	s.Touch(a.now())
	if err := session.Save(a.sessionPath, s); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	a.log.Debug("signed in", zap.String("teacher_id", s.TeacherID))
	fmt.Fprintf(a.out, "Signed in as %s (%s)\n", res.Teacher.Name, res.Teacher.Email)
	return nil
}

func (a *app) logout(cmd *Command, args []string) error {
	if ok, err := parse(cmd.NewFlagSet(), args); !ok {
		return err
	}
	if err := session.Remove(a.sessionPath); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out")
	return nil
}

// signedIn loads the session and returns a client carrying its token.
func (a *app) signedIn() (*apiclient.Client, session.Session, error) {
	s, err := session.Load(a.sessionPath)
	if err != nil {
		return nil, session.Session{}, err
	}
	if s.Expired(a.now()) {
		return nil, s, ErrSessionExpired
	}
	client := apiclient.New(s.BaseURL)
	client.Token = s.Token
	return client, s, nil
}

// touch records activity after a successful authenticated call.
func (a *app) touch(s session.Session) {
	s.Touch(a.now())
	if err := session.Save(a.sessionPath, s); err != nil {
		a.log.Warn("save session", zap.Error(err))
	}
}

func (a *app) status(cmd *Command, args []string) error {
	fs := cmd.NewFlagSet()
	set := fs.String("set", "", "status: "+strings.Join(teacher.Statuses, ", "))
	note := fs.String("note", "", "status note, at most 100 characters")
	clearNote := fs.Bool("clear-note", false, "remove the status note")
	until := fs.String("until", "", "expected return time, RFC 3339")
	clearUntil := fs.Bool("clear-until", false, "remove the expected return time")
	if ok, err := parse(fs, args); !ok {
		return err
	}
	if !teacher.ValidStatus(*set) {
		return fmt.Errorf("-set must be one of %s", strings.Join(teacher.Statuses, ", "))
	}

	u := apiclient.StatusUpdate{Status: *set, ClearNote: *clearNote, ClearUntil: *clearUntil}
	if *note != "" && !*clearNote {
		u.Note = note
	}
	if *until != "" && !*clearUntil {
		ts, err := time.Parse(time.RFC3339, *until)
		if err != nil {
			return fmt.Errorf("-until: %w", err)
		}
		u.Until = &ts
	}

	client, s, err := a.signedIn()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	t, err := client.UpdateStatus(ctx, u)
	if errors.Is(err, apiclient.ErrUnauthorized) {
		return ErrSessionExpired
	}
	if err != nil {
		return err
	}
	a.touch(s)
	fmt.Fprintf(a.out, "Status set to %s\n", t.Status)
	return nil
}

func (a *app) qr(cmd *Command, args []string) error {
	fs := cmd.NewFlagSet()
	show := fs.Bool("show", false, "print the current code without regenerating it")
	if ok, err := parse(fs, args); !ok {
		return err
	}
	client, s, err := a.signedIn()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	var code apiclient.GeneratedQR
	if *show {
		code, err = client.CurrentQR(ctx)
	} else {
		code, err = client.GenerateQR(ctx)
	}
	if errors.Is(err, apiclient.ErrUnauthorized) {
		return ErrSessionExpired
	}
	if errors.Is(err, apiclient.ErrQRNotGenerated) {
		return fmt.Errorf("no QR code yet, run kms qr to generate one: %w", err)
	}
	if err != nil {
		return err
	}
	a.touch(s)
	fmt.Fprintln(a.out, code.URL)
	return nil
}

func (a *app) scan(cmd *Command, args []string) error {
	fs := cmd.NewFlagSet()
	frames := fs.String("frames", "", "image file or directory of frames")
	interval := fs.Duration("interval", scanner.DefaultInterval, "delay between frames")
	timeout := fs.Duration("timeout", 30*time.Second, "give up after this long")
	server := fs.String("server", "", "API base URL, defaults to the signed-in server")
	if ok, err := parse(fs, args); !ok {
		return err
	}
	if *frames == "" {
		return fmt.Errorf("-frames is required")
	}

	base := *server
	if base == "" {
		base = a.server
		if s, err := session.Load(a.sessionPath); err == nil && s.BaseURL != "" {
			base = s.BaseURL
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	loop := scanner.New(scanner.FileDevice{Path: *frames}, apiclient.New(base),
		scanner.WithInterval(*interval), scanner.WithLogger(a.log))
	profile, err := loop.Run(ctx)
	if err != nil {
		return err
	}
	printProfile(a, profile)
	return nil
}

func printProfile(a *app, p teacher.Profile) {
	line := func(label string, v *string) {
		if v != nil && *v != "" {
			fmt.Fprintf(a.out, "%-12s %s\n", label+":", *v)
		}
	}
	fmt.Fprintf(a.out, "%-12s %s\n", "Name:", p.Name)
	line("Status", p.Status)
	line("Note", p.StatusNote)
	if p.StatusUntil != nil {
		fmt.Fprintf(a.out, "%-12s %s\n", "Back at:", p.StatusUntil.Local().Format("Jan 2 2006 03:04 PM"))
	}
	line("Subject", p.Subject)
	line("Department", p.Department)
	line("Office", p.Office)
	line("Email", p.Email)
	line("Phone", p.Phone)
}
