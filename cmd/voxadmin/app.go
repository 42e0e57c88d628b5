package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/soaringjerry/Vox/internal/client"
	"github.com/soaringjerry/Vox/internal/config"
	"github.com/soaringjerry/Vox/internal/gate"
	"github.com/soaringjerry/Vox/internal/logging"
	"github.com/soaringjerry/Vox/internal/services"
	"github.com/soaringjerry/Vox/internal/session"
	"github.com/soaringjerry/Vox/internal/utils"
)

const (
	exitOK = iota
	exitErr
	exitUnauthenticated
	exitDenied
	exitUsage
)

const usage = `usage: voxadmin [-config file] <command> [args]

commands:
  login                      sign in with the recordings password
  logout                     end the session
  recordings                 list recordings, newest first
  download <id> [-o file]    download one recording
  roles list                 list role assignments
  roles add|remove <user> <role>
  setup-admin -secret s [-user id]
`

type app struct {
	cfg     *config.Config
	api     *client.Client
	storage session.Storage
	tokens  *session.TokenStore
	flags   *session.FlagStore
	gate    *gate.Gate
	stdin   *bufio.Reader
	out     io.Writer
	errOut  io.Writer
	log     *zap.Logger
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("voxadmin", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", utils.Env("CONFIG", ""), "path to a config file")
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return exitUsage
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitErr
	}
	a, err := newApp(cfg, stdin, stdout, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitErr
	}
	return a.dispatch(context.Background(), fs.Arg(0), fs.Args()[1:])
}

func newApp(cfg *config.Config, stdin io.Reader, stdout, stderr io.Writer) (*app, error) {
	logger, err := logging.New("warn", "console")
	if err != nil {
		return nil, err
	}
	statePath := cfg.Client.StateFile
	if statePath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("voxadmin: no state file configured: %w", err)
		}
		statePath = filepath.Join(dir, "vox", "session.json")
	}
	storage := session.NewFileStorage(statePath)
	api := client.New(cfg.Client.APIURL, 30*time.Second)
	strategy, err := gate.FromConfig(cfg.Client.Gate, gate.Deps{
		Storage:   storage,
		Identity:  gate.StoredIdentity{Storage: storage},
		Whitelist: api,
	})
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:     cfg,
		api:     api,
		storage: storage,
		tokens:  session.NewTokenStore(storage),
		flags:   session.NewFlagStore(storage),
		gate:    gate.New(strategy, logger),
		stdin:   bufio.NewReader(stdin),
		out:     stdout,
		errOut:  stderr,
		log:     logger,
	}, nil
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) int {
	switch cmd {
	case "login":
		return a.report(a.login(ctx))
	case "logout":
		return a.report(a.logout(ctx))
	case "recordings":
		return a.guarded(ctx, func(token string) error { return a.recordings(ctx, token) })
	case "download":
		return a.guarded(ctx, func(token string) error { return a.download(ctx, token, args) })
	case "roles":
		return a.guarded(ctx, func(token string) error { return a.roles(ctx, token, args) })
	case "setup-admin":
		return a.report(a.setupAdmin(ctx, args))
	}
	fmt.Fprintf(a.errOut, "unknown command %q\n\n%s", cmd, usage)
	return exitUsage
}

func (a *app) report(err error) int {
	if err == nil {
		return exitOK
	}
	fmt.Fprintln(a.errOut, err)
	if errors.Is(err, client.ErrUnauthorized) {
		return exitUnauthenticated
	}
	if errors.Is(err, client.ErrForbidden) {
		return exitDenied
	}
	return exitErr
}

// guarded runs action only once the gate allows it. A session the server no
// longer accepts is cleared, same as a locally expired one.
func (a *app) guarded(ctx context.Context, action func(token string) error) int {
	code := exitOK
	a.gate.Guard(ctx, gate.Handlers{
		Render: func() {
			token, _ := a.tokens.Token()
			err := action(token)
			if errors.Is(err, client.ErrUnauthorized) {
				a.clearLocal()
				err = fmt.Errorf("%w: session expired, run voxadmin login", err)
			}
			code = a.report(err)
		},
		Redirect: func() {
			fmt.Fprintln(a.errOut, "not signed in, run voxadmin login")
			code = exitUnauthenticated
		},
		Deny: func(err error) {
			fmt.Fprintln(a.errOut, "Access Denied: your account is not on the admin whitelist. Run voxadmin logout to switch accounts.")
			if err != nil {
				a.log.Debug("whitelist check failed", zap.Error(err))
			}
			code = exitDenied
		},
	})
	return code
}

func (a *app) clearLocal() {
	_ = a.tokens.Clear()
	_ = a.flags.Set(false)
	_ = a.storage.Delete(gate.EmailKey)
}

func (a *app) login(ctx context.Context) error {
	if c, err := a.tokens.Current(); err == nil && c != nil {
		fmt.Fprintf(a.out, "already signed in until %s\n", c.ExpiresAt.Local().Format(time.RFC1123))
		return nil
	}
	fmt.Fprint(a.out, "Password: ")
	line, err := a.stdin.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	password := strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(password) == "" {
		return errors.New("please enter a password")
	}
	res, err := a.api.VerifyPassword(ctx, password)
	if err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			return fmt.Errorf("%w: invalid password", client.ErrUnauthorized)
		}
		return fmt.Errorf("failed to verify password: %w", err)
	}
	if err := a.tokens.Save(res.SessionToken, res.ExpiresAt); err != nil {
		return err
	}
	if err := a.flags.Set(true); err != nil {
		return err
	}
	if a.cfg.Client.Email != "" {
		if err := a.storage.Set(gate.EmailKey, a.cfg.Client.Email); err != nil {
			return err
		}
	}
	fmt.Fprintln(a.out, "Access granted")
	return nil
}

func (a *app) logout(ctx context.Context) error {
	if token, ok := a.tokens.Token(); ok {
		if err := a.api.SignOut(ctx, token); err != nil && !errors.Is(err, client.ErrUnauthorized) {
			a.log.Warn("server sign-out failed", zap.Error(err))
		}
	}
	a.clearLocal()
	fmt.Fprintln(a.out, "signed out")
	return nil
}

func (a *app) recordings(ctx context.Context, token string) error {
	recs, err := a.api.ListRecordings(ctx, token)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(a.out, "no recordings yet")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tQUESTION\tUSER\tSIZE\tID")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			services.QuestionLabel(r.QuestionID),
			r.UserID, r.SizeBytes, r.ID)
	}
	return tw.Flush()
}

func (a *app) download(ctx context.Context, token string, args []string) error {
	fs := flag.NewFlagSet("download", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	outPath := fs.String("o", "", "output file (defaults to the object name)")
	id, rest := splitFirst(args)
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if id == "" {
		id = fs.Arg(0)
	}
	if id == "" {
		return errors.New("usage: voxadmin download <id> [-o file]")
	}
	signed, err := a.api.DownloadURL(ctx, token, client.DownloadRequest{RecordingID: id})
	if err != nil {
		return err
	}
	data, err := a.api.Fetch(ctx, signed)
	if err != nil {
		return err
	}
	dst := *outPath
	if dst == "" {
		dst = id + filepath.Ext(path.Base(strings.SplitN(signed, "?", 2)[0]))
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "saved %s (%d bytes)\n", dst, len(data))
	return nil
}

func (a *app) roles(ctx context.Context, token string, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: voxadmin roles list|add|remove [user role]")
	}
	action := args[0]
	userID, role := "all", services.RoleAdmin
	if action != "list" {
		if len(args) != 3 {
			return fmt.Errorf("usage: voxadmin roles %s <user> <role>", action)
		}
		userID, role = args[1], args[2]
	}
	res, err := a.api.ManageRoles(ctx, token, action, userID, role)
	if err != nil {
		return err
	}
	if action != "list" {
		fmt.Fprintln(a.out, res.Message)
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USER\tROLE\tCREATED")
	for _, r := range res.Roles {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.UserID, r.Role, r.CreatedAt.Local().Format(time.RFC3339))
	}
	return tw.Flush()
}

func (a *app) setupAdmin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("setup-admin", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	secret := fs.String("secret", utils.Env("SETUP_SECRET", ""), "setup secret")
	user := fs.String("user", services.PasswordUserID, "user id to make admin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	msg, err := a.api.SetupInitialAdmin(ctx, *secret, *user)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, msg)
	return nil
}

func splitFirst(args []string) (string, []string) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return "", args
	}
	return args[0], args[1:]
}
