// Command dashctl drives the readinggroup API from a terminal through the same
// request pipeline the dashboard uses: login, authenticated calls, uploads and
// logout against a persistent credential store.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/apiclient"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/config"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/credentials"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/database"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/pkg/logger"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/pkg/metrics"
)

var errUsage = errors.New("usage")

const usage = `usage: dashctl [-lang code] [-metrics] <command> [args]

commands:
  login -u user -p password [-otp code]
  logout
  status
  get <path>
  post <path> <json>
  upload <path> <file> [field]
`

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

type app struct {
	client *apiclient.Client
	store  *credentials.Store
	where  string
	out    io.Writer
	errOut io.Writer
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("dashctl", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	lang := global.String("lang", "", "Accept-Language for requests (default DEFAULT_LOCALE)")
	showMetrics := global.Bool("metrics", false, "print client counters after the command")
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		global.Usage()
		return 2
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	setupLogging(cfg)

	store, where, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "error: credential store: %v\n", err)
		return 1
	}
	defer closeStore()

	policy, err := apiclient.ParseRenewalPolicy(cfg.API.RenewalPolicy)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	locale := cfg.API.DefaultLocale
	if *lang != "" {
		locale = *lang
	}
	client, err := apiclient.New(apiclient.Options{
		BaseURL:       cfg.API.BaseURL,
		Store:         store,
		Locale:        apiclient.StaticLocale(locale),
		DefaultLocale: cfg.API.DefaultLocale,
		Timeout:       cfg.API.RequestTimeout,
		Renewal:       policy,
		RenewWindow:   cfg.API.RenewWindow,
		OnUnauthorized: func(context.Context, *apiclient.APIError) {
			fmt.Fprintln(stderr, "session ended, run `dashctl login` again")
		},
	})
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	if *showMetrics {
		reg := prometheus.NewRegistry()
		metrics.RegisterClientCollectors(reg)
		defer printMetrics(reg, stderr)
	}

	a := &app{client: client, store: store, where: where, out: stdout, errOut: stderr}
	cmd, rest := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "login":
		err = a.login(ctx, rest)
	case "logout":
		err = a.logout(ctx)
	case "status":
		err = a.status(ctx)
	case "get":
		err = a.get(ctx, rest)
	case "post":
		err = a.post(ctx, rest)
	case "upload":
		err = a.upload(ctx, rest)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		err = errUsage
	}
	return a.exitCode(err)
}

func setupLogging(cfg *config.Config) {
	level, format := cfg.Log.Level, cfg.Log.Format
	// quieter defaults for interactive use
	if os.Getenv("LOG_LEVEL") == "" {
		level = "warn"
	}
	if os.Getenv("LOG_FORMAT") == "" {
		format = "console"
	}
	logger.Init(level)
	logger.SetFormat(format)
}

// openStore builds the credential store selected by CREDENTIAL_STORE and
// describes where it keeps its keys.
func openStore(ctx context.Context, cfg *config.Config) (*credentials.Store, string, func(), error) {
	var kv credentials.KV
	where := cfg.Credentials.Backend
	closeFn := func() {}
	switch cfg.Credentials.Backend {
	case "memory":
		kv = credentials.NewMemoryKV()
	case "file":
		path := cfg.Credentials.File
		if !filepath.IsAbs(path) {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, "", nil, err
			}
			path = filepath.Join(home, path)
		}
		fkv := credentials.NewFileKV(path)
		where = "file " + fkv.Path()
		kv = fkv
	case "redis":
		rc := redis.NewClient(&redis.Options{Addr: cfg.Redis.RedisAddr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		closeFn = func() { _ = rc.Close() }
		where = "redis " + cfg.Redis.RedisAddr()
		kv = credentials.NewRedisKV(rc, cfg.Credentials.Prefix)
	case "mongo":
		client, err := database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
		if err != nil {
			return nil, "", nil, err
		}
		closeFn = func() { _ = client.Disconnect(context.Background()) }
		where = "mongo " + cfg.MongoDB.Database + ".credentials"
		kv = credentials.NewMongoKV(client.Database(cfg.MongoDB.Database).Collection("credentials"), cfg.Credentials.Prefix)
	default:
		return nil, "", nil, fmt.Errorf("unknown backend %q", cfg.Credentials.Backend)
	}
	store := credentials.NewStore(kv, credentials.Options{TTL: cfg.Credentials.TokenTTL, Skew: cfg.Credentials.ExpirySkew})
	return store, where, closeFn, nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	user := fs.String("u", "", "username")
	pass := fs.String("p", "", "password")
	otp := fs.String("otp", "", "one-time code for accounts with a second factor")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *user == "" || *pass == "" {
		fmt.Fprintln(a.errOut, "login needs -u and -p")
		return errUsage
	}

	res, err := a.client.Login(ctx, *user, *pass)
	if err != nil {
		return err
	}
	if res.OTPRequired {
		if *otp == "" {
			return fmt.Errorf("account %s requires a one-time code, retry with -otp", *user)
		}
		if res, err = a.client.VerifyOTP(ctx, res.UserID, *otp); err != nil {
			return err
		}
	}
	fmt.Fprintf(a.out, "logged in as user %s (%s)\n", res.UserID, res.UserType)
	return nil
}

func (a *app) logout(ctx context.Context) error {
	if err := a.client.Logout(ctx); err != nil {
		// local state is already cleared
		fmt.Fprintf(a.errOut, "warning: backend logout failed: %v\n", err)
	}
	fmt.Fprintln(a.out, "logged out")
	return nil
}

func (a *app) status(ctx context.Context) error {
	b, st := a.store.Bundle(ctx)
	fmt.Fprintf(a.out, "store: %s\n", a.where)
	fmt.Fprintf(a.out, "state: %s\n", st)
	if userID, userType := a.store.Profile(ctx); userID != "" {
		fmt.Fprintf(a.out, "user: %s (%s)\n", userID, userType)
	}
	if st == credentials.StateAbsent {
		return nil
	}
	fmt.Fprintf(a.out, "access token: %s\n", logger.Redact(b.AccessToken))
	exp := b.Expiry()
	if st == credentials.StateValid {
		fmt.Fprintf(a.out, "expires: %s (in %s)\n", exp.Format(time.RFC3339), time.Until(exp).Round(time.Second))
	} else {
		fmt.Fprintf(a.out, "expired: %s\n", exp.Format(time.RFC3339))
	}
	return nil
}

func (a *app) get(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	resp, err := a.client.Do(ctx, &apiclient.Request{Method: http.MethodGet, Path: args[0]})
	if err != nil {
		return err
	}
	a.print(resp.Body)
	return nil
}

func (a *app) post(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	if !json.Valid([]byte(args[1])) {
		return fmt.Errorf("body is not valid JSON")
	}
	resp, err := a.client.Do(ctx, &apiclient.Request{
		Method: http.MethodPost,
		Path:   args[0],
		Body:   apiclient.JSONBody{Value: json.RawMessage(args[1])},
	})
	if err != nil {
		return err
	}
	a.print(resp.Body)
	return nil
}

func (a *app) upload(ctx context.Context, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return errUsage
	}
	field := "file"
	if len(args) == 3 {
		field = args[2]
	}
	f, err := apiclient.FileFromPath(field, args[1])
	if err != nil {
		return err
	}
	resp, err := a.client.Do(ctx, &apiclient.Request{
		Method: http.MethodPost,
		Path:   args[0],
		Body:   apiclient.MultipartBody{Files: []apiclient.File{f}},
	})
	if err != nil {
		return err
	}
	a.print(resp.Body)
	return nil
}

// print writes JSON bodies indented and anything else as is.
func (a *app) print(body []byte) {
	if len(body) == 0 {
		return
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err == nil {
		body = buf.Bytes()
	}
	fmt.Fprintln(a.out, string(body))
}

func (a *app) exitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, errUsage) {
		fmt.Fprint(a.errOut, usage)
		return 2
	}
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		fmt.Fprintf(a.errOut, "error: %s\n", apiErr.Status)
		if len(apiErr.Body) > 0 {
			fmt.Fprintln(a.errOut, string(apiErr.Body))
		}
		return 1
	}
	fmt.Fprintf(a.errOut, "error: %v\n", err)
	return 1
}

func printMetrics(g prometheus.Gatherer, w io.Writer) {
	families, err := g.Gather()
	if err != nil {
		fmt.Fprintf(w, "metrics: %v\n", err)
		return
	}
	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			lines = append(lines, fmt.Sprintf("%s{%s} %g", mf.GetName(), strings.Join(labels, ","), m.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}
