// Command web is a small server which signs users in with Instagram.
//
//	INSTAGRAM_CLIENT_ID=... INSTAGRAM_CLIENT_SECRET=... go run .
//
// Register http://localhost:8080/signin-instagram as the client's redirect
// URI, then browse to http://localhost:8080/account.
package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hashicorp/cap-instagram/instagram"
	"github.com/hashicorp/cap-instagram/sdk/id"
)

const sessionCookie = "example_session"

type config struct {
	ClientId     string   `env:"INSTAGRAM_CLIENT_ID,required"`
	ClientSecret string   `env:"INSTAGRAM_CLIENT_SECRET,required"`
	Addr         string   `env:"INSTAGRAM_ADDR" envDefault:"localhost:8080"`
	RedirectURL  string   `env:"INSTAGRAM_REDIRECT_URL"`
	Scopes       []string `env:"INSTAGRAM_SCOPES" envSeparator:","`
	// StateKey is a base64 (url, unpadded) 32 byte key. A key is generated
	// when it's empty, which only works for a single process.
	StateKey string `env:"INSTAGRAM_STATE_KEY"`
	LogLevel string `env:"INSTAGRAM_LOG_LEVEL" envDefault:"info"`
}

// sessions is an in memory session store, good enough for a demo.
type sessions struct {
	mu sync.Mutex
	m  map[string]*instagram.Identity
}

func (s *sessions) signIn(w http.ResponseWriter, _ *http.Request, ident *instagram.Identity, p *instagram.Properties) error {
	sid, err := id.New("s")
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.m[sid] = ident
	s.mu.Unlock()
	c := &http.Cookie{Name: sessionCookie, Value: sid, Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode}
	if p.IsPersistent {
		c.Expires = time.Now().Add(24 * time.Hour)
	}
	http.SetCookie(w, c)
	return nil
}

func (s *sessions) identity(r *http.Request) *instagram.Identity {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[c.Value]
}

var accountPage = template.Must(template.New("account").Parse(`<!DOCTYPE html>
<html><body>
<h1>Hello {{.Name}}</h1>
<ul>{{range .Claims}}<li>{{.Type}}: {{.Value}}</li>{{end}}</ul>
</body></html>
`))

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "parse env: %s\n", err)
		os.Exit(1)
	}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "instagram-example",
		Level: hclog.LevelFromString(cfg.LogLevel),
	})
	if err := run(cfg, logger); err != nil {
		logger.Error("exiting", "error", err)
		os.Exit(1)
	}
}

func run(cfg config, logger hclog.Logger) error {
	const op = "run"
	key, err := stateKey(cfg.StateKey)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	codec, err := instagram.NewEncryptedStateCodec(key)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	opts := []instagram.Option{
		instagram.WithScopes(cfg.Scopes...),
		instagram.WithLogger(logger),
	}
	if cfg.RedirectURL != "" {
		opts = append(opts, instagram.WithRedirectURL(cfg.RedirectURL))
	}
	c, err := instagram.NewConfig(cfg.ClientId, instagram.ClientSecret(cfg.ClientSecret), codec, opts...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s := &sessions{m: map[string]*instagram.Identity{}}
	reg := prometheus.NewRegistry()
	h, err := instagram.NewHandler(c,
		instagram.WithSignIn(s.signIn),
		instagram.WithRegisterer(reg),
		instagram.WithEvents(instagram.EventFuncs{
			Authenticated: func(_ context.Context, ac *instagram.AuthenticatedContext) error {
				logger.Info("user authenticated", "username", ac.User().Username)
				return nil
			},
		}),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer h.Done()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		p := instagram.NewProperties("/account")
		p.IsPersistent = r.URL.Query().Get("remember") == "1"
		if _, err := h.BeginChallenge(w, r, p); err != nil {
			logger.Error("unable to begin challenge", "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	})
	mux.HandleFunc("/account", func(w http.ResponseWriter, r *http.Request) {
		ident := s.identity(r)
		if ident == nil {
			if r.URL.Query().Get("error") != "" {
				http.Error(w, "sign in failed", http.StatusForbidden)
				return
			}
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = accountPage.Execute(w, ident)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		d := h.Description()
		fmt.Fprintf(w, "<a href=\"/login\">%s</a>", template.HTMLEscapeString(d.Caption))
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h.Middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", "addr", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func stateKey(encoded string) ([]byte, error) {
	const op = "stateKey"
	if encoded == "" {
		return instagram.NewStateKey()
	}
	key, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%s: INSTAGRAM_STATE_KEY is not base64: %w", op, err)
	}
	return key, nil
}
