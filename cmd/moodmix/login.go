package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/ewilliams-labs/moodmix/internal/adapters/spotify"
)

// runLogin performs the authorization-code flow against the configured
// redirect URI and prints the resulting refresh token.
func runLogin(ctx context.Context, cfg spotify.Config, out io.Writer) error {
	redirect, err := url.Parse(cfg.RedirectURI)
	if err != nil || redirect.Host == "" {
		return fmt.Errorf("login: invalid redirect uri %q", cfg.RedirectURI)
	}

	oauthCfg := spotify.OAuthConfig(cfg)
	state := uuid.NewString()

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(redirect.Path, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			errCh <- errors.New("login: state mismatch")
			return
		}
		if e := q.Get("error"); e != "" {
			http.Error(w, e, http.StatusBadRequest)
			errCh <- fmt.Errorf("login: authorization denied: %s", e)
			return
		}
		fmt.Fprintln(w, "MoodMix is authorized. You can close this window.")
		codeCh <- q.Get("code")
	})

	ln, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return fmt.Errorf("login: listen on %s: %w", redirect.Host, err)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(out, "Open this URL to authorize MoodMix:\n\n%s\n\n", oauthCfg.AuthCodeURL(state))

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}

	token, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("login: exchange code: %w", err)
	}
	if token.RefreshToken == "" {
		return errors.New("login: no refresh token returned")
	}
	fmt.Fprintf(out, "SPOTIFY_REFRESH_TOKEN=%s\n", token.RefreshToken)
	return nil
}
