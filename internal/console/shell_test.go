package console

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/hifat/mallow-sale-back-office-sub000/internal/api"
	"github.com/hifat/mallow-sale-back-office-sub000/internal/gateway"
	"github.com/hifat/mallow-sale-back-office-sub000/internal/identity/client"
	"github.com/hifat/mallow-sale-back-office-sub000/internal/session/domain"
	"github.com/hifat/mallow-sale-back-office-sub000/internal/session/repository"
	"github.com/hifat/mallow-sale-back-office-sub000/internal/session/service"
)

// syncBuffer is written by the shell and, via the host, from gateway callbacks.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type backend struct {
	mu        sync.Mutex
	refreshOK bool
}

func (b *backend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/signin", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"code":"INVALID_CREDENTIALS","message":"username or password is incorrect"}`)
			return
		}
		_, _ = io.WriteString(w, `{"authID":"x","user":{"id":"u1","name":"Mallow Admin","username":"admin","accessToken":"A2","refreshToken":"R2"}}`)
	})
	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		ok := b.refreshOK
		b.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"code":"REFRESH_INVALID"}`)
			return
		}
		_, _ = io.WriteString(w, `{"accessToken":"A2","refreshToken":"R3"}`)
	})
	mux.HandleFunc("GET /inventories", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer A2" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"code":"TOKEN_EXPIRED"}`)
			return
		}
		_, _ = io.WriteString(w, `{"items":[{"id":"i1","name":"Flour"}],"meta":{"page":1,"limit":20,"total":1}}`)
	})
	return mux
}

type env struct {
	out   *syncBuffer
	store *repository.Store
	host  *Host
	ctrl  *service.Controller
	shell *Shell
	be    *backend
}

func newEnv(t *testing.T, stored *domain.Session) *env {
	t.Helper()
	e := &env{out: &syncBuffer{}, store: repository.NewStore(repository.NewMemoryBackend(), ""), be: &backend{refreshOK: true}}
	srv := httptest.NewServer(e.be.handler())
	t.Cleanup(srv.Close)
	if stored != nil {
		e.store.Set(context.Background(), *stored)
	}

	authClient := client.New(srv.URL, srv.Client())
	refresher := service.NewRefresher(authClient)
	e.host = NewHost(e.out, "/")
	e.ctrl = service.NewController(e.store, refresher, authClient, e.host, service.Options{})
	e.host.Bind(e.ctrl)
	gw := gateway.New(e.store, refresher, e.host, gateway.Options{
		Base:              srv.Client().Transport,
		OnTokensRefreshed: func(ctx context.Context, _ domain.Tokens) { e.ctrl.Resync(ctx) },
	})
	apiClient, err := api.New(srv.URL, gw.Client())
	if err != nil {
		t.Fatal(err)
	}
	e.shell = NewShell(e.host, e.ctrl, apiClient, e.out)
	e.ctrl.SetRoute(e.host.Route())
	e.ctrl.Hydrate(context.Background())
	return e
}

func (e *env) run(t *testing.T, script string) string {
	t.Helper()
	if err := e.shell.Run(context.Background(), strings.NewReader(script)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return e.out.String()
}

func TestShell_AnonymousIsSentToSignIn(t *testing.T) {
	e := newEnv(t, nil)
	if e.host.Route() != "/signin" {
		t.Fatalf("route = %q, want /signin", e.host.Route())
	}
	out := e.run(t, "open /recipes\nwhoami\n")
	if strings.Count(out, "→ /signin") != 2 {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "not signed in") {
		t.Errorf("output = %q", out)
	}
}

func TestShell_LoginListLogout(t *testing.T) {
	e := newEnv(t, nil)
	out := e.run(t, "login admin wrong\nlogin admin secret\nwhoami\nlist inventories\nlogout\nquit\nwhoami\n")

	for _, want := range []string{
		"error: auth: username or password is incorrect",
		"signed in as Mallow Admin (admin)",
		"→ /\n",
		"Mallow Admin (admin) id=u1",
		`{"id":"i1","name":"Flour"}`,
		"page 1, 1 of 1",
		"signed out",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Count(out, "not signed in") != 0 {
		t.Error("commands after quit were executed")
	}
	if e.store.Get(context.Background()).IsAuthenticated() {
		t.Error("logout left a stored session")
	}
	if e.host.Route() != "/signin" {
		t.Errorf("route = %q", e.host.Route())
	}
}

func TestShell_LoginValidation(t *testing.T) {
	e := newEnv(t, nil)
	out := e.run(t, "login admin\n")
	if !strings.Contains(out, "usage: login") {
		t.Errorf("output = %q", out)
	}
	if e.ctrl.IsAuthenticated() {
		t.Error("authenticated without a password")
	}
}

func TestShell_ExpiredTokenIsRenewed(t *testing.T) {
	e := newEnv(t, &domain.Session{User: &domain.User{ID: "u1", Name: "A", Username: "a"}, AccessToken: "A1", RefreshToken: "R1"})
	out := e.run(t, "list inventories\n")
	if !strings.Contains(out, "page 1, 1 of 1") {
		t.Errorf("output = %q", out)
	}
	if got := e.ctrl.Session().RefreshToken; got != "R3" {
		t.Errorf("controller refresh token = %q, want R3 after resync", got)
	}
}

func TestShell_UnrecoverableSessionHardRedirects(t *testing.T) {
	e := newEnv(t, &domain.Session{User: &domain.User{ID: "u1"}, AccessToken: "A1", RefreshToken: "R1"})
	e.be.mu.Lock()
	e.be.refreshOK = false
	e.be.mu.Unlock()

	out := e.run(t, "list inventories\n")
	if !strings.Contains(out, "session expired, please sign in again") {
		t.Errorf("output = %q", out)
	}
	if e.ctrl.IsAuthenticated() {
		t.Error("controller still authenticated after hard redirect")
	}
	if e.host.Route() != "/signin" || e.ctrl.Route() != "/signin" {
		t.Errorf("route = %q / %q", e.host.Route(), e.ctrl.Route())
	}
	if strings.Contains(out, "→ /\n") {
		t.Errorf("hard redirect bounced through the landing route: %q", out)
	}
}

func TestShell_UnknownInput(t *testing.T) {
	e := newEnv(t, nil)
	out := e.run(t, "frobnicate\nlist widgets\nlist stocks zero\nopen recipes\n\nhelp\n")
	for _, want := range []string{
		`unknown command "frobnicate"`,
		`unknown resource "widgets"`,
		"page must be a positive number",
		"usage: open",
		"commands:",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}
