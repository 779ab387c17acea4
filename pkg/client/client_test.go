package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"flexilims/pkg/domain"
)

const testProjectID = "606df1ac08df4d77c72c9aa4"

// errorBody renders the registry's HTML error fragment. Callers supply the
// field text verbatim, leading space included, exactly as the parser will
// capture it after the closing bold tag.
func errorBody(errType, message, description string) string {
	return fmt.Sprintf("<html><p><b>Type</b>%s</p><p><b>Message</b>%s</p><p><b>Description</b>%s</p></html>",
		errType, message, description)
}

// fakeRegistry is a minimal in-memory stand-in for the remote service. It
// issues sequential tokens and lets tests script per-endpoint behavior.
type fakeRegistry struct {
	mux        *http.ServeMux
	server     *httptest.Server
	tokens     int
	authCalls  int
	lastToken  string
	authReject bool
}

func newFakeRegistry(t *testing.T) *fakeRegistry {
	t.Helper()
	f := &fakeRegistry{mux: http.NewServeMux()}
	f.mux.HandleFunc("/authenticate", func(w http.ResponseWriter, r *http.Request) {
		f.authCalls++
		if f.authReject {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "alice" || pass != "secret" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		f.tokens++
		f.lastToken = fmt.Sprintf("token-%d", f.tokens)
		fmt.Fprint(w, f.lastToken)
	})
	f.server = httptest.NewServer(f.mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeRegistry) newClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	c, err := New(context.Background(), Config{
		BaseURL:   f.server.URL,
		Username:  "alice",
		Password:  "secret",
		ProjectID: testProjectID,
	}, opts...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNewAuthenticatesAndStoresToken(t *testing.T) {
	f := newFakeRegistry(t)
	c := f.newClient(t)
	if c.Token() != "token-1" {
		t.Fatalf("token: %q", c.Token())
	}
	if f.authCalls != 1 {
		t.Fatalf("expected 1 authenticate call, got %d", f.authCalls)
	}
}

func TestNewWithPreObtainedTokenSkipsAuthentication(t *testing.T) {
	f := newFakeRegistry(t)
	c, err := New(context.Background(), Config{
		BaseURL:  f.server.URL,
		Username: "alice",
		Token:    "existing",
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if f.authCalls != 0 {
		t.Fatalf("authenticate called %d times", f.authCalls)
	}
	if c.Token() != "existing" {
		t.Fatalf("token: %q", c.Token())
	}
}

func TestNewResolvesPasswordThroughCredentialProvider(t *testing.T) {
	f := newFakeRegistry(t)
	var askedUser, askedApp string
	c, err := New(context.Background(), Config{
		BaseURL:  f.server.URL,
		Username: "alice",
		Credentials: CredentialFunc(func(username, app string) (string, error) {
			askedUser, askedApp = username, app
			return "secret", nil
		}),
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if askedUser != "alice" || askedApp != "flexilims" {
		t.Fatalf("provider asked for (%q, %q)", askedUser, askedApp)
	}
	if c.Token() == "" {
		t.Fatal("no token acquired")
	}
}

func TestNewRejectsMissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{Username: "alice"})
	var verr domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestNewRejectsBadProjectID(t *testing.T) {
	_, err := New(context.Background(), Config{
		Username: "alice", Token: "x", ProjectID: "not-hex",
	})
	var verr domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestNewRejectsBadPassword(t *testing.T) {
	f := newFakeRegistry(t)
	_, err := New(context.Background(), Config{
		BaseURL:  f.server.URL,
		Username: "alice",
		Password: "wrong",
	})
	var aerr domain.AuthenticationError
	if !errors.As(err, &aerr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
	if aerr.Msg != "Forbidden. Are you logged in?" {
		t.Fatalf("message: %q", aerr.Msg)
	}
}

func TestStaleTokenIsRenewedAndRetriedOnce(t *testing.T) {
	f := newFakeRegistry(t)
	rejected := 0
	f.mux.HandleFunc("/get", func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth != "Bearer "+f.lastToken {
			rejected++
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprint(w, `[{"id":"605a36c53b38df2abd7757e9","type":"mouse","name":"m1"}]`)
	})
	c := f.newClient(t, WithRenewInterval(time.Millisecond))
	// Invalidate the session server-side: the registry now expects token-2.
	f.tokens++
	f.lastToken = "token-2"

	entities, err := c.Get(context.Background(), domain.Query{Datatype: "mouse"})
	if err != nil {
		t.Fatalf("get after stale token: %v", err)
	}
	if len(entities) != 1 || entities[0].Name != "m1" {
		t.Fatalf("entities: %#v", entities)
	}
	if rejected != 1 {
		t.Fatalf("expected exactly 1 rejected attempt, got %d", rejected)
	}
	if c.Token() == "token-1" {
		t.Fatal("token was not renewed")
	}
}

func TestSecondAuthenticationFailurePropagates(t *testing.T) {
	f := newFakeRegistry(t)
	f.mux.HandleFunc("/get", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	c := f.newClient(t, WithRenewInterval(time.Millisecond))

	_, err := c.Get(context.Background(), domain.Query{Datatype: "mouse"})
	var aerr domain.AuthenticationError
	if !errors.As(err, &aerr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
}

func TestRenewTokenPollsUntilSuccess(t *testing.T) {
	f := newFakeRegistry(t)
	c := f.newClient(t, WithRenewInterval(time.Millisecond))
	f.authReject = true
	go func() {
		time.Sleep(20 * time.Millisecond)
		f.authReject = false
	}()
	if err := c.RenewToken(context.Background(), time.Second); err != nil {
		t.Fatalf("renew: %v", err)
	}
	if c.Token() != f.lastToken {
		t.Fatalf("token %q, server issued %q", c.Token(), f.lastToken)
	}
}

func TestRenewTokenTimesOut(t *testing.T) {
	f := newFakeRegistry(t)
	c := f.newClient(t, WithRenewInterval(time.Millisecond))
	f.authReject = true
	err := c.RenewToken(context.Background(), 10*time.Millisecond)
	var terr domain.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if !strings.Contains(terr.Msg, "is the registry reachable?") {
		t.Fatalf("message should hint at reachability: %q", terr.Msg)
	}
}

func TestRenewTokenHonorsContextCancellation(t *testing.T) {
	f := newFakeRegistry(t)
	c := f.newClient(t, WithRenewInterval(10*time.Millisecond))
	f.authReject = true
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	if err := c.RenewToken(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSetProjectIDValidates(t *testing.T) {
	f := newFakeRegistry(t)
	c := f.newClient(t)
	if err := c.SetProjectID("bad"); err == nil {
		t.Fatal("malformed project accepted")
	}
	other := "000000000000000000000abc"
	if err := c.SetProjectID(other); err != nil {
		t.Fatalf("valid project rejected: %v", err)
	}
	if c.ProjectID() != other {
		t.Fatalf("project: %q", c.ProjectID())
	}
}

func TestAuditTrailRecordsSessionEvents(t *testing.T) {
	f := newFakeRegistry(t)
	audit := NewMemoryAuditRecorder()
	c := f.newClient(t, WithAuditRecorder(audit))
	if err := c.Authenticate(context.Background()); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	lines := audit.Lines()
	if len(lines) != 2 {
		t.Fatalf("expected 2 audit lines, got %v", lines)
	}
	if !strings.Contains(lines[0], "session created") {
		t.Fatalf("first line: %q", lines[0])
	}
	if !strings.Contains(lines[1], "session already exists") {
		t.Fatalf("second line: %q", lines[1])
	}
}

func TestClockInjection(t *testing.T) {
	f := newFakeRegistry(t)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	audit := NewMemoryAuditRecorder()
	f.newClient(t, WithClock(ClockFunc(func() time.Time { return fixed })), WithAuditRecorder(audit))
	entries := audit.Entries()
	if len(entries) == 0 || !entries[0].Timestamp.Equal(fixed) {
		t.Fatalf("audit timestamps should come from the injected clock: %#v", entries)
	}
}

func TestRenewTokenTimeoutHonorsInjectedClock(t *testing.T) {
	f := newFakeRegistry(t)
	now := time.Unix(1700000000, 0)
	c := f.newClient(t,
		WithClock(ClockFunc(func() time.Time { return now })),
		WithRenewInterval(5*time.Second))
	f.authReject = true
	// Advance the fake clock instead of sleeping, so the deadline math
	// and the waiting run off the same time source.
	c.after = func(d time.Duration) <-chan time.Time {
		now = now.Add(d)
		ch := make(chan time.Time, 1)
		ch <- now
		return ch
	}
	before := f.authCalls
	err := c.RenewToken(context.Background(), 12*time.Second)
	var terr domain.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if got := f.authCalls - before; got != 3 {
		t.Fatalf("expected 3 poll attempts within the window, got %d", got)
	}
}
