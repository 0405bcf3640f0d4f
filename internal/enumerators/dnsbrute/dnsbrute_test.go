// internal/enumerators/dnsbrute/dnsbrute_test.go
package dnsbrute

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"redtrace/internal/core/ports"
	"redtrace/internal/platform/errors"
	"redtrace/internal/testutil"
)

// fakeResolver resuelve únicamente los hosts de su tabla.
type fakeResolver struct {
	hosts map[string][]string
	calls []string
}

func (f *fakeResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	f.calls = append(f.calls, host)
	if addrs, ok := f.hosts[host]; ok {
		return addrs, nil
	}
	return nil, errors.Errorf("no such host: %s", host)
}

func writeWordlist(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "words.txt")
	if err := os.WriteFile(path, []byte(lines), 0o644); err != nil {
		t.Fatalf("write wordlist: %v", err)
	}
	return path
}

func TestBrute_Enumerate(t *testing.T) {
	path := writeWordlist(t, "www\napi\nmail\n")
	brute, err := New(ports.CollaboratorConfig{
		Custom: map[string]string{"wordlist": path},
	}, testutil.NewTestLogger())
	testutil.AssertNoError(t, err, "new")

	brute.SetResolver(&fakeResolver{hosts: map[string][]string{
		"www.example.com": {"93.184.216.34"},
		"api.example.com": {"93.184.216.35"},
	}})

	found, err := brute.Enumerate(context.Background(), "example.com")
	testutil.AssertNoError(t, err, "enumerate")
	testutil.AssertLen(t, found, 2, "only resolving candidates")
	testutil.AssertContains(t, found, "www.example.com", "resolved candidate")
	testutil.AssertContains(t, found, "api.example.com", "resolved candidate")
	testutil.AssertNotContains(t, found, "mail.example.com", "non-resolving candidate dropped")
}

func TestBrute_WordlistParsing(t *testing.T) {
	path := writeWordlist(t, "www\n\n# comment\n  api  \n")
	brute, err := New(ports.CollaboratorConfig{
		Custom: map[string]string{"wordlist": path},
	}, testutil.NewTestLogger())
	testutil.AssertNoError(t, err, "new")

	resolver := &fakeResolver{hosts: map[string][]string{}}
	brute.SetResolver(resolver)

	_, _ = brute.Enumerate(context.Background(), "example.com")
	testutil.AssertLen(t, resolver.calls, 2, "blanks and comments skipped")
	testutil.AssertEqual(t, resolver.calls[0], "www.example.com", "order preserved")
	testutil.AssertEqual(t, resolver.calls[1], "api.example.com", "whitespace trimmed")
}

func TestBrute_MissingWordlistFile(t *testing.T) {
	_, err := New(ports.CollaboratorConfig{
		Custom: map[string]string{"wordlist": "/nonexistent/words.txt"},
	}, testutil.NewTestLogger())
	testutil.AssertError(t, err, "unreadable wordlist is a construction error")
}

func TestBrute_DefaultWordlist(t *testing.T) {
	brute, err := New(ports.CollaboratorConfig{}, testutil.NewTestLogger())
	testutil.AssertNoError(t, err, "new")
	testutil.AssertTrue(t, len(brute.words) > 20, "built-in wordlist present")
}

func TestBrute_CancellationReturnsPartial(t *testing.T) {
	path := writeWordlist(t, "www\napi\n")
	brute, err := New(ports.CollaboratorConfig{
		Custom: map[string]string{"wordlist": path},
	}, testutil.NewTestLogger())
	testutil.AssertNoError(t, err, "new")

	brute.SetResolver(&fakeResolver{hosts: map[string][]string{
		"www.example.com": {"93.184.216.34"},
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	found, err := brute.Enumerate(ctx, "example.com")
	testutil.AssertNoError(t, err, "cancellation is not a failure")
	testutil.AssertLen(t, found, 0, "canceled before first lookup")
}
