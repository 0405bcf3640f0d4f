// internal/scope/filter_test.go
package scope

import (
	"os"
	"path/filepath"
	"testing"

	"redtrace/internal/platform/errors"
	"redtrace/internal/testutil"
)

func writeScopeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scope.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write scope file: %v", err)
	}
	return path
}

func TestFilter_Unloaded_AllowsEverything(t *testing.T) {
	f := NewFilter(testutil.NewTestLogger())

	testutil.AssertFalse(t, f.Loaded(), "fresh filter not loaded")
	testutil.AssertTrue(t, f.IsInScope("anything.example.com"), "unloaded filter passes all")
	testutil.AssertTrue(t, f.IsInScope("completely.unrelated.org"), "unloaded filter passes all")

	in, out := f.FilterSubdomains([]string{"a.com", "b.com"})
	testutil.AssertLen(t, in, 2, "all in scope")
	testutil.AssertLen(t, out, 0, "none filtered")
}

func TestLoad_MissingFile(t *testing.T) {
	f, err := Load(filepath.Join(t.TempDir(), "missing.json"), testutil.NewTestLogger())

	testutil.AssertError(t, err, "missing file reports error")
	testutil.AssertTrue(t, errors.Is(err, errors.ErrScopeLoad), "wrapped in ErrScopeLoad")
	testutil.AssertNotNil(t, f, "filter still usable")
	testutil.AssertFalse(t, f.Loaded(), "filter stays unloaded")
	testutil.AssertTrue(t, f.IsInScope("x.example.com"), "unloaded filter passes all")
}

func TestLoad_MalformedJSON(t *testing.T) {
	path := writeScopeFile(t, "{not json")
	f, err := Load(path, testutil.NewTestLogger())

	testutil.AssertError(t, err, "malformed file reports error")
	testutil.AssertTrue(t, errors.Is(err, errors.ErrScopeLoad), "wrapped in ErrScopeLoad")
	testutil.AssertFalse(t, f.Loaded(), "filter stays unloaded")
}

func TestLoad_InvalidPatternsSkipped(t *testing.T) {
	path := writeScopeFile(t, `{
		"in_scope": {"domains": ["example.com"], "patterns": ["[invalid", "^ok\\.example\\.com$"]},
		"out_of_scope": {"domains": [], "patterns": ["(also-bad"]}
	}`)

	f, err := Load(path, testutil.NewTestLogger())
	testutil.AssertNoError(t, err, "invalid patterns do not abort load")
	testutil.AssertTrue(t, f.Loaded(), "filter loaded")

	stats := f.Stats()
	testutil.AssertEqual(t, stats.InScopePatterns, 1, "only the valid in-pattern compiled")
	testutil.AssertEqual(t, stats.OutScopePatterns, 0, "invalid out-pattern skipped")
	testutil.AssertTrue(t, f.IsInScope("ok.example.com"), "valid pattern still works")
}

// Precedencia completa: exclusión exacta > patrón out > patrón in >
// exacto in > containment (con wildcard) > default deny.
func TestFilter_Precedence(t *testing.T) {
	path := writeScopeFile(t, `{
		"in_scope": {
			"domains": ["example.com", "www.example.com", "*.internal.example.com"],
			"patterns": ["^api-[0-9]+\\.example\\.com$"]
		},
		"out_of_scope": {
			"domains": ["staging.example.com"],
			"patterns": [".*-test\\.example\\.com$"]
		}
	}`)

	f, err := Load(path, testutil.NewTestLogger())
	testutil.AssertNoError(t, err, "load")

	tests := []struct {
		name      string
		candidate string
		inScope   bool
	}{
		{"exact out wins", "staging.example.com", false},
		{"out pattern wins", "payments-test.example.com", false},
		// staging.example.com también encaja por containment de example.com,
		// pero la exclusión exacta tiene precedencia.
		{"out pattern beats containment", "db-test.example.com", false},
		{"in pattern", "api-01.example.com", true},
		{"exact in", "www.example.com", true},
		{"containment of root", "shop.example.com", true},
		{"wildcard base itself", "internal.example.com", true},
		{"wildcard subdomain", "vault.internal.example.com", true},
		{"deep containment", "a.b.example.com", true},
		{"unrelated domain denied", "www.other.org", false},
		{"suffix lookalike denied", "notexample.com", false},
		{"case insensitive matching", "WWW.EXAMPLE.COM", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.AssertEqual(t, f.IsInScope(tt.candidate), tt.inScope, tt.candidate)
		})
	}
}

// Un candidato excluido por patrón out-of-scope queda fuera aunque también
// encaje en una entrada wildcard in-scope.
func TestFilter_OutPatternBeatsInWildcard(t *testing.T) {
	path := writeScopeFile(t, `{
		"in_scope": {"domains": ["*.example.com"], "patterns": []},
		"out_of_scope": {"domains": [], "patterns": ["^secret\\..*"]}
	}`)

	f, err := Load(path, testutil.NewTestLogger())
	testutil.AssertNoError(t, err, "load")

	testutil.AssertTrue(t, f.IsInScope("public.example.com"), "wildcard admits normal entries")
	testutil.AssertFalse(t, f.IsInScope("secret.example.com"), "out pattern overrides in wildcard")
}

func TestFilter_DefaultDenyWhenLoaded(t *testing.T) {
	path := writeScopeFile(t, `{
		"in_scope": {"domains": ["app.example.com"], "patterns": []},
		"out_of_scope": {"domains": [], "patterns": []}
	}`)

	f, err := Load(path, testutil.NewTestLogger())
	testutil.AssertNoError(t, err, "load")

	testutil.AssertTrue(t, f.IsInScope("app.example.com"), "listed entry in scope")
	testutil.AssertTrue(t, f.IsInScope("x.app.example.com"), "dot-subdomain of listed entry in scope")
	testutil.AssertFalse(t, f.IsInScope("other.example.com"), "unlisted entry denied")
}

func TestFilter_FilterSubdomains_Partition(t *testing.T) {
	path := writeScopeFile(t, `{
		"in_scope": {"domains": ["example.com"], "patterns": []},
		"out_of_scope": {"domains": ["dev.example.com"], "patterns": []}
	}`)

	f, err := Load(path, testutil.NewTestLogger())
	testutil.AssertNoError(t, err, "load")

	candidates := []string{"www.example.com", "dev.example.com", "api.example.com", "evil.org"}
	in, out := f.FilterSubdomains(candidates)

	testutil.AssertLen(t, in, 2, "in-scope partition")
	testutil.AssertContains(t, in, "www.example.com", "www stays")
	testutil.AssertContains(t, in, "api.example.com", "api stays")
	testutil.AssertLen(t, out, 2, "out-of-scope partition")
	testutil.AssertContains(t, out, "dev.example.com", "excluded entry filtered")
	testutil.AssertContains(t, out, "evil.org", "unrelated entry filtered")

	// Determinismo: la misma entrada produce la misma partición.
	in2, out2 := f.FilterSubdomains(candidates)
	testutil.AssertEqual(t, len(in2), len(in), "deterministic in partition")
	testutil.AssertEqual(t, len(out2), len(out), "deterministic out partition")
}

func TestWriteSample_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.json")
	testutil.AssertNoError(t, WriteSample(path), "write sample")

	f, err := Load(path, testutil.NewTestLogger())
	testutil.AssertNoError(t, err, "sample file loads")
	testutil.AssertTrue(t, f.Loaded(), "sample produces loaded filter")
	testutil.AssertTrue(t, f.IsInScope("www.example.com"), "sample in-scope entry")
	testutil.AssertFalse(t, f.IsInScope("staging.example.com"), "sample out-of-scope entry")
}
