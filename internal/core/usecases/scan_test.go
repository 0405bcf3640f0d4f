// internal/core/usecases/scan_test.go
package usecases

import (
	"context"
	"testing"
	"time"

	"redtrace/internal/core/domain"
	"redtrace/internal/core/ports"
	"redtrace/internal/platform/errors"
	"redtrace/internal/testutil"
)

func newScanStage(scanners []ports.Scanner) (*ScanStage, *testutil.RecordingObserver) {
	obs := &testutil.RecordingObserver{}
	stage := NewScanStage(scanners, ScanConfig{
		Workers: 2,
		Timeout: 2 * time.Second,
	}, newTestNotifier(obs), testutil.NewTestLogger())
	return stage, obs
}

func TestScanStage_ScannerCrossSubdomain(t *testing.T) {
	sc := &testutil.MockScanner{NameVal: "probe"}
	stage, _ := newScanStage([]ports.Scanner{sc})

	target := domain.NewTarget("example.com")
	target.AddSubdomain("a.example.com")
	target.AddSubdomain("b.example.com")
	target.AddSubdomain("c.example.com")

	testutil.AssertNoError(t, stage.Execute(context.Background(), target), "execute")
	testutil.AssertEqual(t, sc.Calls(), 3, "scanner invoked once per subdomain")
}

func TestScanStage_MergesFindingsWithDedup(t *testing.T) {
	finding := domain.Vulnerability{
		Type: domain.VulnTypeSQLi, Severity: domain.SeverityHigh,
		URL: "http://shared.example.com/", Parameter: "id", Payload: "'",
	}
	// Ambos scanners reportan el mismo hallazgo.
	s1 := &testutil.MockScanner{NameVal: "one", Results: []domain.Vulnerability{finding}}
	s2 := &testutil.MockScanner{NameVal: "two", Results: []domain.Vulnerability{finding}}

	stage, obs := newScanStage([]ports.Scanner{s1, s2})

	target := domain.NewTarget("example.com")
	target.AddSubdomain("shared.example.com")

	testutil.AssertNoError(t, stage.Execute(context.Background(), target), "execute")

	testutil.AssertEqual(t, len(target.Vulnerabilities()), 1, "duplicate finding stored once")
	testutil.AssertEqual(t, obs.CountKind(ports.EventVulnerabilityFound), 1, "one event for one distinct finding")
}

// Un scanner que falla contra un host no falla el stage: el contrato es
// que el stage reporta éxito si todas las unidades sometidas terminaron.
func TestScanStage_FailedScannerUnitDoesNotFailStage(t *testing.T) {
	bad := &testutil.MockScanner{NameVal: "broken", Error: errors.ErrTimeout}
	good := &testutil.MockScanner{NameVal: "working", Results: []domain.Vulnerability{{
		Type: domain.VulnTypeMissingHeader, Severity: domain.SeverityLow,
		URL: "https://www.example.com/", Parameter: "X-Frame-Options",
	}}}

	stage, obs := newScanStage([]ports.Scanner{bad, good})

	target := domain.NewTarget("example.com")
	target.AddSubdomain("www.example.com")

	testutil.AssertNoError(t, stage.Execute(context.Background(), target), "stage succeeds despite failing units")
	testutil.AssertEqual(t, len(target.Vulnerabilities()), 1, "healthy scanner findings kept")
	testutil.AssertEqual(t, obs.CountKind(ports.EventWarning), 1, "failed unit surfaced as warning")
}

func TestScanStage_NoSubdomains(t *testing.T) {
	sc := &testutil.MockScanner{NameVal: "probe"}
	stage, obs := newScanStage([]ports.Scanner{sc})

	target := domain.NewTarget("example.com")

	testutil.AssertNoError(t, stage.Execute(context.Background(), target), "empty target is not an error")
	testutil.AssertEqual(t, sc.Calls(), 0, "scanner never invoked")
	testutil.AssertEqual(t, obs.CountKind(ports.EventWarning), 1, "warning emitted")
}

func TestScanStage_NoScanners(t *testing.T) {
	stage, obs := newScanStage(nil)

	target := domain.NewTarget("example.com")
	target.AddSubdomain("www.example.com")

	testutil.AssertNoError(t, stage.Execute(context.Background(), target), "no scanners is not an error")
	testutil.AssertEqual(t, obs.CountKind(ports.EventWarning), 1, "warning emitted")
}
