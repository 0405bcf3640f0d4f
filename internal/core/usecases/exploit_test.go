// internal/core/usecases/exploit_test.go
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

func newExploitStage(exploiters []ports.Exploiter, cfg ExploitConfig) (*ExploitStage, *testutil.RecordingObserver) {
	obs := &testutil.RecordingObserver{}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	stage := NewExploitStage(exploiters, cfg, newTestNotifier(obs), testutil.NewTestLogger())
	return stage, obs
}

func targetWithFinding() *domain.Target {
	target := domain.NewTarget("example.com")
	target.AddVulnerability(domain.Vulnerability{
		Type: domain.VulnTypeSQLi, Severity: domain.SeverityHigh,
		URL: "http://www.example.com/", Parameter: "id", Payload: "'",
	})
	return target
}

func TestExploitStage_DisabledByDefault(t *testing.T) {
	ex := &testutil.MockExploiter{Can: true}
	stage, obs := newExploitStage([]ports.Exploiter{ex}, ExploitConfig{Auto: false})

	target := targetWithFinding()
	testutil.AssertNoError(t, stage.Execute(context.Background(), target), "execute")

	testutil.AssertEqual(t, ex.CallCount, 0, "exploiter never invoked when auto is off")
	testutil.AssertEqual(t, len(target.Exploited()), 0, "no results recorded")
	testutil.AssertTrue(t, obs.CountKind(ports.EventInfo) > 0, "skip is informational")
}

func TestExploitStage_SuccessRecorded(t *testing.T) {
	ex := &testutil.MockExploiter{
		NameVal: "sqli",
		Can:     true,
		Result:  domain.ExploitResult{Success: true, Evidence: "version extracted"},
	}
	stage, obs := newExploitStage([]ports.Exploiter{ex}, ExploitConfig{Auto: true})

	target := targetWithFinding()
	testutil.AssertNoError(t, stage.Execute(context.Background(), target), "execute")

	results := target.Exploited()
	testutil.AssertEqual(t, len(results), 1, "result recorded")
	testutil.AssertTrue(t, results[0].Success, "success flagged")
	testutil.AssertEqual(t, results[0].Exploiter, "sqli", "exploiter name stamped")
	testutil.AssertNotEqual(t, results[0].Fingerprint, "", "fingerprint stamped")
	testutil.AssertEqual(t, obs.CountKind(ports.EventExploitSuccess), 1, "success event emitted")
}

func TestExploitStage_FailureAfterRetries(t *testing.T) {
	ex := &testutil.MockExploiter{
		NameVal: "sqli",
		Can:     true,
		Error:   errors.ErrConnectionFailed,
	}
	stage, obs := newExploitStage([]ports.Exploiter{ex}, ExploitConfig{Auto: true, MaxAttempts: 3})

	target := targetWithFinding()
	testutil.AssertNoError(t, stage.Execute(context.Background(), target), "exploit errors do not fail the stage")

	testutil.AssertEqual(t, ex.CallCount, 3, "bounded retries")
	results := target.Exploited()
	testutil.AssertEqual(t, len(results), 1, "failure recorded after exhausting attempts")
	testutil.AssertFalse(t, results[0].Success, "failure flagged")
	testutil.AssertContains(t, results[0].Evidence, "attempts failed", "last cause in evidence")
	testutil.AssertEqual(t, obs.CountKind(ports.EventExploitFailed), 1, "failure event emitted")
}

func TestExploitStage_PicksFirstApplicable(t *testing.T) {
	cannot := &testutil.MockExploiter{NameVal: "xss", Can: false}
	can := &testutil.MockExploiter{NameVal: "sqli", Can: true, Result: domain.ExploitResult{Success: true}}

	stage, _ := newExploitStage([]ports.Exploiter{cannot, can}, ExploitConfig{Auto: true})

	target := targetWithFinding()
	testutil.AssertNoError(t, stage.Execute(context.Background(), target), "execute")

	testutil.AssertEqual(t, cannot.CallCount, 0, "inapplicable exploiter skipped")
	testutil.AssertEqual(t, can.CallCount, 1, "applicable exploiter used")
}

func TestExploitStage_NoApplicableExploiter(t *testing.T) {
	ex := &testutil.MockExploiter{Can: false}
	stage, _ := newExploitStage([]ports.Exploiter{ex}, ExploitConfig{Auto: true})

	target := targetWithFinding()
	testutil.AssertNoError(t, stage.Execute(context.Background(), target), "execute")
	testutil.AssertEqual(t, len(target.Exploited()), 0, "nothing attempted without applicable exploiter")
}

func TestExploitStage_NoFindings(t *testing.T) {
	ex := &testutil.MockExploiter{Can: true}
	stage, obs := newExploitStage([]ports.Exploiter{ex}, ExploitConfig{Auto: true})

	target := domain.NewTarget("example.com")
	testutil.AssertNoError(t, stage.Execute(context.Background(), target), "empty findings is not an error")
	testutil.AssertEqual(t, obs.CountKind(ports.EventWarning), 1, "warning emitted")
}

func TestExploitStage_RerunSkipsAttemptedFindings(t *testing.T) {
	ex := &testutil.MockExploiter{
		NameVal: "sqli",
		Can:     true,
		Result:  domain.ExploitResult{Success: true},
	}
	stage, _ := newExploitStage([]ports.Exploiter{ex}, ExploitConfig{Auto: true})

	target := targetWithFinding()
	testutil.AssertNoError(t, stage.Execute(context.Background(), target), "first run")
	testutil.AssertNoError(t, stage.Execute(context.Background(), target), "re-run")

	testutil.AssertEqual(t, ex.CallCount, 1, "attempted finding not re-fired on re-run")
	testutil.AssertEqual(t, len(target.Exploited()), 1, "no duplicate exploit records")

	// Un hallazgo nuevo entre ejecuciones sí se intenta.
	target.AddVulnerability(domain.Vulnerability{
		Type: domain.VulnTypeSQLi, Severity: domain.SeverityHigh,
		URL: "http://api.example.com/", Parameter: "q", Payload: "'",
	})
	testutil.AssertNoError(t, stage.Execute(context.Background(), target), "run with pending finding")

	testutil.AssertEqual(t, ex.CallCount, 2, "only the pending finding attempted")
	testutil.AssertEqual(t, len(target.Exploited()), 2, "one record per finding")
}

func TestExploitStage_CancellationStops(t *testing.T) {
	ex := &testutil.MockExploiter{Can: true, Result: domain.ExploitResult{Success: true}}
	stage, _ := newExploitStage([]ports.Exploiter{ex}, ExploitConfig{Auto: true})

	target := targetWithFinding()
	target.AddVulnerability(domain.Vulnerability{
		Type: domain.VulnTypeSQLi, URL: "http://api.example.com/", Parameter: "q", Payload: "'",
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	testutil.AssertNoError(t, stage.Execute(ctx, target), "cancellation drains quietly")
	testutil.AssertEqual(t, ex.CallCount, 0, "no attempts after cancellation")
}
