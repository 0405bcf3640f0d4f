// internal/observers/console/console.go
package console

import (
	"fmt"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"redtrace/internal/core/domain"
	"redtrace/internal/core/ports"
)

// Observer renderiza los eventos del pipeline en la terminal usando pterm.
// Es intencionadamente barato por evento: la entrega del bus es síncrona.
type Observer struct {
	mu sync.Mutex

	// Tracking por stage para el timing de la línea de cierre
	stageStart map[string]time.Time

	// Contadores acumulados para la cabecera de cada evento de hallazgo
	subdomains int
	vulns      int
	exploits   int

	quiet bool
}

// New crea el observer de consola.
// quiet suprime los eventos de detalle (hallazgos individuales) y deja
// solo el ciclo de vida de los stages.
func New(quiet bool) *Observer {
	return &Observer{
		stageStart: make(map[string]time.Time),
		quiet:      quiet,
	}
}

// Banner imprime la cabecera de arranque del escaneo.
func (o *Observer) Banner(target string, stages []string) {
	pterm.DefaultHeader.
		WithBackgroundStyle(pterm.NewStyle(pterm.BgCyan)).
		WithTextStyle(pterm.NewStyle(pterm.FgBlack)).
		Println("RedTrace - Security Assessment Pipeline")

	pterm.Println()
	pterm.Info.Printf("Target: %s\n", pterm.Cyan(target))
	for i, name := range stages {
		pterm.Printf("  %s Stage %d: %s\n", pterm.Gray("•"), i+1, name)
	}
	pterm.Println()
}

// Update implementa ports.Observer.
func (o *Observer) Update(stage string, kind ports.EventKind, data any) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch kind {
	case ports.EventStart:
		o.stageStart[stage] = time.Now()
		pterm.DefaultSection.WithLevel(2).Printf("%s\n", stage)

	case ports.EventComplete:
		elapsed := o.elapsed(stage)
		pterm.Success.Printf("%s completed%s\n", stage, elapsed)

	case ports.EventError:
		pterm.Error.Printf("%s failed: %v\n", stage, data)

	case ports.EventWarning:
		pterm.Warning.Printf("[%s] %v\n", stage, data)

	case ports.EventInfo:
		pterm.Info.Printf("[%s] %v\n", stage, data)

	case ports.EventSubdomainFound:
		o.subdomains++
		if !o.quiet {
			pterm.Printf("  %s %v\n", pterm.Green("+"), data)
		}

	case ports.EventFilteredSubdomain:
		if !o.quiet {
			pterm.Printf("  %s %v %s\n", pterm.Gray("-"), data, pterm.Gray("(out of scope)"))
		}

	case ports.EventVulnerabilityFound:
		o.vulns++
		if v, ok := data.(domain.Vulnerability); ok {
			sev := severityStyle(v.Severity)
			pterm.Printf("  %s [%s] %s %s param=%s\n",
				pterm.Red("!"), sev.Sprint(string(v.Severity)), string(v.Type), v.URL, v.Parameter)
		} else if !o.quiet {
			pterm.Printf("  %s %v\n", pterm.Red("!"), data)
		}

	case ports.EventExploitSuccess:
		o.exploits++
		if r, ok := data.(domain.ExploitResult); ok {
			pterm.Success.Printf("exploited via %s: %s\n", r.Exploiter, r.Evidence)
		}

	case ports.EventExploitFailed:
		if r, ok := data.(domain.ExploitResult); ok && !o.quiet {
			pterm.Warning.Printf("exploit failed (%s): %s\n", r.Exploiter, r.Evidence)
		}
	}
}

// Summary imprime el resumen final del target.
func (o *Observer) Summary(s domain.Summary) {
	o.mu.Lock()
	defer o.mu.Unlock()

	pterm.Println()
	pterm.DefaultHeader.
		WithBackgroundStyle(pterm.NewStyle(pterm.BgGreen)).
		WithTextStyle(pterm.NewStyle(pterm.FgBlack)).
		Println("Assessment Completed")

	pterm.Println()
	pterm.Printf("  Subdomains:      %s\n", pterm.Cyan(fmt.Sprintf("%d", s.Subdomains)))
	pterm.Printf("  Vulnerabilities: %s\n", pterm.Yellow(fmt.Sprintf("%d", s.Vulnerabilities)))
	pterm.Printf("  Exploited:       %s\n", pterm.Red(fmt.Sprintf("%d", s.ExploitSuccess)))

	if len(s.BySeverity) > 0 {
		tableData := pterm.TableData{{"Severity", "Count"}}
		for _, sev := range []domain.Severity{
			domain.SeverityCritical, domain.SeverityHigh, domain.SeverityMedium,
			domain.SeverityLow, domain.SeverityInfo,
		} {
			if count, ok := s.BySeverity[string(sev)]; ok && count > 0 {
				tableData = append(tableData, []string{string(sev), fmt.Sprintf("%d", count)})
			}
		}
		pterm.Println()
		pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(tableData).Render()
	}
	pterm.Println()
}

func (o *Observer) elapsed(stage string) string {
	start, ok := o.stageStart[stage]
	if !ok {
		return ""
	}
	delete(o.stageStart, stage)
	d := time.Since(start)
	if d < time.Second {
		return fmt.Sprintf(" (%dms)", d.Milliseconds())
	}
	return fmt.Sprintf(" (%.1fs)", d.Seconds())
}

func severityStyle(s domain.Severity) *pterm.Style {
	switch s {
	case domain.SeverityCritical:
		return pterm.NewStyle(pterm.FgRed, pterm.Bold)
	case domain.SeverityHigh:
		return pterm.NewStyle(pterm.FgRed)
	case domain.SeverityMedium:
		return pterm.NewStyle(pterm.FgYellow)
	case domain.SeverityLow:
		return pterm.NewStyle(pterm.FgBlue)
	default:
		return pterm.NewStyle(pterm.FgGray)
	}
}
