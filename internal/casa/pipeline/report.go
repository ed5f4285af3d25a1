package pipeline

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/you112ef/Sky-CASA/internal/units"
)

// TimestampLayout is the analysis timestamp format used in reports.
const TimestampLayout = "2006-01-02 15:04:05"

//go:embed templates/*
var reportTemplateFS embed.FS

var reportTemplate = template.Must(template.New("report.txt.tmpl").Funcs(template.FuncMap{
	"f2":   func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"f4":   func(v float64) string { return fmt.Sprintf("%.4g", v) },
	"ts":   func(t time.Time) string { return t.Format(TimestampLayout) },
	"vel":  func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"unit": func() string { return units.Label(units.UMPS) },
}).ParseFS(reportTemplateFS, "templates/report.txt.tmpl"))

// RenderReport renders the plain-text report of r, velocities expressed in
// the given units.
func RenderReport(r *AnalysisResult, unit string) (string, error) {
	t, err := reportTemplate.Clone()
	if err != nil {
		return "", err
	}
	t.Funcs(template.FuncMap{
		"vel":  func(v float64) string { return fmt.Sprintf("%.2f", units.ConvertVelocity(v, unit)) },
		"unit": func() string { return units.Label(unit) },
	})
	var b strings.Builder
	if err := t.Execute(&b, r); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return b.String(), nil
}
