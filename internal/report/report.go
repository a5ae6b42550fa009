// Package report renders a persisted analysis trace for human review.
package report

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/metalagman/entrybrain/internal/model"
	"github.com/metalagman/entrybrain/internal/pipeline"
)

//go:embed report.md.gotmpl
var reportTemplate string

var tmpl = template.Must(template.New("report").Parse(reportTemplate))

var stageTitles = []struct {
	key   string
	title string
}{
	{pipeline.StageContext, "Stage 0: Context"},
	{pipeline.StageTime, "Stage 1: Time"},
	{pipeline.StageContent, "Stage 2: Content"},
	{pipeline.StageProgress, "Stage 3: Progress"},
}

type stageView struct {
	Title      string
	Summary    string
	Path       string
	Score      string
	PathReason string
	Penalties  []string
	Details    string
}

type view struct {
	ID         int64
	Intent     string
	Subject    string
	Hours      string
	Progress   string
	Completed  bool
	AIStatus   model.AIStatus
	Decision   model.Decision
	Confidence string
	Status     model.Status
	AnalyzedAt string
	Error      string
	Stages     []stageView
	Final      *pipeline.FinalLog
}

// Markdown renders the entry and its stored trace as markdown.
func Markdown(e model.Entry) (string, error) {
	v := view{
		ID:         e.ID,
		Intent:     e.Intent.Normalize().Label(),
		Subject:    e.SubjectName(),
		Hours:      num(e.Hours),
		Progress:   num(e.ProgressPercent),
		Completed:  e.IsCompleted,
		AIStatus:   e.AIStatus,
		Decision:   e.AIDecision,
		Confidence: "n/a",
		Status:     e.Status,
	}
	if v.Subject == "" {
		v.Subject = pipeline.NoTopic
	}
	if e.AIConfidence != nil {
		v.Confidence = num(*e.AIConfidence) + "%"
	}
	if e.AIAnalyzedAt != nil {
		v.AnalyzedAt = e.AIAnalyzedAt.UTC().Format(time.RFC3339)
	}

	if len(e.AIChainOfThought) > 0 {
		var failure struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(e.AIChainOfThought, &failure); err != nil {
			return "", fmt.Errorf("decode trace of entry %d: %w", e.ID, err)
		}
		v.Error = failure.Error

		var tr pipeline.Trace
		if err := json.Unmarshal(e.AIChainOfThought, &tr); err != nil {
			return "", fmt.Errorf("decode trace of entry %d: %w", e.ID, err)
		}
		for _, s := range stageTitles {
			l := tr.Stage(s.key)
			if l == nil {
				continue
			}
			sv := stageView{
				Title:      s.title,
				Summary:    l.Summary,
				Path:       l.Path,
				PathReason: l.PathReason,
				Penalties:  l.Penalties,
				Details:    strings.TrimSpace(l.Details),
			}
			if l.Score != nil {
				sv.Score = strconv.Itoa(*l.Score) + "%"
			}
			v.Stages = append(v.Stages, sv)
		}
		v.Final = tr.Final
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("execute report template: %w", err)
	}
	return buf.String(), nil
}

// Render formats markdown for a terminal of the given width.
func Render(md string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("create markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return out, nil
}

var (
	colorApprove = lipgloss.Color("#00D787")
	colorFlag    = lipgloss.Color("#FFAF00")
	colorPending = lipgloss.Color("#5FAFFF")
	colorError   = lipgloss.Color("#FF5F87")

	badgeStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
)

// Badge renders a one-line colored summary of the entry's analysis state.
func Badge(e model.Entry) string {
	label := strings.ToUpper(string(e.AIDecision))
	color := colorPending
	switch {
	case e.AIStatus == model.AIStatusError:
		label, color = "ERROR", colorError
	case e.AIStatus == model.AIStatusTimeout:
		label, color = "TIMEOUT", colorFlag
	case e.AIDecision == model.DecisionApprove:
		color = colorApprove
	case e.AIDecision == model.DecisionFlag:
		color = colorFlag
	}
	if label == "" {
		label = "PENDING"
	}
	return badgeStyle.Foreground(color).Render(label) +
		lipgloss.NewStyle().Faint(true).Render(fmt.Sprintf("entry %d, status %s", e.ID, e.Status))
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
