package notifyescalation

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"diagnosis-workers/internal/diagnosis/service"
)

var emailTemplate = template.Must(template.New("escalation").Parse(`<html><body>
<h2>Diagnosis escalation ({{.Urgency}})</h2>
<p><strong>{{.TopCondition}}</strong> at {{.Confidence}} confidence.</p>
{{if .DurationWarning}}<p>{{.DurationWarning}}</p>{{end}}
<p>Suggested specialist: {{.Specialist}}</p>
{{if .MatchedSymptoms}}<p>Matched symptoms: {{range $i, $s := .MatchedSymptoms}}{{if $i}}, {{end}}{{$s}}{{end}}</p>{{end}}
<p>Diagnosis id: {{.DiagnosisID}}</p>
</body></html>`))

// alert is what both channels render from.
type alert struct {
	*service.Recommendation
}

func newAlert(input *Input) alert {
	rec := &service.Recommendation{Urgency: input.Urgency}
	if input.Recommendation != nil {
		copied := *input.Recommendation
		rec = &copied
	}
	if rec.DiagnosisID == "" {
		rec.DiagnosisID = input.DiagnosisID
	}
	if rec.Urgency == "" {
		rec.Urgency = input.Urgency
	}
	return alert{rec}
}

func (a alert) subject() string {
	name := a.TopCondition
	if name == "" {
		name = "unmatched report"
	}
	return fmt.Sprintf("[%s] Diagnosis escalation: %s", strings.ToUpper(string(a.Urgency)), name)
}

func (a alert) text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Urgency: %s\n", a.Urgency)
	if a.TopCondition != "" {
		fmt.Fprintf(&b, "Condition: %s (%s)\n", a.TopCondition, a.Confidence)
	}
	if a.DurationWarning != "" {
		fmt.Fprintf(&b, "Duration: %s\n", a.DurationWarning)
	}
	if a.Specialist != "" {
		fmt.Fprintf(&b, "Specialist: %s\n", a.Specialist)
	}
	if len(a.MatchedSymptoms) > 0 {
		fmt.Fprintf(&b, "Matched symptoms: %s\n", strings.Join(a.MatchedSymptoms, ", "))
	}
	fmt.Fprintf(&b, "Diagnosis id: %s\n", a.DiagnosisID)
	return b.String()
}

func (a alert) html() (string, error) {
	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, a); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (a alert) attributes() map[string]string {
	return map[string]string{
		"urgency":      string(a.Urgency),
		"conditionId":  a.ConditionID,
		"diagnosisId":  a.DiagnosisID,
		"durationFlag": string(a.DurationFlag),
	}
}
