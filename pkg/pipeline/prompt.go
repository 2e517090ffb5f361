package pipeline

import (
	"strconv"
	"strings"
	"text/template"

	"github.com/zen-systems/planwright/pkg/config"
)

const truncationMarker = "..."

// ContextPolicy decides how much of an earlier stage's output is embedded
// in a later stage's prompt.
type ContextPolicy struct {
	Mode  string
	Limit int
}

// PolicyFromConfig builds the policy selected in configuration.
func PolicyFromConfig(c config.ContextConfig) ContextPolicy {
	return ContextPolicy{Mode: c.Mode, Limit: c.Limit}
}

// Apply returns text as it should appear inside a later prompt. In
// truncated mode the text is cut to Limit runes and marked with "...".
func (p ContextPolicy) Apply(text string) string {
	if p.Mode != config.ContextTruncated || p.Limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= p.Limit {
		return text
	}
	return string(runes[:p.Limit]) + truncationMarker
}

func (p ContextPolicy) String() string {
	if p.Mode == config.ContextTruncated {
		return p.Mode + "(" + strconv.Itoa(p.Limit) + ")"
	}
	if p.Mode == "" {
		return config.ContextFull
	}
	return p.Mode
}

// promptData is what stage templates can see.
type promptData struct {
	Topic  string
	Stages map[string]string
}

func renderTemplate(name, src string, data promptData) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(src)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}
