package workflow

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"hdvapourize/internal/job"
)

// stageLabel renders a stage ID for humans, e.g. "analyze" -> "Analyze".
func stageLabel(id job.StageID) string {
	return StageLabel(string(id))
}

// StageLabel title-cases a stage or state name, replacing underscores.
func StageLabel(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
	if name == "" {
		return ""
	}
	// A Caser carries state between calls, so each call gets its own.
	return cases.Title(language.English).String(name)
}
