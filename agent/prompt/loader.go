package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/classify.txt
	classifyRaw string

	//go:embed template/extract.txt
	extractRaw string

	//go:embed template/sufficiency.txt
	sufficiencyRaw string

	//go:embed template/respond.txt
	respondRaw string
)

// PromptSet holds loaded prompt content. Prompts are FString templates, so
// literal braces are written doubled.
type PromptSet struct {
	Classify    string
	Extract     string
	Sufficiency string
	Respond     string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Classify:    strings.TrimSpace(classifyRaw),
		Extract:     strings.TrimSpace(extractRaw),
		Sufficiency: strings.TrimSpace(sufficiencyRaw),
		Respond:     strings.TrimSpace(respondRaw),
	}
}

// Missing returns the names of empty prompts.
func (p PromptSet) Missing() []string {
	var out []string
	for _, kv := range [][2]string{
		{"classify", p.Classify},
		{"extract", p.Extract},
		{"sufficiency", p.Sufficiency},
		{"respond", p.Respond},
	} {
		if kv[1] == "" {
			out = append(out, kv[0])
		}
	}
	return out
}
