package prompt

import (
	"strings"
	"testing"
)

func TestLoadPromptSet(t *testing.T) {
	t.Parallel()

	set := LoadPromptSet()
	if missing := set.Missing(); len(missing) != 0 {
		t.Fatalf("missing prompts: %v", missing)
	}
	if !strings.Contains(set.Respond, "NO_MATCH") {
		t.Fatal("respond prompt must define the no-match token")
	}
	for name, p := range map[string]string{"classify": set.Classify, "extract": set.Extract} {
		if strings.Contains(strings.ReplaceAll(p, "{{", ""), "{\"") {
			t.Fatalf("%s prompt has an unescaped brace", name)
		}
	}
}
