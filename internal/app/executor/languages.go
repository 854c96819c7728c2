package executor

import "sort"

// runtimeVersions pins each supported language to the executor runtime it
// is judged on. Submissions in anything else are rejected before any
// outbound call is made.
var runtimeVersions = map[string]string{
	"c":          "10.2.0",
	"cpp":        "10.2.0",
	"csharp":     "6.12.0",
	"go":         "1.16.2",
	"java":       "15.0.2",
	"javascript": "18.15.0",
	"python":     "3.10.0",
	"ruby":       "3.0.1",
	"rust":       "1.68.2",
	"typescript": "5.0.3",
}

// RuntimeVersion resolves a language key to its pinned runtime version.
func RuntimeVersion(language string) (string, bool) {
	v, ok := runtimeVersions[language]
	return v, ok
}

// SupportedLanguages returns the recognized language keys, sorted.
func SupportedLanguages() []string {
	langs := make([]string, 0, len(runtimeVersions))
	for l := range runtimeVersions {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}
