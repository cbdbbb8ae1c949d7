package email

import (
	"sort"
	"strings"
)

// RenderTemplate substitutes {{token}} placeholders in tmpl with the matching
// values. Substitution is a single pass, so values containing braces are not
// expanded again. Unknown tokens are left in place.
func RenderTemplate(tmpl string, values map[string]string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{{"+k+"}}", values[k])
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
