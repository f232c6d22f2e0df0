package workforce

import "strings"

// Vocabulary is the set of certificate names a site can require.
type Vocabulary struct {
	General  []string
	Asbestos []string
	// AsbestosProjectTypes are project types that also require the
	// asbestos certificate set. Compared case-insensitively.
	AsbestosProjectTypes []string
}

// DefaultVocabulary is the required-type list used when none is configured.
var DefaultVocabulary = Vocabulary{
	General: []string{
		"CSCS",
		"Medical",
		"Manual Handling",
		"Working at Height",
		"First Aid",
	},
	Asbestos: []string{
		"Asbestos Awareness",
		"Licensed Asbestos Removal",
		"Face Fit Test",
		"Asbestos Medical",
	},
	AsbestosProjectTypes: []string{"Asbestos Removal", "Asbestos Survey"},
}

// IsAsbestosProject reports whether projectType pulls in the asbestos set.
func (v Vocabulary) IsAsbestosProject(projectType string) bool {
	for _, pt := range v.AsbestosProjectTypes {
		if strings.EqualFold(strings.TrimSpace(pt), strings.TrimSpace(projectType)) {
			return true
		}
	}
	return false
}

// RequiredTypesFor returns the certificate names a site requires, general
// set first.
func RequiredTypesFor(site Site, v Vocabulary) []string {
	out := append([]string(nil), v.General...)
	if v.IsAsbestosProject(site.ProjectType) {
		out = append(out, v.Asbestos...)
	}
	return out
}
