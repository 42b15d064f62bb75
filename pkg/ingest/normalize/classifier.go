package normalize

import (
	"regexp"
	"strings"

	"claimforge/compliance/pkg/edits"
)

// Classifier infers the provider type a table applies to from its source
// name.
type Classifier interface {
	Classify(kind edits.Kind, sourceName string) edits.ProviderType
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(kind edits.Kind, sourceName string) edits.ProviderType

// Classify calls f.
func (f ClassifierFunc) Classify(kind edits.Kind, sourceName string) edits.ProviderType {
	return f(kind, sourceName)
}

var (
	practitionerPattern = regexp.MustCompile(`practitioner|physician|pra\b`)
	hospitalPattern     = regexp.MustCompile(`hospital|\bhosp|outpatient|oph\b|facility`)
	dmePattern          = regexp.MustCompile(`\bdme|supplier`)
)

// FilenameClassifier matches CMS file naming vocabulary, e.g.
// "ccipra-v321r0-f1.txt" or "MCR_MUE_OutpatientHospitalServices.xlsx".
// Names without a recognizable vocabulary are unscoped.
type FilenameClassifier struct{}

// Classify implements Classifier.
func (FilenameClassifier) Classify(kind edits.Kind, sourceName string) edits.ProviderType {
	if kind == edits.KindAOC {
		return edits.ProviderUnscoped
	}
	s := strings.ToLower(splitCamel(sourceName))
	s = strings.NewReplacer("_", " ", ".", " ", "%20", " ").Replace(s)

	switch {
	case dmePattern.MatchString(s):
		return edits.ProviderDME
	case hospitalPattern.MatchString(s):
		return edits.ProviderHospital
	case practitionerPattern.MatchString(s):
		return edits.ProviderPractitioner
	}
	return edits.ProviderUnscoped
}

// splitCamel inserts spaces at lower-to-upper transitions so
// "DMESupplierServices" yields separate words.
func splitCamel(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if i > 0 && isUpper(s[i]) && isLower(s[i-1]) {
			sb.WriteByte(' ')
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

func isUpper(b byte) bool { return b >= 'A' && b <= 'Z' }

func isLower(b byte) bool { return b >= 'a' && b <= 'z' }
