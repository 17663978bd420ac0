package assistant

import (
	"strings"

	"github.com/xaenox/voicememo/internal/models"
)

// timeKeywords is checked in order; the first phrase found in the
// utterance wins.
var timeKeywords = []struct {
	phrase string
	kind   models.TimeKind
}{
	{"tomorrow", models.TimeTomorrow},
	{"today", models.TimeToday},
	{"tonight", models.TimeToday},
	{"next week", models.TimeNextWeek},
	{"this week", models.TimeThisWeek},
}

// InferTimeReference reads a time reference from plain keywords in the
// utterance. It is applied only when classification returned none.
func InferTimeReference(utterance string) (models.TimeReference, bool) {
	text := strings.ToLower(utterance)
	for _, kw := range timeKeywords {
		if strings.Contains(text, kw.phrase) {
			ref, err := models.NewTimeReference(kw.kind)
			if err != nil {
				return models.TimeReference{}, false
			}
			return ref, true
		}
	}
	return models.TimeReference{}, false
}
