package risk

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/moodmate/moodmate-backend/internal/models"
)

const evaluationTemplate = `<risk_evaluation>
<text>%s</text>

Analyze this text for emotional or psychological risk. Respond using structured XML format:

<harm>[Yes or No]</harm>
<confidence>[Numeric probability between 0.0 (no risk) and 1.0 (high risk)]</confidence>
<comment>[Brief reason why the risk was assessed]</comment>

Your confidence score should directly reflect the probability of risk based on language, tone, and context.
</risk_evaluation>`

var (
	harmTag       = regexp.MustCompile(`(?s)<harm>(.*?)</harm>`)
	confidenceTag = regexp.MustCompile(`(?s)<confidence>(.*?)</confidence>`)
	commentTag    = regexp.MustCompile(`(?s)<comment>(.*?)</comment>`)
)

func buildEvaluationPrompt(text string) string {
	return fmt.Sprintf(evaluationTemplate, text)
}

// evaluation holds the three tagged fields of a model reply
type evaluation struct {
	label       string
	confidence  string
	explanation string
}

// parseEvaluation extracts each tag independently, substituting sentinels for missing ones
func parseEvaluation(reply string) evaluation {
	return evaluation{
		label:       extractTag(harmTag, reply, models.LabelUnknown),
		confidence:  extractTag(confidenceTag, reply, models.ConfidenceUnknown),
		explanation: extractTag(commentTag, reply, models.ExplanationNotProvided),
	}
}

func extractTag(re *regexp.Regexp, reply, fallback string) string {
	m := re.FindStringSubmatch(reply)
	if m == nil {
		return fallback
	}
	return strings.TrimSpace(m[1])
}
