package partnumber

import (
	"regexp"
	"strings"
)

// NotFoundMessage is shown when no part number could be read from the sheet
const NotFoundMessage = "not found"

// candidatePattern matches boundary-delimited runs of 5 to 15 uppercase
// letters and digits. \b is the ASCII word boundary, so underscores also
// count as part of a word.
var candidatePattern = regexp.MustCompile(`\b[A-Z0-9]{5,15}\b`)

// Outcome is the result of extracting a part number from recognized text
type Outcome struct {
	Token string `json:"token,omitempty"`
	Found bool   `json:"found"`
}

// Message returns the token, or NotFoundMessage when nothing matched
func (o Outcome) Message() string {
	if !o.Found {
		return NotFoundMessage
	}
	return o.Token
}

// Extract returns the first candidate in reading order that contains a digit.
// All-letter runs are printed labels (PARTNO, LOTE) and are skipped.
func Extract(text string) Outcome {
	for _, candidate := range candidatePattern.FindAllString(text, -1) {
		if strings.ContainsAny(candidate, "0123456789") {
			return Outcome{Token: candidate, Found: true}
		}
	}
	return Outcome{}
}
