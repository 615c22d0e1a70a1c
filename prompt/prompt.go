// Package prompt renders attendee records into the matchmaker instruction text.
package prompt

import (
	"fmt"
	"strings"

	"workshop-matchmaker/roster"
)

// CorpusLabel heads the formatted attendee block.
const CorpusLabel = "WORKSHOP ATTENDEES:"

// Corpus renders records into a single text block, one fixed-format entry per
// record in input order. The output is byte-identical for identical input, so
// prompts built from it are reproducible.
func Corpus(records []roster.AttendeeRecord) string {
	var sb strings.Builder
	sb.WriteString(CorpusLabel)
	sb.WriteString("\n\n")
	for _, r := range records {
		fmt.Fprintf(&sb, "- %s (%s)\n", r.Name, r.Email)
		fmt.Fprintf(&sb, "  Interests: %s\n", r.Interests)
		fmt.Fprintf(&sb, "  Looking to connect with: %s\n\n", r.LookingToConnectWith)
	}
	return sb.String()
}

// Instruction wraps a formatted corpus in the matchmaker system instruction.
func Instruction(corpus string) string {
	return fmt.Sprintf(`You are a workshop matchmaker. Group students into teams
based on their shared interests.

RULES:
- Create MULTIPLE groups
- Each group should have MAXIMUM 3 people
- Group people with similar interests together
- Every attendee should be in at least one group

Here is the data of all workshop attendees:

%s
Create meaningful groups and explain why each group should connect.`, corpus)
}
