package grouping

import (
	"fmt"

	"workshop-matchmaker/roster"
)

// DefaultMaxGroupSize matches the size rule stated in the instruction text.
const DefaultMaxGroupSize = 3

// ValidateAssignment checks a decoded grouping against the roster it was
// built from: every attendee appears in exactly one group, no group exceeds
// maxGroupSize, and no group names someone absent from the roster. The model
// emits display names, so matching is by Name.
//
// The decoder never calls this; the instruction text asks the model for these
// properties but only a caller can decide whether to reject an answer that
// misses them.
func ValidateAssignment(records []roster.AttendeeRecord, result *GroupingResult, maxGroupSize int) error {
	if maxGroupSize <= 0 {
		maxGroupSize = DefaultMaxGroupSize
	}

	known := make(map[string]bool, len(records))
	for _, r := range records {
		known[r.Name] = true
	}

	placed := make(map[string]int)
	for i, g := range result.Groups {
		if len(g.Group) > maxGroupSize {
			return fmt.Errorf("grouping: group %d has %d members, maximum is %d", i, len(g.Group), maxGroupSize)
		}
		for _, member := range g.Group {
			if !known[member] {
				return fmt.Errorf("grouping: group %d names unknown attendee %q", i, member)
			}
			placed[member]++
		}
	}

	for _, r := range records {
		switch placed[r.Name] {
		case 0:
			return fmt.Errorf("grouping: attendee %q is not in any group", r.Name)
		case 1:
			// exactly once, as required
		default:
			return fmt.Errorf("grouping: attendee %q appears in %d groups", r.Name, placed[r.Name])
		}
	}

	return nil
}
