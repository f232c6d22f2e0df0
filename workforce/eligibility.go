package workforce

import "fmt"

// =============================================================================
// ELIGIBILITY - Advisory incompatibility warnings
// =============================================================================

type WarningKind string

const (
	WarnClient    WarningKind = "client"
	WarnOperative WarningKind = "operative"
)

// Warning is one violated restriction. BlockerID is the operative that
// holds the restriction record; BlockedID is the client or operative it
// names.
type Warning struct {
	Kind      WarningKind
	BlockerID OperativeID
	BlockedID string
	Note      string
	Message   string
}

func (w Warning) String() string { return w.Message }

// Messages returns the human-readable form of each warning.
func Messages(ws []Warning) []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Message)
	}
	return out
}

// CheckEligibility lists the restrictions assigning candidate would break.
// Client checks come first, then operative pairs in selection order
// (candidate's record, then the other's). An empty result means eligible.
// Unknown ids in selected are skipped.
func CheckEligibility(candidate Operative, clientID ClientID, selected []OperativeID, byID map[OperativeID]Operative) []Warning {
	var warnings []Warning

	if clientID != "" {
		for _, r := range candidate.Restrictions {
			if !r.targets(TargetClient, string(clientID)) {
				continue
			}
			warnings = append(warnings, Warning{
				Kind:      WarnClient,
				BlockerID: candidate.ID,
				BlockedID: string(clientID),
				Note:      r.Note,
				Message:   withNote(fmt.Sprintf("%s is unable to work with this client", candidate.DisplayName()), r.Note),
			})
		}
	}

	for _, otherID := range selected {
		if otherID == candidate.ID {
			continue
		}
		other, ok := byID[otherID]
		if !ok {
			continue
		}
		warnings = append(warnings, pairWarnings(candidate, other)...)
		warnings = append(warnings, pairWarnings(other, candidate)...)
	}

	return warnings
}

// pairWarnings reports restrictions recorded on blocker that name blocked.
func pairWarnings(blocker, blocked Operative) []Warning {
	var out []Warning
	for _, r := range blocker.Restrictions {
		if !r.targets(TargetOperative, string(blocked.ID)) {
			continue
		}
		out = append(out, Warning{
			Kind:      WarnOperative,
			BlockerID: blocker.ID,
			BlockedID: string(blocked.ID),
			Note:      r.Note,
			Message:   withNote(fmt.Sprintf("%s is unable to work with %s", blocker.DisplayName(), blocked.DisplayName()), r.Note),
		})
	}
	return out
}

func withNote(msg, note string) string {
	if note == "" {
		return msg
	}
	return msg + " (Note: " + note + ")"
}

// UpsertRestriction replaces the restriction with r.ID or appends r.
func UpsertRestriction(op Operative, r Restriction) Operative {
	out := append([]Restriction(nil), op.Restrictions...)
	for i, existing := range out {
		if r.ID != "" && existing.ID == r.ID {
			out[i] = r
			op.Restrictions = out
			return op
		}
	}
	op.Restrictions = append(out, r)
	return op
}
