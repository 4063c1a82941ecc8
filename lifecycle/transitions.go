package lifecycle

import "wastemap-api/models"

// Transition defines a valid status edge. Who may trigger an edge depends on
// their relationship to the pickup (owner, assigned collector, admin), so
// authorization lives in the service operations, not in this table.
type Transition struct {
	From models.PickupStatus
	To   models.PickupStatus
}

// validTransitions is the authoritative state machine definition
var validTransitions = []Transition{
	{From: models.StatusPending, To: models.StatusAssigned},
	{From: models.StatusAssigned, To: models.StatusInProgress},
	{From: models.StatusInProgress, To: models.StatusCompleted},
	// Cancellation is allowed from any non-terminal state
	{From: models.StatusPending, To: models.StatusCancelled},
	{From: models.StatusAssigned, To: models.StatusCancelled},
	{From: models.StatusInProgress, To: models.StatusCancelled},
}

// Build a lookup map for O(1) validation
var transitionMap = func() map[Transition]bool {
	m := make(map[Transition]bool)
	for _, t := range validTransitions {
		m[t] = true
	}
	return m
}()

// CanTransition reports whether the edge from → to exists in the state machine.
func CanTransition(from, to models.PickupStatus) bool {
	return transitionMap[Transition{From: from, To: to}]
}

// IsTerminal reports whether a status has no outgoing edges.
func IsTerminal(status models.PickupStatus) bool {
	return status == models.StatusCompleted || status == models.StatusCancelled
}

// ValidTransitionsFrom returns all valid next states from a given state
func ValidTransitionsFrom(status models.PickupStatus) []models.PickupStatus {
	var nexts []models.PickupStatus
	seen := map[models.PickupStatus]bool{}
	for _, t := range validTransitions {
		if t.From == status && !seen[t.To] {
			nexts = append(nexts, t.To)
			seen[t.To] = true
		}
	}
	return nexts
}

// GetAllTransitions returns the full state machine for documentation
func GetAllTransitions() []Transition {
	return validTransitions
}

func describeValidFrom(status models.PickupStatus) string {
	nexts := ValidTransitionsFrom(status)
	if len(nexts) == 0 {
		return "none (terminal state)"
	}
	result := ""
	for i, s := range nexts {
		if i > 0 {
			result += ", "
		}
		result += string(s)
	}
	return result
}
