package topology

// Status describes the health of a topology entity. Statuses are
// derived bottom-up: node statuses feed group statuses, group
// statuses feed couple statuses.
type Status string

const (
	// StatusInit marks an entity that has not assembled enough state
	// to be judged yet
	StatusInit Status = "INIT"

	// StatusOK marks a healthy node or a healthy writable couple
	StatusOK Status = "OK"

	// StatusCoupled marks a group wired into a couple whose metadata
	// agrees on every peer
	StatusCoupled Status = "COUPLED"

	// StatusBad marks an entity with broken invariants; usually the
	// operator has to run repair_groups
	StatusBad Status = "BAD"

	// StatusRO marks a read-only node and any group containing one
	StatusRO Status = "RO"

	// StatusFrozen marks a healthy couple administratively closed for
	// new writes
	StatusFrozen Status = "FROZEN"

	// StatusStalled marks a node whose statistics stopped arriving
	StatusStalled Status = "STALLED"
)
