package store

// Op identifies one of the mapping operations a proxy can request.
//
// The set of operations is closed: requests are routed through an explicit
// dispatch table, never by reflection over a table implementation.
type Op string

// The full operation set.
const (
	OpContains   Op = "contains"
	OpGet        Op = "get"
	OpGetDefault Op = "get-default"
	OpHasKey     Op = "has-key"
	OpSet        Op = "set"
	OpSetDefault Op = "set-default"
	OpDelete     Op = "delete"
	OpUpdate     Op = "update"
	OpSize       Op = "size"
	OpKeys       Op = "keys"
	OpValues     Op = "values"
	OpItems      Op = "items"
	OpIterKeys   Op = "iter-keys"
	OpIterValues Op = "iter-values"
	OpIterItems  Op = "iter-items"
	OpPop        Op = "pop"
	OpPopItem    Op = "pop-item"
)

// Streaming returns true if the operation yields a stream of values rather
// than a single result.
func (o Op) Streaming() bool {
	switch o {
	case OpIterKeys, OpIterValues, OpIterItems:
		return true
	default:
		return false
	}
}

// Valid returns true if o is a member of the operation set.
func (o Op) Valid() bool {
	switch o {
	case OpContains, OpGet, OpGetDefault, OpHasKey,
		OpSet, OpSetDefault, OpDelete, OpUpdate,
		OpSize, OpKeys, OpValues, OpItems,
		OpIterKeys, OpIterValues, OpIterItems,
		OpPop, OpPopItem:
		return true
	default:
		return false
	}
}

func (o Op) String() string {
	return string(o)
}
