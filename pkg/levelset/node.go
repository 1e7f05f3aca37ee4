package levelset

// Handle addresses a node inside a worker's arena. Moving a node between
// lists moves its handle; the node itself never changes slot.
type Handle struct {
	Pool, Slot int32
}

// NilHandle terminates lists and marks untracked pixels.
var NilHandle = Handle{Pool: -1, Slot: -1}

// IsNil reports whether h refers to no node.
func (h Handle) IsNil() bool { return h.Pool < 0 }

// listID names the list that currently holds a node. Layer lists use their
// layer index.
type listID int32

const (
	listNone       listID = -1 // on a free list
	listStatusUp   listID = -2
	listStatusDown listID = -3
	listCascade    listID = -4
)

// Node is a pooled band record: the flat pixel offset it tracks and a
// scratch value. Between CalculateChange and ApplyUpdate the value holds
// the proposed rate of change; during ApplyUpdate it holds the new value.
type Node struct {
	Index int
	Value float64

	prev, next Handle
	list       listID
}
