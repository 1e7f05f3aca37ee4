package levelset

// NodeList is a doubly linked list of handles. The links live in the nodes,
// so every operation needs the NodeStore that owns them.
type NodeList struct {
	id         listID
	head, tail Handle
	size       int
}

func newNodeList(id listID) NodeList {
	return NodeList{id: id, head: NilHandle, tail: NilHandle}
}

// Len returns the number of nodes in the list.
func (l *NodeList) Len() int { return l.size }

// Empty reports whether the list holds no node.
func (l *NodeList) Empty() bool { return l.size == 0 }

// Front returns the first handle, or NilHandle.
func (l *NodeList) Front() Handle { return l.head }

func (l *NodeList) pushBack(s *NodeStore, h Handle) {
	n := s.Node(h)
	n.prev = l.tail
	n.next = NilHandle
	n.list = l.id
	if l.tail.IsNil() {
		l.head = h
	} else {
		s.Node(l.tail).next = h
	}
	l.tail = h
	l.size++
}

func (l *NodeList) remove(s *NodeStore, h Handle) {
	n := s.Node(h)
	if n.prev.IsNil() {
		l.head = n.next
	} else {
		s.Node(n.prev).next = n.next
	}
	if n.next.IsNil() {
		l.tail = n.prev
	} else {
		s.Node(n.next).prev = n.prev
	}
	n.prev, n.next = NilHandle, NilHandle
	l.size--
}

func (l *NodeList) popFront(s *NodeStore) Handle {
	h := l.head
	if !h.IsNil() {
		l.remove(s, h)
	}
	return h
}

// splice moves every node of other to the tail of l in constant time.
// Both lists must carry the same id.
func (l *NodeList) splice(s *NodeStore, other *NodeList) {
	if other.size == 0 {
		return
	}
	if l.size == 0 {
		l.head = other.head
	} else {
		s.Node(l.tail).next = other.head
		s.Node(other.head).prev = l.tail
	}
	l.tail = other.tail
	l.size += other.size
	other.head, other.tail, other.size = NilHandle, NilHandle, 0
}

// cut detaches the first count nodes of l and returns them as a new list
// with the same id.
func (l *NodeList) cut(s *NodeStore, count int) NodeList {
	out := newNodeList(l.id)
	if count <= 0 || l.size == 0 {
		return out
	}
	if count >= l.size {
		out.head, out.tail, out.size = l.head, l.tail, l.size
		l.head, l.tail, l.size = NilHandle, NilHandle, 0
		return out
	}
	last := l.head
	for i := 1; i < count; i++ {
		last = s.Next(last)
	}
	rest := s.Next(last)
	s.Node(last).next = NilHandle
	s.Node(rest).prev = NilHandle
	out.head, out.tail, out.size = l.head, last, count
	l.head = rest
	l.size -= count
	return out
}

// Handles returns the list's handles in order.
func (l *NodeList) Handles(s *NodeStore) []Handle {
	out := make([]Handle, 0, l.size)
	for h := l.head; !h.IsNil(); h = s.Next(h) {
		out = append(out, h)
	}
	return out
}
