package chatsync

import "sync"

// Cell tracks one rendered message by its stable ID. Cells survive list
// reordering and insertion because identity is the message ID, never a
// position.
type Cell struct {
	registry *CellRegistry
	id       string
}

// ID returns the message ID this cell is bound to.
func (c *Cell) ID() string {
	return c.id
}

// Message returns the current content for this cell.
func (c *Cell) Message() (Message, bool) {
	return c.registry.store.Get(c.id)
}

// OnUpdate registers a listener fired only when this cell's message
// changes. The returned function unregisters it.
func (c *Cell) OnUpdate(fn func(Message)) func() {
	return c.registry.addCellListener(c.id, fn)
}

// CellRegistry keeps one Cell per message ID, allocated lazily and released
// when the message leaves the store. Updates fan out per cell so an edit to
// one message never touches the other cells' listeners.
type CellRegistry struct {
	store *MessageStore

	mu        sync.Mutex
	cells     map[string]*Cell
	snapshot  map[string]Message
	listeners map[string]map[int]func(Message)
	nextID    int
	stop      func()
}

// NewCellRegistry binds a registry to a store and starts tracking it.
func NewCellRegistry(store *MessageStore) *CellRegistry {
	r := &CellRegistry{
		store:     store,
		cells:     make(map[string]*Cell),
		snapshot:  make(map[string]Message),
		listeners: make(map[string]map[int]func(Message)),
	}
	for _, msg := range store.All() {
		r.snapshot[msg.ID] = msg
	}
	r.stop = store.OnChange(r.sync)
	return r
}

// Close detaches the registry from the store.
func (r *CellRegistry) Close() {
	if r.stop != nil {
		r.stop()
		r.stop = nil
	}
}

// Cell returns the cell bound to the given message ID, allocating it on
// first use.
func (r *CellRegistry) Cell(id string) *Cell {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cell, ok := r.cells[id]; ok {
		return cell
	}
	cell := &Cell{registry: r, id: id}
	r.cells[id] = cell
	return cell
}

// Len reports how many cells are currently allocated.
func (r *CellRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cells)
}

func (r *CellRegistry) addCellListener(id string, fn func(Message)) func() {
	r.mu.Lock()
	if r.listeners[id] == nil {
		r.listeners[id] = make(map[int]func(Message))
	}
	token := r.nextID
	r.nextID++
	r.listeners[id][token] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		if set, ok := r.listeners[id]; ok {
			delete(set, token)
			if len(set) == 0 {
				delete(r.listeners, id)
			}
		}
		r.mu.Unlock()
	}
}

// sync diffs the store against the last snapshot and fires per-cell
// listeners for changed messages only.
func (r *CellRegistry) sync() {
	current := r.store.All()

	r.mu.Lock()
	seen := make(map[string]struct{}, len(current))
	type firing struct {
		fns []func(Message)
		msg Message
	}
	var firings []firing

	for _, msg := range current {
		seen[msg.ID] = struct{}{}
		prev, ok := r.snapshot[msg.ID]
		if ok && prev == msg {
			continue
		}
		r.snapshot[msg.ID] = msg
		if set, ok := r.listeners[msg.ID]; ok {
			fns := make([]func(Message), 0, len(set))
			for _, fn := range set {
				fns = append(fns, fn)
			}
			firings = append(firings, firing{fns: fns, msg: msg})
		}
	}

	for id := range r.snapshot {
		if _, ok := seen[id]; !ok {
			delete(r.snapshot, id)
			delete(r.cells, id)
			delete(r.listeners, id)
		}
	}
	r.mu.Unlock()

	for _, f := range firings {
		for _, fn := range f.fns {
			fn(f.msg)
		}
	}
}
