package chatsync

import "sync"

// WorkoutResolver answers "which workout does this message reference" in
// constant time. The lookup map is rebuilt wholesale whenever the workout
// list changes rather than patched incrementally.
type WorkoutResolver struct {
	mu   sync.RWMutex
	byID map[string]WorkoutSummary
}

// NewWorkoutResolver creates an empty resolver.
func NewWorkoutResolver() *WorkoutResolver {
	return &WorkoutResolver{byID: make(map[string]WorkoutSummary)}
}

// Rebuild replaces the lookup map from the given workout list.
func (r *WorkoutResolver) Rebuild(workouts []WorkoutSummary) {
	byID := make(map[string]WorkoutSummary, len(workouts))
	for _, w := range workouts {
		byID[w.ID] = w
	}

	r.mu.Lock()
	r.byID = byID
	r.mu.Unlock()
}

// Resolve returns the workout a message references, if any. Messages
// without a workout reference, and references to unknown workouts, resolve
// to nothing.
func (r *WorkoutResolver) Resolve(msg Message) (WorkoutSummary, bool) {
	if msg.WorkoutID == "" {
		return WorkoutSummary{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.byID[msg.WorkoutID]
	return w, ok
}

// Len reports how many workouts are indexed.
func (r *WorkoutResolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
