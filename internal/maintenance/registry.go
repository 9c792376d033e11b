package maintenance

// Registry holds the fixed-order task graph (spec §4.9 lists 13 named
// tasks "in order"). Unlike the teacher's internal/work.Registry, which
// topologically sorts WorkItems by priority and per-subject dependency,
// this graph's order is part of the specification itself, so Registry
// is deliberately just an ordered slice with name lookup — no sorting,
// no dependency resolution.
type Registry struct {
	tasks []Task
}

// NewRegistry builds a registry from tasks, preserving call order.
func NewRegistry(tasks ...Task) *Registry {
	return &Registry{tasks: tasks}
}

// Tasks returns the graph in execution order.
func (r *Registry) Tasks() []Task {
	return r.tasks
}

// Names returns every task name in execution order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.tasks))
	for i, t := range r.tasks {
		names[i] = t.Name
	}
	return names
}

// ByName returns the task with the given name, or false if absent.
func (r *Registry) ByName(name string) (Task, bool) {
	for _, t := range r.tasks {
		if t.Name == name {
			return t, true
		}
	}
	return Task{}, false
}
