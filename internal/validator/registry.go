package validator

// Registry maps rule keys to Validator implementations and keeps registration order,
// so records are always checked in the same sequence.
type Registry[T any] struct {
	order      []string
	validators map[string]Validator[T]
}

// NewRegistry creates an empty Registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{validators: make(map[string]Validator[T])}
}

// Register adds a validator, replacing any earlier one with the same key in place.
func (r *Registry[T]) Register(v Validator[T]) {
	if _, ok := r.validators[v.RuleKey()]; !ok {
		r.order = append(r.order, v.RuleKey())
	}
	r.validators[v.RuleKey()] = v
}

// Get returns the validator for a given rule key, or nil if not found.
func (r *Registry[T]) Get(key string) Validator[T] {
	return r.validators[key]
}

// All returns all registered validators in registration order.
func (r *Registry[T]) All() []Validator[T] {
	out := make([]Validator[T], 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.validators[k])
	}
	return out
}
