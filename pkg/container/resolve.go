package container

// Resolve resolves the most recent registration of T.
func Resolve[T any](r Resolver) (T, error) {
	var zero T
	v, err := r.Resolve(TypeOf[T]())
	if err != nil || v == nil {
		return zero, err
	}
	return v.(T), nil
}

// ResolveAll resolves every registration of T in registration order.
func ResolveAll[T any](r Resolver) ([]T, error) {
	values, err := r.ResolveAll(TypeOf[T]())
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(values))
	for _, v := range values {
		if v == nil {
			var zero T
			out = append(out, zero)
			continue
		}
		out = append(out, v.(T))
	}
	return out, nil
}

// ResolveOptional resolves T when it is registered. The boolean is false,
// with a nil error, when T has no registration.
func ResolveOptional[T any](r Resolver) (T, bool, error) {
	var zero T
	if !r.IsRegistered(TypeOf[T]()) {
		return zero, false, nil
	}
	v, err := Resolve[T](r)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}
