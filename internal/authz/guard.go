package authz

// GuardOptions configures Guard. RequiredRole and RequiredPermission form
// the Requirement. When Fallback is set it handles every denial; otherwise
// the denial is routed to Login, Insufficient or Mismatch by reason. Any
// handler left nil produces the zero value of T.
type GuardOptions[T any] struct {
	RequiredRole       Role
	RequiredPermission Permission

	Fallback     func(Decision) T
	Login        func() T
	Insufficient func(Decision) T
	Mismatch     func(Decision) T
}

// Guard evaluates the requirement in opts for u and returns content() when
// access is allowed. content is never invoked on denial.
func Guard[T any](t *Table, u *User, content func() T, opts GuardOptions[T]) T {
	d := t.Evaluate(u, Requirement{Role: opts.RequiredRole, Permission: opts.RequiredPermission})
	if d.Allowed {
		return content()
	}
	if opts.Fallback != nil {
		return opts.Fallback(d)
	}

	var zero T
	switch d.Reason {
	case ReasonUnauthenticated:
		if opts.Login != nil {
			return opts.Login()
		}
	case ReasonInsufficientPermission:
		if opts.Insufficient != nil {
			return opts.Insufficient(d)
		}
	case ReasonRoleMismatch:
		if opts.Mismatch != nil {
			return opts.Mismatch(d)
		}
	}
	return zero
}
