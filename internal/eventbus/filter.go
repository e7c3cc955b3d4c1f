package eventbus

// Filter decides whether an Event should be delivered to a subscriber.
type Filter func(Event) bool

// All matches every event.
func All() Filter {
	return func(Event) bool { return true }
}

// ByEventType matches events whose Type is in the given set.
func ByEventType(types ...Type) Filter {
	set := make(map[Type]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return func(e Event) bool {
		_, ok := set[e.Type]
		return ok
	}
}

// ByCategory matches events belonging to the given category.
func ByCategory(c Category) Filter {
	return func(e Event) bool { return e.Category == c }
}

// ByScanID matches events tagged with the given scan id.
func ByScanID(scanID string) Filter {
	return func(e Event) bool { return e.ScanID == scanID }
}

// And composes filters, matching only when every filter matches.
func And(filters ...Filter) Filter {
	return func(e Event) bool {
		for _, f := range filters {
			if !f(e) {
				return false
			}
		}
		return true
	}
}

// Or composes filters, matching when any filter matches.
func Or(filters ...Filter) Filter {
	return func(e Event) bool {
		for _, f := range filters {
			if f(e) {
				return true
			}
		}
		return false
	}
}
