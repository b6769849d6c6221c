package marshal

// Marshaller pairs a per-call Host with the Allocator engine buffers come from.
// It holds no state beyond the two and may be built afresh for every call.
type Marshaller struct {
	host  Host
	alloc Allocator
}

// New creates a Marshaller for one host call.
func New(host Host, alloc Allocator) Marshaller {
	return Marshaller{host: host, alloc: alloc}
}

// Borrow pins every ref, runs fn with their views, and unpins every pinned ref once fn
// returns or panics. A nil ref, or a pin that exposes no storage, yields an empty view and
// is not unpinned. Views must not escape fn.
func (m Marshaller) Borrow(refs []Ref, fn func(views []View)) {
	views := make([]View, len(refs))
	defer func() {
		for i := len(refs) - 1; i >= 0; i-- {
			if !views[i].IsZero() {
				m.host.Unpin(refs[i], views[i])
			}
		}
	}()
	for i, ref := range refs {
		if ref == nil {
			continue
		}
		views[i] = m.host.Pin(ref)
	}
	fn(views)
}

// Borrow1 is Borrow for a single ref.
func (m Marshaller) Borrow1(ref Ref, fn func(View)) {
	m.Borrow([]Ref{ref}, func(views []View) { fn(views[0]) })
}

// Own copies buf into a new host object and frees buf. A nil buf maps to the nil Ref and
// is never freed.
func (m Marshaller) Own(buf Buffer) Ref {
	if buf.IsNil() {
		return nil
	}
	defer m.alloc.Free(buf)
	return m.host.NewString(buf)
}
