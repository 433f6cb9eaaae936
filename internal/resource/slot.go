package resource

import "fmt"

// Slot owns at most one resource and applies the update-vs-rebuild
// discipline on behalf of a node:
//
//   - empty or invalid: build fresh
//   - Update reports updateOnly: keep the resource
//   - otherwise: build a replacement, then release the old one
//
// An Update error invalidates the resource so the next Ensure rebuilds
// instead of retrying the in-place path.
type Slot[P any, R Updater[P]] struct {
	build func(P, *RenderContext) (R, error)
	res   R
	ok    bool

	builds  int
	updates int
}

func NewSlot[P any, R Updater[P]](build func(P, *RenderContext) (R, error)) *Slot[P, R] {
	return &Slot[P, R]{build: build}
}

// Ensure returns a resource reflecting p.
func (s *Slot[P, R]) Ensure(p P, rc *RenderContext) (R, error) {
	if s.ok && s.res.Valid() {
		updateOnly, err := s.res.Update(p, rc)
		if err != nil {
			s.res.Invalidate()
			return s.res, fmt.Errorf("update resource %d: %w", s.res.ID(), err)
		}
		if updateOnly {
			s.updates++
			return s.res, nil
		}
	}

	r, err := s.build(p, rc)
	if err != nil {
		var zero R
		if s.ok {
			s.res.Invalidate()
		}
		return zero, err
	}
	s.Release()
	s.res, s.ok = r, true
	s.builds++
	return r, nil
}

// Get returns the current resource, if any.
func (s *Slot[P, R]) Get() (R, bool) {
	return s.res, s.ok
}

// Release frees the held resource and empties the slot.
func (s *Slot[P, R]) Release() {
	if !s.ok {
		return
	}
	s.res.Release()
	var zero R
	s.res, s.ok = zero, false
}

// Stats returns how many times the slot built and updated in place.
func (s *Slot[P, R]) Stats() (builds, updates int) {
	return s.builds, s.updates
}
