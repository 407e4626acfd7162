package wizard

import "github.com/dunamismax/passportflow/internal/transform"

// Every edit writes straight through to the artifact, so each adjustment
// invalidates a processed photo immediately. Callers that want to batch
// slider ticks use an EditDraft instead.

func (s *Session) ZoomIn() (transform.State, error) { return s.edit(transform.ZoomIn) }
func (s *Session) ZoomOut() (transform.State, error) { return s.edit(transform.ZoomOut) }
func (s *Session) RotateLeft() (transform.State, error) { return s.edit(transform.RotateLeft) }
func (s *Session) RotateRight() (transform.State, error) { return s.edit(transform.RotateRight) }

func (s *Session) SetZoom(zoom float64) (transform.State, error) {
	return s.edit(func(st transform.State) transform.State { return transform.SetZoom(st, zoom) })
}

func (s *Session) SetBrightness(v int) (transform.State, error) {
	return s.edit(func(st transform.State) transform.State { return transform.SetBrightness(st, v) })
}

func (s *Session) SetContrast(v int) (transform.State, error) {
	return s.edit(func(st transform.State) transform.State { return transform.SetContrast(st, v) })
}

func (s *Session) ResetTransform() (transform.State, error) {
	return s.edit(func(transform.State) transform.State { return transform.Reset() })
}

func (s *Session) edit(fn func(transform.State) transform.State) (transform.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.store.Current()
	if !current.HasPreview() {
		return current.Transform, ErrNoPhoto
	}
	s.store.UpdateTransform(fn(current.Transform))
	s.settle()
	return s.store.Current().Transform, nil
}

// EditDraft buffers adjustments locally until Commit. Nothing is shared
// with the session before that, so an abandoned draft changes nothing.
type EditDraft struct {
	session *Session
	state   transform.State
}

func (s *Session) BeginEdit() *EditDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &EditDraft{session: s, state: s.store.Current().Transform}
}

func (d *EditDraft) State() transform.State {
	return d.state
}

func (d *EditDraft) ZoomIn() { d.state = transform.ZoomIn(d.state) }
func (d *EditDraft) ZoomOut() { d.state = transform.ZoomOut(d.state) }
func (d *EditDraft) RotateLeft() { d.state = transform.RotateLeft(d.state) }
func (d *EditDraft) RotateRight() { d.state = transform.RotateRight(d.state) }
func (d *EditDraft) SetZoom(z float64) { d.state = transform.SetZoom(d.state, z) }
func (d *EditDraft) SetBrightness(v int) { d.state = transform.SetBrightness(d.state, v) }
func (d *EditDraft) SetContrast(v int) { d.state = transform.SetContrast(d.state, v) }
func (d *EditDraft) Reset() { d.state = transform.Reset() }

// Commit writes the drafted transform to the session in one step.
func (d *EditDraft) Commit() (transform.State, error) {
	state := d.state
	return d.session.edit(func(transform.State) transform.State { return state })
}
