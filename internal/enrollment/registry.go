package enrollment

import "sync"

// Registry keeps one Controller per console operator, so each operator has at
// most one open session and operators never see each other's wizard.
//
// An entry lives while a request holds it or its session is open. Once the
// last holder releases a controller without a session the entry is dropped.
type Registry struct {
	mu          sync.Mutex
	controllers map[string]*entry
	newFn       func() *Controller
}

type entry struct {
	ctrl *Controller
	refs int
}

func NewRegistry(newFn func() *Controller) *Registry {
	return &Registry{
		controllers: make(map[string]*entry),
		newFn:       newFn,
	}
}

// Acquire returns the operator's controller, creating it on first use. The
// caller must call release when done with it.
func (r *Registry) Acquire(operatorID string) (*Controller, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.controllers[operatorID]
	if !ok {
		e = &entry{ctrl: r.newFn()}
		r.controllers[operatorID] = e
	}
	e.refs++

	var once sync.Once
	return e.ctrl, func() {
		once.Do(func() { r.release(operatorID, e) })
	}
}

func (r *Registry) release(operatorID string, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.refs--
	if e.refs > 0 || e.ctrl.HasSession() {
		return
	}
	if r.controllers[operatorID] == e {
		delete(r.controllers, operatorID)
	}
}

// Len reports how many operators currently have a controller.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.controllers)
}

// CloseAll closes every open session. Used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	controllers := make([]*Controller, 0, len(r.controllers))
	for id, e := range r.controllers {
		controllers = append(controllers, e.ctrl)
		if e.refs == 0 {
			delete(r.controllers, id)
		}
	}
	r.mu.Unlock()

	for _, c := range controllers {
		c.Close()
	}
}
