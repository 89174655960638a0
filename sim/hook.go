package sim

import "sync"

// HookPos names a point where a Hookable calls its hooks.
type HookPos struct {
	Name string
}

func (p *HookPos) String() string {
	return p.Name
}

// HookPosBeforeEvent is invoked by engines right before an event is handled.
var HookPosBeforeEvent = &HookPos{Name: "BeforeEvent"}

// HookPosAfterEvent is invoked by engines right after an event is handled.
var HookPosAfterEvent = &HookPos{Name: "AfterEvent"}

// HookCtx describes the site that invokes a hook. Item is the subject of the
// position, such as the event being handled or the value change of a signal.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   interface{}
}

// A Hook observes a Hookable. Hooks must not block.
type Hook interface {
	Func(ctx HookCtx)
}

// HookFunc adapts a function to the Hook interface.
type HookFunc func(ctx HookCtx)

// Func calls f(ctx).
func (f HookFunc) Func(ctx HookCtx) {
	f(ctx)
}

// Hookable is implemented by everything hooks can attach to.
type Hookable interface {
	AcceptHook(hook Hook)
	NumHooks() int
}

// HookableBase keeps the hooks of a Hookable. The zero value is ready to
// use. Hooks may be attached from within a hook; they see the next
// invocation.
type HookableBase struct {
	lock  sync.RWMutex
	hooks []Hook
}

// NewHookableBase creates an empty HookableBase.
func NewHookableBase() *HookableBase {
	return &HookableBase{}
}

// AcceptHook attaches a hook.
func (h *HookableBase) AcceptHook(hook Hook) {
	h.lock.Lock()
	h.hooks = append(h.hooks, hook)
	h.lock.Unlock()
}

// NumHooks returns the number of attached hooks.
func (h *HookableBase) NumHooks() int {
	h.lock.RLock()
	defer h.lock.RUnlock()

	return len(h.hooks)
}

// InvokeHook calls every attached hook in the order they were attached.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	h.lock.RLock()
	hooks := h.hooks
	h.lock.RUnlock()

	for _, hook := range hooks {
		hook.Func(ctx)
	}
}
