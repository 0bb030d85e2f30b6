package framepump

import "github.com/gogpu/gpucontext"

// EventPump processes pending platform events. The pump calls it only while
// Suspended, so that a minimized window is noticed when it is restored.
type EventPump interface {
	PollEvents()
}

// EventPumpFunc adapts a function to the EventPump interface.
type EventPumpFunc func()

// PollEvents calls f.
func (f EventPumpFunc) PollEvents() { f() }

// NopEventPump does nothing. Size changes are then only seen by polling the
// surface.
var NopEventPump EventPump = EventPumpFunc(func() {})

// AttachEvents subscribes the pump to resize notifications of src. A resize
// marks the chain invalid so the next Step rebuilds it before acquiring.
func (p *Pump) AttachEvents(src gpucontext.EventSource) {
	src.OnResize(func(width, height int) {
		p.NotifyResize(width, height)
	})
}

// NotifyResize marks the chain invalid. It is safe to call from any
// goroutine.
func (p *Pump) NotifyResize(width, height int) {
	p.resized.Store(true)
	Logger().Debug("framepump: resize notified", "width", width, "height", height)
}
