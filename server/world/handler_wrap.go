package world

import "sync/atomic"

type handlerWrapper func(*World, Handler) Handler

var worldHandlerWrap atomic.Value

func init() {
	worldHandlerWrap.Store(handlerWrapper(identityWrap))
}

func identityWrap(_ *World, h Handler) Handler { return h }

// SetHandlerWrap installs a wrapper applied to handlers assigned through World.Handle and to the default
// handler of worlds created afterwards. The wrapper is invoked after nil handlers are normalised to
// NopHandler. Passing nil removes the wrapper.
func SetHandlerWrap(w func(*World, Handler) Handler) {
	if w == nil {
		worldHandlerWrap.Store(handlerWrapper(identityWrap))
		return
	}
	worldHandlerWrap.Store(handlerWrapper(w))
}

func wrapWorldHandler(w *World, h Handler) Handler {
	return worldHandlerWrap.Load().(handlerWrapper)(w, h)
}
