// Package pump holds the primitives shared by every pipeline component:
// the per-event Context, the synchronous Bus, structured errors and the
// ring-buffered logging handler each Pipeline keeps for its own history.
package pump

// Context carries side-channel data alongside an Event as it is handed
// from Source through the processor chain to Sink. It is copied on entry
// to a Pipeline so that two concurrent events never share mutable state,
// mirroring the copy-on-entry contract of the original asyncio pump.
type Context map[string]any

// Copy returns a shallow copy of ctx. nil contexts copy to an empty,
// non-nil Context so callers can always write into the result.
func (ctx Context) Copy() Context {
	out := make(Context, len(ctx))
	for k, v := range ctx {
		out[k] = v
	}
	return out
}

// Get returns the value stored under key and whether it was present.
func (ctx Context) Get(key string) (any, bool) {
	v, ok := ctx[key]
	return v, ok
}

// Set stores value under key, allocating the map if necessary, and
// returns the (possibly new) Context so it can be chained.
func (ctx Context) Set(key string, value any) Context {
	if ctx == nil {
		ctx = make(Context)
	}
	ctx[key] = value
	return ctx
}
