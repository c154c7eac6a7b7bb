package storage

// PageReadGuard is a scoped shared latch on a frame's page body. The
// latch is released by calling Release; there is no implicit unlock
// tied to garbage collection, so callers must defer it.
type PageReadGuard struct {
	fr *frame
}

// Page returns the latched page. Valid only until Release is called.
func (g *PageReadGuard) Page() *Page { return g.fr.page }

// Release drops the shared latch.
func (g *PageReadGuard) Release() { g.fr.body.RUnlock() }

// PageWriteGuard is a scoped exclusive latch on a frame's page body.
type PageWriteGuard struct {
	fr *frame
}

// Page returns the latched page for mutation. Valid only until Release.
func (g *PageWriteGuard) Page() *Page { return g.fr.page }

// Release drops the exclusive latch.
func (g *PageWriteGuard) Release() { g.fr.body.Unlock() }
