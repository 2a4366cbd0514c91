// Package term holds retained terminal instances keyed by workspace and
// terminal id, so switching tabs or workspaces never destroys scrollback or
// size state. Instances are reference counted and only freed explicitly or
// by the eviction sweep once unreferenced past the TTL.
package term

import (
	"io"
	"sync"
	"time"

	"codedeck/internal/logging"
)

const (
	// DefaultScrollbackDepth is the retained line count per instance
	DefaultScrollbackDepth = 5000

	// DefaultRows and DefaultCols are the initial emulator size
	DefaultRows uint16 = 24
	DefaultCols uint16 = 80

	// DefaultEvictAfter is how long an instance may stay unreferenced
	// before the janitor destroys it
	DefaultEvictAfter = 30 * time.Minute

	// DefaultJanitorInterval is how often the eviction sweep runs
	DefaultJanitorInterval = 5 * time.Minute
)

// InstanceKey builds the registry key for a workspace-scoped terminal
func InstanceKey(workspaceID, terminalID string) string {
	return workspaceID + "::" + terminalID
}

// Instance is one retained terminal: its scrollback, current size, and the
// currently attached live view (if any). At most one instance exists per key.
type Instance struct {
	key        string
	buffer     *Scrollback
	rows, cols uint16

	mu           sync.Mutex
	sink         io.Writer
	refs         int
	lastReleased time.Time
}

// Key returns the registry key of this instance
func (i *Instance) Key() string { return i.key }

// Buffer returns the retained scrollback
func (i *Instance) Buffer() *Scrollback { return i.buffer }

// Size returns the current emulator size
func (i *Instance) Size() (rows, cols uint16) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.rows, i.cols
}

// SetSize records the emulator size
func (i *Instance) SetSize(rows, cols uint16) {
	i.mu.Lock()
	i.rows = rows
	i.cols = cols
	i.mu.Unlock()
}

// Feed appends output to the scrollback and forwards it to the attached
// sink. Sink write failures are logged and swallowed; a detached or
// momentarily unwritable view is expected during tab transitions.
func (i *Instance) Feed(p []byte) {
	i.buffer.Append(p)

	i.mu.Lock()
	sink := i.sink
	i.mu.Unlock()

	if sink == nil {
		return
	}
	if _, err := sink.Write(p); err != nil {
		logging.Debug("Terminal sink write failed", "key", i.key, "error", err)
	}
}

// Refs returns the current reference count
func (i *Instance) Refs() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.refs
}

// Registry caches terminal instances across mount/unmount cycles. It is an
// explicit process-scoped object injected into the app, created at startup
// and closed at shutdown.
type Registry struct {
	instances map[string]*Instance
	mu        sync.Mutex

	scrollbackDepth int
	evictAfter      time.Duration

	stopOnce sync.Once
	stop     chan struct{}
}

// RegistryOptions tunes registry behavior; zero values take defaults
type RegistryOptions struct {
	ScrollbackDepth int
	EvictAfter      time.Duration
}

// NewRegistry creates an empty registry
func NewRegistry(opts RegistryOptions) *Registry {
	if opts.ScrollbackDepth <= 0 {
		opts.ScrollbackDepth = DefaultScrollbackDepth
	}
	if opts.EvictAfter <= 0 {
		opts.EvictAfter = DefaultEvictAfter
	}
	return &Registry{
		instances:       make(map[string]*Instance),
		scrollbackDepth: opts.ScrollbackDepth,
		evictAfter:      opts.EvictAfter,
		stop:            make(chan struct{}),
	}
}

// GetOrCreate returns the instance for key, constructing it with default
// size and scrollback depth on first use. The reference count is
// incremented either way; callers pair this with Release.
func (r *Registry) GetOrCreate(key string) *Instance {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, ok := r.instances[key]
	if !ok {
		inst = &Instance{
			key:    key,
			buffer: NewScrollback(r.scrollbackDepth),
			rows:   DefaultRows,
			cols:   DefaultCols,
		}
		r.instances[key] = inst
		logging.Debug("Terminal instance created", "key", key)
	}

	inst.mu.Lock()
	inst.refs++
	inst.mu.Unlock()
	return inst
}

// Get returns the instance for key without creating or referencing it
func (r *Registry) Get(key string) *Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.instances[key]
}

// Attach points the instance's live view at sink without resetting any
// retained state. Attaching to a missing key logs and no-ops.
func (r *Registry) Attach(key string, sink io.Writer) bool {
	r.mu.Lock()
	inst, ok := r.instances[key]
	r.mu.Unlock()

	if !ok {
		logging.Warn("Attach on unknown terminal instance", "key", key)
		return false
	}

	inst.mu.Lock()
	inst.sink = sink
	inst.mu.Unlock()
	return true
}

// Detach removes the live view from the instance, if present
func (r *Registry) Detach(key string) {
	r.mu.Lock()
	inst, ok := r.instances[key]
	r.mu.Unlock()
	if !ok {
		return
	}
	inst.mu.Lock()
	inst.sink = nil
	inst.mu.Unlock()
}

// Release decrements the reference count. The instance is not destroyed;
// it stays warm for remounts until the eviction sweep claims it.
func (r *Registry) Release(key string) {
	r.mu.Lock()
	inst, ok := r.instances[key]
	r.mu.Unlock()
	if !ok {
		return
	}

	inst.mu.Lock()
	if inst.refs > 0 {
		inst.refs--
	}
	if inst.refs == 0 {
		inst.lastReleased = time.Now()
	}
	inst.mu.Unlock()
}

// Destroy removes the instance and frees its resources
func (r *Registry) Destroy(key string) {
	r.mu.Lock()
	inst, ok := r.instances[key]
	if ok {
		delete(r.instances, key)
	}
	r.mu.Unlock()

	if ok {
		inst.mu.Lock()
		inst.sink = nil
		inst.mu.Unlock()
		inst.buffer.Clear()
		logging.Debug("Terminal instance destroyed", "key", key)
	}
}

// Len returns the number of live instances
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.instances)
}

// StartJanitor runs the eviction sweep until Close is called
func (r *Registry) StartJanitor(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.sweep(time.Now())
			case <-r.stop:
				return
			}
		}
	}()
}

// sweep destroys instances unreferenced for longer than the eviction TTL
func (r *Registry) sweep(now time.Time) {
	r.mu.Lock()
	var expired []string
	for key, inst := range r.instances {
		inst.mu.Lock()
		idle := inst.refs == 0 && !inst.lastReleased.IsZero() &&
			now.Sub(inst.lastReleased) > r.evictAfter
		inst.mu.Unlock()
		if idle {
			expired = append(expired, key)
		}
	}
	r.mu.Unlock()

	for _, key := range expired {
		logging.Info("Evicting idle terminal instance", "key", key)
		r.Destroy(key)
	}
}

// Close stops the janitor and destroys all instances
func (r *Registry) Close() {
	r.stopOnce.Do(func() { close(r.stop) })

	r.mu.Lock()
	keys := make([]string, 0, len(r.instances))
	for key := range r.instances {
		keys = append(keys, key)
	}
	r.mu.Unlock()

	for _, key := range keys {
		r.Destroy(key)
	}
}
