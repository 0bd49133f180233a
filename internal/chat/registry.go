package chat

import (
	"sort"
	"sync"
)

// Tenant states reported by the registry.
const (
	StateStarting        = "starting"
	StateConnected       = "connected"
	StateAwaitingPairing = "awaiting_pairing"
	StateRestarting      = "restarting"
	StateFailed          = "failed"
)

// StatusReporter is anything that can report a transport Status. *Agent
// satisfies it.
type StatusReporter interface {
	Status() Status
}

// TenantStatus is one row of a registry snapshot.
type TenantStatus struct {
	Tenant             string `json:"tenant"`
	DisplayName        string `json:"display_name"`
	Connected          bool   `json:"connected"`
	PendingPairingCode bool   `json:"pending_pairing_code"`
	State              string `json:"state"`
	Restarts           int    `json:"restarts"`
	Error              string `json:"error,omitempty"`
}

type registryEntry struct {
	displayName string
	agent       StatusReporter
	restarting  bool
	restarts    int
	err         error
}

// Registry maps tenants to their running agents for status reporting. It is
// owned by the process entry point and handed to whoever reports status.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registryEntry)}
}

func (r *Registry) entry(tenant, displayName string) *registryEntry {
	e, ok := r.entries[tenant]
	if !ok {
		e = &registryEntry{}
		r.entries[tenant] = e
	}
	if displayName != "" {
		e.displayName = displayName
	}
	return e
}

// Register records a as the live agent for tenant, clearing any failure.
func (r *Registry) Register(tenant, displayName string, a StatusReporter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(tenant, displayName)
	e.agent = a
	e.restarting = false
	e.err = nil
}

// MarkRestarting notes that tenant's agent is being recreated.
func (r *Registry) MarkRestarting(tenant string, restarts int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(tenant, "")
	e.agent = nil
	e.restarting = true
	e.restarts = restarts
}

// MarkFailed records that tenant could not start or stopped for good.
func (r *Registry) MarkFailed(tenant, displayName string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(tenant, displayName)
	e.agent = nil
	e.restarting = false
	e.err = err
}

// Unregister removes tenant.
func (r *Registry) Unregister(tenant string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, tenant)
}

// Snapshot returns every tenant's status sorted by tenant name.
func (r *Registry) Snapshot() []TenantStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]TenantStatus, 0, len(r.entries))
	for tenant, e := range r.entries {
		ts := TenantStatus{
			Tenant:      tenant,
			DisplayName: e.displayName,
			Restarts:    e.restarts,
		}
		switch {
		case e.err != nil:
			ts.State = StateFailed
			ts.Error = e.err.Error()
		case e.restarting:
			ts.State = StateRestarting
		case e.agent == nil:
			ts.State = StateStarting
		default:
			st := e.agent.Status()
			ts.Connected = st.Connected
			ts.PendingPairingCode = st.PendingPairingCode
			switch {
			case st.PendingPairingCode:
				ts.State = StateAwaitingPairing
			case st.Connected:
				ts.State = StateConnected
			default:
				ts.State = StateStarting
			}
		}
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tenant < out[j].Tenant })
	return out
}
