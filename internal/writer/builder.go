// internal/writer/builder.go
package writer

import (
	"errors"

	cfg "github.com/tamzrod/fsbridge/internal/config"
	wmodbus "github.com/tamzrod/fsbridge/internal/writer/modbus"
)

// BuildPlan converts the mirror config into a Writer Plan.
// Assumes config has already passed validation.
func BuildPlan(m cfg.MirrorConfig) (Plan, error) {
	plan := Plan{Name: m.Name}

	for _, t := range m.Targets {
		if t.ID == "" {
			return Plan{}, errors.New("writer: target.id required")
		}
		ep, err := cfg.ParseEndpoint(t.Endpoint)
		if err != nil {
			return Plan{}, err
		}
		plan.Targets = append(plan.Targets, TargetBlock{
			TargetID: t.ID,
			Endpoint: EndpointKey(ep),
			UnitID:   t.UnitID,
			BaseSlot: t.Slot,
		})
	}

	return plan, nil
}

// EndpointKey is the canonical client map key for an endpoint.
func EndpointKey(ep cfg.Endpoint) string {
	return ep.Scheme + "://" + ep.Address
}

// BuildEndpointClients creates one client per unique endpoint.
// The first target naming an endpoint supplies its timeout and serial settings.
func BuildEndpointClients(m cfg.MirrorConfig) (map[string]*wmodbus.EndpointClient, func() error, error) {
	clients := make(map[string]*wmodbus.EndpointClient)
	var closers []func() error

	closeAll := func() error {
		var last error
		for _, fn := range closers {
			if err := fn(); err != nil {
				last = err
			}
		}
		return last
	}

	for _, t := range m.Targets {
		ep, err := cfg.ParseEndpoint(t.Endpoint)
		if err != nil {
			_ = closeAll()
			return nil, nil, err
		}
		key := EndpointKey(ep)
		if _, ok := clients[key]; ok {
			continue
		}

		c, err := wmodbus.NewEndpointClient(wmodbus.FromConfig(ep, t.TimeoutMs, t.Serial))
		if err != nil {
			_ = closeAll()
			return nil, nil, err
		}
		clients[key] = c
		closers = append(closers, c.Close)
	}

	return clients, closeAll, nil
}
