package simulate

import (
	"context"
	"fmt"
)

// resolve maps a user identifier (id, "<db>:<ext>" shorthand or name) to a
// node id. Identifiers that resolve to nothing are returned unchanged so the
// caller can report them.
func (s *Simulator) resolve(ctx context.Context, query string) (string, error) {
	if query == "" {
		return "", nil
	}
	id, ok, err := s.store.ResolveID(ctx, query)
	if err != nil {
		return "", fmt.Errorf("resolving %q: %w", query, err)
	}
	if !ok {
		return query, nil
	}
	return id, nil
}

// resolveKeys rewrites the keys of m through resolve. When two keys resolve
// to the same id, the one sorting last wins.
func resolveKeys[V any](ctx context.Context, s *Simulator, m map[string]V) (map[string]V, error) {
	if m == nil {
		return nil, nil
	}
	out := make(map[string]V, len(m))
	for _, k := range sortedKeys(m) {
		id, err := s.resolve(ctx, k)
		if err != nil {
			return nil, err
		}
		out[id] = m[k]
	}
	return out, nil
}

// resolveConfig returns a copy of cfg with every node reference resolved:
// pathway, reactions, objective and the keys of the per-id maps.
func (s *Simulator) resolveConfig(ctx context.Context, cfg Config) (Config, error) {
	out := cfg.clone()
	var err error
	if out.PathwayID, err = s.resolve(ctx, cfg.PathwayID); err != nil {
		return cfg, err
	}
	if out.ObjectiveReaction, err = s.resolve(ctx, cfg.ObjectiveReaction); err != nil {
		return cfg, err
	}
	for i, id := range out.ReactionIDs {
		if out.ReactionIDs[i], err = s.resolve(ctx, id); err != nil {
			return cfg, err
		}
	}
	if out.InitialConcentrations, err = resolveKeys(ctx, s, cfg.InitialConcentrations); err != nil {
		return cfg, err
	}
	if out.FluxBounds, err = resolveKeys(ctx, s, cfg.FluxBounds); err != nil {
		return cfg, err
	}
	if out.VmaxOverrides, err = resolveKeys(ctx, s, cfg.VmaxOverrides); err != nil {
		return cfg, err
	}
	if out.VmaxFactors, err = resolveKeys(ctx, s, cfg.VmaxFactors); err != nil {
		return cfg, err
	}
	return out, nil
}

// resolveScenario returns a copy of sc with its enzyme and compound
// references resolved.
func (s *Simulator) resolveScenario(ctx context.Context, sc Scenario) (Scenario, error) {
	out := Scenario{Name: sc.Name}
	for _, enz := range sc.EnzymeKnockouts {
		id, err := s.resolve(ctx, enz)
		if err != nil {
			return sc, err
		}
		out.EnzymeKnockouts = append(out.EnzymeKnockouts, id)
	}
	var err error
	if out.EnzymeFactors, err = resolveKeys(ctx, s, sc.EnzymeFactors); err != nil {
		return sc, err
	}
	if out.InitialConcOverrides, err = resolveKeys(ctx, s, sc.InitialConcOverrides); err != nil {
		return sc, err
	}
	return out, nil
}
