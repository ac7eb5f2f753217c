package adapter

import (
	"context"
	"sort"
	"strings"

	"github.com/docker/docker/api/types/container"

	"github.com/theredcat/heimdall/internal/domain"
)

// aliasTarget is the owner of a DNS alias and the network advertising it
type aliasTarget struct {
	network *domain.Network
	host    *domain.Host
}

// InferLinks links containers to the containers whose DNS aliases they
// reference. Matching is a best-effort substring heuristic: it can report
// links that do not exist and miss templated references.
func (d *DockerSource) InferLinks(ctx context.Context, hosts HostsFuture) ([]*domain.Link, error) {
	list, err := hosts(ctx)
	if err != nil {
		return nil, err
	}

	sorted := make([]*domain.Host, 0, len(list))
	for _, h := range list {
		if _, ok := h.Data.(container.InspectResponse); ok {
			sorted = append(sorted, h)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	index := d.aliasIndex(sorted)
	aliases := make([]string, 0, len(index))
	for alias := range index {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)

	links := make(map[string]*domain.Link)
	add := func(source *domain.Host, target aliasTarget, reason, alias string) {
		if source.ID == target.host.ID {
			return
		}
		link := &domain.Link{Source: source, Target: target.host}
		if target.network != nil {
			link.Via = []*domain.Network{target.network}
		}
		links[link.Key()] = link
		d.logger.Debug().
			Str("from", source.ID).
			Str("to", target.host.ID).
			Str("alias", alias).
			Str("reason", reason).
			Msg("Inferred link")
	}

	for _, h := range sorted {
		c := h.Data.(container.InspectResponse)
		if c.Config == nil {
			continue
		}

		if d.cfg.LinkByEnv {
			for _, entry := range c.Config.Env {
				key, value, ok := strings.Cut(entry, "=")
				if !ok || key == "" {
					continue
				}
				for _, alias := range aliases {
					if strings.Contains(value, alias) {
						add(h, index[alias], "env", alias)
					}
				}
			}
		}

		if d.cfg.LinkLabelPrefix != "" {
			for _, key := range sortedKeys(c.Config.Labels) {
				if !strings.HasPrefix(key, d.cfg.LinkLabelPrefix) {
					continue
				}
				for _, alias := range strings.Split(c.Config.Labels[key], ",") {
					alias = strings.TrimSpace(alias)
					if target, ok := index[alias]; ok {
						add(h, target, "label", alias)
					}
				}
			}
		}
	}

	out := make([]*domain.Link, 0, len(links))
	for _, l := range links {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

// aliasIndex maps every alias advertised on a container endpoint to its
// owner. When two containers advertise the same alias the later one in
// id order wins.
func (d *DockerSource) aliasIndex(hosts []*domain.Host) map[string]aliasTarget {
	index := make(map[string]aliasTarget)
	for _, h := range hosts {
		c := h.Data.(container.InspectResponse)
		for _, name := range endpointNames(c) {
			ep := c.NetworkSettings.Networks[name]

			var via *domain.Network
			if ep.NetworkID != "" {
				n, err := d.networks.Intern(ep.NetworkID, name, nil)
				if err == nil {
					via = n
				}
			}

			for _, list := range [][]string{ep.Aliases, ep.DNSNames} {
				for _, alias := range list {
					if alias == "" {
						continue
					}
					index[alias] = aliasTarget{network: via, host: h}
				}
			}
		}
	}
	return index
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
