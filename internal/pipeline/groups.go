package pipeline

import (
	"fmt"
	"strings"

	"github.com/KyungWonPark/Connectivity/internal/brain"
	"github.com/KyungWonPark/Connectivity/internal/group"
)

// ResolveGroups turns group specs into grayordinate groups. A spec is
// "left", "right", "midline" or a comma separated list of structures.
// No specs means left and right hemispheres.
func ResolveGroups(bm *brain.BrainMap, specs []string) ([]group.Group, error) {
	if len(specs) == 0 {
		return group.DefaultGroups(bm), nil
	}

	groups := make([]group.Group, 0, len(specs))
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)

		if h, err := brain.ParseHemisphere(spec); err == nil {
			groups = append(groups, group.Group{Name: h.String(), Indices: bm.HemisphereIndices(h)})
			continue
		}

		wanted := make(map[brain.Structure]bool)
		for _, name := range strings.Split(spec, ",") {
			st, err := brain.ParseStructure(strings.TrimSpace(name))
			if err != nil {
				return nil, fmt.Errorf("group %q: %w", spec, err)
			}
			wanted[st] = true
		}
		groups = append(groups, group.Group{
			Name:    spec,
			Indices: bm.Indices(func(st brain.Structure) bool { return wanted[st] }),
		})
	}

	return groups, nil
}
