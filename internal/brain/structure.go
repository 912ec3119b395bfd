package brain

import (
	"fmt"
	"strings"
)

// Structure is a CIFTI brain structure name
type Structure string

const structurePrefix = "CIFTI_STRUCTURE_"

// Grayordinate structures found in the standard 91k grayordinate space
const (
	CortexLeft               Structure = structurePrefix + "CORTEX_LEFT"
	CortexRight              Structure = structurePrefix + "CORTEX_RIGHT"
	AccumbensLeft            Structure = structurePrefix + "ACCUMBENS_LEFT"
	AccumbensRight           Structure = structurePrefix + "ACCUMBENS_RIGHT"
	AmygdalaLeft             Structure = structurePrefix + "AMYGDALA_LEFT"
	AmygdalaRight            Structure = structurePrefix + "AMYGDALA_RIGHT"
	BrainStem                Structure = structurePrefix + "BRAIN_STEM"
	CaudateLeft              Structure = structurePrefix + "CAUDATE_LEFT"
	CaudateRight             Structure = structurePrefix + "CAUDATE_RIGHT"
	CerebellumLeft           Structure = structurePrefix + "CEREBELLUM_LEFT"
	CerebellumRight          Structure = structurePrefix + "CEREBELLUM_RIGHT"
	DiencephalonVentralLeft  Structure = structurePrefix + "DIENCEPHALON_VENTRAL_LEFT"
	DiencephalonVentralRight Structure = structurePrefix + "DIENCEPHALON_VENTRAL_RIGHT"
	HippocampusLeft          Structure = structurePrefix + "HIPPOCAMPUS_LEFT"
	HippocampusRight         Structure = structurePrefix + "HIPPOCAMPUS_RIGHT"
	PallidumLeft             Structure = structurePrefix + "PALLIDUM_LEFT"
	PallidumRight            Structure = structurePrefix + "PALLIDUM_RIGHT"
	PutamenLeft              Structure = structurePrefix + "PUTAMEN_LEFT"
	PutamenRight             Structure = structurePrefix + "PUTAMEN_RIGHT"
	ThalamusLeft             Structure = structurePrefix + "THALAMUS_LEFT"
	ThalamusRight            Structure = structurePrefix + "THALAMUS_RIGHT"
)

var knownStructures = map[Structure]bool{
	CortexLeft: true, CortexRight: true,
	AccumbensLeft: true, AccumbensRight: true,
	AmygdalaLeft: true, AmygdalaRight: true,
	BrainStem:   true,
	CaudateLeft: true, CaudateRight: true,
	CerebellumLeft: true, CerebellumRight: true,
	DiencephalonVentralLeft: true, DiencephalonVentralRight: true,
	HippocampusLeft: true, HippocampusRight: true,
	PallidumLeft: true, PallidumRight: true,
	PutamenLeft: true, PutamenRight: true,
	ThalamusLeft: true, ThalamusRight: true,
}

// Hemisphere tells which side of the brain a structure belongs to
type Hemisphere int

// Hemispheres
const (
	Midline Hemisphere = iota
	Left
	Right
)

func (h Hemisphere) String() string {
	switch h {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "midline"
	}
}

// ParseHemisphere parses "left", "right" or "midline"
func ParseHemisphere(s string) (Hemisphere, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left", "l":
		return Left, nil
	case "right", "r":
		return Right, nil
	case "midline", "none", "":
		return Midline, nil
	}

	return Midline, fmt.Errorf("unknown hemisphere: %q", s)
}

// ParseStructure accepts both full CIFTI names and the short form without
// the CIFTI_STRUCTURE_ prefix, case-insensitively.
func ParseStructure(s string) (Structure, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if !strings.HasPrefix(name, structurePrefix) {
		name = structurePrefix + name
	}

	st := Structure(name)
	if !knownStructures[st] {
		return "", fmt.Errorf("unknown brain structure: %q", s)
	}

	return st, nil
}

// IsCortex reports whether the structure is a cortical surface
func (s Structure) IsCortex() bool {
	return s == CortexLeft || s == CortexRight
}

// IsSubcortical reports whether the structure is a subcortical volume structure
func (s Structure) IsSubcortical() bool {
	return knownStructures[s] && !s.IsCortex()
}

// Hemisphere returns the side of the structure; the brain stem is Midline.
func (s Structure) Hemisphere() Hemisphere {
	switch {
	case strings.HasSuffix(string(s), "_LEFT"):
		return Left
	case strings.HasSuffix(string(s), "_RIGHT"):
		return Right
	default:
		return Midline
	}
}

// Short returns the name without the CIFTI_STRUCTURE_ prefix
func (s Structure) Short() string {
	return strings.TrimPrefix(string(s), structurePrefix)
}
