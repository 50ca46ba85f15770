package intent

import "tailor/internal/transform"

// DefaultTriggers returns the built-in keyword table. Order matters only for
// phrases of equal length. Phrases are matched as substrings, so short words
// that hide inside common words ("cut" in "execute") need context.
func DefaultTriggers() []Trigger {
	return []Trigger{
		{"trim", transform.OpTrim},
		{"cut it", transform.OpTrim},
		{"cut down", transform.OpTrim},
		{"shorten", transform.OpTrim},
		{"highlight", transform.OpTrim},
		{"first 20 seconds", transform.OpTrim},

		{"black and white", transform.OpBW},
		{"black & white", transform.OpBW},
		{"b&w", transform.OpBW},
		{"grayscale", transform.OpBW},
		{"greyscale", transform.OpBW},
		{"monochrome", transform.OpBW},
		{"noir", transform.OpBW},

		{"speed up", transform.OpSpeed},
		{"faster", transform.OpSpeed},
		{"2x", transform.OpSpeed},
		{"fast forward", transform.OpSpeed},
		{"timelapse", transform.OpSpeed},

		{"slow motion", transform.OpSlow},
		{"slow down", transform.OpSlow},
		{"slow-mo", transform.OpSlow},
		{"slowmo", transform.OpSlow},
		{"slower", transform.OpSlow},
		{"0.5x", transform.OpSlow},

		{"reverse", transform.OpReverse},
		{"backwards", transform.OpReverse},
		{"rewind", transform.OpReverse},

		{"blur", transform.OpBlur},
		{"soften", transform.OpBlur},
		{"out of focus", transform.OpBlur},

		{"rotate", transform.OpRotate},
		{"turn sideways", transform.OpRotate},
		{"90 degrees", transform.OpRotate},
	}
}

// NewDefault builds a resolver over reg with the built-in table.
func NewDefault(reg *transform.Registry) (*Resolver, error) {
	return NewResolver(reg, DefaultTriggers())
}
