package transform

// Built-in operation ids. This set is the public vocabulary shown by the CLI
// and API.
const (
	OpTrim    = "trim"
	OpBW      = "bw"
	OpSpeed   = "speed"
	OpSlow    = "slow"
	OpReverse = "reverse"
	OpBlur    = "blur"
	OpRotate  = "rotate"
)

// HighlightSeconds is the length kept by the trim operation.
const HighlightSeconds = "20"

func ffmpegArgs(input, output string, filter ...string) []string {
	args := make([]string, 0, 10+len(filter))
	args = append(args, "-hide_banner", "-nostdin", "-y", "-loglevel", "error", "-i", input)
	args = append(args, filter...)
	return append(args, output)
}

func withFilter(filter ...string) ArgBuilder {
	return func(input, output string) []string {
		return ffmpegArgs(input, output, filter...)
	}
}

// Builtins returns the built-in operations in their canonical order.
func Builtins() []Operation {
	return []Operation{
		NewOperation(OpTrim, "Keep the first 20 seconds as a highlight clip", "",
			withFilter("-t", HighlightSeconds, "-c:v", "libx264", "-c:a", "aac")),
		NewOperation(OpBW, "Convert to black and white", "",
			withFilter("-vf", "hue=s=0", "-c:a", "copy")),
		NewOperation(OpSpeed, "Play at double speed", "",
			withFilter("-vf", "setpts=0.5*PTS", "-af", "atempo=2.0")),
		NewOperation(OpSlow, "Play at half speed (slow motion)", "",
			withFilter("-vf", "setpts=2.0*PTS", "-af", "atempo=0.5")),
		NewOperation(OpReverse, "Play backwards", "",
			withFilter("-vf", "reverse", "-af", "areverse")),
		NewOperation(OpBlur, "Soften the picture with a box blur", "",
			withFilter("-vf", "boxblur=10:1", "-c:a", "copy")),
		NewOperation(OpRotate, "Rotate 90 degrees clockwise", "",
			withFilter("-vf", "transpose=1", "-c:a", "copy")),
	}
}

// Default returns a registry holding the built-in operations.
func Default() *Registry {
	r, err := NewRegistry(Builtins()...)
	if err != nil {
		panic("transform: invalid built-in registry: " + err.Error())
	}
	return r
}
