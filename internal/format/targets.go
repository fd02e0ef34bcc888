package format

// Target is one permissible conversion target for a source format, carrying
// the admission warning (if any) for client display.
type Target struct {
	Format  string `json:"format"`
	Warning string `json:"warning,omitempty"`
}

// ValidTargets enumerates every registered format the source may convert to,
// excluding the source itself. The result is exactly the set of targets for
// which Evaluate reports allowed; bulk enumeration and point validation may
// never drift apart.
func ValidTargets(sourceExt string) []Target {
	source := Normalize(sourceExt)
	if !Known(source) {
		return nil
	}
	var out []Target
	for _, d := range All() {
		if d.Extension == source {
			continue
		}
		decision := Evaluate(source, d.Extension)
		if !decision.Allowed {
			continue
		}
		out = append(out, Target{Format: d.Extension, Warning: decision.Warning})
	}
	return out
}
