package format

// Blocked-reason codes are stable identifiers surfaced to API clients at
// admission time; they never appear inside a job's error field because a
// blocked conversion never becomes a job.
const (
	ReasonUnsupportedFormat = "unsupported-format"
	ReasonCategoryMismatch  = "category-mismatch"
	ReasonTierUpgrade       = "tier-upgrade"
	ReasonQualityLoss       = "quality-loss"
	ReasonNotImplemented    = "not-implemented"
	ReasonSecurityRisk      = "security-risk"
)

// Warning codes mark conversions that are permitted but irreversible or
// otherwise information-losing.
const (
	WarnRasterizationLoss    = "rasterization-loss"
	WarnUpsamplingNoGain     = "upsampling-no-quality-gain"
	WarnRemuxNoGain          = "remux-no-quality-gain"
	WarnStructureFlattened   = "structure-flattened-irreversible"
	WarnLossyCompression     = "lossy-compression-applied"
)

// Decision is the outcome of evaluating one source/target pair. Exactly one
// of Warning and Reason may be set: an allowed decision never carries a
// reason and a blocked decision never carries a warning.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Warning string `json:"warning,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func allow() Decision                { return Decision{Allowed: true} }
func allowWarn(code string) Decision { return Decision{Allowed: true, Warning: code} }
func block(reason string) Decision   { return Decision{Allowed: false, Reason: reason} }

// blockedTargets lists formats that are valid registry entries (so they can
// act as sources) but may never be produced, with the reason code. rar has no
// freely licensable encoder; macro-enabled office formats are refused so the
// service can never emit executable content.
var blockedTargets = map[string]string{
	"rar":  ReasonNotImplemented,
	"docm": ReasonSecurityRisk,
	"xlsm": ReasonSecurityRisk,
}

// pairOverrides short-circuits specific source→target pairs before the
// category and tier rules run. The table exists for product-level carve-outs;
// raster-to-vector tracing is the one standing entry.
var pairOverrides = map[[2]string]Decision{}

// Evaluate decides whether converting source to target is permitted. It is a
// pure function: rules apply in order and the first match wins.
func Evaluate(sourceExt, targetExt string) Decision {
	source, ok := Lookup(sourceExt)
	if !ok {
		return block(ReasonUnsupportedFormat)
	}
	target, ok := Lookup(targetExt)
	if !ok {
		return block(ReasonUnsupportedFormat)
	}

	if reason, ok := blockedTargets[target.Extension]; ok {
		return block(reason)
	}
	if d, ok := pairOverrides[[2]string{source.Extension, target.Extension}]; ok {
		return d
	}
	// Vectorizing pixel data would require a tracing engine we do not carry.
	if source.Category == CategoryImage && target.Extension == "svg" {
		return block(ReasonNotImplemented)
	}

	// Wrapping anything into a container is always permitted; this also
	// settles the cross-category case before the mismatch rule below.
	if target.Tier == TierContainer {
		return allow()
	}

	if source.Category != target.Category {
		switch {
		case source.Category == CategoryVideo && target.Category == CategoryAudio:
			// Audio extraction: the audio stream passes through untouched.
			return allow()
		case (source.Category == CategoryDocument || source.Category == CategoryVector) && target.Category == CategoryImage:
			return allowWarn(WarnRasterizationLoss)
		case source.Category == CategoryImage && target.Extension == "pdf":
			// The image is wrapped into a single-page PDF, not transformed.
			return allow()
		default:
			return block(ReasonCategoryMismatch)
		}
	}

	// Moving to a lower tier number claims to restore quality that was never
	// captured. Audio and video re-encodes toward nominally higher tiers are
	// tolerated with a warning because re-containerizing media is common and
	// harmless; no other category gets that carve-out.
	if source.Tier > target.Tier {
		switch source.Category {
		case CategoryAudio:
			return allowWarn(WarnUpsamplingNoGain)
		case CategoryVideo:
			return allowWarn(WarnRemuxNoGain)
		default:
			return block(ReasonTierUpgrade)
		}
	}

	if source.Layered && !target.Layered {
		return allowWarn(WarnStructureFlattened)
	}
	if !source.Lossy && target.Lossy {
		return allowWarn(WarnLossyCompression)
	}
	return allow()
}
