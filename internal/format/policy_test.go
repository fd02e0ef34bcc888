package format

import "testing"

func TestEvaluateScenarios(t *testing.T) {
	cases := []struct {
		name    string
		source  string
		target  string
		allowed bool
		warning string
		reason  string
	}{
		{"image recompression warns about lossy output", "png", "jpg", true, WarnLossyCompression, ""},
		{"lossy to lossy is silent", "jpg", "webp", true, "", ""},
		{"image wrapped into pdf is silent", "png", "pdf", true, "", ""},
		{"delivery image cannot become source material", "jpg", "psd", false, "", ReasonTierUpgrade},
		{"flattening a layered source warns", "psd", "jpg", true, WarnStructureFlattened, ""},
		{"audio extraction from video is silent", "mp4", "mp3", true, "", ""},
		{"archive cannot become a document", "zip", "pdf", false, "", ReasonCategoryMismatch},
		{"document rasterization warns", "pdf", "png", true, WarnRasterizationLoss, ""},
		{"vector rasterization warns", "svg", "png", true, WarnRasterizationLoss, ""},
		{"spreadsheet to pdf is silent", "xlsx", "pdf", true, "", ""},
		{"pdf to spreadsheet is silent", "pdf", "xlsx", true, "", ""},
		{"lossless audio downsample warns", "wav", "mp3", true, WarnLossyCompression, ""},
		{"audio upsampling tolerated with warning", "mp3", "wav", true, WarnUpsamplingNoGain, ""},
		{"video remux to editable tier warns", "mp4", "mkv", true, WarnRemuxNoGain, ""},
		{"raw develop warns about flattening", "cr2", "jpg", true, WarnStructureFlattened, ""},
		{"raster tracing is not implemented", "png", "svg", false, "", ReasonNotImplemented},
		{"rar output is not implemented", "zip", "rar", false, "", ReasonNotImplemented},
		{"macro-enabled output is refused", "docx", "docm", false, "", ReasonSecurityRisk},
		{"macro-enabled spreadsheet output is refused", "xlsx", "xlsm", false, "", ReasonSecurityRisk},
		{"unknown source is rejected", "xyz", "png", false, "", ReasonUnsupportedFormat},
		{"unknown target is rejected", "png", "xyz", false, "", ReasonUnsupportedFormat},
		{"ebook transcode to lossy warns", "epub", "mobi", true, WarnLossyCompression, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Evaluate(tc.source, tc.target)
			if d.Allowed != tc.allowed {
				t.Fatalf("Evaluate(%s, %s).Allowed = %v, want %v", tc.source, tc.target, d.Allowed, tc.allowed)
			}
			if d.Warning != tc.warning {
				t.Fatalf("Evaluate(%s, %s).Warning = %q, want %q", tc.source, tc.target, d.Warning, tc.warning)
			}
			if d.Reason != tc.reason {
				t.Fatalf("Evaluate(%s, %s).Reason = %q, want %q", tc.source, tc.target, d.Reason, tc.reason)
			}
		})
	}
}

// Every decision must be well formed: an allowed decision never carries a
// reason, a blocked decision never carries a warning, and a blocked decision
// always says why.
func TestEvaluateDecisionsWellFormed(t *testing.T) {
	formats := All()
	for _, src := range formats {
		for _, dst := range formats {
			d := Evaluate(src.Extension, dst.Extension)
			if d.Allowed && d.Reason != "" {
				t.Errorf("%s -> %s: allowed decision carries reason %q", src.Extension, dst.Extension, d.Reason)
			}
			if !d.Allowed && d.Warning != "" {
				t.Errorf("%s -> %s: blocked decision carries warning %q", src.Extension, dst.Extension, d.Warning)
			}
			if !d.Allowed && d.Reason == "" {
				t.Errorf("%s -> %s: blocked without a reason", src.Extension, dst.Extension)
			}
		}
	}
}

// Wrapping any source into a container format is always permitted, except for
// the containers that can never be produced at all.
func TestContainerTargetsAlwaysAllowed(t *testing.T) {
	for _, src := range All() {
		for _, dst := range All() {
			if dst.Tier != TierContainer {
				continue
			}
			d := Evaluate(src.Extension, dst.Extension)
			if _, blocked := blockedTargets[dst.Extension]; blocked {
				if d.Allowed {
					t.Errorf("%s -> %s: blocked target format was allowed", src.Extension, dst.Extension)
				}
				continue
			}
			if !d.Allowed {
				t.Errorf("%s -> %s: container target blocked with %q", src.Extension, dst.Extension, d.Reason)
			}
		}
	}
}

// Within a category, moving toward a lower tier number is blocked everywhere
// except the audio and video re-encode carve-outs, which downgrade to a
// warning instead.
func TestTierUpgradeRule(t *testing.T) {
	for _, src := range All() {
		for _, dst := range All() {
			if src.Category != dst.Category || src.Tier <= dst.Tier || dst.Tier == TierContainer {
				continue
			}
			if _, blocked := blockedTargets[dst.Extension]; blocked {
				continue
			}
			d := Evaluate(src.Extension, dst.Extension)
			switch src.Category {
			case CategoryAudio, CategoryVideo:
				if !d.Allowed || d.Warning == "" {
					t.Errorf("%s -> %s: media tier upgrade should warn, got %+v", src.Extension, dst.Extension, d)
				}
			default:
				if d.Allowed || d.Reason != ReasonTierUpgrade {
					t.Errorf("%s -> %s: tier upgrade should block, got %+v", src.Extension, dst.Extension, d)
				}
			}
		}
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	first := Evaluate("psd", "jpg")
	for i := 0; i < 10; i++ {
		if got := Evaluate("psd", "jpg"); got != first {
			t.Fatalf("Evaluate is not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestEvaluateNormalizesInput(t *testing.T) {
	plain := Evaluate("png", "jpg")
	for _, pair := range [][2]string{{".PNG", ".JPG"}, {"Png", "Jpg"}, {" png ", " jpg "}} {
		if got := Evaluate(pair[0], pair[1]); got != plain {
			t.Fatalf("Evaluate(%q, %q) = %+v, want %+v", pair[0], pair[1], got, plain)
		}
	}
}
