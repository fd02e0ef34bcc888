package format

import "testing"

func TestLookupNormalizes(t *testing.T) {
	for _, ext := range []string{"png", "PNG", ".png", ".PNG", " png"} {
		d, ok := Lookup(ext)
		if !ok {
			t.Fatalf("Lookup(%q) not found", ext)
		}
		if d.Extension != "png" {
			t.Fatalf("Lookup(%q).Extension = %q, want png", ext, d.Extension)
		}
		if d.Category != CategoryImage {
			t.Fatalf("Lookup(%q).Category = %q, want image", ext, d.Category)
		}
	}
	if _, ok := Lookup("nope"); ok {
		t.Fatalf("Lookup(nope) unexpectedly found")
	}
}

func TestAllSortedAndComplete(t *testing.T) {
	all := All()
	if len(all) != len(registry) {
		t.Fatalf("All() returned %d entries, registry has %d", len(all), len(registry))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].Extension >= all[i].Extension {
			t.Fatalf("All() not sorted: %q before %q", all[i-1].Extension, all[i].Extension)
		}
	}
	for _, d := range all {
		if d.Extension == "" || d.Category == "" || d.Label == "" {
			t.Errorf("incomplete descriptor: %+v", d)
		}
	}
}

func TestMIMETypeCoversRegistry(t *testing.T) {
	for _, d := range All() {
		if MIMEType(d.Extension) == "application/octet-stream" {
			t.Errorf("no MIME type registered for %q", d.Extension)
		}
	}
	if got := MIMEType("mystery"); got != "application/octet-stream" {
		t.Fatalf("MIMEType(mystery) = %q, want application/octet-stream", got)
	}
}

func TestValidTargetsMatchesEvaluate(t *testing.T) {
	for _, src := range All() {
		targets := ValidTargets(src.Extension)
		seen := make(map[string]Target, len(targets))
		for _, tgt := range targets {
			if tgt.Format == src.Extension {
				t.Errorf("%s: enumeration includes the source itself", src.Extension)
			}
			seen[tgt.Format] = tgt
		}
		for _, dst := range All() {
			if dst.Extension == src.Extension {
				continue
			}
			d := Evaluate(src.Extension, dst.Extension)
			tgt, listed := seen[dst.Extension]
			if d.Allowed != listed {
				t.Errorf("%s -> %s: Evaluate allowed=%v but enumerated=%v", src.Extension, dst.Extension, d.Allowed, listed)
				continue
			}
			if listed && tgt.Warning != d.Warning {
				t.Errorf("%s -> %s: enumerated warning %q, Evaluate warning %q", src.Extension, dst.Extension, tgt.Warning, d.Warning)
			}
		}
	}
}

func TestValidTargetsUnknownSource(t *testing.T) {
	if got := ValidTargets("mystery"); got != nil {
		t.Fatalf("ValidTargets(mystery) = %v, want nil", got)
	}
}
