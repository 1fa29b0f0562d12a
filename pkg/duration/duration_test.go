package duration

import "testing"

func TestFormat(t *testing.T) {
	tests := []struct {
		iso    string
		locale string
		want   string
	}{
		{"PT30M", "en", "30 min"},
		{"PT1H", "en", "1 hr"},
		{"PT1H30M", "en", "1 hr, 30 min"},
		{"P1DT2H", "en", "1 day, 2 hr"},
		{"P2D", "en", "2 days"},
		{"P1DT5H30M", "en", "1 day, 5 hr, 30 min"},
		{"PT1H30M", "es", "1 h y 30 min"},
		{"PT1H30M", "de", "1 Std., 30 Min."},
		{"PT1H30M", "fr", "1\u202fh et 30\u00a0min"},
		{"PT1H30M", "en-US", "1 hr, 30 min"},
		{"PT1H30M", "de-AT", "1 Std., 30 Min."},
		{"PT1H30M", "es-419", "1 h y 30 min"},
		{"PT1H30M", "!!not a locale", "1 hr, 30 min"},
		{"PT1H30M", "", "1 hr, 30 min"},
		{"PT1H30M", "ja", "1 hr, 30 min"},
		{"invalid", "en", "invalid"},
		{"P1Y", "en", "P1Y"},
		{"P1M", "en", "P1M"},
		{"PT30S", "en", "PT30S"},
		{"", "en", ""},
		{"PT0M", "en", "PT0M"},
		{"P0DT0H0M", "en", "P0DT0H0M"},
	}

	for _, tt := range tests {
		t.Run(tt.iso+"/"+tt.locale, func(t *testing.T) {
			if got := Format(tt.iso, tt.locale); got != tt.want {
				t.Fatalf("Format(%q, %q) = %q, want %q", tt.iso, tt.locale, got, tt.want)
			}
		})
	}
}

func TestFormatIsIdempotent(t *testing.T) {
	for _, iso := range []string{"PT30M", "P1DT5H30M", "garbage", "P1Y"} {
		for _, locale := range []string{"en", "es", "de", "fr"} {
			once := Format(iso, locale)
			if twice := Format(once, locale); twice != once {
				t.Fatalf("Format not idempotent for %q/%s: %q then %q", iso, locale, once, twice)
			}
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		iso  string
		want Parsed
		ok   bool
	}{
		{"PT30M", Parsed{Minutes: 30}, true},
		{"PT2H", Parsed{Hours: 2}, true},
		{"P3D", Parsed{Days: 3}, true},
		{"PT1H30M", Parsed{Hours: 1, Minutes: 30}, true},
		{"P1DT2H", Parsed{Days: 1, Hours: 2}, true},
		{"P1DT5H30M", Parsed{Days: 1, Hours: 5, Minutes: 30}, true},
		{"PT36H", Parsed{Hours: 36}, true},
		{"invalid", Parsed{}, false},
		{"1H30M", Parsed{}, false},
		{"", Parsed{}, false},
		{"P1Y", Parsed{}, false},
		{"P1M", Parsed{}, false},
		{"P1W", Parsed{}, false},
		{"PT30S", Parsed{}, false},
		{"PT1H30M15S", Parsed{}, false},
		{"pt30m", Parsed{}, false},
		{"PT99999999999999999999M", Parsed{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.iso, func(t *testing.T) {
			got, ok := Parse(tt.iso)
			if ok != tt.ok {
				t.Fatalf("Parse(%q) ok = %v, want %v", tt.iso, ok, tt.ok)
			}
			if got != tt.want {
				t.Fatalf("Parse(%q) = %+v, want %+v", tt.iso, got, tt.want)
			}
		})
	}
}

func TestParseISORoundTripIsStable(t *testing.T) {
	for d := 0; d < 4; d++ {
		for h := 0; h < 30; h += 7 {
			for m := 0; m < 120; m += 13 {
				p := Parsed{Days: d, Hours: h, Minutes: m}
				back, ok := Parse(p.ISO())
				if !ok {
					t.Fatalf("ISO() produced unparseable %q", p.ISO())
				}
				if back != p {
					t.Fatalf("round trip drifted: %+v -> %q -> %+v", p, p.ISO(), back)
				}
				again, _ := Parse(back.ISO())
				if again != back {
					t.Fatalf("second cycle drifted: %+v -> %+v", back, again)
				}
			}
		}
	}
}
