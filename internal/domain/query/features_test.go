package query

import "testing"

func TestExtractFeatures(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Features
	}{
		{
			name: "temporal question",
			text: "what happened yesterday?",
			want: Features{Length: 3, HasTemporal: true, IsQuestion: true},
		},
		{
			name: "quoted phrase",
			text: `find "exact phrase" here`,
			want: Features{Length: 4, HasExactTerms: true},
		},
		{
			name: "dotted identifier",
			text: "config.yaml loader",
			want: Features{Length: 2, HasExactTerms: true},
		},
		{
			name: "camel case identifier",
			text: "parseQuery bug",
			want: Features{Length: 2, HasExactTerms: true},
		},
		{
			name: "entities and numbers",
			text: "meeting with Alice and Bob in 2023",
			want: Features{Length: 7, EntityCount: 3},
		},
		{
			name: "sentence starts are not entities",
			text: "Alice went home. Bob stayed",
			want: Features{Length: 5},
		},
		{
			name: "iso date is temporal",
			text: "notes from 2024-05-01",
			want: Features{Length: 3, HasTemporal: true, EntityCount: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractFeatures(tt.text)
			got.Complexity = 0
			if got != tt.want {
				t.Errorf("ExtractFeatures(%q) = %+v, want %+v", tt.text, got, tt.want)
			}
		})
	}
}

func TestExtractFeatures_Empty(t *testing.T) {
	if got := ExtractFeatures("   "); got != (Features{}) {
		t.Errorf("ExtractFeatures(blank) = %+v", got)
	}
}

func TestComplexity(t *testing.T) {
	simple := ExtractFeatures("cats")
	rich := ExtractFeatures("how does the scheduler compare recency and importance when memories are old but relevant")

	for _, f := range []Features{simple, rich} {
		if f.Complexity < 0 || f.Complexity > 1 {
			t.Fatalf("Complexity = %v out of [0,1]", f.Complexity)
		}
	}
	if rich.Complexity <= simple.Complexity {
		t.Errorf("rich (%v) should exceed simple (%v)", rich.Complexity, simple.Complexity)
	}
}

func TestBucketKey(t *testing.T) {
	tests := []struct {
		f    Features
		want string
	}{
		{Features{}, "short|atemporal|statement"},
		{Features{Length: 3, IsQuestion: true}, "short|atemporal|question"},
		{Features{Length: 4, HasTemporal: true}, "medium|temporal|statement"},
		{Features{Length: 8}, "medium|atemporal|statement"},
		{Features{Length: 9, HasTemporal: true, IsQuestion: true}, "long|temporal|question"},
	}

	for _, tt := range tests {
		if got := tt.f.BucketKey(); got != tt.want {
			t.Errorf("BucketKey(%+v) = %q, want %q", tt.f, got, tt.want)
		}
	}
}
