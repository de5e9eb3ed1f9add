package language

import "testing"

func TestValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code string
		want bool
	}{
		{"en", true},
		{"ja", true},
		{"fr", true},
		{"", false},
		{"e", false},
		{"eng", false},
		{"EN", false},
		{"x1", false},
	}
	for _, tt := range tests {
		if got := Valid(tt.code); got != tt.want {
			t.Errorf("Valid(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"en":      "en",
		" JA \n":  "ja",
		"'es'":    "es",
		"pt-BR":   "pt",
		"zh_Hant": "zh",
	}
	for in, want := range tests {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestName(t *testing.T) {
	t.Parallel()

	if got := Name("ja"); got != "Japanese" {
		t.Errorf("Name(ja) = %q, want Japanese", got)
	}
	if got := Name("en"); got != "English" {
		t.Errorf("Name(en) = %q, want English", got)
	}
	if got := Name("??"); got != "??" {
		t.Errorf("Name(??) = %q, want fallback to code", got)
	}
}

func TestFlag(t *testing.T) {
	t.Parallel()

	if got := Flag("ja"); got != "🇯🇵" {
		t.Errorf("Flag(ja) = %q", got)
	}
	if got := Flag("eo"); got != DefaultFlag {
		t.Errorf("Flag(eo) = %q, want %q", got, DefaultFlag)
	}
}
