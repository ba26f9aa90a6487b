package username

import "testing"

func TestNormalize_SameIdentity(t *testing.T) {
	for _, raw := range []string{"jo@co.com", `CO\jo`, "jo", "JO", "  Jo@CO.COM ", `co\JO`} {
		if got := Normalize(raw); got != "jo" {
			t.Fatalf("Normalize(%q) = %q, want %q", raw, got, "jo")
		}
	}
}

func TestNormalize_Unparsable(t *testing.T) {
	cases := map[string]string{
		"@co.com": "@co.com",
		`CORP\`:   `corp\`,
		"":        "",
		"   ":     "",
		"A.B-c_d": "a.b-c_d",
	}
	for raw, want := range cases {
		if got := Normalize(raw); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestLocal_KeepsCase(t *testing.T) {
	if got := Local(`CORP\Alice`); got != "Alice" {
		t.Fatalf("Local = %q, want Alice", got)
	}
	if got := Local("Alice@corp.com"); got != "Alice" {
		t.Fatalf("Local = %q, want Alice", got)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	for _, raw := range []string{"jo@co.com", `CO\jo`, "@co.com", "MiXeD"} {
		once := Normalize(raw)
		if twice := Normalize(once); twice != once {
			t.Fatalf("Normalize not idempotent for %q: %q then %q", raw, once, twice)
		}
	}
}
