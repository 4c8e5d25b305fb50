package settings

import (
	"encoding/json"
	"testing"
)

func TestDecode_BooleanKeys(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{"string true", "true", true},
		{"json true", true, true},
		{"string false", "false", false},
		{"json false", false, false},
		{"one is not true", "1", false},
		{"upper case is not true", "TRUE", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range BoolKeys() {
				s := Decode(map[string]any{key: tt.value})
				got := s.boolField(key)
				if *got == nil {
					t.Fatalf("%s: decoded as undefined", key)
				}
				if **got != tt.want {
					t.Errorf("%s: Decode(%v) = %v, want %v", key, tt.value, **got, tt.want)
				}
			}
		})
	}
}

func TestDecode_RegistrationDisabled(t *testing.T) {
	s := Decode(map[string]any{"registration_enabled": "false"})
	if s.RegistrationEnabled == nil || *s.RegistrationEnabled {
		t.Fatalf("registration_enabled = %v, want false", s.RegistrationEnabled)
	}
}

func TestDecode_SMTPPort(t *testing.T) {
	tests := []struct {
		name      string
		value     any
		wantPort  int
		wantExtra string
	}{
		{"string", "587", 587, ""},
		{"number", float64(465), 465, ""},
		{"garbage stays verbatim", "smtp", 0, "smtp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Decode(map[string]any{SMTPPort: tt.value})
			if tt.wantExtra != "" {
				if s.SMTPPort != nil {
					t.Fatalf("SMTPPort = %d, want nil", *s.SMTPPort)
				}
				if s.Extra[SMTPPort] != tt.wantExtra {
					t.Errorf("Extra[smtp_port] = %q, want %q", s.Extra[SMTPPort], tt.wantExtra)
				}
				entries := Encode(s)
				if len(entries) != 1 || entries[0].Value != tt.wantExtra {
					t.Errorf("Encode() = %v, want verbatim value", entries)
				}
				return
			}
			if s.SMTPPort == nil || *s.SMTPPort != tt.wantPort {
				t.Errorf("SMTPPort = %v, want %d", s.SMTPPort, tt.wantPort)
			}
		})
	}
}

func TestDecode_PassesThroughUnknownKeys(t *testing.T) {
	s := Decode(map[string]any{"theme_color": "#1677ff", AIModel: "qwen-max", "nullable": nil})
	if s.Extra["theme_color"] != "#1677ff" {
		t.Errorf("Extra[theme_color] = %q", s.Extra["theme_color"])
	}
	if s.AIModel == nil || *s.AIModel != "qwen-max" {
		t.Errorf("AIModel = %v", s.AIModel)
	}
	if _, ok := s.Extra["nullable"]; ok {
		t.Error("null values should be skipped")
	}
}

func TestEncode_OmitsUndefined(t *testing.T) {
	s := SystemSettings{SMTPPort: Int(587), SMTPUseTLS: Bool(true)}
	entries := Encode(s)

	want := []Entry{{SMTPPort, "587"}, {SMTPUseTLS, "true"}}
	if len(entries) != len(want) {
		t.Fatalf("Encode() = %v, want %v", entries, want)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entry %d = %v, want %v", i, entries[i], want[i])
		}
	}
}

func TestEncode_FalseAndEmptyAreDefined(t *testing.T) {
	s := SystemSettings{LoginCaptchaEnabled: Bool(false), SMTPUser: String("")}
	entries := Encode(s)
	if len(entries) != 2 {
		t.Fatalf("Encode() = %v, want 2 entries", entries)
	}
	if entries[0].Value != "false" || entries[1].Value != "" {
		t.Errorf("Encode() = %v", entries)
	}
}

func TestBooleanRoundTrip(t *testing.T) {
	for _, key := range BoolKeys() {
		for _, v := range []bool{true, false} {
			var s SystemSettings
			*s.boolField(key) = Bool(v)

			wire := map[string]any{}
			for _, e := range Encode(s) {
				wire[e.Key] = e.Value
			}
			back := Decode(wire)
			got := back.boolField(key)
			if *got == nil || **got != v {
				t.Errorf("%s: round trip of %v produced %v", key, v, *got)
			}
		}
	}
}

func TestSet(t *testing.T) {
	var s SystemSettings

	if err := s.Set(SMTPPort, "465"); err != nil {
		t.Fatalf("Set(smtp_port) error = %v", err)
	}
	if err := s.Set(SMTPPort, "abc"); err == nil {
		t.Error("Set(smtp_port, abc) should fail")
	}
	if *s.SMTPPort != 465 {
		t.Errorf("failed Set must not change the value, got %d", *s.SMTPPort)
	}
	if err := s.Set(SMTPUseSSL, "yes"); err == nil {
		t.Error("Set(smtp_use_ssl, yes) should fail")
	}
	if err := s.Set(SMTPUseSSL, "true"); err != nil || !*s.SMTPUseSSL {
		t.Errorf("Set(smtp_use_ssl, true) = %v", err)
	}
	if err := s.Set("custom_banner", "hello"); err != nil || s.Extra["custom_banner"] != "hello" {
		t.Errorf("Set(custom_banner) = %v", err)
	}

	s.Unset(SMTPPort)
	if _, ok := s.Get(SMTPPort); ok {
		t.Error("smtp_port should be undefined after Unset")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := SystemSettings{AIModel: String("qwen-plus"), Extra: map[string]string{"x": "1"}}
	c := s.Clone()
	*c.AIModel = "qwen-max"
	c.Extra["x"] = "2"

	if *s.AIModel != "qwen-plus" || s.Extra["x"] != "1" {
		t.Error("Clone() shares storage with the original")
	}
}

func TestWithDefaults(t *testing.T) {
	s := SystemSettings{SMTPPort: Int(25), RegistrationEnabled: Bool(false)}
	d := s.WithDefaults()

	if *d.SMTPPort != 25 || *d.RegistrationEnabled {
		t.Errorf("loaded values must win over defaults: %+v", ToMap(d))
	}
	if d.AIModel == nil || *d.AIModel != "qwen-plus" {
		t.Errorf("AIModel default missing")
	}
	if d.SMTPUseTLS == nil || !*d.SMTPUseTLS {
		t.Errorf("SMTPUseTLS default missing")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	s := SystemSettings{SMTPPort: Int(587), SMTPUseTLS: Bool(true), Extra: map[string]string{"k": "v"}}
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}

	var back SystemSettings
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if *back.SMTPPort != 587 || !*back.SMTPUseTLS || back.Extra["k"] != "v" {
		t.Errorf("json round trip = %s", data)
	}
}

func TestAICredentials(t *testing.T) {
	s := SystemSettings{AIAPIKey: String("sk"), AIAPIURL: String("https://x")}
	if s.AICredentials().Complete() {
		t.Error("credentials without a model are incomplete")
	}
	s.AIModel = String("qwen-plus")
	if !s.AICredentials().Complete() {
		t.Error("credentials should be complete")
	}
}

func TestGenerateSecret(t *testing.T) {
	a, err := GenerateSecret()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := GenerateSecret()
	if len(a) != 32 {
		t.Errorf("len = %d, want 32", len(a))
	}
	if a == b {
		t.Error("secrets should differ")
	}
}
