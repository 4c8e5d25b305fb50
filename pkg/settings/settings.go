// Package settings defines the typed view of the system settings store and
// the conversion to and from its string-valued wire form.
//
// The backend keeps every setting as a string. A fixed set of keys are
// booleans ("true"/"false" on the wire) and smtp_port is an integer; every
// other key is an opaque string. Keys outside the known set are carried in
// Extra so nothing is lost on a load/save cycle.
package settings

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	RegistrationEnabled  = "registration_enabled"
	ShowDefaultLoginInfo = "show_default_login_info"
	LoginCaptchaEnabled  = "login_captcha_enabled"

	AIAPIURL = "ai_api_url"
	AIAPIKey = "ai_api_key"
	AIModel  = "ai_model"

	SMTPServer   = "smtp_server"
	SMTPPort     = "smtp_port"
	SMTPUser     = "smtp_user"
	SMTPPassword = "smtp_password"
	SMTPFrom     = "smtp_from"
	SMTPUseTLS   = "smtp_use_tls"
	SMTPUseSSL   = "smtp_use_ssl"

	QQReplySecretKey = "qq_reply_secret_key"
)

type Kind int

const (
	KindString Kind = iota
	KindBool
	KindInt
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	default:
		return "string"
	}
}

// knownKeys is the declaration order used for encoding and display.
var knownKeys = []string{
	RegistrationEnabled, ShowDefaultLoginInfo, LoginCaptchaEnabled,
	AIAPIURL, AIAPIKey, AIModel,
	SMTPServer, SMTPPort, SMTPUser, SMTPPassword, SMTPFrom, SMTPUseTLS, SMTPUseSSL,
	QQReplySecretKey,
}

var boolKeys = map[string]bool{
	RegistrationEnabled:  true,
	ShowDefaultLoginInfo: true,
	LoginCaptchaEnabled:  true,
	SMTPUseTLS:           true,
	SMTPUseSSL:           true,
}

var secretKeys = map[string]bool{
	AIAPIKey:         true,
	SMTPPassword:     true,
	QQReplySecretKey: true,
}

// KnownKeys returns the typed keys in declaration order.
func KnownKeys() []string {
	out := make([]string, len(knownKeys))
	copy(out, knownKeys)
	return out
}

// BoolKeys returns the keys stored as "true"/"false".
func BoolKeys() []string {
	var out []string
	for _, k := range knownKeys {
		if boolKeys[k] {
			out = append(out, k)
		}
	}
	return out
}

func IsKnown(key string) bool {
	for _, k := range knownKeys {
		if k == key {
			return true
		}
	}
	return false
}

func IsSecret(key string) bool { return secretKeys[key] }

func TypeOf(key string) Kind {
	switch {
	case boolKeys[key]:
		return KindBool
	case key == SMTPPort:
		return KindInt
	default:
		return KindString
	}
}

// SystemSettings is the typed settings record. A nil field is undefined: it
// was not loaded and will not be sent on save.
type SystemSettings struct {
	RegistrationEnabled  *bool
	ShowDefaultLoginInfo *bool
	LoginCaptchaEnabled  *bool

	AIAPIURL *string
	AIAPIKey *string
	AIModel  *string

	SMTPServer   *string
	SMTPPort     *int
	SMTPUser     *string
	SMTPPassword *string
	SMTPFrom     *string
	SMTPUseTLS   *bool
	SMTPUseSSL   *bool

	QQReplySecretKey *string

	// Extra holds keys outside the typed set, and an smtp_port value that
	// did not parse as an integer.
	Extra map[string]string
}

func Bool(v bool) *bool       { return &v }
func Int(v int) *int          { return &v }
func String(v string) *string { return &v }

func (s *SystemSettings) boolField(key string) **bool {
	switch key {
	case RegistrationEnabled:
		return &s.RegistrationEnabled
	case ShowDefaultLoginInfo:
		return &s.ShowDefaultLoginInfo
	case LoginCaptchaEnabled:
		return &s.LoginCaptchaEnabled
	case SMTPUseTLS:
		return &s.SMTPUseTLS
	case SMTPUseSSL:
		return &s.SMTPUseSSL
	}
	return nil
}

func (s *SystemSettings) stringField(key string) **string {
	switch key {
	case AIAPIURL:
		return &s.AIAPIURL
	case AIAPIKey:
		return &s.AIAPIKey
	case AIModel:
		return &s.AIModel
	case SMTPServer:
		return &s.SMTPServer
	case SMTPUser:
		return &s.SMTPUser
	case SMTPPassword:
		return &s.SMTPPassword
	case SMTPFrom:
		return &s.SMTPFrom
	case QQReplySecretKey:
		return &s.QQReplySecretKey
	}
	return nil
}

// Get returns the wire form of key and whether it is defined.
func (s *SystemSettings) Get(key string) (string, bool) {
	if f := s.boolField(key); f != nil {
		if *f == nil {
			return "", false
		}
		return strconv.FormatBool(**f), true
	}
	if f := s.stringField(key); f != nil {
		if *f == nil {
			return "", false
		}
		return **f, true
	}
	if key == SMTPPort && s.SMTPPort != nil {
		return strconv.Itoa(*s.SMTPPort), true
	}
	v, ok := s.Extra[key]
	return v, ok
}

// Set parses raw according to the type of key and stores it.
func (s *SystemSettings) Set(key, raw string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("empty setting key")
	}
	switch TypeOf(key) {
	case KindBool:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("%s expects true or false, got %q", key, raw)
		}
		*s.boolField(key) = Bool(b)
	case KindInt:
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("%s expects an integer, got %q", key, raw)
		}
		s.SMTPPort = Int(n)
		delete(s.Extra, key)
	default:
		if f := s.stringField(key); f != nil {
			*f = String(raw)
			return nil
		}
		if s.Extra == nil {
			s.Extra = make(map[string]string)
		}
		s.Extra[key] = raw
	}
	return nil
}

// Unset makes key undefined.
func (s *SystemSettings) Unset(key string) {
	if f := s.boolField(key); f != nil {
		*f = nil
	}
	if f := s.stringField(key); f != nil {
		*f = nil
	}
	if key == SMTPPort {
		s.SMTPPort = nil
	}
	delete(s.Extra, key)
}

// Keys returns every defined key, known keys first then extras sorted.
func (s *SystemSettings) Keys() []string {
	var out []string
	for _, k := range knownKeys {
		if _, ok := s.Get(k); ok {
			out = append(out, k)
		}
	}
	extras := make([]string, 0, len(s.Extra))
	for k := range s.Extra {
		if !IsKnown(k) {
			extras = append(extras, k)
		}
	}
	sort.Strings(extras)
	return append(out, extras...)
}

// Clone returns a deep copy.
func (s SystemSettings) Clone() SystemSettings {
	out := SystemSettings{}
	for _, k := range s.Keys() {
		v, _ := s.Get(k)
		switch TypeOf(k) {
		case KindBool:
			*out.boolField(k) = Bool(v == "true")
		case KindInt:
			if s.SMTPPort != nil {
				out.SMTPPort = Int(*s.SMTPPort)
			} else {
				out.setExtra(k, v)
			}
		default:
			if f := out.stringField(k); f != nil {
				*f = String(v)
			} else {
				out.setExtra(k, v)
			}
		}
	}
	return out
}

func (s *SystemSettings) setExtra(key, value string) {
	if s.Extra == nil {
		s.Extra = make(map[string]string)
	}
	s.Extra[key] = value
}

// Merge overlays every defined key of patch onto s.
func (s *SystemSettings) Merge(patch SystemSettings) {
	for _, k := range patch.Keys() {
		v, _ := patch.Get(k)
		if err := s.Set(k, v); err != nil {
			// unparsable smtp_port from Extra travels verbatim
			s.Unset(k)
			s.setExtra(k, v)
		}
	}
}

// Defaults are the values a fresh form starts with when the store has none.
func Defaults() SystemSettings {
	return SystemSettings{
		RegistrationEnabled:  Bool(true),
		ShowDefaultLoginInfo: Bool(true),
		LoginCaptchaEnabled:  Bool(false),
		AIAPIURL:             String("https://dashscope.aliyuncs.com/compatible-mode/v1"),
		AIModel:              String("qwen-plus"),
		SMTPPort:             Int(587),
		SMTPUseTLS:           Bool(true),
		SMTPUseSSL:           Bool(false),
	}
}

// WithDefaults returns s with every undefined default key filled in.
func (s SystemSettings) WithDefaults() SystemSettings {
	out := Defaults()
	out.Merge(s)
	return out
}

// AICredentials is the AI provider triple a connection test may override.
type AICredentials struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Complete reports whether all three fields are set.
func (c AICredentials) Complete() bool {
	return c.APIKey != "" && c.BaseURL != "" && c.Model != ""
}

// AICredentials extracts the draft AI provider settings.
func (s *SystemSettings) AICredentials() AICredentials {
	var c AICredentials
	if s.AIAPIKey != nil {
		c.APIKey = *s.AIAPIKey
	}
	if s.AIAPIURL != nil {
		c.BaseURL = *s.AIAPIURL
	}
	if s.AIModel != nil {
		c.Model = *s.AIModel
	}
	return c
}
