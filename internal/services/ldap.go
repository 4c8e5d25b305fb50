package services

import (
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/go-ldap/ldap/v3"
	"github.com/huangang/replydesk/internal/config"
)

var ErrLDAPDisabled = errors.New("LDAP is not enabled")

type LDAPUser struct {
	DN       string
	Username string
	Email    string
}

// LDAPService verifies credentials with a search-then-bind against the
// configured directory.
type LDAPService struct {
	config *config.LDAPConfig
}

func NewLDAPService(cfg *config.LDAPConfig) *LDAPService {
	return &LDAPService{config: cfg}
}

func (s *LDAPService) IsEnabled() bool {
	return s.config != nil && s.config.Enabled && s.config.Host != ""
}

func (s *LDAPService) dial() (*ldap.Conn, error) {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	if s.config.UseSSL {
		return ldap.DialURL("ldaps://"+addr, ldap.DialWithTLSConfig(&tls.Config{ServerName: s.config.Host}))
	}
	return ldap.DialURL("ldap://" + addr)
}

func (s *LDAPService) Authenticate(username, password string) (*LDAPUser, error) {
	if !s.IsEnabled() {
		return nil, ErrLDAPDisabled
	}
	if password == "" {
		// an empty password would turn the user bind into an anonymous bind
		return nil, ErrInvalidCredentials
	}

	conn, err := s.dial()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to LDAP server: %w", err)
	}
	defer conn.Close()

	if s.config.BindDN != "" {
		if err := conn.Bind(s.config.BindDN, s.config.BindPassword); err != nil {
			return nil, fmt.Errorf("failed to bind with service account: %w", err)
		}
	}

	result, err := conn.Search(ldap.NewSearchRequest(
		s.config.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 2, 0, false,
		fmt.Sprintf(s.config.UserFilter, ldap.EscapeFilter(username)),
		[]string{"dn", "mail", "uid", "sAMAccountName"},
		nil,
	))
	if err != nil {
		return nil, fmt.Errorf("LDAP search failed: %w", err)
	}
	if len(result.Entries) != 1 {
		return nil, ErrInvalidCredentials
	}

	entry := result.Entries[0]
	if err := conn.Bind(entry.DN, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	user := &LDAPUser{
		DN:       entry.DN,
		Username: entry.GetAttributeValue("uid"),
		Email:    entry.GetAttributeValue("mail"),
	}
	if user.Username == "" {
		user.Username = entry.GetAttributeValue("sAMAccountName")
	}
	if user.Username == "" {
		user.Username = username
	}
	return user, nil
}
