package domain

import (
	"net"
	"strconv"
	"time"
)

// Directory modes
const (
	DirectoryModeSimpleBind     = "simple_bind"
	DirectoryModeServiceAccount = "service_account"
)

// DirectoryConfig is the single persisted record describing how to reach the directory
type DirectoryConfig struct {
	ID                   uint      `gorm:"primaryKey" json:"-"`
	Enabled              bool      `json:"enabled"`
	Mode                 string    `gorm:"size:32;not null;default:simple_bind" json:"mode"`
	Host                 string    `gorm:"size:255" json:"host"`
	Port                 int       `json:"port"`
	UseTLS               bool      `json:"use_tls"`
	StartTLS             bool      `json:"start_tls"`
	InsecureSkipVerify   bool      `json:"insecure_skip_verify"`
	TimeoutSeconds       int       `json:"timeout_seconds"`
	Domain               string    `gorm:"size:255" json:"domain"`
	BindPattern          string    `gorm:"size:255" json:"bind_pattern"`
	UserBaseDN           string    `gorm:"size:255" json:"user_base_dn"`
	ServiceBindDN        string    `gorm:"size:255" json:"service_bind_dn"`
	ServiceBindPassword  string    `gorm:"size:255" json:"-"`
	SearchBaseDN         string    `gorm:"size:255" json:"search_base_dn"`
	UserFilter           string    `gorm:"size:255" json:"user_filter"`
	UsernameAttribute    string    `gorm:"size:64" json:"username_attribute"`
	DisplayNameAttribute string    `gorm:"size:64" json:"display_name_attribute"`
	EmailAttribute       string    `gorm:"size:64" json:"email_attribute"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Timeout returns the bounded network timeout for one directory round trip
func (c *DirectoryConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Address returns the directory URL
func (c *DirectoryConfig) Address() string {
	scheme, port := "ldap", c.Port
	if c.UseTLS {
		scheme = "ldaps"
	}
	if port == 0 {
		port = 389
		if c.UseTLS {
			port = 636
		}
	}
	return scheme + "://" + net.JoinHostPort(c.Host, strconv.Itoa(port))
}
