package brightcove

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/fpang/dynamic-ingest/internal/ingesterr"
)

// Environment variables read by CredentialsFromEnv.
const (
	EnvAccountID    = "BRIGHTCOVE_ACCOUNT_ID"
	EnvClientID     = "BRIGHTCOVE_CLIENT_ID"
	EnvClientSecret = "BRIGHTCOVE_CLIENT_SECRET"
)

// Credentials identify the Video Cloud account and the OAuth client used to
// authorize every API call. They do not change for the lifetime of a Client.
type Credentials struct {
	AccountID    string `json:"account_id"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// Validate reports the first missing field as a configuration error.
func (c Credentials) Validate() error {
	switch {
	case strings.TrimSpace(c.AccountID) == "":
		return ingesterr.Configuration(ingesterr.CodeAccountIDMissing, "account id not provided")
	case strings.TrimSpace(c.ClientID) == "":
		return ingesterr.Configuration(ingesterr.CodeClientIDMissing, "client id not provided")
	case strings.TrimSpace(c.ClientSecret) == "":
		return ingesterr.Configuration(ingesterr.CodeClientSecretMissing, "client secret not provided")
	}
	return nil
}

// ParseCredentials decodes the account data document
// {"account_id": ..., "client_id": ..., "client_secret": ...}.
// The account id may be a string or a number. Missing fields are not an
// error here; call Validate before use.
func ParseCredentials(data []byte) (Credentials, error) {
	var doc struct {
		AccountID    flexString `json:"account_id"`
		ClientID     string     `json:"client_id"`
		ClientSecret string     `json:"client_secret"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		e := ingesterr.Configuration(ingesterr.CodeInvalidAccountData, "no valid JSON for account data was found")
		e.Err = err
		return Credentials{}, e
	}
	return Credentials{
		AccountID:    string(doc.AccountID),
		ClientID:     doc.ClientID,
		ClientSecret: doc.ClientSecret,
	}.trimmed(), nil
}

// CredentialsFromEnv reads credentials from BRIGHTCOVE_* environment variables.
func CredentialsFromEnv() Credentials {
	return Credentials{
		AccountID:    os.Getenv(EnvAccountID),
		ClientID:     os.Getenv(EnvClientID),
		ClientSecret: os.Getenv(EnvClientSecret),
	}.trimmed()
}

// Merge returns c with empty fields filled from fallback.
func (c Credentials) Merge(fallback Credentials) Credentials {
	if c.AccountID == "" {
		c.AccountID = fallback.AccountID
	}
	if c.ClientID == "" {
		c.ClientID = fallback.ClientID
	}
	if c.ClientSecret == "" {
		c.ClientSecret = fallback.ClientSecret
	}
	return c
}

// Empty reports whether no field is set.
func (c Credentials) Empty() bool {
	return c.AccountID == "" && c.ClientID == "" && c.ClientSecret == ""
}

func (c Credentials) trimmed() Credentials {
	return Credentials{
		AccountID:    strings.TrimSpace(c.AccountID),
		ClientID:     strings.TrimSpace(c.ClientID),
		ClientSecret: strings.TrimSpace(c.ClientSecret),
	}
}
