// Package connstring parses the key=value connection-string grammar used
// to describe an engine cluster, per the wire format in §6: a
// semicolon-separated list of "key=value" pairs. Credential acquisition is
// an external collaborator's concern — this package only produces the
// boundary value the rest of the module's constructors accept.
package connstring

import (
	"fmt"
	"strings"
)

// ConnectionInfo is the parsed, normalized form of a connection string.
type ConnectionInfo struct {
	DataSource               string
	InitialCatalog           string
	FederatedSecurity        bool
	ApplicationClientID      string
	ApplicationKey           string
	AuthorityID               string
	ApplicationNameForTracing string
	ApplicationCertificateX5C bool
	UserID                    string
	UserToken                 string
	ApplicationToken          string
}

// recognizedKeys maps every accepted lowercase/alias form to its canonical
// field, per the grammar in §6.
var recognizedKeys = map[string]string{
	"data source":               "data source",
	"addr":                      "data source",
	"address":                   "data source",
	"network address":           "data source",
	"server":                    "data source",
	"initial catalog":           "initial catalog",
	"database":                  "initial catalog",
	"federated security":        "federated security",
	"fed":                       "federated security",
	"application client id":     "application client id",
	"appclientid":               "application client id",
	"application key":           "application key",
	"appkey":                    "application key",
	"authority id":              "authority id",
	"tenantid":                  "authority id",
	"application name":          "application name",
	"user name":                 "application name",
	"application certificate x5c": "application certificate x5c",
	"user id":                     "user id",
	"uid":                         "user id",
	"user token":                  "user token",
	"usertoken":                   "user token",
	"application token":           "application token",
	"apptoken":                    "application token",
}

// Parse parses a "k1=v1;k2=v2;..." connection string. An unrecognized key
// is a permanent configuration error per §6 ("Unknown keys raise a
// permanent configuration error").
func Parse(s string) (*ConnectionInfo, error) {
	info := &ConnectionInfo{}
	s = strings.TrimSpace(s)
	if s == "" {
		return info, nil
	}

	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		eq := strings.Index(pair, "=")
		if eq < 0 {
			return nil, fmt.Errorf("connection string segment %q is missing '='", pair)
		}
		rawKey := strings.ToLower(strings.TrimSpace(pair[:eq]))
		value := strings.TrimSpace(pair[eq+1:])

		canonical, ok := recognizedKeys[rawKey]
		if !ok {
			return nil, fmt.Errorf("unrecognized connection string key %q", rawKey)
		}

		switch canonical {
		case "data source":
			info.DataSource = value
		case "initial catalog":
			info.InitialCatalog = value
		case "federated security":
			info.FederatedSecurity = strings.EqualFold(value, "true") || value == "1"
		case "application client id":
			info.ApplicationClientID = value
		case "application key":
			info.ApplicationKey = value
		case "authority id":
			info.AuthorityID = value
		case "application name":
			info.ApplicationNameForTracing = value
		case "application certificate x5c":
			info.ApplicationCertificateX5C = strings.EqualFold(value, "true") || value == "1"
		case "user id":
			info.UserID = value
		case "user token":
			info.UserToken = value
		case "application token":
			info.ApplicationToken = value
		}
	}

	if info.DataSource == "" {
		return nil, fmt.Errorf("connection string missing required %q key", "data source")
	}
	return info, nil
}
