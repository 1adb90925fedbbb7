package config

import (
	"net/url"
	"strings"
)

const redacted = "****"

// RedactDSN masks credentials in a reporting DB DSN so it can be logged.
// SQLite paths carry no secret and are returned as given.
func RedactDSN(driver, dsn string) string {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return ""
	}
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite", "sqlite3":
		return dsn
	}

	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" && u.Host != "" {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), redacted)
		}
		q := u.Query()
		for _, k := range []string{"password", "pass", "pwd"} {
			if q.Has(k) {
				q.Set(k, redacted)
			}
		}
		u.RawQuery = q.Encode()
		return u.String()
	}

	// key=value form used by lib/pq
	parts := strings.Fields(dsn)
	for i, p := range parts {
		k, _, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		switch strings.ToLower(k) {
		case "password", "pass", "pwd":
			parts[i] = k + "=" + redacted
		}
	}
	return strings.Join(parts, " ")
}
