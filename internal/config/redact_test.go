package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactDSN(t *testing.T) {
	cases := []struct {
		driver, dsn, want string
	}{
		{"sqlite", "", ""},
		{"sqlite", "./data/termwatch.sqlite", "./data/termwatch.sqlite"},
		{"postgres", "postgres://report:s3cret@db:5432/reporting?sslmode=disable", "postgres://report:%2A%2A%2A%2A@db:5432/reporting?sslmode=disable"},
		{"postgres", "postgres://db:5432/reporting?password=s3cret", "postgres://db:5432/reporting?password=%2A%2A%2A%2A"},
		{"postgres", "host=db user=report password=s3cret dbname=reporting", "host=db user=report password=**** dbname=reporting"},
	}
	for _, tc := range cases {
		got := RedactDSN(tc.driver, tc.dsn)
		assert.Equal(t, tc.want, got, tc.dsn)
		assert.NotContains(t, got, "s3cret")
	}
}
