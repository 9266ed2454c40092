// Copyright (c) 2026 PayHub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

/*
TestToPgx5DSN verifies the scheme rewrite golang-migrate needs.
*/
func TestToPgx5DSN(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"postgres_url", "postgres://u:p@db:5432/payhub", "pgx5://u:p@db:5432/payhub"},
		{"postgresql_url", "postgresql://u:p@db/payhub?sslmode=disable", "pgx5://u:p@db/payhub?sslmode=disable"},
		{"already_pgx5", "pgx5://u:p@db/payhub", "pgx5://u:p@db/payhub"},
		{"key_value", "host=db user=u dbname=payhub", "host=db user=u dbname=payhub"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toPgx5DSN(tt.in))
		})
	}
}
