// Copyright (c) 2026 PayHub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/payhub/internal/platform/migration"
)

func stubTerminal(t *testing.T, terminal bool, answers ...string) {
	t.Helper()
	previousRead, previousIsTerminal := readPassword, isTerminal
	t.Cleanup(func() { readPassword, isTerminal = previousRead, previousIsTerminal })

	isTerminal = func(int) bool { return terminal }
	readPassword = func(int) ([]byte, error) {
		if len(answers) == 0 {
			return nil, errors.New("no more input")
		}
		answer := answers[0]
		answers = answers[1:]
		return []byte(answer), nil
	}
}

/*
TestPassword_Stdin reads the first line and strips the line ending only.
*/
func TestPassword_Stdin(t *testing.T) {
	env := &environment{stdin: strings.NewReader(" s3cret pass \r\nignored\n")}

	password, err := env.password(&bytes.Buffer{}, true)
	require.NoError(t, err)
	assert.Equal(t, " s3cret pass ", password)

	empty := &environment{stdin: strings.NewReader("")}
	_, err = empty.password(&bytes.Buffer{}, true)
	assert.Error(t, err)
}

/*
TestPassword_Prompt covers the confirmation prompt.
*/
func TestPassword_Prompt(t *testing.T) {
	env := &environment{}
	prompt := &bytes.Buffer{}

	stubTerminal(t, true, "admin123", "admin123")
	password, err := env.password(prompt, false)
	require.NoError(t, err)
	assert.Equal(t, "admin123", password)
	assert.Contains(t, prompt.String(), "Repeat password")

	stubTerminal(t, true, "admin123", "admin321")
	_, err = env.password(prompt, false)
	assert.EqualError(t, err, "passwords do not match")

	stubTerminal(t, false)
	_, err = env.password(prompt, false)
	assert.ErrorContains(t, err, "--password-stdin")
}

/*
TestCheckPassword applies the registration length rules.
*/
func TestCheckPassword(t *testing.T) {
	assert.Error(t, checkPassword("12345"))
	assert.NoError(t, checkPassword("123456"))
	assert.Error(t, checkPassword(strings.Repeat("x", 257)))
}

/*
TestFormatStatus renders each migration state.
*/
func TestFormatStatus(t *testing.T) {
	assert.Equal(t, "no migrations applied", formatStatus(migration.Status{Pristine: true}))
	assert.Equal(t, "version 3", formatStatus(migration.Status{Version: 3}))
	assert.Equal(t, "version 2 (dirty)", formatStatus(migration.Status{Version: 2, Dirty: true}))
}
