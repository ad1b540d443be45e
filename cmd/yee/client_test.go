// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

package main

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paeltech/yee-sub000/internal/auth"
	"github.com/paeltech/yee-sub000/internal/group"
	"github.com/paeltech/yee-sub000/pkg/errutil"
)

func TestClient_LoginWhoamiLogout(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, "admin@yee.org", "pw", auth.RoleAdmin, nil)

	out, err := e.run(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Not signed in")

	_, err = e.run(t, "wrong\n", "login", "--email", "admin@yee.org")
	errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)

	out, err = e.run(t, "pw\n", "login", "--email", "admin@yee.org")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as admin@yee.org (admin)")
	assert.Equal(t, 1, e.sessions.Len())

	out, err = e.run(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "<admin@yee.org>")
	assert.Contains(t, out, "role: admin")

	out, err = e.run(t, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed out")
	assert.Zero(t, e.sessions.Len())

	out, err = e.run(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Not signed in")
}

func TestClient_LoginRequiresEmail(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.run(t, "pw\n", "login")
	errutil.AssertErrorCode(t, err, "CLI_USAGE")
}

func TestClient_AdminCreatesGroupAndChairperson(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, "admin@yee.org", "pw", auth.RoleAdmin, nil)
	_, err := e.run(t, "pw\n", "login", "--email", "admin@yee.org")
	require.NoError(t, err)

	out, err := e.run(t, "", "group", "create", "Mbezi Youth")
	require.NoError(t, err)
	assert.Contains(t, out, `Created group 1 "Mbezi Youth" with join code`)
	g, err := e.groups.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Regexp(t, `^[A-Z0-9]{6}$`, g.Code)

	out, err = e.run(t, "chair-pw\n", "user", "create",
		"--email", "chair@yee.org", "--first-name", "Zuhura", "--last-name", "K",
		"--role", "chairperson", "--group-id", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Created chairperson chair@yee.org")

	_, err = e.run(t, "pw\n", "user", "create",
		"--email", "sec@yee.org", "--first-name", "A", "--last-name", "B", "--role", "secretary")
	errutil.AssertErrorCode(t, err, auth.CodeUserInvalid)

	_, err = e.run(t, "pw\n", "user", "create",
		"--email", "x@yee.org", "--first-name", "A", "--last-name", "B", "--role", "treasurer")
	errutil.AssertErrorCode(t, err, auth.CodeUserInvalid)
}

func TestClient_GroupPermissions(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	own := &group.Group{Name: "Own", Code: "OWN001"}
	other := &group.Group{Name: "Other", Code: "OTH001"}
	require.NoError(t, e.groups.Create(ctx, own))
	require.NoError(t, e.groups.Create(ctx, other))
	e.seedUser(t, "sec@yee.org", "pw", auth.RoleSecretary, &own.ID)

	_, err := e.run(t, "", "group", "create", "Nope")
	errutil.AssertErrorCode(t, err, auth.CodeNotAuthenticated)

	_, err = e.run(t, "pw\n", "login", "--email", "sec@yee.org")
	require.NoError(t, err)

	_, err = e.run(t, "", "group", "create", "Nope")
	errutil.AssertErrorCode(t, err, auth.CodeForbidden)

	out, err := e.run(t, "", "group", "regen-code", strconv.FormatInt(own.ID, 10))
	require.NoError(t, err)
	assert.Contains(t, out, "join code is now")
	g, err := e.groups.GetByID(ctx, own.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "OWN001", g.Code)

	_, err = e.run(t, "", "group", "regen-code", strconv.FormatInt(other.ID, 10))
	errutil.AssertErrorCode(t, err, auth.CodeForbidden)

	_, err = e.run(t, "", "group", "regen-code", "zero")
	errutil.AssertErrorCode(t, err, "CLI_USAGE")
}

func TestClient_ProfileAndPasswd(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, "sec@yee.org", "old", auth.RoleSecretary, new(int64))
	_, err := e.run(t, "old\n", "login", "--email", "sec@yee.org")
	require.NoError(t, err)

	out, err := e.run(t, "", "profile", "update", "--first-name", "Neema", "--email", "neema@yee.org")
	require.NoError(t, err)
	assert.Contains(t, out, "Neema User <neema@yee.org>")

	_, err = e.run(t, "", "profile", "update")
	errutil.AssertErrorCode(t, err, auth.CodeUserInvalid)

	_, err = e.run(t, "nope\nnew\n", "passwd")
	errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)

	out, err = e.run(t, "old\nnew\n", "passwd")
	require.NoError(t, err)
	assert.Contains(t, out, "Password changed")

	_, err = e.run(t, "", "logout")
	require.NoError(t, err)
	_, err = e.run(t, "new\n", "login", "--email", "neema@yee.org")
	require.NoError(t, err)
}

func TestReadSecrets_FromPipe(t *testing.T) {
	e := newTestEnv(t)
	cmd := newRootCmd(e.deps())
	cmd.SetIn(strings.NewReader("one\r\ntwo"))
	got, err := readSecrets(cmd, "a: ", "b: ")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, got)

	cmd.SetIn(strings.NewReader(""))
	_, err = readSecrets(cmd, "a: ")
	errutil.AssertErrorCode(t, err, "CLI_INPUT_FAILED")
}
