// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

// Package session owns "who is signed in" for one client.
//
// A Manager is built per client (a CLI process, or one HTTP request whose
// token travels in a cookie) and is passed to whatever needs identity. It
// restores identity from a TokenStore once via Bootstrap and afterwards
// changes only through Login, Logout and the profile operations.
//
// Every state-changing operation runs under a single resolution lock, so a
// slow Bootstrap can never overwrite the outcome of a Login that started
// after it. Login and Logout also cancel a Bootstrap that is still in flight.
package session
