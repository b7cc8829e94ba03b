package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// isolateHome points HOME and XDG_CONFIG_HOME at temp directories so the
// developer's real user config and log files never leak into command runs.
func isolateHome(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

// writeFile creates rel under root, making parent directories as needed.
func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// writeTestProject lays out a small Go project with known declarations and
// returns its root. The file set keeps index counts predictable: go.mod and
// README.md index as single whole-file elements, while each .go file splits
// into a header plus one element per declaration.
//
//	go.mod          1 element
//	README.md       1 element
//	auth/login.go   3 elements (header, Login, Logout)
//	store/user.go   3 elements (header, User, FindUserByEmail)
func writeTestProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	writeFile(t, root, "go.mod", "module example.com/sample\n\ngo 1.25\n")

	writeFile(t, root, "README.md", "# Sample\n\nA tiny fixture project.\n")

	writeFile(t, root, "auth/login.go", `package auth

import "errors"

// ErrBadPassword reports a failed password check.
var ErrBadPassword = errors.New("bad password")

// Login authenticates a user by comparing the supplied password
// against the stored credential hash.
func Login(username, password string) error {
	if password == "" {
		return ErrBadPassword
	}
	return nil
}

// Logout ends the session for the given username.
func Logout(username string) error {
	return nil
}
`)

	writeFile(t, root, "store/user.go", `package store

// User is a stored account record.
type User struct {
	Email string
	Name  string
}

// FindUserByEmail returns the user with the given email address.
func FindUserByEmail(email string) (*User, error) {
	return &User{Email: email}, nil
}
`)

	return root
}

// runCommand executes a fresh root command with args and returns everything
// it wrote to its combined output.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
