// Package testutil provides testing utilities for nebula-convert
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// Sample documents shared by the package tests
const (
	PeopleCSV  = "name,age\nAda,36\nGrace,85\n"
	PeopleJSON = `[{"name": "Ada", "age": 36}, {"name": "Grace", "age": 85}]`
	PeopleYAML = "- name: Ada\n  age: 36\n- name: Grace\n  age: 85\n"
)

// TestLogger creates a test logger that writes to the test output.
// The logger is automatically cleaned up when the test completes.
func TestLogger(t testing.TB) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a context with a 30-second timeout that is cancelled
// when the test completes
func TestContext(t testing.TB) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// WriteFile writes content to name inside a fresh temporary directory and
// returns the path
func WriteFile(t testing.TB, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

// AssertEventually asserts that a condition becomes true within the specified timeout.
// It checks the condition every 10ms until it succeeds or the timeout expires.
func AssertEventually(t testing.TB, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("condition not met within %v: %s", timeout, msg)
}

// ConversionSuite is a base for end-to-end suites. Every test gets its own
// directory, logger and context.
type ConversionSuite struct {
	suite.Suite

	Ctx    context.Context
	Dir    string
	Logger *zap.Logger

	cancel context.CancelFunc
}

// SetupTest runs before each test in the suite
func (s *ConversionSuite) SetupTest() {
	s.Ctx, s.cancel = context.WithTimeout(context.Background(), time.Minute)
	s.Dir = s.T().TempDir()
	s.Logger = zaptest.NewLogger(s.T())
}

// TearDownTest runs after each test in the suite
func (s *ConversionSuite) TearDownTest() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Fixture writes content to name inside the test directory
func (s *ConversionSuite) Fixture(name, content string) string {
	p := filepath.Join(s.Dir, name)
	s.Require().NoError(os.MkdirAll(filepath.Dir(p), 0o755))
	s.Require().NoError(os.WriteFile(p, []byte(content), 0o600))
	return p
}
