// Package testutil provides testing utilities for zligate.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	dserrors "github.com/systmms/zligate/internal/errors"
	"github.com/systmms/zligate/pkg/exec"
)

// MockCommandExecutor is a configurable exec.CommandExecutor for tests.
type MockCommandExecutor struct {
	mu sync.Mutex

	// Responses maps command prefixes to their mock responses.
	// Key format: "command arg1 arg2" (space-separated command and args).
	// The longest matching prefix wins.
	Responses map[string]MockResponse

	// DefaultResponse is used when no matching pattern is found.
	DefaultResponse *MockResponse

	// RecordedCalls stores all calls made to Run for verification.
	RecordedCalls []RecordedCall

	// StrictMode causes Run to fail if no matching response is found.
	StrictMode bool

	// OnRun, when set, is called for every call before the response is
	// returned. It runs without the mock's lock held.
	OnRun func(ctx context.Context, cmd exec.Command)
}

// MockResponse defines the result of a mocked command.
type MockResponse struct {
	Output string
	Err    error
}

// RecordedCall stores information about a command execution.
type RecordedCall struct {
	Command exec.Command
	Key     string
}

// NewMockCommandExecutor creates a new mock executor with empty responses.
func NewMockCommandExecutor() *MockCommandExecutor {
	return &MockCommandExecutor{
		Responses:     make(map[string]MockResponse),
		RecordedCalls: make([]RecordedCall, 0),
	}
}

// Run records the call and returns the configured response.
func (m *MockCommandExecutor) Run(ctx context.Context, cmd exec.Command) (string, error) {
	key := Key(cmd)

	m.mu.Lock()
	m.RecordedCalls = append(m.RecordedCalls, RecordedCall{Command: cmd, Key: key})
	hook := m.OnRun
	resp, ok := m.lookup(key)
	m.mu.Unlock()

	if hook != nil {
		hook(ctx, cmd)
	}

	if !ok {
		if m.StrictMode {
			return "", fmt.Errorf("mock: no response configured for command: %s", key)
		}
		return "\n", nil
	}
	return resp.Output, resp.Err
}

func (m *MockCommandExecutor) lookup(key string) (MockResponse, bool) {
	if resp, ok := m.Responses[key]; ok {
		return resp, true
	}

	best := ""
	for pattern := range m.Responses {
		if strings.HasPrefix(key, pattern) && len(pattern) > len(best) {
			best = pattern
		}
	}
	if best != "" {
		return m.Responses[best], true
	}

	if m.DefaultResponse != nil {
		return *m.DefaultResponse, true
	}
	return MockResponse{}, false
}

// Key renders cmd as the space-joined argv used for response lookup.
func Key(cmd exec.Command) string {
	return strings.Join(cmd.Argv(), " ")
}

// AddResponse registers a response for a command prefix.
func (m *MockCommandExecutor) AddResponse(commandPattern string, response MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[commandPattern] = response
}

// AddOutput registers a successful response.
func (m *MockCommandExecutor) AddOutput(commandPattern, output string) {
	m.AddResponse(commandPattern, MockResponse{Output: output})
}

// AddFailure registers a non-zero exit carrying output, the way
// exec.RealCommandExecutor reports it.
func (m *MockCommandExecutor) AddFailure(commandPattern, output string, exitCode int) {
	m.AddResponse(commandPattern, MockResponse{
		Output: output,
		Err: dserrors.CommandError{
			Kind:     dserrors.KindCommandFailed,
			Command:  commandPattern,
			ExitCode: exitCode,
			Output:   output,
			Message:  fmt.Sprintf("exit status %d", exitCode),
		},
	})
}

// Calls returns the keys of all recorded calls in order.
func (m *MockCommandExecutor) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.RecordedCalls))
	for _, call := range m.RecordedCalls {
		keys = append(keys, call.Key)
	}
	return keys
}

// CallsWithPrefix returns the recorded calls whose key starts with prefix.
func (m *MockCommandExecutor) CallsWithPrefix(prefix string) []RecordedCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matches []RecordedCall
	for _, call := range m.RecordedCalls {
		if strings.HasPrefix(call.Key, prefix) {
			matches = append(matches, call)
		}
	}
	return matches
}

// CallCount returns the number of times Run was called.
func (m *MockCommandExecutor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.RecordedCalls)
}

// ResetCalls clears recorded calls but keeps responses.
func (m *MockCommandExecutor) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RecordedCalls = make([]RecordedCall, 0)
}

// AssertCallCount verifies the number of calls whose key starts with prefix.
func (m *MockCommandExecutor) AssertCallCount(t interface{ Error(args ...interface{}) }, prefix string, expected int) bool {
	calls := m.CallsWithPrefix(prefix)
	if len(calls) != expected {
		t.Error("expected command", prefix, "to be called", expected, "times, but was called", len(calls), "times")
		return false
	}
	return true
}

// ZliMockResponses provides canned zli output.
type ZliMockResponses struct{}

// Version returns a `zli --version` response.
func (ZliMockResponses) Version() MockResponse {
	return MockResponse{Output: "6.23.0\n\n"}
}

// LoginSucceeded returns a successful service-account login response.
func (ZliMockResponses) LoginSucceeded() MockResponse {
	return MockResponse{Output: "Logged in as service account zligate@example.iam.gserviceaccount.com\n\n"}
}

// GenerateSucceeded returns a successful `zli generate sshConfig` response.
func (ZliMockResponses) GenerateSucceeded() MockResponse {
	return MockResponse{Output: "SSH configuration written to /home/.ssh/config\n\n"}
}
