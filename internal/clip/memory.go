package clip

import "sync"

// Memory is an in-process clipboard. It backs headless environments where no
// display server is available and stands in for the OS clipboard in tests.
//
// Write bumps the change counter exactly like the real platform counters do,
// including for the daemon's own writes — the loop guard, not the counter,
// is what keeps self-written content from being re-dispatched.
type Memory struct {
	mu      sync.Mutex
	content string
	count   int64
}

// NewMemory returns an empty in-memory clipboard.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Name() string { return "in-memory" }

func (m *Memory) Read() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.content, nil
}

func (m *Memory) Write(content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.content = content
	m.count++
	return nil
}

func (m *Memory) ChangeCount() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count, nil
}

func (m *Memory) Close() {}
