package incident

import (
	"context"
	"sync"
)

type mockAnalyzer struct {
	mu      sync.Mutex
	calls   int
	reqs    []*AnalysisRequest
	text    string
	err     error
	entered chan struct{}
	release chan struct{}
}

func (m *mockAnalyzer) Analyze(ctx context.Context, req *AnalysisRequest) (string, error) {
	m.mu.Lock()
	m.calls++
	m.reqs = append(m.reqs, req)
	m.mu.Unlock()

	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.release != nil {
		select {
		case <-m.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return m.text, m.err
}

func (m *mockAnalyzer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []*Record
	err  error
}

func (m *mockNotifier) Send(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.sent = append(m.sent, &cp)
	return m.err
}

type staticVCS VCSContext

func (s staticVCS) Resolve(context.Context) VCSContext { return VCSContext(s) }
