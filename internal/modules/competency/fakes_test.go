package competency

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yungbote/neurobridge-competency/internal/gateway"
)

// fakeReasoner answers each call kind with the configured function and counts
// calls. A nil function fails the call.
type fakeReasoner struct {
	extract func(gateway.ExtractRequest) (gateway.ExtractResult, error)
	cluster func(gateway.ClusterRequest) (gateway.ClusterResult, error)
	relate  func(gateway.RelateRequest) (gateway.RelateResult, error)
	match   func(gateway.MatchRequest) (gateway.MatchResult, error)

	mu    sync.Mutex
	calls map[string]int
}

var errFake = errors.New("fake reasoner failure")

func (f *fakeReasoner) count(kind string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[kind]++
}

func (f *fakeReasoner) Calls(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[kind]
}

func (f *fakeReasoner) Extract(_ context.Context, req gateway.ExtractRequest) (gateway.ExtractResult, error) {
	f.count("extract")
	if f.extract == nil {
		return gateway.ExtractResult{}, errFake
	}
	return f.extract(req)
}

func (f *fakeReasoner) Cluster(_ context.Context, req gateway.ClusterRequest) (gateway.ClusterResult, error) {
	f.count("cluster")
	if f.cluster == nil {
		return gateway.ClusterResult{}, errFake
	}
	return f.cluster(req)
}

func (f *fakeReasoner) Relate(_ context.Context, req gateway.RelateRequest) (gateway.RelateResult, error) {
	f.count("relate")
	if f.relate == nil {
		return gateway.RelateResult{}, errFake
	}
	return f.relate(req)
}

func (f *fakeReasoner) Match(_ context.Context, req gateway.MatchRequest) (gateway.MatchResult, error) {
	f.count("match")
	if f.match == nil {
		return gateway.MatchResult{}, errFake
	}
	return f.match(req)
}

type mapLoader map[string]string

func (m mapLoader) LoadText(_ context.Context, ref string) (string, error) {
	text, ok := m[ref]
	if !ok {
		return "", fmt.Errorf("no content for %q", ref)
	}
	return text, nil
}
