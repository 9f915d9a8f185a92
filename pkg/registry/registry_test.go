package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

const (
	directYAML = `
models:
  - name: llama
    url: http://llama:8000/health
    endpoints:
      - url: http://ignored:8000/health
  - name: mixtral
    url: http://mixtral:8000/health
`
	endpointYAML = `
models:
  - name: mixtral
    endpoints:
      - type: openai
        url: http://mixtral-a:8000/health
      - url: http://mixtral-b:8000/health
`
)

// RegistryTestSuite tests model descriptor resolution and the registry snapshot
type RegistryTestSuite struct {
	suite.Suite
	tempDir string
}

func (s *RegistryTestSuite) SetupTest() {
	s.tempDir = s.T().TempDir()
}

func (s *RegistryTestSuite) writeFile(name, content string) string {
	path := filepath.Join(s.tempDir, name)
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o600))
	return path
}

func (s *RegistryTestSuite) TestResolvePrefersDirectURL() {
	model := ModelDescriptor{
		Name:      "llama",
		URL:       "http://llama:8000/health",
		Endpoints: []EndpointDescriptor{{URL: "http://other:8000/health"}},
	}

	target, err := model.Resolve()
	s.NoError(err)
	s.Equal(TargetDirect, target.Kind)
	s.Equal("http://llama:8000/health", target.URL)
	s.Equal("llama", target.Model)
}

func (s *RegistryTestSuite) TestResolveFallsBackToFirstEndpoint() {
	model := ModelDescriptor{
		Name: "mixtral",
		Endpoints: []EndpointDescriptor{
			{URL: "http://mixtral-a:8000/health"},
			{URL: "http://mixtral-b:8000/health"},
		},
	}

	target, err := model.Resolve()
	s.NoError(err)
	s.Equal(TargetEndpoint, target.Kind)
	s.Equal("http://mixtral-a:8000/health", target.URL)
}

func (s *RegistryTestSuite) TestResolveNoTarget() {
	testCases := []ModelDescriptor{
		{Name: "empty"},
		{Name: "blank-url", URL: "   "},
		{Name: "blank-endpoint", Endpoints: []EndpointDescriptor{{URL: ""}, {URL: "http://second"}}},
	}

	for _, model := range testCases {
		_, err := model.Resolve()
		s.ErrorIs(err, ErrNoTarget, model.Name)
	}
}

func (s *RegistryTestSuite) TestRegistryUsesFirstModelOnly() {
	reg := NewStatic([]ModelDescriptor{
		{Name: "first", Endpoints: []EndpointDescriptor{{URL: "http://first/health"}}},
		{Name: "second", URL: "http://second/health"},
	})

	target, err := reg.ResolveTarget()
	s.NoError(err)
	s.Equal("first", target.Model)
	s.Equal(TargetEndpoint, target.Kind)
}

func (s *RegistryTestSuite) TestRegistryEmpty() {
	_, err := NewStatic(nil).ResolveTarget()
	s.ErrorIs(err, ErrNoModels)

	_, err = (&Registry{}).ResolveTarget()
	s.ErrorIs(err, ErrNoModels)
}

func (s *RegistryTestSuite) TestRegistrySnapshotIsCopied() {
	models := []ModelDescriptor{{Name: "a", URL: "http://a"}}
	reg := NewStatic(models)

	models[0].URL = "http://mutated"
	returned := reg.Models()
	returned[0].URL = "http://mutated-again"

	target, err := reg.ResolveTarget()
	s.NoError(err)
	s.Equal("http://a", target.URL)
}

func (s *RegistryTestSuite) TestTargetKindString() {
	s.Equal("direct", TargetDirect.String())
	s.Equal("endpoint", TargetEndpoint.String())
	s.Equal("unknown", TargetKind(9).String())
}

func (s *RegistryTestSuite) TestLoadDirect() {
	reg, err := Load(s.writeFile("models.yaml", directYAML))
	s.Require().NoError(err)

	s.Len(reg.Models(), 2)
	target, err := reg.ResolveTarget()
	s.NoError(err)
	s.Equal("http://llama:8000/health", target.URL)
}

func (s *RegistryTestSuite) TestLoadEndpoints() {
	reg, err := Load(s.writeFile("models.yaml", endpointYAML))
	s.Require().NoError(err)

	models := reg.Models()
	s.Require().Len(models, 1)
	s.Equal("openai", models[0].Endpoints[0].Type)

	target, err := reg.ResolveTarget()
	s.NoError(err)
	s.Equal(TargetEndpoint, target.Kind)
	s.Equal("http://mixtral-a:8000/health", target.URL)
}

func (s *RegistryTestSuite) TestLoadErrors() {
	_, err := Load(filepath.Join(s.tempDir, "missing.yaml"))
	s.ErrorIs(err, ErrInvalidConfig)

	_, err = Load(s.writeFile("bad.yaml", "models: [\n"))
	s.ErrorIs(err, ErrInvalidConfig)

	_, err = Load(s.writeFile("empty.yaml", "models: []\n"))
	s.ErrorIs(err, ErrInvalidConfig)
	s.ErrorIs(err, ErrNoModels)

	_, err = Load(s.writeFile("untargeted.yaml", "models:\n  - name: x\n"))
	s.ErrorIs(err, ErrInvalidConfig)
	s.ErrorIs(err, ErrNoTarget)
}

func (s *RegistryTestSuite) TestWatcherReloadsOnWrite() {
	path := s.writeFile("models.yaml", directYAML)
	reg, err := Load(path)
	s.Require().NoError(err)

	watcher, err := NewWatcher(path, reg, 20*time.Millisecond)
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		watcher.Start(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	s.Require().NoError(os.WriteFile(path, []byte(endpointYAML), 0o600))

	s.Eventually(func() bool {
		target, err := reg.ResolveTarget()
		return err == nil && target.URL == "http://mixtral-a:8000/health"
	}, 5*time.Second, 20*time.Millisecond)
}

func (s *RegistryTestSuite) TestWatcherKeepsSnapshotOnInvalidFile() {
	path := s.writeFile("models.yaml", directYAML)
	reg, err := Load(path)
	s.Require().NoError(err)

	watcher, err := NewWatcher(path, reg, 10*time.Millisecond)
	s.Require().NoError(err)

	s.Require().NoError(os.WriteFile(path, []byte("models: []\n"), 0o600))
	watcher.reload()
	watcher.close()

	target, err := reg.ResolveTarget()
	s.NoError(err)
	s.Equal("http://llama:8000/health", target.URL)
}

func (s *RegistryTestSuite) TestNewWatcherMissingDirectory() {
	_, err := NewWatcher(filepath.Join(s.tempDir, "nope", "models.yaml"), NewStatic(nil), 0)
	s.Error(err)
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistryTestSuite))
}
