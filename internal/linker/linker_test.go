// File path: internal/linker/linker_test.go
package linker

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/geekygoose/gander/internal/compliance"
	"github.com/geekygoose/gander/internal/config"
)

type fakeStore struct {
	links map[string]compliance.ControlLink
}

func newFakeStore() *fakeStore {
	return &fakeStore{links: make(map[string]compliance.ControlLink)}
}

func (s *fakeStore) CreateLink(_ context.Context, link compliance.ControlLink) (compliance.ControlLink, bool, error) {
	key := link.DocumentID + "/" + link.ControlID
	if existing, ok := s.links[key]; ok {
		return existing, false, nil
	}
	link.ID = uuid.NewString()
	s.links[key] = link
	return link, true, nil
}

func testControls() []compliance.Control {
	return []compliance.Control{
		{ID: "c1", Code: "EE-1", Title: "Application Control", Framework: "Essential Eight"},
		{ID: "c8", Code: "EE-8", Title: "Regular Backups", Framework: "Essential Eight"},
	}
}

func testLinker(store Store) *Linker {
	return New(store, config.Static{Settings: config.Default()})
}

func TestApplyCreatesLinkAboveThreshold(t *testing.T) {
	store := newFakeStore()
	l := testLinker(store)
	link, err := l.Apply(context.Background(), "doc-1", []compliance.Suggestion{
		{ControlCode: "EE-8", Confidence: 0.95, Reasoning: "backup policy"},
	}, testControls())
	require.NoError(t, err)
	require.NotNil(t, link)
	require.Equal(t, "c8", link.ControlID)
	require.Len(t, store.links, 1)
}

func TestApplyBelowThresholdIsNotAnError(t *testing.T) {
	store := newFakeStore()
	l := testLinker(store)
	link, err := l.Apply(context.Background(), "doc-1", []compliance.Suggestion{
		{ControlCode: "EE-8", Confidence: 0.89},
	}, testControls())
	require.NoError(t, err)
	require.Nil(t, link)
	require.Empty(t, store.links)
}

func TestApplyIdempotent(t *testing.T) {
	store := newFakeStore()
	l := testLinker(store)
	suggestions := []compliance.Suggestion{{ControlCode: "EE-1", Confidence: 0.95}}

	first, err := l.Apply(context.Background(), "doc-1", suggestions, testControls())
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := l.Apply(context.Background(), "doc-1", suggestions, testControls())
	require.NoError(t, err)
	require.NotNil(t, second)
	require.Equal(t, first.ID, second.ID)
	require.Len(t, store.links, 1)
}

func TestApplyCollapsesToHighestConfidence(t *testing.T) {
	store := newFakeStore()
	l := testLinker(store)
	link, err := l.Apply(context.Background(), "doc-1", []compliance.Suggestion{
		{ControlCode: "EE-1", Confidence: 0.91},
		{ControlCode: "EE-8", Confidence: 0.97},
	}, testControls())
	require.NoError(t, err)
	require.NotNil(t, link)
	require.Equal(t, "c8", link.ControlID)
	require.Len(t, store.links, 1)
}

func TestApplyUnknownControlCode(t *testing.T) {
	store := newFakeStore()
	l := testLinker(store)
	link, err := l.Apply(context.Background(), "doc-1", []compliance.Suggestion{
		{ControlCode: "ZZ-99", Confidence: 0.99},
	}, testControls())
	require.NoError(t, err)
	require.Nil(t, link)
	require.Empty(t, store.links)
}

func TestConsensusAgreementTakesMinimumConfidence(t *testing.T) {
	agreed := Consensus(
		&compliance.Suggestion{ControlCode: "EE-8", Confidence: 0.95, Reasoning: "primary"},
		&compliance.Suggestion{ControlCode: "ee-8", Confidence: 0.80, Reasoning: "secondary"},
	)
	require.NotNil(t, agreed)
	require.Equal(t, 0.80, agreed.Confidence)
	require.Equal(t, "secondary", agreed.Reasoning)
}

func TestConsensusDisagreementYieldsNothing(t *testing.T) {
	agreed := Consensus(
		&compliance.Suggestion{ControlCode: "EE-1", Confidence: 0.95},
		&compliance.Suggestion{ControlCode: "EE-8", Confidence: 0.96},
	)
	require.Nil(t, agreed)
}

func TestConsensusMissingSideYieldsNothing(t *testing.T) {
	require.Nil(t, Consensus(&compliance.Suggestion{ControlCode: "EE-1", Confidence: 0.95}, nil))
	require.Nil(t, Consensus(nil, &compliance.Suggestion{ControlCode: "EE-1", Confidence: 0.95}))
}

func TestThresholdMonotonicity(t *testing.T) {
	// Raising the threshold can only remove links, never add them.
	for _, confidence := range []float64{0.85, 0.90, 0.95} {
		linkedAt := make([]bool, 0, 3)
		for _, threshold := range []float64{0.80, 0.90, 0.99} {
			store := newFakeStore()
			settings := config.Default()
			settings.MinConfidence = threshold
			l := New(store, config.Static{Settings: settings})
			link, err := l.Apply(context.Background(), "doc-1", []compliance.Suggestion{
				{ControlCode: "EE-1", Confidence: confidence},
			}, testControls())
			require.NoError(t, err)
			linkedAt = append(linkedAt, link != nil)
		}
		for i := 1; i < len(linkedAt); i++ {
			if linkedAt[i] && !linkedAt[i-1] {
				t.Fatalf("confidence %f linked at stricter threshold but not looser one", confidence)
			}
		}
	}
}
