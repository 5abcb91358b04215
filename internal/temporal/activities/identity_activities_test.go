package activities

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/helixir/citation-enrichment-service/internal/domain"
	"github.com/helixir/citation-enrichment-service/internal/registries"
	"github.com/helixir/citation-enrichment-service/internal/repository"
)

func citationWithAuthors(id uuid.UUID, version int64) *domain.Citation {
	citation := testCitation(id, version)
	citation.ProcessingStage = domain.StageIdentifiersExtracted
	citation.Authors = []domain.CitationAuthor{
		{Name: "A. First", ORCID: "0000-0000-0000-0001"},
		{Name: "B. Second", ORCID: "0000-0000-0000-0002"},
		{Name: "C. Third", ORCID: "0000-0000-0000-0003"},
	}
	return citation
}

func TestResolveAuthorIdentities_PerAuthorIsolation(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	citations := &mockCitationRepository{}
	citationID := uuid.New()
	citation := citationWithAuthors(citationID, 6)

	// Author two is unknown to the registry; one and three resolve.
	orcid := &fakeIdentitySource{
		enabled: true,
		results: map[string]identityResult{
			"0000-0000-0000-0001": {person: &registries.PersonRecord{ORCID: "0000-0000-0000-0001", Name: "Alice First", Affiliation: "First University"}, status: 200},
			"0000-0000-0000-0002": {status: 404},
			"0000-0000-0000-0003": {person: &registries.PersonRecord{ORCID: "0000-0000-0000-0003", Name: "Carol Third"}, status: 200},
		},
	}

	citations.On("Get", mock.Anything, citationID).Return(citation, nil)
	citations.On("CasEdit", mock.Anything, citationID, int64(6), mock.MatchedBy(func(patch repository.CitationPatch) bool {
		if patch.Authors == nil || len(*patch.Authors) != 3 {
			return false
		}
		authors := *patch.Authors
		return authors[0].Name == "Alice First" && authors[0].Affiliation == "First University" && authors[0].ORCID == "0000-0000-0000-0001" &&
			authors[1].Name == "B. Second" && authors[1].ORCID == "" &&
			authors[2].Name == "Carol Third" && authors[2].ORCID == "0000-0000-0000-0003" &&
			patch.ProcessingStage != nil && *patch.ProcessingStage == domain.StageIdentitiesResolved
	})).Return(nil)

	act := NewIdentityActivities(citations, orcid, 3, nil)
	env.RegisterActivity(act.ResolveAuthorIdentities)

	result, err := env.ExecuteActivity(act.ResolveAuthorIdentities, ResolveAuthorIdentitiesInput{CitationID: citationID})
	require.NoError(t, err)

	var output ResolveAuthorIdentitiesOutput
	require.NoError(t, result.Get(&output))

	assert.True(t, output.Applied)
	assert.Equal(t, 2, output.Resolved)
	assert.Equal(t, 1, output.Cleared)
	assert.Equal(t, 0, output.Skipped)
	assert.Equal(t, []string{"0000-0000-0000-0001", "0000-0000-0000-0002", "0000-0000-0000-0003"}, orcid.asked)

	citations.AssertExpectations(t)
}

func TestResolveAuthorIdentities_TimeoutAbortsWithoutWrite(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	citations := &mockCitationRepository{}
	citationID := uuid.New()
	citation := citationWithAuthors(citationID, 6)

	// The second lookup times out mid-batch; nothing may be written even
	// though the first author already resolved.
	orcid := &fakeIdentitySource{
		enabled: true,
		results: map[string]identityResult{
			"0000-0000-0000-0001": {person: &registries.PersonRecord{ORCID: "0000-0000-0000-0001", Name: "Alice First"}, status: 200},
			"0000-0000-0000-0002": {status: 504},
		},
	}

	citations.On("Get", mock.Anything, citationID).Return(citation, nil)

	act := NewIdentityActivities(citations, orcid, 3, nil)
	env.RegisterActivity(act.ResolveAuthorIdentities)

	_, err := env.ExecuteActivity(act.ResolveAuthorIdentities, ResolveAuthorIdentitiesInput{CitationID: citationID})
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, ErrTypeTransientService, appErr.Type())

	// The third author was never asked and no write happened.
	assert.Equal(t, []string{"0000-0000-0000-0001", "0000-0000-0000-0002"}, orcid.asked)
	citations.AssertNotCalled(t, "CasEdit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveAuthorIdentities_TransportErrorAborts(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	citations := &mockCitationRepository{}
	citationID := uuid.New()
	citation := citationWithAuthors(citationID, 6)

	orcid := &fakeIdentitySource{
		enabled: true,
		results: map[string]identityResult{
			"0000-0000-0000-0001": {err: errors.New("connection reset")},
		},
	}

	citations.On("Get", mock.Anything, citationID).Return(citation, nil)

	act := NewIdentityActivities(citations, orcid, 3, nil)
	env.RegisterActivity(act.ResolveAuthorIdentities)

	_, err := env.ExecuteActivity(act.ResolveAuthorIdentities, ResolveAuthorIdentitiesInput{CitationID: citationID})
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, ErrTypeTransientService, appErr.Type())
	citations.AssertNotCalled(t, "CasEdit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveAuthorIdentities_NoIdentityReferencesStillAdvancesStage(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	citations := &mockCitationRepository{}
	citationID := uuid.New()
	citation := testCitation(citationID, 6)
	citation.Authors = []domain.CitationAuthor{
		{Name: "A. First"},
		{Name: "B. Second"},
	}

	orcid := &fakeIdentitySource{enabled: true}

	citations.On("Get", mock.Anything, citationID).Return(citation, nil)
	citations.On("CasEdit", mock.Anything, citationID, int64(6), mock.MatchedBy(func(patch repository.CitationPatch) bool {
		return patch.ProcessingStage != nil && *patch.ProcessingStage == domain.StageIdentitiesResolved
	})).Return(nil)

	act := NewIdentityActivities(citations, orcid, 3, nil)
	env.RegisterActivity(act.ResolveAuthorIdentities)

	result, err := env.ExecuteActivity(act.ResolveAuthorIdentities, ResolveAuthorIdentitiesInput{CitationID: citationID})
	require.NoError(t, err)

	var output ResolveAuthorIdentitiesOutput
	require.NoError(t, result.Get(&output))

	assert.True(t, output.Applied)
	assert.Equal(t, 0, output.Resolved)
	assert.Equal(t, 2, output.Skipped)
	assert.Empty(t, orcid.asked)

	citations.AssertExpectations(t)
}

func TestResolveAuthorIdentities_SkipsProcessedCitation(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	citations := &mockCitationRepository{}
	citationID := uuid.New()
	citation := citationWithAuthors(citationID, 6)
	citation.IsProcessed = true

	orcid := &fakeIdentitySource{enabled: true}

	citations.On("Get", mock.Anything, citationID).Return(citation, nil)

	act := NewIdentityActivities(citations, orcid, 3, nil)
	env.RegisterActivity(act.ResolveAuthorIdentities)

	result, err := env.ExecuteActivity(act.ResolveAuthorIdentities, ResolveAuthorIdentitiesInput{CitationID: citationID})
	require.NoError(t, err)

	var output ResolveAuthorIdentitiesOutput
	require.NoError(t, result.Get(&output))

	assert.False(t, output.Applied)
	assert.Empty(t, orcid.asked)
	citations.AssertNotCalled(t, "CasEdit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveAuthorIdentities_UnexpectedStatusLeavesAuthorUntouched(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	citations := &mockCitationRepository{}
	citationID := uuid.New()
	citation := testCitation(citationID, 6)
	citation.Authors = []domain.CitationAuthor{
		{Name: "A. First", ORCID: "0000-0000-0000-0001"},
	}

	orcid := &fakeIdentitySource{
		enabled: true,
		results: map[string]identityResult{
			"0000-0000-0000-0001": {status: 403},
		},
	}

	citations.On("Get", mock.Anything, citationID).Return(citation, nil)
	citations.On("CasEdit", mock.Anything, citationID, int64(6), mock.MatchedBy(func(patch repository.CitationPatch) bool {
		if patch.Authors == nil || len(*patch.Authors) != 1 {
			return false
		}
		author := (*patch.Authors)[0]
		return author.Name == "A. First" && author.ORCID == "0000-0000-0000-0001"
	})).Return(nil)

	act := NewIdentityActivities(citations, orcid, 3, nil)
	env.RegisterActivity(act.ResolveAuthorIdentities)

	result, err := env.ExecuteActivity(act.ResolveAuthorIdentities, ResolveAuthorIdentitiesInput{CitationID: citationID})
	require.NoError(t, err)

	var output ResolveAuthorIdentitiesOutput
	require.NoError(t, result.Get(&output))

	assert.True(t, output.Applied)
	assert.Equal(t, 1, output.Skipped)

	citations.AssertExpectations(t)
}
