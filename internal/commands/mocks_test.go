package commands_test

import (
	"context"
	"flagwatch/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

type MockReplier struct {
	mock.Mock
}

func (m *MockReplier) Send(channelID, text string) error {
	args := m.Called(channelID, text)
	return args.Error(0)
}

func (m *MockReplier) DirectMessage(userID, text string) error {
	args := m.Called(userID, text)
	return args.Error(0)
}

type MockNames struct {
	mock.Mock
}

func (m *MockNames) CommunityName(communityID string) string {
	return m.Called(communityID).String(0)
}

func (m *MockNames) UserTag(ctx context.Context, userID string) string {
	return m.Called(userID).String(0)
}

// fakeDirectory answers probes from a "community/user" membership set.
type fakeDirectory struct {
	communities []models.Community
	members     map[string]bool
}

func (d fakeDirectory) Communities(context.Context) ([]models.Community, error) {
	return d.communities, nil
}

func (d fakeDirectory) ProbeMembership(_ context.Context, communityID, userID string) (models.Member, bool, error) {
	if d.members[communityID+"/"+userID] {
		return models.Member{UserID: userID, DisplayName: "tag-" + userID}, true, nil
	}
	return models.Member{}, false, nil
}
