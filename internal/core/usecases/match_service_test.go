package usecases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/neighborhelper/internal/core/domain"
	"github.com/samirrijal/neighborhelper/internal/core/usecases"
)

type matchFixture struct {
	repo     *mockPostRepo
	sessions *usecases.SessionService
	pub      *recordingPublisher
	svc      *usecases.MatchService
}

func newMatchFixture(t *testing.T, posts ...domain.Post) *matchFixture {
	t.Helper()
	repo := newMockPostRepo(posts...)
	pub := newRecordingPublisher()
	sessions := usecases.NewSessionService(newFakeProvider(), pub, newFakeSurface, usecases.SessionOptions{})
	t.Cleanup(sessions.CloseAll)
	feed := usecases.NewFeedService(repo, nil)
	return &matchFixture{
		repo:     repo,
		sessions: sessions,
		pub:      pub,
		svc:      usecases.NewMatchService(feed, sessions, pub),
	}
}

func TestMatchService_Match(t *testing.T) {
	f := newMatchFixture(t, testPosts()...)

	m, err := f.svc.Match(context.Background(), "1", "helper-7")
	require.NoError(t, err)

	assert.NotEmpty(t, m.ID)
	assert.Equal(t, "1", m.PostID)
	assert.Equal(t, "helper-7", m.HelperID)
	assert.Equal(t, "Maishan Nadis", m.Requester.Label)
	assert.Equal(t, requesterPoint, m.Requester.Point)
	assert.Equal(t, "Uttara Sector 7", m.Address)

	sess, err := f.sessions.Get(m.SessionID)
	require.NoError(t, err)
	assert.Equal(t, m.Requester, sess.Controller.Target())

	post, _ := f.repo.GetByID(context.Background(), "1")
	assert.True(t, post.Accepted)
	assert.Equal(t, 4, post.Likes)

	require.Len(t, f.pub.matches, 1)
	assert.Equal(t, m.ID, f.pub.matches[0].ID)
}

func TestMatchService_PublishFailureIsNotFatal(t *testing.T) {
	f := newMatchFixture(t, testPosts()...)
	f.pub.matchErr = errors.New("broker down")

	m, err := f.svc.Match(context.Background(), "1", "helper-7")
	require.NoError(t, err)
	assert.NotEmpty(t, m.SessionID)
}

func TestMatchService_PostWithoutLocation(t *testing.T) {
	f := newMatchFixture(t, testPosts()...)

	_, err := f.svc.Match(context.Background(), "2", "helper-7")
	assert.True(t, errors.Is(err, domain.ErrInvalidCoordinate))

	post, _ := f.repo.GetByID(context.Background(), "2")
	assert.False(t, post.Accepted)
	assert.Empty(t, f.sessions.List())
}

func TestMatchService_RollsBackAcceptWhenSessionFails(t *testing.T) {
	bad := domain.Post{ID: "9", Username: "x", Likes: 1, Location: &domain.GeoPoint{Lat: 200, Lon: 0}}
	f := newMatchFixture(t, bad)

	_, err := f.svc.Match(context.Background(), "9", "helper-7")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidCoordinate))

	post, _ := f.repo.GetByID(context.Background(), "9")
	assert.False(t, post.Accepted)
	assert.Equal(t, 1, post.Likes)
}

func TestMatchService_Validation(t *testing.T) {
	f := newMatchFixture(t, testPosts()...)

	_, err := f.svc.Match(context.Background(), "1", " ")
	assert.Error(t, err)

	_, err = f.svc.Match(context.Background(), "missing", "helper-7")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
