package usecases_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/neighborhelper/internal/core/domain"
	"github.com/samirrijal/neighborhelper/internal/core/usecases"
)

func newSessionService(t *testing.T, opts usecases.SessionOptions) (*usecases.SessionService, *fakeProvider, *recordingPublisher) {
	t.Helper()
	provider := newFakeProvider()
	pub := newRecordingPublisher()
	svc := usecases.NewSessionService(provider, pub, newFakeSurface, opts)
	t.Cleanup(svc.CloseAll)
	return svc, provider, pub
}

func waitPhase(t *testing.T, sess *usecases.Session, phase domain.TrackingPhase) domain.TrackingState {
	t.Helper()
	require.Eventually(t, func() bool { return sess.Controller.State().Phase == phase },
		time.Second, time.Millisecond, "last state: %+v", sess.Controller.State())
	return sess.Controller.State()
}

func TestSessionService_OpenRejectsInvalidTarget(t *testing.T) {
	svc, _, _ := newSessionService(t, usecases.SessionOptions{})

	_, err := svc.Open(context.Background(), domain.RequesterTarget{Point: domain.GeoPoint{Lat: math.NaN()}})
	assert.True(t, errors.Is(err, domain.ErrInvalidCoordinate))
	assert.Empty(t, svc.List())
}

func TestSessionService_OpenDefaultsLabel(t *testing.T) {
	svc, _, _ := newSessionService(t, usecases.SessionOptions{})

	sess, err := svc.Open(context.Background(), domain.RequesterTarget{Point: requesterPoint, Label: "  "})
	require.NoError(t, err)
	assert.Equal(t, "Requester", sess.Target.Label)
}

func TestSessionService_AutoGrantTracksImmediately(t *testing.T) {
	svc, provider, pub := newSessionService(t, usecases.SessionOptions{AutoGrant: true})
	provider.setLastKnown(farPoint)

	sess, err := svc.Open(context.Background(), domain.RequesterTarget{Point: requesterPoint, Label: requesterLabel})
	require.NoError(t, err)

	st := waitPhase(t, sess, domain.PhaseTracking)
	require.Eventually(t, func() bool { return sess.Controller.State().DistanceKm != nil }, time.Second, time.Millisecond)
	st = sess.Controller.State()
	assert.InDelta(t, 14.56, *st.DistanceKm, 0.1)

	require.Eventually(t, func() bool { return len(pub.phases(sess.ID)) > 0 }, time.Second, time.Millisecond)
	assert.Contains(t, pub.phases(sess.ID), domain.PhaseTracking)
	assert.Empty(t, pub.prompts, "auto grant never prompts")
}

func TestSessionService_ConsentFlow(t *testing.T) {
	svc, provider, pub := newSessionService(t, usecases.SessionOptions{})

	sess, err := svc.Open(context.Background(), domain.RequesterTarget{Point: requesterPoint, Label: requesterLabel})
	require.NoError(t, err)
	assert.True(t, sess.Gate.Pending())
	assert.Equal(t, []string{sess.ID}, pub.prompts)

	_, err = svc.Decide(sess.ID, false)
	require.NoError(t, err)
	st := waitPhase(t, sess, domain.PhaseDenied)
	assert.Equal(t, "Permission Required", st.DistanceText())

	// a second request while denied retries the prompt
	_, err = svc.RequestPermission(sess.ID)
	require.NoError(t, err)
	waitPhase(t, sess, domain.PhaseAwaitingPermission)
	require.Eventually(t, sess.Gate.Pending, time.Second, time.Millisecond)

	_, err = svc.Decide(sess.ID, true)
	require.NoError(t, err)
	waitPhase(t, sess, domain.PhaseTracking)

	_, err = svc.Revoke(sess.ID)
	require.NoError(t, err)
	waitPhase(t, sess, domain.PhaseDenied)
	subs, cancels, _ := provider.counts()
	assert.Equal(t, 1, subs)
	assert.Equal(t, 1, cancels)
}

func TestSessionService_RequestPermissionWhilePendingDoesNotReprompt(t *testing.T) {
	svc, _, pub := newSessionService(t, usecases.SessionOptions{})

	sess, err := svc.Open(context.Background(), domain.RequesterTarget{Point: requesterPoint, Label: requesterLabel})
	require.NoError(t, err)

	_, err = svc.RequestPermission(sess.ID)
	require.NoError(t, err)
	assert.Len(t, pub.prompts, 1)
}

func TestSessionService_UnknownSession(t *testing.T) {
	svc, _, _ := newSessionService(t, usecases.SessionOptions{})

	_, err := svc.Get("nope")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, err = svc.Decide("nope", true)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, err = svc.Revoke("nope")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, err = svc.RequestPermission("nope")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.True(t, errors.Is(svc.Close(context.Background(), "nope"), domain.ErrNotFound))
}

func TestSessionService_CloseDisposes(t *testing.T) {
	svc, provider, _ := newSessionService(t, usecases.SessionOptions{AutoGrant: true})

	sess, err := svc.Open(context.Background(), domain.RequesterTarget{Point: requesterPoint, Label: requesterLabel})
	require.NoError(t, err)
	waitPhase(t, sess, domain.PhaseTracking)

	require.NoError(t, svc.Close(context.Background(), sess.ID))
	assert.Equal(t, domain.PhaseDisposed, sess.Controller.State().Phase)
	_, _, live := provider.counts()
	assert.Zero(t, live, "subscription released")

	_, err = svc.Get(sess.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.True(t, errors.Is(svc.Close(context.Background(), sess.ID), domain.ErrNotFound))
}

func TestSessionService_ListAndCloseAll(t *testing.T) {
	svc, _, _ := newSessionService(t, usecases.SessionOptions{})

	first, err := svc.Open(context.Background(), domain.RequesterTarget{Point: requesterPoint, Label: "a"})
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	second, err := svc.Open(context.Background(), domain.RequesterTarget{Point: farPoint, Label: "b"})
	require.NoError(t, err)

	list := svc.List()
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)

	svc.CloseAll()
	assert.Empty(t, svc.List())
	assert.Equal(t, domain.PhaseDisposed, first.Controller.State().Phase)
	assert.Equal(t, domain.PhaseDisposed, second.Controller.State().Phase)
}

func TestSessionService_DecisionWithoutPendingRequestIsRejected(t *testing.T) {
	svc, _, _ := newSessionService(t, usecases.SessionOptions{})

	sess, err := svc.Open(context.Background(), domain.RequesterTarget{Point: requesterPoint, Label: requesterLabel})
	require.NoError(t, err)
	_, err = svc.Decide(sess.ID, false)
	require.NoError(t, err)
	waitPhase(t, sess, domain.PhaseDenied)

	// a grant with no prompt showing must not flip the gate behind the screen
	_, err = svc.Decide(sess.ID, true)
	assert.True(t, errors.Is(err, domain.ErrNoPendingRequest))
	assert.Equal(t, domain.PermissionDenied, sess.Gate.CurrentStatus())
	st := sess.Controller.State()
	assert.Equal(t, domain.PhaseDenied, st.Phase)
	assert.Equal(t, domain.PermissionDenied, st.Permission)

	// the retry path still works afterwards
	_, err = svc.RequestPermission(sess.ID)
	require.NoError(t, err)
	require.Eventually(t, sess.Gate.Pending, time.Second, time.Millisecond)
	assert.Equal(t, domain.PermissionDenied, sess.Gate.CurrentStatus())

	_, err = svc.Decide(sess.ID, true)
	require.NoError(t, err)
	waitPhase(t, sess, domain.PhaseTracking)
	assert.Equal(t, domain.PermissionGranted, sess.Gate.CurrentStatus())
	assert.False(t, sess.Gate.Pending())
}

func TestSessionService_OperationsAfterCloseReportClosed(t *testing.T) {
	svc, _, _ := newSessionService(t, usecases.SessionOptions{})

	sess, err := svc.Open(context.Background(), domain.RequesterTarget{Point: requesterPoint, Label: requesterLabel})
	require.NoError(t, err)
	require.NoError(t, svc.Close(context.Background(), sess.ID))

	// a caller that looked the session up before Close still holds it
	assert.True(t, errors.Is(sess.Decide(true), domain.ErrSessionClosed))
	assert.True(t, errors.Is(sess.RequestPermission(), domain.ErrSessionClosed))
	assert.True(t, errors.Is(sess.Revoke(), domain.ErrSessionClosed))
	assert.Equal(t, domain.PhaseDisposed, sess.Controller.State().Phase)
}
