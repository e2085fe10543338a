package http

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/neighborhelper/internal/core/domain"
	"github.com/samirrijal/neighborhelper/internal/core/usecases"
)

// ---- Feed ----

// ListPostsHandler returns the feed with offset/limit pagination.
func ListPostsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		posts, err := deps.Feed.List(c.UserContext())
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(paginate(c, posts))
	}
}

// GetPostHandler returns a single post.
func GetPostHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		post, err := deps.Feed.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(post)
	}
}

// PostActionHandler applies a feed action (accept, like, comment) to a post.
func PostActionHandler(deps *Dependencies, action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		var (
			post *domain.Post
			err  error
		)
		switch action {
		case "accept":
			post, err = deps.Feed.Accept(c.UserContext(), id)
		case "like":
			post, err = deps.Feed.Like(c.UserContext(), id)
		case "comment":
			post, err = deps.Feed.Comment(c.UserContext(), id)
		default:
			return errBadRequest(c, "unknown action: "+action)
		}
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(post)
	}
}

type matchRequest struct {
	HelperID string `json:"helper_id"`
}

// MatchPostHandler accepts a post for a helper and opens the tracking
// session towards the requester.
func MatchPostHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req matchRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if strings.TrimSpace(req.HelperID) == "" {
			return errBadRequest(c, "helper_id is required")
		}
		if deps.Matches == nil {
			return errInternal(c, "matching not available")
		}

		m, err := deps.Matches.Match(c.UserContext(), c.Params("id"), req.HelperID)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(m)
	}
}

// ---- Tracking sessions ----

// SessionView is the screen-facing rendering of a session.
type SessionView struct {
	ID                string                 `json:"id"`
	Requester         domain.RequesterTarget `json:"requester"`
	CreatedAt         time.Time              `json:"created_at"`
	State             domain.TrackingState   `json:"state"`
	DistanceText      string                 `json:"distance_text"`
	Subtitle          string                 `json:"subtitle"`
	Indicator         string                 `json:"indicator"`
	PermissionPending bool                   `json:"permission_pending"`
}

func newSessionView(s *usecases.Session) SessionView {
	return sessionViewOf(s, s.Controller.State())
}

func sessionViewOf(s *usecases.Session, st domain.TrackingState) SessionView {
	return SessionView{
		ID:                s.ID,
		Requester:         s.Target,
		CreatedAt:         s.CreatedAt,
		State:             st,
		DistanceText:      st.DistanceText(),
		Subtitle:          st.Subtitle(),
		Indicator:         st.Indicator(),
		PermissionPending: s.Gate.Pending(),
	}
}

type createSessionRequest struct {
	Label string   `json:"label"`
	Lat   *float64 `json:"lat"`
	Lon   *float64 `json:"lon"`
}

// CreateSessionHandler opens a tracking session for a requester location.
func CreateSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req createSessionRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Lat == nil || req.Lon == nil {
			return errBadRequest(c, "lat and lon are required")
		}

		sess, err := deps.Sessions.Open(c.UserContext(), domain.RequesterTarget{
			Point: domain.GeoPoint{Lat: *req.Lat, Lon: *req.Lon},
			Label: req.Label,
		})
		if err != nil {
			return errFromDomain(c, err)
		}
		c.Location("/v1/tracking/sessions/" + sess.ID)
		return c.Status(fiber.StatusCreated).JSON(newSessionView(sess))
	}
}

// ListSessionsHandler returns every open session.
func ListSessionsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessions := deps.Sessions.List()
		views := make([]SessionView, 0, len(sessions))
		for _, s := range sessions {
			views = append(views, newSessionView(s))
		}
		return c.JSON(views)
	}
}

// GetSessionHandler returns the latest snapshot of a session.
func GetSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := deps.Sessions.Get(c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(newSessionView(sess))
	}
}

// SessionMarkersHandler returns the map overlays and viewport of a session.
func SessionMarkersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := deps.Sessions.Get(c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(fiber.Map{
			"markers":  sess.Surface.Markers(),
			"viewport": sess.Surface.Viewport(),
		})
	}
}

// RequestPermissionHandler shows the consent prompt again (first request or retry).
func RequestPermissionHandler(deps *Dependencies) fiber.Handler {
	return sessionOp(func(id string) (*usecases.Session, error) {
		return deps.Sessions.RequestPermission(id)
	})
}

type decisionRequest struct {
	Granted *bool `json:"granted"`
}

// DecidePermissionHandler relays the user's answer to the consent prompt.
func DecidePermissionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req decisionRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Granted == nil {
			return errBadRequest(c, "granted is required")
		}
		sess, err := deps.Sessions.Decide(c.Params("id"), *req.Granted)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.Status(fiber.StatusAccepted).JSON(newSessionView(sess))
	}
}

// RevokePermissionHandler withdraws location access for a session.
func RevokePermissionHandler(deps *Dependencies) fiber.Handler {
	return sessionOp(func(id string) (*usecases.Session, error) {
		return deps.Sessions.Revoke(id)
	})
}

// DeleteSessionHandler disposes a session, as leaving the screen does.
func DeleteSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Sessions.Close(c.UserContext(), c.Params("id")); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// sessionOp adapts a session operation whose effect lands asynchronously.
func sessionOp(op func(id string) (*usecases.Session, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := op(c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.Status(fiber.StatusAccepted).JSON(newSessionView(sess))
	}
}

// ---- Device ----

// DeviceFixHandler feeds a position fix into the in-process provider.
func DeviceFixHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var fix domain.GeoPoint
		if err := c.BodyParser(&fix); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		deps.Device.Emit(fix)
		return c.SendStatus(fiber.StatusAccepted)
	}
}
