package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/roadclosures/capture/internal/core/domain"
)

// openSessionRequest starts a capture session.
type openSessionRequest struct {
	Kind      string `json:"kind"`       // "create" | "edit"
	ClosureID string `json:"closure_id"` // required for edit
	Force     bool   `json:"force"`      // replace a live session
}

// OpenSessionHandler starts the singleton selection session.
func OpenSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req openSessionRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		kind := domain.SessionKind(req.Kind)
		if kind == "" {
			kind = domain.SessionCreate
		}
		if kind != domain.SessionCreate && kind != domain.SessionEdit {
			return errBadRequest(c, "kind must be create or edit")
		}
		if kind == domain.SessionEdit && req.ClosureID == "" {
			return errBadRequest(c, "closure_id is required for edit sessions")
		}

		snap, err := deps.Selection.Open(kind, req.ClosureID, req.Force)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.Status(201).JSON(snap)
	}
}

// CloseSessionHandler discards the live session. Idempotent.
func CloseSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		deps.Selection.Close()
		return c.SendStatus(204)
	}
}

// GetSessionHandler returns the live session snapshot.
func GetSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap, err := deps.Selection.Snapshot()
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(snap)
	}
}

// SetModeHandler switches the geometry mode, clearing collected points.
func SetModeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Mode string `json:"mode"`
		}
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		mode := domain.GeometryMode(req.Mode)
		if !mode.Valid() {
			return errBadRequest(c, "mode must be point or segment")
		}
		if err := deps.Selection.SetMode(mode); err != nil {
			return errFromDomain(c, err)
		}

		snap, _ := deps.Selection.Snapshot()
		return c.JSON(snap)
	}
}

// AddPointHandler feeds one map click into the session. The response
// reports whether the click was accepted: clicks outside an active
// selection phase are ignored, not errors.
func AddPointHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		}
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Lat < -90 || req.Lat > 90 || req.Lon < -180 || req.Lon > 180 {
			return errBadRequest(c, "lat must be in [-90,90] and lon in [-180,180]")
		}

		accepted, err := deps.Selection.AddPoint(domain.GeoPoint{Lat: req.Lat, Lon: req.Lon})
		if err != nil {
			return errFromDomain(c, err)
		}

		snap, _ := deps.Selection.Snapshot()
		return c.JSON(fiber.Map{
			"accepted": accepted,
			"session":  snap,
		})
	}
}

// ClearPointsHandler empties the point set. Idempotent.
func ClearPointsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Selection.Clear(); err != nil {
			return errFromDomain(c, err)
		}
		snap, _ := deps.Selection.Snapshot()
		return c.JSON(snap)
	}
}

// FinishSelectionHandler ends point collection; the session stays live
// for submission.
func FinishSelectionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Selection.Finish(); err != nil {
			return errFromDomain(c, err)
		}
		snap, _ := deps.Selection.Snapshot()
		return c.JSON(snap)
	}
}

// ResumeSelectionHandler re-enables point input after finish.
func ResumeSelectionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Selection.StartSelection(); err != nil {
			return errFromDomain(c, err)
		}
		snap, _ := deps.Selection.Snapshot()
		return c.JSON(snap)
	}
}

// EffectiveGeometryHandler returns what submission would send right
// now: the routed path in segment mode when routing succeeded, the raw
// clicks otherwise.
func EffectiveGeometryHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := deps.Selection.Snapshot(); err != nil {
			return errFromDomain(c, err)
		}

		eff, ok := deps.Selection.Effective()
		resp := fiber.Map{
			"eligible": deps.Selection.SubmitEligible(),
		}
		if ok {
			resp["geometry"] = eff
		}
		return c.JSON(resp)
	}
}

// SubmitHandler validates the draft against the live selection and
// sends the closure to the backend.
func SubmitHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var draft domain.ClosureDraft
		if err := c.BodyParser(&draft); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		closure, err := deps.Submission.Submit(c.UserContext(), draft)
		if err != nil {
			LoggerFromCtx(c.UserContext()).Warn("submission rejected", "error", err)
			return errFromDomain(c, err)
		}

		LoggerFromCtx(c.UserContext()).Info("closure submitted", "closure_id", closure.ID)
		return c.Status(201).JSON(closure)
	}
}

// GetClosureHandler fetches a closure record from the backend, e.g. to
// pre-fill an edit session.
func GetClosureHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "closure id is required")
		}
		closure, err := deps.Backend.Get(c.UserContext(), id)
		if err != nil {
			return errNotFound(c, "closure not found")
		}
		return c.JSON(closure)
	}
}

// ListSubmissionsHandler returns journaled submission attempts,
// newest first.
func ListSubmissionsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 50)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 200 {
			limit = 50
		}

		records, total, err := deps.Submission.History(c.UserContext(), offset, limit)
		if err != nil {
			return errInternal(c, err.Error())
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: records, Pagination: pg})
	}
}
