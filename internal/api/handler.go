package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/cleared-dev/continuity/internal/buildinfo"
	"github.com/cleared-dev/continuity/internal/continuity"
	"github.com/cleared-dev/continuity/internal/importer"
	"github.com/cleared-dev/continuity/internal/ledger"
	"github.com/cleared-dev/continuity/internal/logging"
	"github.com/cleared-dev/continuity/internal/model"
)

// ReconcileResponse is the JSON response from /api/reconcile.
type ReconcileResponse struct {
	Success         bool                   `json:"success"`
	Error           string                 `json:"error,omitempty"`
	DuplicateGroups []model.DuplicateGroup `json:"duplicate_groups,omitempty"`
	Report          *continuity.Report     `json:"report,omitempty"`
	Removed         int                    `json:"removed"`
	Ledger          []LedgerRow            `json:"ledger"`
}

// LedgerRow is one row of the combined ledger after the removal plan is applied.
type LedgerRow struct {
	Statement   string `json:"statement"`
	Date        string `json:"date"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Balance     string `json:"balance"`
}

// Handler holds the HTTP handlers for the API.
type Handler struct {
	Log logrus.FieldLogger
}

// NewApp builds the fiber app with all routes registered.
func NewApp(log logrus.FieldLogger) *fiber.App {
	h := &Handler{Log: logging.OrDiscard(log)}
	app := fiber.New(fiber.Config{
		AppName:               "continuity",
		DisableStartupMessage: true,
		ErrorHandler:          h.handleError,
	})
	app.Use(recover.New())
	h.RegisterRoutes(app)
	return app
}

// RegisterRoutes sets up the HTTP routes.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Get("/api/health", h.HandleHealth)
	app.Post("/api/reconcile", h.HandleReconcile)
}

// HandleHealth reports liveness and the build version.
func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": buildinfo.Version,
	})
}

// HandleReconcile runs the engine over the posted batch and returns the report and the
// combined ledger with duplicates removed.
func (h *Handler) HandleReconcile(c *fiber.Ctx) error {
	stmts, err := importer.DecodeBatch(c.Body())
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, err.Error())
	}
	if len(stmts) == 0 {
		return writeError(c, fiber.StatusBadRequest, "no statements in request")
	}

	log := h.Log.WithField("statements", len(stmts))
	rep, err := continuity.New(continuity.WithLogger(log)).Run(stmts)

	var dupErr *continuity.DuplicateStatementsError
	switch {
	case errors.As(err, &dupErr):
		return c.Status(fiber.StatusConflict).JSON(ReconcileResponse{
			Error:           dupErr.Error() + "; remove the duplicates and run again",
			DuplicateGroups: dupErr.Groups,
			Report:          rep,
			Ledger:          []LedgerRow{},
		})
	case err != nil:
		return writeError(c, fiber.StatusBadRequest, err.Error())
	}

	applied, removed := ledger.Apply(stmts, rep.RemovalPlan)
	entries := ledger.Combine(applied, rep.Order)
	rows := make([]LedgerRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, LedgerRow{
			Statement:   e.StatementID,
			Date:        model.FormatDate(e.Date),
			Type:        e.Type,
			Description: e.Description,
			Amount:      e.Amount.String(),
			Balance:     e.Balance.String(),
		})
	}

	log.WithField("removed", removed).Info("reconcile request served")
	return c.JSON(ReconcileResponse{
		Success: true,
		Report:  rep,
		Removed: removed,
		Ledger:  rows,
	})
}

// handleError renders errors that escape a handler, including recovered panics.
func (h *Handler) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		h.Log.WithError(err).WithField("path", c.Path()).Error("request failed")
	}
	return writeError(c, code, err.Error())
}

func writeError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(ReconcileResponse{
		Error:  msg,
		Ledger: []LedgerRow{},
	})
}
