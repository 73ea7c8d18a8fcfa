// Package server exposes the engine over HTTP.
package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"
	"github.com/warriorguo/autoflow/types"
)

// WorkflowStore publishes graphs for webhook triggered runs.
type WorkflowStore interface {
	types.SnapshotProvider
	Save(ctx context.Context, workflowID string, snap *types.GraphSnapshot) error
}

type Server struct {
	engine    types.Engine
	workflows WorkflowStore
	app       *fiber.App
}

func New(engine types.Engine, workflows WorkflowStore) *Server {
	// params and headers outlive the request in durable runs
	app := fiber.New(fiber.Config{Immutable: true})
	s := &Server{
		engine:    engine,
		workflows: workflows,
		app:       app,
	}
	s.app.Use(logRequest)
	s.routes()
	return s
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) routes() {
	s.app.Get("/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := s.app.Group("/api")
	api.Post("/runs/test", s.testRun)
	api.Post("/runs", s.startRun)
	api.Get("/runs/:id", s.getRun)
	api.Get("/runs/:id/nodes", s.listNodes)
	api.Get("/runs/:id/dot", s.renderRun)
	api.Delete("/runs/:id", s.cancelRun)
	api.Put("/workflows/:workflowId", s.putWorkflow)
	api.Post("/webhooks/:workflowId", s.webhook)
}

func logRequest(c fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	log.WithFields(log.Fields{
		"method":  c.Method(),
		"path":    c.Path(),
		"status":  c.Response().StatusCode(),
		"latency": time.Since(start),
	}).Debug("request")
	return err
}

// fail maps error kinds to status codes.
func fail(c fiber.Ctx, err error) error {
	if gve, ok := types.IsGraphValidationError(err); ok {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": gve.Error(),
			"code":  gve.Code,
		})
	}

	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, errors.NotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, errors.AlreadyExists):
		status = fiber.StatusConflict
	case errors.Is(err, errors.BadRequest), errors.Is(err, errors.NotValid):
		status = fiber.StatusBadRequest
	case errors.Is(err, errors.MethodNotAllowed):
		status = fiber.StatusServiceUnavailable
	}
	if status == fiber.StatusInternalServerError {
		log.Errorf("%s %s failed: %s", c.Method(), c.Path(), errors.ErrorStack(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) testRun(c fiber.Ctx) error {
	var req types.RunRequest
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	result, err := s.engine.RunSync(c.Context(), &req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(result)
}

func (s *Server) startRun(c fiber.Ctx) error {
	var req types.RunRequest
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	return s.launch(c, &req)
}

func (s *Server) launch(c fiber.Ctx, req *types.RunRequest) error {
	executionID, err := s.engine.RunDurable(c.Context(), req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"executionId": executionID,
		"status":      types.RunRunning,
	})
}

func (s *Server) getRun(c fiber.Ctx) error {
	run, err := s.engine.GetRun(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(run)
}

func (s *Server) listNodes(c fiber.Ctx) error {
	records, err := s.engine.ListNodeRecords(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(records)
}

func (s *Server) renderRun(c fiber.Ctx) error {
	dot, err := s.engine.RenderRun(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	c.Set(fiber.HeaderContentType, "text/vnd.graphviz; charset=utf-8")
	return c.SendString(dot)
}

func (s *Server) cancelRun(c fiber.Ctx) error {
	if err := s.engine.CancelRun(c.Context(), c.Params("id")); err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"executionId": c.Params("id")})
}

func (s *Server) putWorkflow(c fiber.Ctx) error {
	var snap types.GraphSnapshot
	if err := c.Bind().JSON(&snap); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if err := s.workflows.Save(c.Context(), c.Params("workflowId"), &snap); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// webhook starts a durable run of a published workflow with the request
// body as trigger input. An Idempotency-Key header becomes the execution id
// so redelivered hooks do not start a second run.
func (s *Server) webhook(c fiber.Ctx) error {
	workflowID := c.Params("workflowId")
	snap, err := s.workflows.Snapshot(c.Context(), workflowID)
	if err != nil {
		return fail(c, err)
	}

	input := types.Data{}
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&input); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
		}
	}
	return s.launch(c, &types.RunRequest{
		ExecutionID:  c.Get("Idempotency-Key"),
		WorkflowID:   workflowID,
		Nodes:        snap.Nodes,
		Edges:        snap.Edges,
		TriggerInput: input,
	})
}
