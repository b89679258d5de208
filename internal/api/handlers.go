package api

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/fintalk/iecat/internal/common"
	"github.com/fintalk/iecat/internal/engine"
	"github.com/fintalk/iecat/internal/model"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func (s *Server) health(c *fiber.Ctx) error {
	status := fiber.Map{"status": "ok", "version": s.version}
	if p, ok := s.rules.(pinger); ok {
		if err := p.Ping(c.UserContext()); err != nil {
			s.logger.Warn("Health check failed", "error", err)
			return errorResponse(c, fiber.StatusServiceUnavailable, "rule store unreachable")
		}
	}
	return success(c, fiber.StatusOK, status)
}

// classify runs only the rule pass. Rules that match are reinforced, but
// nothing new is learned and nothing is cached.
func (s *Server) classify(c *fiber.Ctx) error {
	var hint model.TransactionType
	if raw := c.Query("doc_type"); raw != "" {
		t, err := model.ParseTransactionType(raw)
		if err != nil {
			return common.NewUserError("doc_type must be income or expense", err)
		}
		hint = t
	}

	items, err := engine.DecodeDocument(c.Body())
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, s.engine.ClassifyBatch(c.UserContext(), items, hint))
}

func (s *Server) categorize(c *fiber.Ctx) error {
	docType, err := model.ParseTransactionType(c.Params("docType"))
	if err != nil {
		return common.NewUserError("document type must be income or expense", err)
	}

	items, err := engine.DecodeDocument(c.Body())
	if err != nil {
		return err
	}

	breakdown, err := s.engine.CategorizeDocument(c.UserContext(), items, docType)
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, breakdown)
}

func (s *Server) analyze(c *fiber.Ctx) error {
	raw, err := engine.DecodeDocument(c.Body())
	if err != nil {
		return err
	}

	analysis, err := s.analyzer.Analyze(c.UserContext(), raw)
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, analysis)
}

func (s *Server) listRules(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var (
		rules []model.KeywordRule
		err   error
	)
	if raw := c.Query("type"); raw != "" {
		t, parseErr := model.ParseTransactionType(raw)
		if parseErr != nil {
			return common.NewUserError("unknown transaction type", parseErr)
		}
		rules, err = s.rules.ListByType(ctx, t)
	} else {
		rules, err = s.rules.ListAll(ctx)
	}
	if err != nil {
		return err
	}
	if rules == nil {
		rules = []model.KeywordRule{}
	}
	return success(c, fiber.StatusOK, rules)
}

func (s *Server) lookupRule(c *fiber.Ctx) error {
	label := c.Query("label")
	if label == "" {
		return common.NewUserError("label query parameter is required", nil)
	}

	rule, err := s.rules.Lookup(c.UserContext(), label)
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, rule)
}

type createRuleRequest struct {
	Keyword  string `json:"keyword"`
	Type     string `json:"transaction_type"`
	Category string `json:"category"`
}

func (s *Server) createRule(c *fiber.Ctx) error {
	var req createRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return common.NewUserError("invalid rule body", err)
	}
	txType, err := model.ParseTransactionType(req.Type)
	if err != nil {
		return common.NewUserError("transaction_type is required", err)
	}

	rule, err := s.rules.Put(c.UserContext(), req.Keyword, txType, req.Category)
	if err != nil {
		return err
	}

	if _, err := s.engine.InvalidateCache(c.UserContext()); err != nil {
		s.logger.Warn("Failed to invalidate cache after rule change", "error", err)
	}
	return success(c, fiber.StatusCreated, rule)
}

func (s *Server) deleteRule(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return common.NewUserError("rule id must be an integer", err)
	}

	if err := s.rules.Delete(c.UserContext(), id); err != nil {
		return err
	}

	if _, err := s.engine.InvalidateCache(c.UserContext()); err != nil {
		s.logger.Warn("Failed to invalidate cache after rule change", "error", err)
	}
	return success(c, fiber.StatusOK, fiber.Map{"deleted": id})
}
