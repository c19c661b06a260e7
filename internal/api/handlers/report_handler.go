package handlers

import (
	"bytes"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/factorymind/backend/internal/analysis"
	"github.com/factorymind/backend/internal/metrics"
	"github.com/factorymind/backend/internal/report"
	"github.com/factorymind/backend/internal/storage/models"
	"github.com/factorymind/backend/pkg/logger"
)

type ReportHandler struct {
	engine  *report.Engine
	dataDir string
}

func NewReportHandler(engine *report.Engine, dataDir string) *ReportHandler {
	return &ReportHandler{
		engine:  engine,
		dataDir: dataDir,
	}
}

// saveUpload stores the multipart data file and returns its path on disk.
func (h *ReportHandler) saveUpload(c *fiber.Ctx) (string, error) {
	file, err := c.FormFile("file")
	if err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, "A data file is required")
	}

	filename := filepath.Base(file.Filename)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".xlsx", ".xls":
	default:
		return "", fiber.NewError(fiber.StatusBadRequest, "Only CSV and Excel files are supported")
	}

	path := filepath.Join(h.dataDir, filename)
	if err := c.SaveFile(file, path); err != nil {
		logger.Error("Failed to save data file", zap.String("filename", filename), zap.Error(err))
		return "", fiber.NewError(fiber.StatusInternalServerError, "Failed to save uploaded file")
	}

	return path, nil
}

func (h *ReportHandler) UploadData(c *fiber.Ctx) error {
	path, err := h.saveUpload(c)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(fiber.Map{
		"status":   "success",
		"filename": filepath.Base(path),
		"message":  "Data file uploaded successfully",
	})
}

func (h *ReportHandler) GenerateReport(c *fiber.Ctx) error {
	path, err := h.saveUpload(c)
	if err != nil {
		return errorJSON(c, err)
	}

	ds, err := analysis.LoadFile(path)
	if err != nil {
		logger.Error("Failed to load dataset", zap.String("path", path), zap.Error(err))
		return errorJSON(c, err)
	}

	start := time.Now()
	rep, err := h.engine.Generate(c.Context(), ds)
	metrics.ReportDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ReportsGenerated.WithLabelValues("error").Inc()
		logger.Error("Failed to generate report", zap.String("filename", ds.Filename), zap.Error(err))
		return errorJSON(c, err)
	}
	metrics.ReportsGenerated.WithLabelValues("ok").Inc()

	return c.JSON(rep)
}

func (h *ReportHandler) ListReports(c *fiber.Ctx) error {
	reports, err := h.engine.List()
	if err != nil {
		logger.Error("Failed to list reports", zap.Error(err))
		return errorJSON(c, err)
	}
	if reports == nil {
		reports = []models.Report{}
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"count":   len(reports),
		"reports": reports,
	})
}

func (h *ReportHandler) GetReport(c *fiber.Ctx) error {
	rep, err := h.engine.Get(c.Params("id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(rep)
}

func (h *ReportHandler) DownloadReport(c *fiber.Ctx) error {
	rep, err := h.engine.Get(c.Params("id"))
	if err != nil {
		return errorJSON(c, err)
	}

	var buf bytes.Buffer
	if err := report.RenderPDF(rep, &buf); err != nil {
		logger.Error("Failed to render report PDF", zap.String("id", rep.ID), zap.Error(err))
		return errorJSON(c, err)
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="report_`+rep.ID+`.pdf"`)
	return c.Send(buf.Bytes())
}

func (h *ReportHandler) DeleteReport(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.engine.Delete(id); err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "Report " + id + " deleted",
	})
}
