package handlers

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/factorymind/backend/internal/ingest"
	"github.com/factorymind/backend/internal/storage/models"
	"github.com/factorymind/backend/pkg/logger"
	"github.com/factorymind/backend/pkg/utils"
)

type DocumentHandler struct {
	processor *ingest.Processor
	docsDir   string
}

func NewDocumentHandler(processor *ingest.Processor, docsDir string) *DocumentHandler {
	return &DocumentHandler{
		processor: processor,
		docsDir:   docsDir,
	}
}

// documentView adds the human-readable size to a listed document.
type documentView struct {
	models.Document
	Size string `json:"size"`
}

func (h *DocumentHandler) UploadDocument(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "A document file is required",
		})
	}

	filename := filepath.Base(file.Filename)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".html", ".htm":
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Only PDF and HTML documents are supported",
		})
	}

	if err := c.SaveFile(file, filepath.Join(h.docsDir, filename)); err != nil {
		logger.Error("Failed to save uploaded document", zap.String("filename", filename), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save uploaded file",
		})
	}

	result, err := h.processor.IngestDocument(c.Context(), filename)
	if err != nil {
		logger.Error("Failed to ingest document", zap.String("filename", filename), zap.Error(err))
		return errorJSON(c, err)
	}

	return c.JSON(fiber.Map{
		"status":   "success",
		"filename": result.Filename,
		"message":  "Document uploaded and indexed successfully",
		"details": fiber.Map{
			"chunks": result.Chunks,
			"pages":  result.Pages,
		},
	})
}

func (h *DocumentHandler) ListDocuments(c *fiber.Ctx) error {
	docs, err := h.processor.ListDocuments()
	if err != nil {
		logger.Error("Failed to list documents", zap.Error(err))
		return errorJSON(c, err)
	}

	views := make([]documentView, 0, len(docs))
	for _, doc := range docs {
		views = append(views, documentView{Document: doc, Size: utils.FormatSize(doc.SizeBytes)})
	}

	return c.JSON(fiber.Map{
		"status":    "success",
		"count":     len(views),
		"documents": views,
	})
}

func (h *DocumentHandler) DeleteDocument(c *fiber.Ctx) error {
	filename := c.Params("filename")
	if unescaped, err := url.PathUnescape(filename); err == nil {
		filename = unescaped
	}
	filename = filepath.Base(filename)

	if err := h.processor.DeleteDocument(c.Context(), filename); err != nil {
		logger.Error("Failed to delete document", zap.String("filename", filename), zap.Error(err))
		return errorJSON(c, err)
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "Document " + filename + " deleted",
	})
}
