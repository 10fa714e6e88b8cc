package service

import (
	"csv-dedupe-be/internal/pkg/serverutils"

	"github.com/gofiber/fiber/v2"
)

// Workflow error taxonomy. Everything here is recoverable at the HTTP
// boundary: the error middleware turns it into a structured response and the
// client re-prompts or restarts.
var (
	ErrInvalidFileType = serverutils.NewAppError(fiber.StatusBadRequest, "INVALID_FILE_TYPE",
		"that file type is not supported, upload a csv, xls or xlsx file")
	ErrUploadFailed = serverutils.NewAppError(fiber.StatusInternalServerError, "UPLOAD_FAILED",
		"Error uploading file. Did you forget to select one?")
	ErrNoSession = serverutils.NewAppError(fiber.StatusBadRequest, "NO_SESSION",
		"need to start a session")
	ErrNoFieldsSelected = serverutils.NewAppError(fiber.StatusBadRequest, "NO_FIELDS_SELECTED",
		"You must select at least one field to compare on.")
	ErrNoCurrentPair = serverutils.NewAppError(fiber.StatusBadRequest, "NO_CURRENT_PAIR",
		"no record pair is awaiting a label, fetch one first")
	ErrUnknownAction = serverutils.NewAppError(fiber.StatusBadRequest, "UNKNOWN_ACTION",
		"action must be one of yes, no, unsure, finish")
	ErrJobSubmission = serverutils.NewAppError(fiber.StatusBadGateway, "JOB_SUBMISSION_FAILED",
		"failed to hand the job to the background worker")
	ErrNoSettings = serverutils.NewAppError(fiber.StatusNotFound, "NO_SETTINGS",
		"no settings artifact found for this file, run a full dedupe first")
	ErrFileNotFound = serverutils.NewAppError(fiber.StatusNotFound, "FILE_NOT_FOUND",
		"the referenced upload no longer exists")
)
