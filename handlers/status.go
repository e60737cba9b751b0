package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nijaru/yt-transcript/transcript"
)

// StatusFor maps a failure kind to an HTTP status.
func StatusFor(kind transcript.ErrorKind) int {
	switch kind {
	case transcript.KindMissingVideoID, transcript.KindInvalidRequest:
		return fiber.StatusBadRequest
	case transcript.KindVideoNotFound:
		return fiber.StatusNotFound
	case transcript.KindVideoPrivate:
		return fiber.StatusForbidden
	case transcript.KindVideoUnavailable:
		return fiber.StatusUnprocessableEntity
	case transcript.KindFetch, transcript.KindParse, transcript.KindTranscriptFetch,
		transcript.KindInvoke, transcript.KindNetwork:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// resultStatus is 200 for transcripts and no-captions outcomes, and the
// kind's status for failures unless alwaysOK is set.
func resultStatus(res transcript.Result, alwaysOK bool) int {
	if res.Err == nil || alwaysOK {
		return fiber.StatusOK
	}
	return StatusFor(res.Err.Kind)
}
