package server

import (
	"errors"
	"net/http"

	"feedhub/microblog"
	"feedhub/models"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

// sendVideoError maps an error from the video endpoints. Upstream failures
// are passed through with their status and raw body.
func sendVideoError(c *fiber.Ctx, err error) error {
	var (
		cfgErr     *models.ConfigurationError
		validation *models.ValidationError
		notFound   *models.NotFoundError
		upstream   *models.UpstreamError
	)

	switch {
	case errors.As(err, &cfgErr):
		return c.Status(http.StatusInternalServerError).JSON(models.ErrorResponse{Error: cfgErr.Error()})
	case errors.As(err, &validation):
		return c.Status(http.StatusBadRequest).JSON(models.ErrorResponse{Error: validation.Message})
	case errors.As(err, &notFound):
		return c.Status(http.StatusNotFound).JSON(models.ErrorResponse{Error: notFound.Error()})
	case errors.As(err, &upstream) && upstream.StatusCode != 0:
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Status(upstream.StatusCode).Send(upstream.Body)
	}

	log.WithFields(log.Fields{
		"path":  c.Path(),
		"error": err,
	}).Error("Video request failed")
	return c.Status(http.StatusInternalServerError).JSON(models.ErrorResponse{Error: "Server error", Details: err.Error()})
}

// sendTweetsError maps an error from the tweets endpoint
func sendTweetsError(c *fiber.Ctx, err error) error {
	var (
		cfgErr   *models.ConfigurationError
		notFound *models.NotFoundError
		upstream *models.UpstreamError
	)

	switch {
	case errors.As(err, &cfgErr):
		return c.Status(http.StatusInternalServerError).JSON(models.ErrorResponse{Error: cfgErr.Error()})
	case errors.As(err, &notFound):
		return c.Status(http.StatusNotFound).JSON(models.ErrorResponse{Error: "User not found"})
	case errors.As(err, &upstream) && upstream.StatusCode != 0:
		switch upstream.Op {
		case microblog.OpFetchUser:
			return c.Status(upstream.StatusCode).JSON(models.ErrorResponse{Error: "Failed to fetch user", Detail: string(upstream.Body)})
		case microblog.OpFetchPosts:
			return c.Status(upstream.StatusCode).JSON(models.ErrorResponse{Error: "Failed to fetch tweets", Detail: string(upstream.Body)})
		}
	}

	log.WithFields(log.Fields{
		"path":  c.Path(),
		"error": err,
	}).Error("Tweets request failed")
	return c.Status(http.StatusInternalServerError).JSON(models.ErrorResponse{Error: "Unexpected error", Detail: err.Error()})
}
