package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// GenericServerError is shown for every failure that is not a client error.
const GenericServerError = "サーバーエラーが発生しました"

// ErrorHandler renders every error as {success:false, message}. Errors that
// are not *fiber.Error are logged and hidden behind a generic message.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := GenericServerError

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		if code < fiber.StatusInternalServerError {
			message = fe.Message
		}
	}

	if code >= fiber.StatusInternalServerError {
		logrus.WithError(err).WithFields(logrus.Fields{
			"method":     c.Method(),
			"path":       c.Path(),
			"request_id": c.Locals("requestid"),
		}).Error("request failed")
	}

	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}
