package api

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/clinimetric-scale-server/internal/domain"
	"github.com/clinimetric-scale-server/internal/ingest"
	"github.com/clinimetric-scale-server/internal/middleware"
)

const (
	liveIdleTimeout  = 5 * time.Minute
	liveWriteTimeout = 10 * time.Second
)

// liveMessage is one reply on the live validation channel: either a report or
// an error describing why the definition could not be read.
type liveMessage struct {
	Report *domain.ValidationReport `json:"report,omitempty"`
	Error  *domain.APIError         `json:"error,omitempty"`
}

// handleLiveValidation upgrades to a websocket and answers every definition
// received with its validation report, so editors can validate as authors type.
// The ?format=yaml query switches the expected message encoding.
func (s *Server) handleLiveValidation(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to upgrade live validation connection")
		return
	}
	defer conn.Close()

	requestID := c.GetString(middleware.RequestIDKey)
	format := ingest.Format(c.DefaultQuery("format", string(ingest.FormatJSON)))
	if !format.IsValid() {
		format = ingest.FormatJSON
	}
	conn.SetReadLimit(maxBodyBytes)

	logger := s.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"client_ip":  c.ClientIP(),
	})
	logger.Info("Live validation session opened")

	validated := 0
	for {
		_ = conn.SetReadDeadline(time.Now().Add(liveIdleTimeout))
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.WithError(err).Warn("Live validation session ended unexpectedly")
			}
			break
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}

		reply := s.validateLive(c, data, format, requestID)
		if reply.Report != nil {
			validated++
		}

		_ = conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
		if err := conn.WriteJSON(reply); err != nil {
			logger.WithError(err).Warn("Failed to write live validation reply")
			break
		}
	}

	logger.WithField("validated", validated).Info("Live validation session closed")
}

func (s *Server) validateLive(c *gin.Context, data []byte, format ingest.Format, requestID string) liveMessage {
	scale, err := ingest.DecodeScale(data, format)
	if err != nil {
		code := domain.ErrCodeDefinitionParse
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			code = domain.ErrCodeInvalidInput
		}
		return liveMessage{Error: domain.NewAPIError(code, "Definition could not be parsed", err.Error(), requestID)}
	}
	return liveMessage{Report: s.catalog.ValidateDefinition(c.Request.Context(), scale)}
}
