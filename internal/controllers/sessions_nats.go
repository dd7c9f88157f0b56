package controllers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cyverse/ngs/config"
	"github.com/cyverse/ngs/internal/apperr"
	"github.com/cyverse/ngs/internal/metering"
	"github.com/cyverse/ngs/internal/model"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// natsResponse is the body of a reply to a session event received over NATS.
type natsResponse struct {
	Outcome *metering.Outcome        `json:"outcome,omitempty"`
	Error   *model.ErrorResponseBody `json:"error,omitempty"`
}

// respondNATS sends a reply to the sender of a message if the sender asked for one. Publishers that need
// at-least-once delivery use a request and redeliver when the reply is an error or never arrives.
func respondNATS(log *logrus.Entry, msg *nats.Msg, outcome *metering.Outcome, err error) {
	if msg.Reply == "" {
		return
	}

	response := natsResponse{Outcome: outcome}
	if err != nil {
		status := apperr.HTTPStatus(err)
		response.Error = &model.ErrorResponseBody{
			Error:  err.Error(),
			Status: http.StatusText(status),
			Kind:   apperr.KindOf(err).String(),
		}
	}

	data, err := json.Marshal(response)
	if err != nil {
		log.Errorf("unable to encode the response: %s", err)
		return
	}
	if err = msg.Respond(data); err != nil {
		log.Errorf("unable to send the response: %s", err)
	}
}

// eventContext returns the context used to apply a session event received over NATS. There is no request to
// inherit a deadline from, so the configured event timeout is used.
func (s Server) eventContext() (context.Context, context.CancelFunc) {
	timeout := s.EventTimeout
	if timeout <= 0 {
		timeout = config.DefaultEventTimeout
	}
	return context.WithTimeout(context.Background(), timeout)
}

// SessionStartedNATS is the NATS handler for session start events.
func (s Server) SessionStartedNATS(msg *nats.Msg) {
	log := log.WithFields(logrus.Fields{"context": "session started", "subject": msg.Subject})

	var event metering.SessionStarted
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		respondNATS(log, msg, nil, apperr.Invalid("invalid session event: %s", err))
		return
	}

	ctx, cancel := s.eventContext()
	defer cancel()

	outcome, err := s.Metering.SessionStarted(ctx, &event)
	if err != nil {
		log.WithField("node", event.NodeID).Error(err)
	}
	respondNATS(log, msg, outcome, err)
}

// SessionEndedNATS is the NATS handler for session end events.
func (s Server) SessionEndedNATS(msg *nats.Msg) {
	log := log.WithFields(logrus.Fields{"context": "session ended", "subject": msg.Subject})

	var event metering.SessionEnded
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		respondNATS(log, msg, nil, apperr.Invalid("invalid session event: %s", err))
		return
	}

	ctx, cancel := s.eventContext()
	defer cancel()

	outcome, err := s.Metering.SessionEnded(ctx, &event)
	if err != nil {
		log.WithField("node", event.NodeID).Error(err)
	}
	respondNATS(log, msg, outcome, err)
}
