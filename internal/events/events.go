package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Result is published once per finished evaluation.
type Result struct {
	SubmissionID int64    `json:"submission_id"`
	ProblemID    int64    `json:"problem_id"`
	UserID       int64    `json:"user_id"`
	IsPass       bool     `json:"is_pass"`
	Results      []string `json:"results"`
	RealTime     *float64 `json:"real_time"`
	RAM          *float64 `json:"ram"`
	Error        string   `json:"error,omitempty"`
}

type Publisher interface {
	PublishResult(ctx context.Context, r Result) error
	Close()
}

// Subject returns the subject results for a problem are published on.
func Subject(prefix string, problemID int64) string {
	return prefix + ".results." + strconv.FormatInt(problemID, 10)
}

type NatsPublisher struct {
	nc     *nats.Conn
	prefix string
	logger *zerolog.Logger
}

func NewNatsPublisher(url, prefix string, logger *zerolog.Logger) (*NatsPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("pyjudge"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return &NatsPublisher{nc: nc, prefix: prefix, logger: logger}, nil
}

func (p *NatsPublisher) PublishResult(_ context.Context, r Result) error {
	if r.Results == nil {
		r.Results = []string{}
	}
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal result event: %w", err)
	}
	if err := p.nc.Publish(Subject(p.prefix, r.ProblemID), b); err != nil {
		return fmt.Errorf("failed to publish result event: %w", err)
	}
	return nil
}

func (p *NatsPublisher) Close() {
	if err := p.nc.Drain(); err != nil {
		p.logger.Warn().Err(err).Msg("failed to drain nats connection")
	}
}

// Nop discards events. Used when no NATS URL is configured.
type Nop struct{}

func (Nop) PublishResult(context.Context, Result) error { return nil }
func (Nop) Close()                                      {}
