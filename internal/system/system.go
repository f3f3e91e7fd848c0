// Package system is the systemService: small commands for checking a
// deployment end to end.
package system

import (
	"context"
	"time"

	"github.com/r9s-ai/open-data-router/internal/version"
	"github.com/r9s-ai/open-data-router/pkg/apierr"
	"github.com/r9s-ai/open-data-router/pkg/converter"
	"github.com/r9s-ai/open-data-router/pkg/datamodel"
	"github.com/r9s-ai/open-data-router/pkg/datawrapper"
	"github.com/r9s-ai/open-data-router/pkg/dispatch"
)

const ServiceName = "systemService"

type Service struct {
	conv converter.Converter
	now  func() time.Time
}

func NewService(conv converter.Converter) *Service {
	if conv == nil {
		conv = converter.Standard()
	}
	return &Service{conv: conv, now: time.Now}
}

func (s *Service) Name() string { return ServiceName }

func (s *Service) Methods() map[string]dispatch.HandlerFunc {
	return map[string]dispatch.HandlerFunc{
		"echo":    s.echo,
		"whoami":  s.whoami,
		"time":    s.time,
		"version": s.version,
	}
}

// echo returns the request envelope as received by the handler.
func (s *Service) echo(_ context.Context, req *datawrapper.DataWrapper) (any, error) {
	return req, nil
}

func (s *Service) whoami(ctx context.Context, _ *datawrapper.DataWrapper) (any, error) {
	rc := dispatch.RequestContextFrom(ctx)
	if rc == nil || rc.Session == nil {
		return nil, apierr.New(apierr.CodeUnauthorized, "no session")
	}
	return datamodel.FromAttributes(rc.Session, datamodel.WithConverter(s.conv))
}

func (s *Service) time(context.Context, *datawrapper.DataWrapper) (any, error) {
	now := s.now()
	return map[string]any{
		"now":        now,
		"iso":        now.Format(time.RFC3339),
		"unixMillis": now.UnixMilli(),
	}, nil
}

func (s *Service) version(context.Context, *datawrapper.DataWrapper) (any, error) {
	v := version.Get()
	return map[string]any{
		"version":   v.Version,
		"commit":    v.Commit,
		"buildDate": v.BuildDate,
		"go":        v.GoVersion,
	}, nil
}
