package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/citekit/citekit/core/cluster"
	"github.com/citekit/citekit/core/driver"
	"github.com/citekit/citekit/core/errors"
	"github.com/citekit/citekit/core/reference"
	"github.com/citekit/citekit/core/render"
)

// handle dispatches one request to the session's driver.
func (s *session) handle(ctx context.Context, req request) response {
	result, err := s.dispatch(ctx, req)
	if err != nil {
		return response{
			ID: req.ID,
			Error: &wireError{
				Code:    errorCode(err),
				Message: err.Error(),
			},
		}
	}
	return response{ID: req.ID, OK: true, Result: result}
}

func (s *session) dispatch(ctx context.Context, req request) (interface{}, error) {
	if req.Op == "loadStyle" {
		return s.loadStyle(req.Params)
	}
	if s.driver == nil {
		return nil, fmt.Errorf("no style loaded: %w", errors.ErrNotReady)
	}

	switch req.Op {
	case "insertReferences":
		return s.insertReferences(req.Params)
	case "loadLibrary":
		return s.loadLibrary()
	case "initClusters":
		return s.initClusters(req.Params)
	case "setClusterOrder":
		return s.setClusterOrder(req.Params)
	case "fetchLocales":
		return s.fetchLocales(ctx)
	case "build":
		return s.build(req.Params)
	case "buildAll":
		return s.driver.BuildAll()
	case "state":
		return s.state(), nil
	default:
		return nil, fmt.Errorf("unknown op %q: %w", req.Op, errors.ErrUnsupported)
	}
}

func (s *session) loadStyle(params json.RawMessage) (interface{}, error) {
	var p struct {
		Style  string `json:"style"`
		Format string `json:"format"`
	}
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	if p.Format == "" {
		p.Format = string(render.FormatPlain)
	}
	format, err := render.ParseFormat(p.Format)
	if err != nil {
		return nil, err
	}

	d, err := driver.New([]byte(p.Style), s.server.cfg.Fetcher, format)
	if err != nil {
		return nil, err
	}
	s.driver = d

	return map[string]interface{}{
		"sessionId":     d.SessionID(),
		"styleId":       d.Style().ID,
		"defaultLocale": d.Style().DefaultLocale,
	}, nil
}

func (s *session) insertReferences(params json.RawMessage) (interface{}, error) {
	var p struct {
		References []struct {
			ID     string            `json:"id"`
			Fields map[string]string `json:"fields"`
		} `json:"references"`
	}
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}

	refs := make([]reference.Reference, 0, len(p.References))
	for _, r := range p.References {
		refs = append(refs, reference.New(r.ID, r.Fields))
	}
	if err := s.driver.InsertReferences(refs...); err != nil {
		return nil, err
	}
	return map[string]int{"inserted": len(refs)}, nil
}

func (s *session) loadLibrary() (interface{}, error) {
	lib := s.server.cfg.Library
	if lib == nil {
		return nil, fmt.Errorf("no library configured: %w", errors.ErrUnsupported)
	}
	refs, err := lib.List()
	if err != nil {
		return nil, err
	}
	if len(refs) > 0 {
		if err := s.driver.InsertReferences(refs...); err != nil {
			return nil, err
		}
	}
	return map[string]int{"inserted": len(refs)}, nil
}

func (s *session) initClusters(params json.RawMessage) (interface{}, error) {
	var p struct {
		Clusters []cluster.Cluster `json:"clusters"`
	}
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	if err := s.driver.InitClusters(p.Clusters); err != nil {
		return nil, err
	}
	return map[string]int{"clusters": len(p.Clusters)}, nil
}

func (s *session) setClusterOrder(params json.RawMessage) (interface{}, error) {
	var p struct {
		IDs []int `json:"ids"`
	}
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	if err := s.driver.SetClusterOrder(p.IDs); err != nil {
		return nil, err
	}
	return map[string]int{"clusters": len(p.IDs)}, nil
}

func (s *session) fetchLocales(ctx context.Context) (interface{}, error) {
	if err := s.driver.FetchLocales(ctx); err != nil {
		return nil, err
	}
	return s.state(), nil
}

func (s *session) build(params json.RawMessage) (interface{}, error) {
	var p struct {
		ClusterID int `json:"clusterId"`
	}
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	text, err := s.driver.Build(p.ClusterID)
	if err != nil {
		return nil, err
	}
	return driver.Built{ID: p.ClusterID, Text: text}, nil
}

func (s *session) state() map[string]interface{} {
	return map[string]interface{}{
		"sessionId": s.driver.SessionID(),
		"state":     s.driver.State().String(),
		"ready":     s.driver.Ready(),
	}
}

func unmarshalParams(params json.RawMessage, into interface{}) error {
	if len(params) == 0 {
		return fmt.Errorf("missing params: %w", errors.ErrInvalidInput)
	}
	if err := json.Unmarshal(params, into); err != nil {
		return fmt.Errorf("decode params: %w", errors.ErrInvalidInput)
	}
	return nil
}
