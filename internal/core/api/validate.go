package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/ruledesk/internal/types"
)

// ValidateRule reports every validation problem of a rule without storing
// it.
//
//	request:  {"rule": {...}}
//	response: {"valid": bool, "errors": {"rule.AND.0.value": "..."}}
func (s *AdminService) ValidateRule(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var r types.Rule
	if err := decodeField(req, "rule", &r); err != nil {
		return nil, err
	}
	errs, err := s.cache.ValidateRule(ctx, &r)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(map[string]any{
		"valid":  len(errs) == 0,
		"errors": map[string]string(errs),
	})
}

// TestRule evaluates a rule against a JSON metadata payload. The rule is
// either given inline or referenced by id.
//
//	request:  {"rule": {...}} or {"id": "<uuid>"}, plus {"payload": {...}}
//	response: {"matched": bool, "evaluated": n, "matchedFields": [{"field", "path", "value"}]}
func (s *AdminService) TestRule(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var r types.Rule
	if _, inline := req.GetFields()["rule"]; inline {
		if err := decodeField(req, "rule", &r); err != nil {
			return nil, err
		}
	} else {
		id, err := ruleID(req)
		if err != nil {
			return nil, err
		}
		if r, err = s.repo.Get(ctx, id); err != nil {
			return nil, toStatus(err)
		}
	}
	if r.Rule == nil {
		return nil, status.Error(codes.InvalidArgument, "rule.rule is required")
	}

	payload, err := rawField(req, "payload")
	if err != nil {
		return nil, err
	}

	fields, err := s.catalog.Fields(ctx, r.Category)
	switch {
	case errors.Is(err, types.ErrUnknownSchema):
		fields = types.FieldSet{}
	case err != nil:
		return nil, toStatus(err)
	}
	s.syncEngine()

	res, err := s.engine.Test(&r, fields, payload)
	if err != nil {
		return nil, toStatus(err)
	}

	matched := make([]map[string]any, len(res.MatchedFields))
	for i, f := range res.MatchedFields {
		matched[i] = map[string]any{"field": f.Field, "path": f.Path, "value": f.Value}
	}
	return toStruct(map[string]any{
		"matched":       res.Matched,
		"evaluated":     res.Evaluated,
		"matchedFields": matched,
	})
}
