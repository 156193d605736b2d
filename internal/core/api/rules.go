package api

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/ruledesk/internal/types"
)

// ListRules returns every rule and an ETag over the listing.
//
//	request:  {}
//	response: {"rules": [...], "etag": "<hex>"}
func (s *AdminService) ListRules(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(map[string]any{
		"rules": list,
		"etag":  computeETag(list),
	})
}

// computeETag hashes rule ids and update times. The same listing always
// produces the same tag, so clients can skip re-rendering unchanged lists.
func computeETag(list []types.Rule) string {
	entries := make([]string, len(list))
	for i, r := range list {
		entries[i] = fmt.Sprintf("%s@%d", r.ID, r.UpdatedAt.UnixMilli())
	}
	sort.Strings(entries)

	h := sha256.New()
	for _, e := range entries {
		h.Write([]byte(e))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// GetRule returns one rule.
//
//	request:  {"id": "<uuid>"}
//	response: {"rule": {...}}
func (s *AdminService) GetRule(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := ruleID(req)
	if err != nil {
		return nil, err
	}
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(map[string]any{"rule": r})
}

// CreateRule validates and stores a new rule.
//
//	request:  {"rule": {"name": ..., "category": ..., "destination": ..., "rule": {...}}}
//	response: {"rule": {...}}
func (s *AdminService) CreateRule(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var draft types.RuleDraft
	if err := decodeField(req, "rule", &draft); err != nil {
		return nil, err
	}
	if err := s.checkDraft(ctx, draft); err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, draft)
	if err != nil {
		return nil, toStatus(err)
	}
	s.logger.Info("rule created",
		zap.String("rule_id", string(created.ID)),
		zap.String("category", created.Category),
		zap.String("destination", created.Destination))
	return toStruct(map[string]any{"rule": created})
}

// UpdateRule validates and replaces an existing rule.
//
//	request:  {"id": "<uuid>", "rule": {...}}
//	response: {"rule": {...}}
func (s *AdminService) UpdateRule(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := ruleID(req)
	if err != nil {
		return nil, err
	}
	var draft types.RuleDraft
	if err := decodeField(req, "rule", &draft); err != nil {
		return nil, err
	}
	if err := s.checkDraft(ctx, draft); err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, id, draft)
	if err != nil {
		return nil, toStatus(err)
	}
	s.logger.Info("rule updated", zap.String("rule_id", string(id)))
	return toStruct(map[string]any{"rule": updated})
}

// DeleteRule removes a rule.
//
//	request:  {"id": "<uuid>"}
//	response: {"id": "<uuid>"}
func (s *AdminService) DeleteRule(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := ruleID(req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, toStatus(err)
	}
	s.logger.Info("rule deleted", zap.String("rule_id", string(id)))
	return toStruct(map[string]any{"id": id})
}

// checkDraft runs whole-rule validation; a rule with errors is never stored.
func (s *AdminService) checkDraft(ctx context.Context, draft types.RuleDraft) error {
	r := types.Rule{
		Name:            draft.Name,
		Description:     draft.Description,
		Destination:     draft.Destination,
		Category:        draft.Category,
		Type:            draft.Type,
		Rule:            draft.Rule,
		ExtraProperties: draft.ExtraProperties,
	}
	errs, err := s.cache.ValidateRule(ctx, &r)
	if err != nil {
		return toStatus(err)
	}
	if len(errs) > 0 {
		return validationStatus(errs)
	}
	return nil
}
