package api

import (
	"context"
	"errors"
	"sort"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/ruledesk/internal/types"
)

// ListCategories describes every category with its fields and destinations.
//
//	request:  {}
//	response: {"revision": n, "categories": [{"name", "schemaId", "fields", "destinations"}]}
func (s *AdminService) ListCategories(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	names, err := s.catalog.Categories(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	out := make([]map[string]any, 0, len(names))
	for _, name := range names {
		info, err := s.catalog.CategoryInfo(ctx, name)
		if err != nil {
			return nil, toStatus(err)
		}
		fields, err := s.catalog.Fields(ctx, name)
		if err != nil && !errors.Is(err, types.ErrUnknownSchema) {
			return nil, toStatus(err)
		}

		destNames := make([]string, 0, len(info.Destinations))
		for d := range info.Destinations {
			destNames = append(destNames, d)
		}
		sort.Strings(destNames)

		dests := make([]map[string]any, 0, len(destNames))
		for _, d := range destNames {
			dest := info.Destinations[d]
			dests = append(dests, map[string]any{
				"name":                     d,
				"validOperators":           dest.AllowedOperators(),
				"typeOptions":              dest.TypeOptions,
				"hasExtraPropertiesSchema": len(dest.ExtraPropertiesSchema) > 0,
			})
		}

		paths := fields.Paths
		if paths == nil {
			paths = []string{}
		}
		out = append(out, map[string]any{
			"name":         name,
			"schemaId":     info.SchemaID,
			"fields":       paths,
			"fieldTypes":   fields.Types,
			"destinations": dests,
		})
	}
	return toStruct(map[string]any{
		"revision":   s.catalog.Revision(),
		"categories": out,
	})
}

// RefreshCatalog reloads the catalog. Validators and compiled rules built
// against the previous revision are dropped on next use.
//
//	request:  {}
//	response: {"revision": n}
func (s *AdminService) RefreshCatalog(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := s.catalog.Refresh(ctx); err != nil {
		return nil, toStatus(err)
	}
	s.syncEngine()
	s.logger.Info("catalog refreshed")
	return toStruct(map[string]any{"revision": s.catalog.Revision()})
}
