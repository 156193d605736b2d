// Package api implements the RuleDesk gRPC admin API.
package api

import (
	"context"
	"fmt"
	"sync/atomic"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/ruledesk/internal/rules"
	"github.com/solatis/ruledesk/internal/store"
	"github.com/solatis/ruledesk/internal/types"
	"github.com/solatis/ruledesk/internal/validation"
)

// Catalog is the category lookup the service needs. Implemented by
// catalog.Catalog.
type Catalog interface {
	validation.SchemaSource
	Categories(ctx context.Context) ([]string, error)
	Refresh(ctx context.Context) error
}

// AdminService implements RuleAdminServer.
// Thin orchestration layer over the store, the catalog-backed validator
// cache and the rule test engine.
type AdminService struct {
	repo    store.Repository
	catalog Catalog
	cache   *validation.Cache
	engine  *rules.Engine
	logger  *zap.Logger

	// revision is the catalog revision the engine cache was built against.
	revision atomic.Uint64
}

var _ RuleAdminServer = (*AdminService)(nil)

// NewAdminService creates a service instance with dependencies.
func NewAdminService(repo store.Repository, cat Catalog, logger *zap.Logger) (*AdminService, error) {
	if repo == nil {
		return nil, fmt.Errorf("repo cannot be nil")
	}
	if cat == nil {
		return nil, fmt.Errorf("catalog cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminService{
		repo:    repo,
		catalog: cat,
		cache:   validation.NewCache(cat),
		engine:  rules.NewEngine(),
		logger:  logger,
	}, nil
}

// syncEngine drops compiled rules built against an older catalog.
func (s *AdminService) syncEngine() {
	rev := s.catalog.Revision()
	if old := s.revision.Swap(rev); old != rev {
		s.engine.Reset()
	}
}

// toStruct encodes v as JSON and decodes it into a Struct. v must encode to
// a JSON object.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// decodeField decodes request field name into dst through its JSON shape.
func decodeField(req *structpb.Struct, name string, dst any) error {
	v, ok := req.GetFields()[name]
	if !ok || isNull(v) {
		return status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	data, err := protojson.Marshal(v)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "%s: %v", name, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return status.Errorf(codes.InvalidArgument, "%s: %v", name, err)
	}
	return nil
}

func isNull(v *structpb.Value) bool {
	_, ok := v.GetKind().(*structpb.Value_NullValue)
	return ok
}

// rawField returns request field name as raw JSON.
func rawField(req *structpb.Struct, name string) ([]byte, error) {
	v, ok := req.GetFields()[name]
	if !ok || isNull(v) {
		return nil, status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	data, err := protojson.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%s: %v", name, err)
	}
	return data, nil
}

// ruleID reads and validates the "id" request field.
func ruleID(req *structpb.Struct) (types.RuleID, error) {
	raw := req.GetFields()["id"].GetStringValue()
	if raw == "" {
		return "", status.Error(codes.InvalidArgument, "id is required")
	}
	id, err := types.ParseRuleID(raw)
	if err != nil {
		return "", status.Errorf(codes.InvalidArgument, "invalid id %q: %v", raw, err)
	}
	return id, nil
}
