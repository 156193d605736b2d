package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "ruledesk.admin.v1.RuleAdmin"

// RuleAdminServer is the admin API. Every message is a
// google.protobuf.Struct carrying the JSON shape of the request or response,
// so the rule wire format stays the one types.Node defines.
type RuleAdminServer interface {
	ListRules(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRule(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateRule(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateRule(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteRule(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ValidateRule(context.Context, *structpb.Struct) (*structpb.Struct, error)
	TestRule(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListCategories(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RefreshCatalog(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(RuleAdminServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func methodDesc(name string, m unaryMethod) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return m(srv.(RuleAdminServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return m(srv.(RuleAdminServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// RuleAdminServiceDesc describes the service for grpc.Server.RegisterService.
var RuleAdminServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RuleAdminServer)(nil),
	Methods: []grpc.MethodDesc{
		methodDesc("ListRules", RuleAdminServer.ListRules),
		methodDesc("GetRule", RuleAdminServer.GetRule),
		methodDesc("CreateRule", RuleAdminServer.CreateRule),
		methodDesc("UpdateRule", RuleAdminServer.UpdateRule),
		methodDesc("DeleteRule", RuleAdminServer.DeleteRule),
		methodDesc("ValidateRule", RuleAdminServer.ValidateRule),
		methodDesc("TestRule", RuleAdminServer.TestRule),
		methodDesc("ListCategories", RuleAdminServer.ListCategories),
		methodDesc("RefreshCatalog", RuleAdminServer.RefreshCatalog),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ruledesk/admin/v1/admin.proto",
}

// RegisterRuleAdminServer registers srv on s.
func RegisterRuleAdminServer(s grpc.ServiceRegistrar, srv RuleAdminServer) {
	s.RegisterService(&RuleAdminServiceDesc, srv)
}

// Client calls the admin API over a client connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes method with a JSON-shaped request and returns the response.
func (c *Client) Call(ctx context.Context, method string, req map[string]any, opts ...grpc.CallOption) (map[string]any, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}
