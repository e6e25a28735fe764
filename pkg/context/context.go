package context

import "context"

type ContextKey string

var (
	RequestIDKey = ContextKey("X-Request-Id")
	MethodKey    = ContextKey("X-Method")
	RouteKey     = ContextKey("X-Route")
	RemoteIPKey  = ContextKey("X-Remote-Ip")
	GroupIDKey   = ContextKey("X-Group-Id")
	ActorIDKey   = ContextKey("X-Actor-Id")
)

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	value, ok := ctx.Value(RequestIDKey).(string)
	if !ok {
		return ""
	}
	return value
}

func SetMethod(ctx context.Context, method string) context.Context {
	return context.WithValue(ctx, MethodKey, method)
}

func GetMethod(ctx context.Context) string {
	value, ok := ctx.Value(MethodKey).(string)
	if !ok {
		return ""
	}
	return value
}

func SetRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, RouteKey, route)
}

func GetRoute(ctx context.Context) string {
	value, ok := ctx.Value(RouteKey).(string)
	if !ok {
		return ""
	}
	return value
}

func SetRemoteIP(ctx context.Context, remoteIP string) context.Context {
	return context.WithValue(ctx, RemoteIPKey, remoteIP)
}

func GetRemoteIP(ctx context.Context) string {
	value, ok := ctx.Value(RemoteIPKey).(string)
	if !ok {
		return ""
	}
	return value
}

// SetGroupID stores the requesting tenant group on the context. Every
// repository read/write is scoped by this value.
func SetGroupID(ctx context.Context, groupID string) context.Context {
	return context.WithValue(ctx, GroupIDKey, groupID)
}

func GetGroupID(ctx context.Context) string {
	value, ok := ctx.Value(GroupIDKey).(string)
	if !ok {
		return ""
	}
	return value
}

// SetActorID stores the acting identity (a user entity id, or empty for
// system-originated operations).
func SetActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, ActorIDKey, actorID)
}

func GetActorID(ctx context.Context) string {
	value, ok := ctx.Value(ActorIDKey).(string)
	if !ok {
		return ""
	}
	return value
}
