package neo4j

import (
	"context"
	"errors"
	"strings"

	neo4jdrv "github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/OFFIS-RIT/kgbuilder/pkg/store"
)

const (
	msgAuth              = "Neo4j 认证失败，请检查 NEO4J_USER/NEO4J_PASSWORD 配置"
	msgMissingCapability = "Neo4j 缺少或未启用 APOC 插件，请在 Neo4j 中安装并放行 apoc.* 后重启"
	msgUnavailable       = "Neo4j 服务不可用，请确认 Neo4j 已启动且 NEO4J_URI 配置正确"
	msgUnknown           = "Neo4j 操作失败"
)

// classify maps a driver error onto a *store.BackendError. Context errors
// and store.ErrNotFound pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var be *store.BackendError
	if errors.As(err, &be) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, store.ErrNotFound) {
		return err
	}

	kind := kindOf(err)
	msg := msgUnknown
	switch kind {
	case store.BackendAuth:
		msg = msgAuth
	case store.BackendMissingCapability:
		msg = msgMissingCapability
	case store.BackendUnavailable:
		msg = msgUnavailable
	}
	return &store.BackendError{Kind: kind, Message: msg, Err: err}
}

func kindOf(err error) store.BackendErrorKind {
	var nerr *neo4jdrv.Neo4jError
	if errors.As(err, &nerr) {
		code := nerr.Code
		switch {
		case strings.HasPrefix(code, "Neo.ClientError.Security."):
			return store.BackendAuth
		case code == "Neo.ClientError.Procedure.ProcedureNotFound":
			return store.BackendMissingCapability
		}
		if isMissingCapability(nerr.Msg) {
			return store.BackendMissingCapability
		}
	}
	if neo4jdrv.IsConnectivityError(err) {
		return store.BackendUnavailable
	}

	msg := strings.ToLower(err.Error())
	switch {
	case isMissingCapability(msg):
		return store.BackendMissingCapability
	case strings.Contains(msg, "unauthorized"), strings.Contains(msg, "authentication failure"):
		return store.BackendAuth
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connectivity"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "i/o timeout"),
		strings.Contains(msg, "serviceunavailable"):
		return store.BackendUnavailable
	}
	return store.BackendUnknown
}

func isMissingCapability(msg string) bool {
	msg = strings.ToLower(msg)
	if !strings.Contains(msg, "apoc") {
		return false
	}
	return strings.Contains(msg, "unknown function") ||
		strings.Contains(msg, "no procedure") ||
		strings.Contains(msg, "not found") ||
		strings.Contains(msg, "is unavailable") ||
		strings.Contains(msg, "not allowed")
}

func isKind(err error, kind store.BackendErrorKind) bool {
	var be *store.BackendError
	return errors.As(err, &be) && be.Kind == kind
}
