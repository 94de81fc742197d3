package atri

import (
	"errors"
	"fmt"
)

// ErrAuthorizationDenied 表示发送者不在白名单内
var ErrAuthorizationDenied = errors.New("authorization denied")

// UpstreamError 表示补全或计费接口返回了错误负载
type UpstreamError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: upstream error (status %d): %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: upstream error: %s", e.Op, e.Message)
}

// NetworkError 表示无法连接到外部接口
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("%s: network error: %v", e.Op, e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// PersistenceError 表示数据库读写失败
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: persistence error: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ValidationError 表示更新中缺少必要的字段
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("missing %s", e.Field) }
