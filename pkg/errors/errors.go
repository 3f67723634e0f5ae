package errors

import "errors"

// ========== 错误码常量定义 ==========

// CodeSuccess 成功码
const (
	CodeSuccess = 200
)

// HTTP层错误码 (400-599)
const (
	CodeInvalidParam = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeConflict     = 409
	CodeServerError  = 500
)

// ========== 业务错误类型 ==========

// AppError 带错误码的业务错误
// 服务层只返回类型化错误，不做日志和展示格式化，由传输层统一转换
type AppError struct {
	Code    int
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

// NewValidation 输入校验/业务规则错误
func NewValidation(message string) *AppError {
	return &AppError{Code: CodeInvalidParam, Message: message}
}

// NewNotFound 目标实体不存在（含跨租户访问，二者不可区分）
func NewNotFound(message string) *AppError {
	return &AppError{Code: CodeNotFound, Message: message}
}

// NewConflict 唯一性约束冲突
func NewConflict(message string) *AppError {
	return &AppError{Code: CodeConflict, Message: message}
}

// NewUnauthorized 认证失败
func NewUnauthorized(message string) *AppError {
	return &AppError{Code: CodeUnauthorized, Message: message}
}

// NewServerError 系统内部错误
func NewServerError(message string) *AppError {
	return &AppError{Code: CodeServerError, Message: message}
}

// AsAppError 提取业务错误
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func hasCode(err error, code int) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsValidation 是否为校验错误
func IsValidation(err error) bool {
	return hasCode(err, CodeInvalidParam)
}

// IsNotFound 是否为未找到错误
func IsNotFound(err error) bool {
	return hasCode(err, CodeNotFound)
}

// IsConflict 是否为冲突错误
func IsConflict(err error) bool {
	return hasCode(err, CodeConflict)
}

// IsUnauthorized 是否为认证错误
func IsUnauthorized(err error) bool {
	return hasCode(err, CodeUnauthorized)
}
