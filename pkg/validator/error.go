package validator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"katydid-mvc-binding/pkg/binding/validate"
)

// 错误收集相关的限制
const (
	// maxErrorsCapacity 单次验证最多收集的错误数，防止恶意数据导致内存膨胀
	maxErrorsCapacity = 1000
	// errorMessageEstimateLen 单条错误消息的预估长度，用于预分配
	errorMessageEstimateLen = 64
	// maxNamespaceLength 命名空间最大长度
	maxNamespaceLength = 512
	// maxTagLength 验证标签最大长度
	maxTagLength = 64
	// maxParamLength 验证参数最大长度
	maxParamLength = 128
)

// ValidationContext 验证上下文，用于传递验证环境信息并收集错误
type ValidationContext struct {
	// Scene 验证场景
	Scene ValidateScene `json:"scene"`
	// Message 总体错误消息（可选）
	Message string `json:"message,omitempty"`
	// Errors 所有验证错误的集合（可选）
	Errors []*FieldError `json:"errors,omitempty"`
}

// FieldError 单个约束违规
// 既是 error，也实现了 validate.ConstraintViolation，可直接交给绑定层解析元数据
type FieldError struct {
	// FieldName 结构体字段名
	FieldName string `json:"field_name,omitempty"`
	// JsonName JSON 字段名
	JsonName string `json:"json_name"`
	// Tag 验证标签（如 required, email, min 等）
	Tag string `json:"tag"`
	// Param 验证参数（如 min=3 中的 "3"）
	Param string `json:"param,omitempty"`
	// Value 未通过验证的值
	Value any `json:"value,omitempty"`
	// Message 友好的错误消息（可选，用于直接显示给用户）
	Message string `json:"message,omitempty"`
	// Namespace 属性路径的字符串形式（如 ProcessColor.arg0.Color）
	Namespace string `json:"namespace,omitempty"`

	path validate.Path
	root any
	leaf any
}

var _ validate.ConstraintViolation = (*FieldError)(nil)

// NewValidationContext 创建验证上下文
func NewValidationContext(scene ValidateScene) *ValidationContext {
	return &ValidationContext{
		Scene:  scene,
		Errors: make([]*FieldError, 0),
	}
}

// NewFieldError 创建字段错误
// jsonName: 字段名（同时作为命名空间）
// tag: 验证标签
// param: 验证参数
func NewFieldError(jsonName, tag, param string) *FieldError {
	return &FieldError{
		FieldName: jsonName,
		JsonName:  jsonName,
		Tag:       truncateString(tag, maxTagLength),
		Param:     truncateString(param, maxParamLength),
		Namespace: truncateString(jsonName, maxNamespaceLength),
	}
}

// Error 实现 error 接口
func (vc *ValidationContext) Error() string {
	if len(vc.Errors) == 0 {
		if len(vc.Message) == 0 {
			return "validation passed: no errors"
		}
		return fmt.Sprintf("validation failed: %s", vc.Message)
	}

	var builder strings.Builder
	builder.Grow(len(vc.Errors) * errorMessageEstimateLen)

	for i, err := range vc.Errors {
		if i > 0 {
			builder.WriteString("; ")
		}
		builder.WriteString(err.String())
	}

	return builder.String()
}

// HasErrors 检查是否有验证错误
func (vc *ValidationContext) HasErrors() bool {
	return len(vc.Errors) > 0
}

// AddError 添加字段错误，超过容量上限的错误被丢弃
func (vc *ValidationContext) AddError(err *FieldError) {
	if err == nil || len(vc.Errors) >= maxErrorsCapacity {
		return
	}
	vc.Errors = append(vc.Errors, err)
}

// AddErrors 批量添加字段错误
func (vc *ValidationContext) AddErrors(errors []*FieldError) {
	for _, err := range errors {
		vc.AddError(err)
	}
}

// ToJSON 转换为 JSON 格式
func (vc *ValidationContext) ToJSON() ([]byte, error) {
	return json.Marshal(vc)
}

// GetErrorsByNamespace 按命名空间获取错误
func (vc *ValidationContext) GetErrorsByNamespace(namespace string) []*FieldError {
	var errors []*FieldError
	for _, err := range vc.Errors {
		if err.Namespace == namespace {
			errors = append(errors, err)
		}
	}
	return errors
}

// GetErrorsByTag 按验证标签获取错误
func (vc *ValidationContext) GetErrorsByTag(tag string) []*FieldError {
	var errors []*FieldError
	for _, err := range vc.Errors {
		if err.Tag == tag {
			errors = append(errors, err)
		}
	}
	return errors
}

// newViolation 根据底层验证器的错误创建违规
func newViolation(e validator.FieldError, path validate.Path, root, leaf any) *FieldError {
	return &FieldError{
		FieldName: e.StructField(),
		JsonName:  e.Field(),
		Tag:       truncateString(e.Tag(), maxTagLength),
		Param:     truncateString(e.Param(), maxParamLength),
		Value:     e.Value(),
		Namespace: truncateString(path.String(), maxNamespaceLength),
		path:      path,
		root:      root,
		leaf:      leaf,
	}
}

// String 返回友好的错误信息
func (fe *FieldError) String() string {
	if fe.Message != "" {
		return fmt.Sprintf("field '%s': %s", fe.JsonName, fe.Message)
	}
	return fmt.Sprintf("field '%s' validation failed on tag '%s'", fe.JsonName, fe.Tag)
}

// Error 实现 error 接口，有友好消息时直接返回
func (fe *FieldError) Error() string {
	if fe.Message != "" {
		return fe.Message
	}
	return fe.String()
}

// PropertyPath 实现 validate.ConstraintViolation
func (fe *FieldError) PropertyPath() validate.Path {
	return fe.path
}

// InvalidValue 实现 validate.ConstraintViolation
func (fe *FieldError) InvalidValue() any {
	return fe.Value
}

// RootBean 实现 validate.ConstraintViolation
func (fe *FieldError) RootBean() any {
	return fe.root
}

// LeafBean 实现 validate.ConstraintViolation
func (fe *FieldError) LeafBean() any {
	return fe.leaf
}

func (fe *FieldError) WithMessage(message string) *FieldError {
	fe.Message = message
	return fe
}

func (fe *FieldError) WithNamespace(namespace string) *FieldError {
	fe.Namespace = truncateString(namespace, maxNamespaceLength)
	return fe
}

// WithPath 设置属性路径，命名空间随之更新
func (fe *FieldError) WithPath(path validate.Path, root, leaf any) *FieldError {
	fe.path = path
	fe.root = root
	fe.leaf = leaf
	fe.Namespace = truncateString(path.String(), maxNamespaceLength)
	return fe
}

// WithValue 设置未通过验证的值
func (fe *FieldError) WithValue(value any) *FieldError {
	fe.Value = value
	return fe
}

// truncateString 截断超长字符串
func truncateString(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
