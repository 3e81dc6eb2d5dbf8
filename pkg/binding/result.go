package binding

import (
	"strings"
	"sync"

	"katydid-mvc-binding/pkg/binding/validate"
)

// ParamError 绑定结果中的一条错误
// Param 为请求参数名；类型级约束或无法确定参数时为空
type ParamError struct {
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
	// Conversion 请求值转换失败（而非约束违规）
	Conversion bool `json:"conversion,omitempty"`
}

// BindingResult 一次请求的绑定结果，收集转换错误和 MVC 绑定的约束违规
// 控制器通过 IsFailed 判断后自行决定如何响应
type BindingResult struct {
	mu     sync.RWMutex
	errors []ParamError
}

// NewBindingResult 创建空的绑定结果
func NewBindingResult() *BindingResult {
	return &BindingResult{}
}

// IsFailed 是否存在任何错误
func (r *BindingResult) IsFailed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.errors) > 0
}

// AllErrors 按加入顺序返回全部错误的副本
func (r *BindingResult) AllErrors() []ParamError {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ParamError, len(r.errors))
	copy(out, r.errors)
	return out
}

// AllMessages 全部错误消息
func (r *BindingResult) AllMessages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.errors))
	for _, e := range r.errors {
		out = append(out, e.Message)
	}
	return out
}

// Errors 指定参数的错误
func (r *BindingResult) Errors(param string) []ParamError {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ParamError
	for _, e := range r.errors {
		if e.Param == param {
			out = append(out, e)
		}
	}
	return out
}

// AddViolation 加入一条 MVC 绑定的约束违规，参数名取自元数据
func (r *BindingResult) AddViolation(md *validate.ConstraintViolationMetadata) {
	param, _ := md.ParamName()
	r.add(ParamError{Param: param, Message: md.Violation().Error()})
}

// AddConversionError 加入一条请求值转换错误
func (r *BindingResult) AddConversionError(param, message string) {
	r.add(ParamError{Param: param, Message: message, Conversion: true})
}

// merge 追加另一个结果中的全部错误
func (r *BindingResult) merge(other *BindingResult) {
	if other == nil || other == r {
		return
	}
	for _, e := range other.AllErrors() {
		r.add(e)
	}
}

func (r *BindingResult) add(e ParamError) {
	r.mu.Lock()
	r.errors = append(r.errors, e)
	r.mu.Unlock()
}

// ViolationsError 未参与 MVC 绑定的约束违规，交由通用的错误处理
type ViolationsError struct {
	Violations []validate.ConstraintViolation
}

// Error 实现 error 接口
func (e *ViolationsError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		if path := v.PropertyPath().String(); path != "" {
			msgs = append(msgs, path+": "+v.Error())
			continue
		}
		msgs = append(msgs, v.Error())
	}
	return "constraint violations: " + strings.Join(msgs, "; ")
}
