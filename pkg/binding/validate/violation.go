package validate

import "errors"

// ConstraintViolation 验证引擎产生的一次约束违规（只读）
// pkg/validator 中的 *FieldError 实现了该接口
type ConstraintViolation interface {
	// Error 违规消息
	Error() string
	// PropertyPath 从根对象到违规元素的路径
	PropertyPath() Path
	// InvalidValue 未通过验证的值
	InvalidValue() any
	// RootBean 被验证的根对象（方法参数验证时为方法的接收者）
	RootBean() any
	// LeafBean 违规属性所在的对象
	LeafBean() any
}

// ErrMethodNotFound 违规描述的方法在根对象的运行时类型上不存在
// 说明验证引擎与绑定层对同一方法的描述不一致，属于不可恢复的编程模型错误
var ErrMethodNotFound = errors.New("method described by violation not found")
