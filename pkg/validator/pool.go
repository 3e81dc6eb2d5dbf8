package validator

import "sync"

// ============================================================================
// 对象池优化 - 减少内存分配和 GC 压力
// ============================================================================

// contextPoolMaxCap 归还时错误切片容量上限，超过则重新分配
const contextPoolMaxCap = maxErrorsCapacity

// validationContextPool ValidationContext 对象池
// 每次 Validate/ValidateParameters 调用借用一个，结果复制后归还
var validationContextPool = sync.Pool{
	New: func() any {
		return &ValidationContext{
			Errors: make([]*FieldError, 0, 8), // 预分配8个错误容量
		}
	},
}

// acquireValidationContext 从对象池获取 ValidationContext
// 使用后必须调用 releaseValidationContext 归还
func acquireValidationContext(scene ValidateScene) *ValidationContext {
	ctx := validationContextPool.Get().(*ValidationContext)
	ctx.Scene = scene
	ctx.Message = ""
	ctx.Errors = ctx.Errors[:0] // 清空错误列表，保留底层数组
	return ctx
}

// releaseValidationContext 将 ValidationContext 归还到对象池
func releaseValidationContext(ctx *ValidationContext) {
	if ctx == nil {
		return
	}

	if cap(ctx.Errors) > contextPoolMaxCap {
		ctx.Errors = make([]*FieldError, 0, 8)
	} else {
		// 清空错误引用，帮助 GC 回收
		for i := range ctx.Errors {
			ctx.Errors[i] = nil
		}
		ctx.Errors = ctx.Errors[:0]
	}
	ctx.Message = ""

	validationContextPool.Put(ctx)
}
