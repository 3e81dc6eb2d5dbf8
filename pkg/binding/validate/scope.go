package validate

import (
	"errors"
	"fmt"
	"strings"
)

// Scope 类型级标记声明的验证范围，决定哪些违规交由 MVC 绑定结果处理
//
// 使用示例：
//
//	type ColorForm struct {
//	    Color string `form:"color" validate:"required"`
//	}
//
//	func (ColorForm) TypeTags() reflect.StructTag {
//	    return `validated:"fields_only"`
//	}
type Scope int

const (
	// ScopeTypeOnly 只考虑类型级（跨字段）约束
	ScopeTypeOnly Scope = iota + 1
	// ScopeFieldsOnly 只考虑字段及其访问器上的约束
	ScopeFieldsOnly
	// ScopeAll 类型级约束与所有字段约束都考虑（默认值）
	ScopeAll
)

// DefaultScope 标记未指定范围时的默认值
const DefaultScope = ScopeAll

// ErrInvalidScope 无法识别的范围值
var ErrInvalidScope = errors.New("invalid validation scope")

// String 实现 fmt.Stringer
func (s Scope) String() string {
	switch s {
	case ScopeTypeOnly:
		return "type_only"
	case ScopeFieldsOnly:
		return "fields_only"
	case ScopeAll:
		return "all"
	default:
		return fmt.Sprintf("Scope(%d)", int(s))
	}
}

// CoversFields 范围是否包含字段级约束
func (s Scope) CoversFields() bool {
	return s == ScopeFieldsOnly || s == ScopeAll
}

// CoversType 范围是否包含类型级约束
func (s Scope) CoversType() bool {
	return s == ScopeTypeOnly || s == ScopeAll
}

// ParseScope 解析范围标记的值，空值表示默认范围
// 大小写不敏感，同时接受 "TYPE_ONLY" 与 "type-only" 两种写法
func ParseScope(value string) (Scope, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	v = strings.ReplaceAll(v, "-", "_")

	switch v {
	case "":
		return DefaultScope, nil
	case "type_only":
		return ScopeTypeOnly, nil
	case "fields_only":
		return ScopeFieldsOnly, nil
	case "all":
		return ScopeAll, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidScope, value)
}
