package validate

// ConstraintViolationMetadata 引起违规的属性或方法参数的元数据
// 每次违规创建一个，请求结束即丢弃
type ConstraintViolationMetadata struct {
	violation   ConstraintViolation
	annotations Annotations
	mvcBound    bool
	markers     []paramMarker
}

// NewConstraintViolationMetadata 使用默认 tag 键创建元数据
// violation 不能为 nil
func NewConstraintViolationMetadata(violation ConstraintViolation, annotations Annotations, mvcBound bool) *ConstraintViolationMetadata {
	return newMetadata(violation, annotations, mvcBound, DefaultTagConfig())
}

func newMetadata(violation ConstraintViolation, annotations Annotations, mvcBound bool, tags TagConfig) *ConstraintViolationMetadata {
	if violation == nil {
		panic("validate: nil violation")
	}
	if annotations == nil {
		annotations = Annotations{}
	}
	return &ConstraintViolationMetadata{
		violation:   violation,
		annotations: annotations,
		mvcBound:    mvcBound,
		markers:     tags.withDefaults().paramMarkers(),
	}
}

// Violation 原始违规
func (m *ConstraintViolationMetadata) Violation() ConstraintViolation {
	return m.violation
}

// IsMvcBound 违规是否应通过 MVC 绑定结果报告
func (m *ConstraintViolationMetadata) IsMvcBound() bool {
	return m.mvcBound
}

// Annotations 违规元素上解析到的注解（副本）
func (m *ConstraintViolationMetadata) Annotations() Annotations {
	out := make(Annotations, len(m.annotations))
	copy(out, m.annotations)
	return out
}

// ParamName 第一个 Web 参数绑定标记声明的参数名
// 按 query、path、form、matrix、cookie 的顺序查找，都没有时 ok 为 false
func (m *ConstraintViolationMetadata) ParamName() (name string, ok bool) {
	return paramNameFrom(m.markers, m.annotations)
}
