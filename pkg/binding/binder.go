package binding

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	govalidator "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"katydid-mvc-binding/pkg/binding/validate"
	"katydid-mvc-binding/pkg/validator"
)

// resultKey gin.Context 中保存 BindingResult 的键
const resultKey = "katydid.binding.result"

// Binder 请求绑定与约束违规分流
//
// 处理流程：
//  1. 请求值绑定到目标对象，转换失败记入 BindingResult
//  2. 目标对象作为处理函数的参数做级联验证
//  3. 逐条解析违规元数据：MVC 绑定的违规记入 BindingResult，其余作为 *ViolationsError 返回
type Binder struct {
	resolver  *validate.Resolver
	validator *validator.Validator
	metrics   *Metrics
	logger    *zap.Logger
}

// Option Binder 配置项
type Option func(*Binder)

// WithResolver 指定元数据解析器，默认 validate.Default()
func WithResolver(r *validate.Resolver) Option {
	return func(b *Binder) {
		if r != nil {
			b.resolver = r
		}
	}
}

// WithValidator 指定验证器，默认 validator.Default()
func WithValidator(v *validator.Validator) Option {
	return func(b *Binder) {
		if v != nil {
			b.validator = v
		}
	}
}

// WithMetrics 指定指标，默认 DefaultMetrics()
func WithMetrics(m *Metrics) Option {
	return func(b *Binder) {
		if m != nil {
			b.metrics = m
		}
	}
}

// WithLogger 指定日志器，默认 zap.L()
func WithLogger(logger *zap.Logger) Option {
	return func(b *Binder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBinder 创建 Binder
func NewBinder(opts ...Option) *Binder {
	b := &Binder{}
	for _, opt := range opts {
		opt(b)
	}
	if b.resolver == nil {
		b.resolver = validate.Default()
	}
	if b.validator == nil {
		b.validator = validator.Default()
	}
	if b.metrics == nil {
		b.metrics = DefaultMetrics()
	}
	if b.logger == nil {
		b.logger = zap.L()
	}
	b.logger = b.logger.Named("binding")
	return b
}

// Violations 把具体的违规切片转换为接口切片
func Violations[T validate.ConstraintViolation](errs []T) []validate.ConstraintViolation {
	if len(errs) == 0 {
		return nil
	}
	out := make([]validate.ConstraintViolation, 0, len(errs))
	for _, e := range errs {
		out = append(out, e)
	}
	return out
}

// Process 解析每条违规的元数据并分流
//
// 返回：
//   - 记录了 MVC 绑定违规的 BindingResult
//   - 存在未绑定的违规时返回 *ViolationsError
//   - 元数据解析失败时直接返回该错误，BindingResult 为 nil
func (b *Binder) Process(violations []validate.ConstraintViolation) (*BindingResult, error) {
	result := NewBindingResult()
	var generic []validate.ConstraintViolation

	for _, v := range violations {
		md, err := b.resolver.Metadata(v)
		if err != nil {
			b.metrics.resolveErrors.Inc()
			b.logger.Error("resolve violation metadata", zap.Error(err))
			return nil, err
		}

		if md.IsMvcBound() {
			result.AddViolation(md)
			b.metrics.violations.WithLabelValues(channelBinding).Inc()
			continue
		}
		generic = append(generic, v)
		b.metrics.violations.WithLabelValues(channelGeneric).Inc()
	}

	if len(generic) > 0 {
		return result, &ViolationsError{Violations: generic}
	}
	return result, nil
}

// Bind 把请求绑定到 target 并验证，结果合并进当前请求的 BindingResult
// target 被视为处理函数的第 0 个参数，类型级约束的违规路径为 [处理函数, arg0, 对象]
func (b *Binder) Bind(c *gin.Context, target any, scene validator.ValidateScene) (*BindingResult, error) {
	result := ResultFrom(c)

	if err := c.ShouldBind(target); err != nil {
		b.addBindError(result, target, err)
	}

	prefix := validate.Path{
		validate.MethodNode(handlerName(c), reflect.TypeOf(target)),
		validate.ParameterNode(0),
	}
	errs := b.validator.ValidateNested(target, prefix, target, scene)

	processed, err := b.Process(Violations(errs))
	result.merge(processed)
	return result, err
}

// ValidateCall 验证一次方法调用的参数并分流违规
func (b *Binder) ValidateCall(root any, method string, scene validator.ValidateScene, args ...any) (*BindingResult, error) {
	errs, err := b.validator.ValidateParameters(root, method, scene, args...)
	if err != nil {
		return nil, err
	}
	return b.Process(Violations(errs))
}

// addBindError 记录请求值转换失败，尽量找出对应的参数名
func (b *Binder) addBindError(result *BindingResult, target any, err error) {
	var typeErr *json.UnmarshalTypeError
	var fieldErrs govalidator.ValidationErrors

	switch {
	case errors.As(err, &typeErr):
		result.AddConversionError(typeErr.Field, err.Error())
	case errors.As(err, &fieldErrs):
		for _, fe := range fieldErrs {
			result.AddConversionError(b.paramNameOf(target, fe), fe.Error())
		}
	default:
		result.AddConversionError("", err.Error())
	}
	b.logger.Debug("request binding failed", zap.Error(err))
}

// paramNameOf gin 验证错误对应的请求参数名
// 沿命名空间找到字段，按参数标记取名；找不到字段或没有标记时使用 fe.Field()
func (b *Binder) paramNameOf(target any, fe govalidator.FieldError) string {
	t := reflect.TypeOf(target)
	var field reflect.StructField
	found := false

	for _, node := range validate.ParseNamespace(fe.StructNamespace()) {
		t = indirectType(t)
		if t == nil || t.Kind() != reflect.Struct {
			return fe.Field()
		}
		field, found = t.FieldByName(node.Name)
		if !found {
			return fe.Field()
		}
		t = field.Type
		if node.HasSubscript {
			t = indirectType(t)
			switch t.Kind() {
			case reflect.Slice, reflect.Array, reflect.Map:
				t = t.Elem()
			}
		}
	}

	if found {
		if name, ok := b.resolver.Tags().ParamName(validate.ParseTag(field.Tag)); ok {
			return name
		}
	}
	return fe.Field()
}

func indirectType(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// handlerName 处理函数名，如 "main.(*ColorController).ProcessBasic-fm" => "ProcessBasic"
func handlerName(c *gin.Context) string {
	name := c.HandlerName()
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, "-fm")
	if name == "" {
		return "handler"
	}
	return name
}

// Middleware 为每个请求安装空的 BindingResult，请求结束后统计失败的绑定
func Middleware(b *Binder) gin.HandlerFunc {
	return func(c *gin.Context) {
		result := NewBindingResult()
		c.Set(resultKey, result)

		c.Next()

		if result.IsFailed() {
			b.metrics.failedRequests.Inc()
		}
	}
}

// ResultFrom 当前请求的 BindingResult；没有安装中间件时创建一个
func ResultFrom(c *gin.Context) *BindingResult {
	if v, ok := c.Get(resultKey); ok {
		if result, ok := v.(*BindingResult); ok {
			return result
		}
	}
	result := NewBindingResult()
	c.Set(resultKey, result)
	return result
}
