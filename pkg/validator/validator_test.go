package validator

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"katydid-mvc-binding/pkg/binding/validate"
)

// 测试场景常量
const (
	sceneCreate ValidateScene = 1 << 0 // 创建场景
	sceneUpdate ValidateScene = 1 << 1 // 更新场景
)

var goodColors = map[string]bool{"red": true, "orange": true, "yellow": true}

// colorForm 带类型级约束的表单
type colorForm struct {
	Color string `json:"color" form:"color" validate:"required" mvc:"binding"`
}

func (f *colorForm) CustomValidation(scene ValidateScene, report FuncReportError) {
	if f.Color != "" && !goodColors[f.Color] {
		report("", "goodcolor", "")
	}
}

func (f *colorForm) GetErrorMessage(fieldName, tag, param string) string {
	switch tag {
	case "required":
		return fieldName + " must not be blank"
	case "goodcolor":
		return "That is not a good color"
	}
	return ""
}

// ruleUser 场景化规则，struct tag 中的规则被忽略
type ruleUser struct {
	Username string `json:"username" validate:"len=1"`
	Email    string `json:"email"`
}

func (u *ruleUser) RuleValidation() map[ValidateScene]map[string]string {
	return map[ValidateScene]map[string]string{
		sceneCreate: {"Username": "required,min=3", "email": "required,email"},
		sceneUpdate: {"Email": "omitempty,email"},
	}
}

// nicknameForm 约束声明在 getter 上
type nicknameForm struct {
	nickname string
}

func (f *nicknameForm) Nickname() string { return f.nickname }

func (*nicknameForm) MethodTags() map[string]reflect.StructTag {
	return map[string]reflect.StructTag{
		"Nickname": `validate:"required,min=3"`,
	}
}

type address struct {
	City string `validate:"required"`
}

type lineItem struct {
	Name string `json:"name" validate:"required"`
}

type order struct {
	Address address
	Items   []lineItem `validate:"dive"`
	Extras  []lineItem
	Backup  *address
}

// passwordForm 跨字段约束
type passwordForm struct {
	Password string
	Confirm  string
}

func (f *passwordForm) CustomValidation(scene ValidateScene, report FuncReportError) {
	if f.Password != f.Confirm {
		report("Confirm", "eqfield", "Password")
	}
}

type chain struct {
	Next *chain
}

type colorController struct{}

func (c *colorController) Process(color string, count int) {}
func (c *colorController) Submit(form *colorForm)          {}

func (*colorController) ParamTags() map[string][]reflect.StructTag {
	return map[string][]reflect.StructTag{
		"Process": {`query:"color" validate:"required"`, `query:"count" validate:"gte=1"`},
		"Submit":  {`valid:""`},
	}
}

// paletteService 参数注解只来自注册表
type paletteService struct{}

func (paletteService) Pick(color string) {}

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	return New(WithLogger(zaptest.NewLogger(t)), WithCatalog(validate.NewCatalog()))
}

func namespaces(errs []*FieldError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Namespace)
	}
	return out
}

func TestValidate_ColorForm(t *testing.T) {
	v := newTestValidator(t)

	tests := []struct {
		name        string
		form        any
		wantTag     string
		wantMessage string
		wantKinds   []validate.NodeKind
	}{
		{name: "有效颜色", form: &colorForm{Color: "red"}},
		{name: "值类型有效颜色", form: colorForm{Color: "yellow"}},
		{
			name:        "颜色为空",
			form:        &colorForm{},
			wantTag:     "required",
			wantMessage: "color must not be blank",
			wantKinds:   []validate.NodeKind{validate.NodeProperty},
		},
		{
			name:        "不是好颜色",
			form:        &colorForm{Color: "blue"},
			wantTag:     "goodcolor",
			wantMessage: "That is not a good color",
			wantKinds:   []validate.NodeKind{validate.NodeBean},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := v.Validate(tt.form, SceneAll)
			if tt.wantTag == "" {
				assert.Nil(t, errs)
				return
			}

			require.Len(t, errs, 1)
			fe := errs[0]
			assert.Equal(t, tt.wantTag, fe.Tag)
			assert.Equal(t, tt.wantMessage, fe.Error())

			kinds := make([]validate.NodeKind, 0, len(fe.PropertyPath()))
			for _, n := range fe.PropertyPath() {
				kinds = append(kinds, n.Kind)
			}
			assert.Equal(t, tt.wantKinds, kinds)
			assert.Same(t, tt.form, fe.RootBean())
			assert.Same(t, tt.form, fe.LeafBean())
		})
	}
}

func TestValidate_BeanViolationValue(t *testing.T) {
	v := newTestValidator(t)
	form := &colorForm{Color: "blue"}

	errs := v.Validate(form, SceneAll)
	require.Len(t, errs, 1)
	assert.Same(t, form, errs[0].InvalidValue())
	assert.Empty(t, errs[0].Namespace)
}

func TestValidate_RuleValidator(t *testing.T) {
	v := newTestValidator(t)

	tests := []struct {
		name  string
		user  *ruleUser
		scene ValidateScene
		want  []string
		tags  []string
	}{
		{
			name:  "创建场景有效",
			user:  &ruleUser{Username: "bob", Email: "bob@example.com"},
			scene: sceneCreate,
		},
		{
			name:  "创建场景缺少字段",
			user:  &ruleUser{Email: "invalid"},
			scene: sceneCreate,
			want:  []string{"Username", "Email"},
			tags:  []string{"required", "email"},
		},
		{
			name:  "更新场景允许为空",
			user:  &ruleUser{},
			scene: sceneUpdate,
		},
		{
			name:  "更新场景邮箱无效",
			user:  &ruleUser{Email: "invalid"},
			scene: sceneUpdate,
			want:  []string{"Email"},
			tags:  []string{"email"},
		},
		{
			name:  "组合场景合并规则",
			user:  &ruleUser{Username: "bob"},
			scene: sceneCreate | sceneUpdate,
			want:  []string{"Email"},
			tags:  []string{"required"},
		},
		{name: "无场景", user: &ruleUser{}, scene: SceneNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := v.Validate(tt.user, tt.scene)
			if tt.want == nil {
				assert.Nil(t, errs)
				return
			}

			tags := make([]string, 0, len(errs))
			for _, e := range errs {
				tags = append(tags, e.Tag)
				assert.Same(t, tt.user, e.LeafBean())
			}
			assert.ElementsMatch(t, tt.want, namespaces(errs))
			assert.ElementsMatch(t, tt.tags, tags)
		})
	}
}

func TestValidate_RuleValidatorJSONNames(t *testing.T) {
	v := newTestValidator(t)

	errs := v.Validate(&ruleUser{Username: "bob"}, sceneCreate)
	require.Len(t, errs, 1)
	assert.Equal(t, "email", errs[0].JsonName)
	assert.Equal(t, "Email", errs[0].Namespace)
}

func TestValidate_GetterRules(t *testing.T) {
	v := newTestValidator(t)

	form := &nicknameForm{nickname: "ab"}
	errs := v.Validate(form, SceneAll)
	require.Len(t, errs, 1)
	assert.Equal(t, "nickname", errs[0].Namespace)
	assert.Equal(t, "min", errs[0].Tag)
	assert.Equal(t, "3", errs[0].Param)
	assert.Equal(t, "ab", errs[0].InvalidValue())
	assert.Same(t, form, errs[0].LeafBean())

	// 值类型也能调用指针接收者的 getter
	errs = v.Validate(nicknameForm{}, SceneAll)
	require.Len(t, errs, 1)
	assert.Equal(t, "required", errs[0].Tag)

	assert.Nil(t, v.Validate(&nicknameForm{nickname: "katydid"}, SceneAll))
}

func TestValidate_GetterRulesFromCatalog(t *testing.T) {
	catalog := validate.NewCatalog()
	catalog.AnnotateMethod(reflect.TypeOf(nicknameForm{}), "Nickname", `validate:"max=4"`)
	v := New(WithLogger(zaptest.NewLogger(t)), WithCatalog(catalog))

	// 接口声明与注册的注解合并后取第一个 validate
	errs := v.Validate(&nicknameForm{nickname: "ab"}, SceneAll)
	require.Len(t, errs, 1)
	assert.Equal(t, "min", errs[0].Tag)
}

func TestValidate_Nested(t *testing.T) {
	v := newTestValidator(t)

	o := &order{
		Items:  []lineItem{{Name: "a"}, {}},
		Extras: []lineItem{{}},
		Backup: &address{},
	}
	errs := v.Validate(o, SceneAll)

	assert.ElementsMatch(t,
		[]string{"Address.City", "Items[1].Name", "Extras[0].Name", "Backup.City"},
		namespaces(errs),
	)

	for _, e := range errs {
		assert.Same(t, o, e.RootBean())
		switch e.Namespace {
		case "Address.City":
			assert.Equal(t, address{}, e.LeafBean())
		case "Items[1].Name":
			assert.Equal(t, lineItem{}, e.LeafBean())
			last, _ := e.PropertyPath().Last()
			assert.Equal(t, "Name", last.Name)
			assert.True(t, e.PropertyPath()[0].HasSubscript)
			assert.Equal(t, "1", e.PropertyPath()[0].Subscript)
		case "Extras[0].Name":
			assert.Equal(t, &lineItem{}, e.LeafBean())
		case "Backup.City":
			assert.Same(t, o.Backup, e.LeafBean())
		}
	}
}

func TestValidate_CrossField(t *testing.T) {
	v := newTestValidator(t)

	form := &passwordForm{Password: "secret", Confirm: "secrets"}
	errs := v.Validate(form, SceneAll)
	require.Len(t, errs, 1)

	fe := errs[0]
	assert.Equal(t, "Confirm", fe.Namespace)
	assert.Equal(t, "eqfield", fe.Tag)
	assert.Equal(t, "Password", fe.Param)
	assert.Equal(t, "secrets", fe.InvalidValue())
	assert.Same(t, form, fe.LeafBean())

	assert.Nil(t, v.Validate(&passwordForm{Password: "a", Confirm: "a"}, SceneAll))
}

func TestValidate_NestedDepthLimit(t *testing.T) {
	v := newTestValidator(t)

	head := &chain{}
	cur := head
	for i := 0; i < maxNestedDepth+20; i++ {
		cur.Next = &chain{}
		cur = cur.Next
	}

	errs := v.Validate(head, SceneAll)
	require.Len(t, errs, 1)
	assert.Equal(t, "nest_depth", errs[0].Tag)
}

func TestValidate_NilAndNonStruct(t *testing.T) {
	v := newTestValidator(t)

	errs := v.Validate(nil, SceneAll)
	require.Len(t, errs, 1)
	assert.Equal(t, "required", errs[0].Tag)

	assert.Nil(t, v.Validate("plain string", SceneAll))
	assert.Nil(t, v.Validate((*colorForm)(nil), SceneAll))
}

func TestValidateParameters(t *testing.T) {
	v := newTestValidator(t)
	ctrl := &colorController{}
	stringType, intType := reflect.TypeOf(""), reflect.TypeOf(0)

	t.Run("参数约束", func(t *testing.T) {
		errs, err := v.ValidateParameters(ctrl, "Process", SceneAll, "", 0)
		require.NoError(t, err)
		require.Len(t, errs, 2)

		assert.Equal(t, "Process.arg0", errs[0].Namespace)
		assert.Equal(t, "required", errs[0].Tag)
		assert.Equal(t, "Process.arg1", errs[1].Namespace)
		assert.Equal(t, "gte", errs[1].Tag)

		path := errs[1].PropertyPath()
		require.Len(t, path, 2)
		assert.Equal(t, validate.NodeMethod, path[0].Kind)
		assert.Equal(t, []reflect.Type{stringType, intType}, path[0].ParameterTypes)
		assert.Equal(t, validate.NodeParameter, path[1].Kind)
		assert.Equal(t, 1, path[1].Index)
		assert.Same(t, ctrl, errs[1].RootBean())
		assert.Same(t, ctrl, errs[1].LeafBean())
	})

	t.Run("参数有效", func(t *testing.T) {
		errs, err := v.ValidateParameters(ctrl, "Process", SceneAll, "red", 2)
		require.NoError(t, err)
		assert.Nil(t, errs)
	})

	t.Run("级联验证类型级约束", func(t *testing.T) {
		form := &colorForm{Color: "blue"}
		errs, err := v.ValidateParameters(ctrl, "Submit", SceneAll, form)
		require.NoError(t, err)
		require.Len(t, errs, 1)

		path := errs[0].PropertyPath()
		require.Len(t, path, 3)
		assert.Equal(t, validate.NodeBean, path[2].Kind)
		assert.Same(t, form, errs[0].InvalidValue())
		assert.Same(t, ctrl, errs[0].RootBean())
		assert.Equal(t, "That is not a good color", errs[0].Error())
	})

	t.Run("级联验证属性", func(t *testing.T) {
		form := &colorForm{}
		errs, err := v.ValidateParameters(ctrl, "Submit", SceneAll, form)
		require.NoError(t, err)
		require.Len(t, errs, 1)
		assert.Equal(t, "Submit.arg0.Color", errs[0].Namespace)
		assert.Same(t, form, errs[0].LeafBean())
	})

	t.Run("级联参数为 nil", func(t *testing.T) {
		errs, err := v.ValidateParameters(ctrl, "Submit", SceneAll, nil)
		require.NoError(t, err)
		assert.Nil(t, errs)
	})
}

func TestValidateParameters_Errors(t *testing.T) {
	v := newTestValidator(t)

	_, err := v.ValidateParameters(&colorController{}, "Missing", SceneAll)
	assert.ErrorIs(t, err, validate.ErrMethodNotFound)

	_, err = v.ValidateParameters(nil, "Process", SceneAll)
	assert.ErrorIs(t, err, validate.ErrMethodNotFound)

	_, err = v.ValidateParameters(&colorController{}, "Process", SceneAll, "red")
	assert.ErrorIs(t, err, ErrArgumentCount)

	// 值类型的根对象也能找到指针接收者方法
	errs, err := v.ValidateParameters(colorController{}, "Process", SceneAll, "red", 0)
	require.NoError(t, err)
	assert.Len(t, errs, 1)
}

func TestValidateParameters_RegisteredAnnotations(t *testing.T) {
	catalog := validate.NewCatalog()
	catalog.AnnotateParams(reflect.TypeOf(paletteService{}), "Pick", `validate:"oneof=red orange yellow"`)
	v := New(WithLogger(zaptest.NewLogger(t)), WithCatalog(catalog))

	errs, err := v.ValidateParameters(&paletteService{}, "Pick", SceneAll, "blue")
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "oneof", errs[0].Tag)
}

func TestRegisterValidation(t *testing.T) {
	v := newTestValidator(t)
	err := v.RegisterValidation("even", func(fl FieldLevel) bool {
		return fl.Field().Int()%2 == 0
	})
	require.NoError(t, err)

	type counter struct {
		Count int `validate:"even"`
	}

	assert.Nil(t, v.Validate(&counter{Count: 2}, SceneAll))
	errs := v.Validate(&counter{Count: 3}, SceneAll)
	require.Len(t, errs, 1)
	assert.Equal(t, "even", errs[0].Tag)
	assert.Equal(t, "Count", errs[0].Namespace)
}

func TestRegisterValidation_FieldLevel(t *testing.T) {
	v := newTestValidator(t)

	type signup struct {
		Password string `json:"password"`
		Confirm  string `json:"confirm" validate:"samefield=Password"`
	}

	var seenTag, seenName string
	var seenTop any
	err := v.RegisterValidation("samefield", func(fl FieldLevel) bool {
		seenTag, seenName = fl.Tag(), fl.FieldName()
		seenTop = fl.Top().Interface()
		other, ok := fl.Sibling(fl.Param())
		return ok && other.String() == fl.Field().String()
	})
	require.NoError(t, err)

	form := &signup{Password: "secret", Confirm: "secret"}
	assert.Nil(t, v.Validate(form, SceneAll))
	assert.Equal(t, "samefield", seenTag)
	assert.Equal(t, "confirm", seenName)
	assert.Same(t, form, seenTop)

	errs := v.Validate(&signup{Password: "secret", Confirm: "oops"}, SceneAll)
	require.Len(t, errs, 1)
	assert.Equal(t, "samefield", errs[0].Tag)

	// 单值验证没有可比较的同级字段
	assert.Error(t, v.GetUnderlyingValidator().Var("x", "samefield=Password"))
}

func TestTypeCache(t *testing.T) {
	v := newTestValidator(t)

	v.Validate(&colorForm{Color: "red"}, SceneAll)
	v.Validate(&ruleUser{}, sceneUpdate)
	assert.Equal(t, 2, v.TypeCacheStats())

	v.ClearTypeCache()
	assert.Equal(t, 0, v.TypeCacheStats())
	assert.NotNil(t, v.GetUnderlyingValidator())
}

func TestDefault(t *testing.T) {
	assert.Same(t, Default(), Default())

	errs := Validate(&lineItem{}, SceneAll)
	require.Len(t, errs, 1)
	assert.Equal(t, "name", errs[0].JsonName)

	_, err := ValidateParameters(&colorController{}, "Missing", SceneAll)
	assert.ErrorIs(t, err, validate.ErrMethodNotFound)
}

func TestValidate_Concurrent(t *testing.T) {
	v := newTestValidator(t)
	done := make(chan []*FieldError, 16)
	for i := 0; i < cap(done); i++ {
		go func() {
			done <- v.Validate(&colorForm{Color: "blue"}, SceneAll)
		}()
	}
	for i := 0; i < cap(done); i++ {
		errs := <-done
		require.Len(t, errs, 1)
		assert.Equal(t, "goodcolor", errs[0].Tag)
	}
}

func TestValidateNested(t *testing.T) {
	v := newTestValidator(t)
	form := &colorForm{Color: "blue"}
	prefix := validate.Path{
		validate.MethodNode("ProcessColorForm", reflect.TypeOf(form)),
		validate.ParameterNode(0),
	}

	errs := v.ValidateNested(form, prefix, form, SceneAll)
	require.Len(t, errs, 1)
	path := errs[0].PropertyPath()
	require.Len(t, path, 3)
	assert.Equal(t, validate.NodeBean, path[2].Kind)
	assert.Equal(t, "ProcessColorForm.arg0", errs[0].Namespace)

	// 前缀不会被修改
	assert.Len(t, prefix, 2)
	assert.Nil(t, v.ValidateNested(form, prefix, nil, SceneAll))
}
