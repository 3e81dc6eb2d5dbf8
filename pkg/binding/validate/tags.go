package validate

// TagConfig 各类注解对应的 tag 键
// 五类请求参数标记按 query/path/form/matrix/cookie 的顺序识别；gin 项目通常把 Path 改为 "uri"
type TagConfig struct {
	Query  string `mapstructure:"query" json:"query"`
	Path   string `mapstructure:"path" json:"path"`
	Form   string `mapstructure:"form" json:"form"`
	Matrix string `mapstructure:"matrix" json:"matrix"`
	Cookie string `mapstructure:"cookie" json:"cookie"`

	// MvcBinding 显式 MVC 绑定标记
	MvcBinding string `mapstructure:"mvc_binding" json:"mvc_binding"`
	// Validated 类型级验证范围标记
	Validated string `mapstructure:"validated" json:"validated"`
}

// DefaultTagConfig 默认 tag 键
func DefaultTagConfig() TagConfig {
	return TagConfig{
		Query:      "query",
		Path:       "path",
		Form:       "form",
		Matrix:     "matrix",
		Cookie:     "cookie",
		MvcBinding: "mvc",
		Validated:  "validated",
	}
}

// withDefaults 未配置的键回落到默认值
func (c TagConfig) withDefaults() TagConfig {
	d := DefaultTagConfig()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&c.Query, d.Query)
	fill(&c.Path, d.Path)
	fill(&c.Form, d.Form)
	fill(&c.Matrix, d.Matrix)
	fill(&c.Cookie, d.Cookie)
	fill(&c.MvcBinding, d.MvcBinding)
	fill(&c.Validated, d.Validated)
	return c
}

// ParamName 按参数标记的优先级从注解中取参数名
func (c TagConfig) ParamName(anns Annotations) (string, bool) {
	return paramNameFrom(c.withDefaults().paramMarkers(), anns)
}

func paramNameFrom(markers []paramMarker, anns Annotations) (string, bool) {
	for _, marker := range markers {
		a, found := anns.Get(marker.key)
		if !found {
			continue
		}
		if name, ok := marker.name(a); ok {
			return name, true
		}
	}
	return "", false
}

// paramMarker 参数名提取表的一项：标记键 + 取名函数
type paramMarker struct {
	key  string
	name func(Annotation) (string, bool)
}

// paramMarkers 参数名提取表，顺序即优先级：query、path、form、matrix、cookie
func (c TagConfig) paramMarkers() []paramMarker {
	keys := []string{c.Query, c.Path, c.Form, c.Matrix, c.Cookie}
	markers := make([]paramMarker, 0, len(keys))
	for _, key := range keys {
		markers = append(markers, paramMarker{key: key, name: markerName})
	}
	return markers
}

// markerName "-" 与空名表示不参与绑定
func markerName(a Annotation) (string, bool) {
	name := a.Name()
	if name == "" || name == "-" {
		return "", false
	}
	return name, true
}
