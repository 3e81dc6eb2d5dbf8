package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"katydid-mvc-binding/pkg/binding"
	"katydid-mvc-binding/pkg/validator"
)

const (
	pageSuccess = "Success"
	pageError   = "Error"
)

const formPage = `<!DOCTYPE html>
<html>
<body>
<form name="testForm" method="post">
  <input type="text" name="color"/>
  <input type="submit" name="submit" value="Submit"/>
</form>
</body>
</html>
`

// colorPage 处理结果
type colorPage struct {
	Title  string               `json:"title"`
	Errors []binding.ParamError `json:"errors,omitempty"`
}

// ColorController 颜色表单控制器
type ColorController struct {
	binder *binding.Binder
	ejb    *colorEjbProxy
	logger *zap.Logger
}

// GetColorForm 返回表单页面
func (ctrl *ColorController) GetColorForm(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(formPage))
}

// ProcessColorFormBasic 只依赖绑定结果
func (ctrl *ColorController) ProcessColorFormBasic(c *gin.Context) {
	var form ColorForm
	result, err := ctrl.binder.Bind(c, &form, validator.SceneAll)
	if err != nil {
		ctrl.handleError(c, err)
		return
	}

	if result.IsFailed() {
		c.JSON(http.StatusOK, colorPage{Title: pageError, Errors: result.AllErrors()})
		return
	}
	c.JSON(http.StatusOK, colorPage{Title: pageSuccess})
}

// ProcessColorFormWithEjb 绑定通过后交给后端服务，调用前验证服务方法的参数
func (ctrl *ColorController) ProcessColorFormWithEjb(c *gin.Context) {
	var form ColorForm
	result, err := ctrl.binder.Bind(c, &form, validator.SceneAll)
	if err != nil {
		ctrl.handleError(c, err)
		return
	}
	if result.IsFailed() {
		c.JSON(http.StatusOK, colorPage{Title: pageError, Errors: result.AllErrors()})
		return
	}

	callResult, err := ctrl.binder.ValidateCall(ctrl.ejb, "DoEjbStuff", validator.SceneAll, &form)
	if err != nil {
		ctrl.handleError(c, err)
		return
	}
	if callResult.IsFailed() {
		c.JSON(http.StatusOK, colorPage{Title: pageError, Errors: callResult.AllErrors()})
		return
	}

	ctrl.ejb.DoEjbStuff(&form)
	c.JSON(http.StatusOK, colorPage{Title: pageSuccess})
}

// handleError 未绑定的违规返回 400，其余为服务端错误
func (ctrl *ColorController) handleError(c *gin.Context, err error) {
	var violations *binding.ViolationsError
	if errors.As(err, &violations) {
		errs := make([]binding.ParamError, 0, len(violations.Violations))
		for _, v := range violations.Violations {
			errs = append(errs, binding.ParamError{Param: v.PropertyPath().String(), Message: v.Error()})
		}
		c.JSON(http.StatusBadRequest, colorPage{Title: pageError, Errors: errs})
		return
	}

	ctrl.logger.Error("process color form", zap.Error(err))
	c.JSON(http.StatusInternalServerError, colorPage{Title: pageError})
}
