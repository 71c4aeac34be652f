package plans

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"enrollment-app/database"
	"enrollment-app/internal/domain/enrollment"
	"enrollment-app/internal/domain/plans"
	"enrollment-app/internal/domain/products"
)

// ListTemplates returns the tenant's plan templates, optionally filtered
// by product for the enrollee-facing plan picker.
func ListTemplates(c *gin.Context) {
	tenantID := c.GetUint("tenant_id")

	q := database.DB.Where("tenant_id = ?", tenantID)
	if raw := c.Query("product_id"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			q = q.Where("product_id = ?", uint(id))
		}
	}

	var templates []plans.PlanTemplate
	if err := q.Order("id ASC").Find(&templates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load templates"})
		return
	}
	c.JSON(http.StatusOK, templates)
}

type createTemplateBody struct {
	ProductID        uint             `json:"product_id" binding:"required"`
	Name             string           `json:"name" binding:"required"`
	Type             plans.PlanType   `json:"type" binding:"required"`
	DepositAmount    *decimal.Decimal `json:"deposit_amount"`
	InstallmentCount int              `json:"installment_count"`
	Frequency        *plans.Frequency `json:"frequency"`
	Currency         string           `json:"currency"`
}

func CreateTemplate(c *gin.Context) {
	tenantID := c.GetUint("tenant_id")

	var body createTemplateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid template payload"})
		return
	}

	switch body.Type {
	case plans.PlanOneTime, plans.PlanDepositInstallments, plans.PlanSubscription:
	default:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Unknown plan type"})
		return
	}
	if body.Type != plans.PlanOneTime && body.Frequency == nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Frequency is required for this plan type"})
		return
	}
	if body.Type == plans.PlanDepositInstallments {
		if body.DepositAmount == nil || body.DepositAmount.LessThanOrEqual(decimal.Zero) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Deposit amount is required"})
			return
		}
		if body.InstallmentCount < 1 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Installment count must be at least 1"})
			return
		}
	}

	var product products.Product
	if err := database.DB.Where("id = ? AND tenant_id = ?", body.ProductID, tenantID).First(&product).Error; err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Unknown product for this tenant"})
		return
	}

	currency := body.Currency
	if currency == "" {
		currency = product.Currency
	}

	tpl := plans.PlanTemplate{
		TenantID:         tenantID,
		ProductID:        body.ProductID,
		Name:             body.Name,
		Type:             body.Type,
		DepositAmount:    body.DepositAmount,
		InstallmentCount: body.InstallmentCount,
		Frequency:        body.Frequency,
		Currency:         currency,
		Active:           true,
	}
	if err := database.DB.Create(&tpl).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create template"})
		return
	}
	c.JSON(http.StatusCreated, tpl)
}

// DeactivateTemplate retires a template from the picker. Templates are
// never edited in place: once any enrollment references one, the only
// changes allowed are deactivation and replacement by a new row.
func DeactivateTemplate(c *gin.Context) {
	tenantID := c.GetUint("tenant_id")
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid template id"})
		return
	}

	res := database.DB.Model(&plans.PlanTemplate{}).
		Where("id = ? AND tenant_id = ?", uint(id), tenantID).
		Update("active", false)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deactivate template"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deactivated"})
}

// UpdateTemplate allows edits only while no enrollment references the
// template; after that the row is immutable.
func UpdateTemplate(c *gin.Context) {
	tenantID := c.GetUint("tenant_id")
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid template id"})
		return
	}

	var tpl plans.PlanTemplate
	if err := database.DB.Where("id = ? AND tenant_id = ?", uint(id), tenantID).First(&tpl).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
		return
	}

	var refs int64
	if err := database.DB.Model(&enrollment.Enrollment{}).
		Where("payment_plan_id = ?", tpl.ID).
		Count(&refs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check template references"})
		return
	}
	if refs > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Template is referenced by enrollments; create a new template instead"})
		return
	}

	var body createTemplateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid template payload"})
		return
	}

	updates := map[string]interface{}{
		"name":              body.Name,
		"type":              body.Type,
		"deposit_amount":    body.DepositAmount,
		"installment_count": body.InstallmentCount,
		"frequency":         body.Frequency,
	}
	if err := database.DB.Model(&tpl).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update template"})
		return
	}
	c.JSON(http.StatusOK, tpl)
}
