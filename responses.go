package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/storefront_backend/config"
	"github.com/mmdatafocus/storefront_backend/models"
	"github.com/mmdatafocus/storefront_backend/utils"
)

// respondError writes err as {success:false, message}. Business errors keep
// their status; anything else is logged and hidden behind a 500.
func respondError(c *gin.Context, err error) {
	if appErr, ok := utils.AsAppError(err); ok {
		c.JSON(appErr.Status, gin.H{"success": false, "message": appErr.Message})
		return
	}
	config.LogError(config.GetLogger(), "server", c.HandlerName(), c.Request.Method+" "+c.FullPath(), nil, err)
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal server error"})
}

func respondBindingError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"message": "Invalid request data",
		"errors":  utils.ProcessValidationErrors(err),
	})
}

func respondData(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, gin.H{"success": true, "message": message})
}

// currentUserId reads the authenticated user id. Routes behind RequireRole always have one.
func currentUserId(c *gin.Context) (int, bool) {
	userId, ok := utils.GetUserIdFromContext(c.Request.Context())
	if !ok || userId <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "unauthorized"})
		return 0, false
	}
	return userId, true
}

// paramId parses a positive integer path parameter, answering 400 otherwise.
func paramId(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid " + name})
		return 0, false
	}
	return id, true
}

// orderLineParam reads :sku plus the optional product_id query parameter.
func orderLineParam(c *gin.Context) (models.OrderLineRef, bool) {
	ref := models.OrderLineRef{Sku: c.Param("sku")}
	if raw := c.Query("product_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid product_id"})
			return ref, false
		}
		ref.ProductId = id
	}
	return ref, true
}

const (
	walletLock = "lock:wallet"
	cartLock   = "lock:cart"
)

// lockUser serializes one user's mutations of lockType across instances.
func lockUser(c *gin.Context, userId int, lockType string) (func(), bool) {
	release, err := utils.UserLock(c.Request.Context(), userId, lockType, "server", c.HandlerName())
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return release, true
}
