package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/storefront_backend/config"
	"github.com/mmdatafocus/storefront_backend/models"
	"github.com/mmdatafocus/storefront_backend/utils"
)

func getCartHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := currentUserId(c)
		if !ok {
			return
		}
		cart, err := models.GetOrCreateCart(c.Request.Context(), config.GetDB(), userId)
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, cart)
	}
}

func addToCartHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := currentUserId(c)
		if !ok {
			return
		}
		var input models.AddToCartInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}
		release, ok := lockUser(c, userId, cartLock)
		if !ok {
			return
		}
		defer release()
		cart, err := models.AddToCart(c.Request.Context(), config.GetDB(), userId, &input, time.Now())
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusCreated, cart)
	}
}

func checkCartHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := currentUserId(c)
		if !ok {
			return
		}
		productId, err := strconv.Atoi(c.Query("product_id"))
		if err != nil || productId <= 0 || c.Query("variant") == "" {
			respondError(c, utils.NewValidationError("product_id and variant are required"))
			return
		}
		_, err = models.FindCartItem(c.Request.Context(), config.GetDB(), userId, productId, c.Query("variant"))
		if err != nil && !utils.IsStatus(err, http.StatusNotFound) {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "inCart": err == nil})
	}
}

func updateCartQuantityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := currentUserId(c)
		if !ok {
			return
		}
		var input models.UpdateCartQuantityInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}
		release, ok := lockUser(c, userId, cartLock)
		if !ok {
			return
		}
		defer release()
		cart, err := models.UpdateCartQuantity(c.Request.Context(), config.GetDB(), userId, c.Param("sku"), input.Quantity)
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, cart)
	}
}

func removeCartItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := currentUserId(c)
		if !ok {
			return
		}
		release, ok := lockUser(c, userId, cartLock)
		if !ok {
			return
		}
		defer release()
		cart, err := models.RemoveCartItem(c.Request.Context(), config.GetDB(), userId, c.Param("sku"))
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, cart)
	}
}

func listWishlistHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := currentUserId(c)
		if !ok {
			return
		}
		items, err := models.ListWishlist(c.Request.Context(), config.GetDB(), userId)
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, items)
	}
}

func addToWishlistHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := currentUserId(c)
		if !ok {
			return
		}
		var input models.WishlistInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}
		item, err := models.AddToWishlist(c.Request.Context(), config.GetDB(), userId, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusCreated, item)
	}
}

// wishlistInputFromPath reads :productId plus the variant query parameter.
func wishlistInputFromPath(c *gin.Context) (*models.WishlistInput, bool) {
	productId, ok := paramId(c, "productId")
	if !ok {
		return nil, false
	}
	variant := c.Query("variant")
	if variant == "" {
		respondError(c, utils.NewValidationError("variant is required"))
		return nil, false
	}
	return &models.WishlistInput{ProductId: productId, Variant: variant}, true
}

func removeFromWishlistHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := currentUserId(c)
		if !ok {
			return
		}
		input, ok := wishlistInputFromPath(c)
		if !ok {
			return
		}
		if err := models.RemoveFromWishlist(c.Request.Context(), config.GetDB(), userId, input); err != nil {
			respondError(c, err)
			return
		}
		respondMessage(c, "Product removed from wishlist")
	}
}

func checkWishlistHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := currentUserId(c)
		if !ok {
			return
		}
		input, ok := wishlistInputFromPath(c)
		if !ok {
			return
		}
		found, err := models.IsInWishlist(c.Request.Context(), config.GetDB(), userId, input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "inWishlist": found})
	}
}
